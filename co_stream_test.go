package kjoin

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/backend"
	"github.com/pickme-go/k-join/backend/memory"
	"github.com/pickme-go/k-join/encoding"
	kErrors "github.com/pickme-go/k-join/errors"
	"github.com/pickme-go/k-join/join"
	"github.com/pickme-go/log/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(async bool) *CoStreamConfig {
	c := NewCoStreamConfig()
	c.Name = `rides-fares`
	c.AsyncProcessing = async
	c.Logger = log.NewNoopLogger()
	c.ErrorHandler = kErrors.ErrorHandlerFunc(func(ctx context.Context, err *kErrors.Error) {})
	return c
}

func storeConfig(async bool, b BackendType) *CoStreamConfig {
	c := testConfig(async)
	c.Store.Backend = b
	c.KeyEncoder = encoding.StringEncoder{}
	c.PrimaryEncoder = encoding.StringEncoder{}
	c.SecondaryEncoder = encoding.StringEncoder{}
	return c
}

// collect drains Pairs and Errors until the co-stream is closed.
type collector struct {
	pairs []join.Pair
	errs  []error
	wg    sync.WaitGroup
}

func collect(s *CoStream) *collector {
	c := new(collector)
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for p := range s.Pairs() {
			c.pairs = append(c.pairs, p)
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range s.Errors() {
			c.errs = append(c.errs, err)
		}
	}()
	return c
}

func (c *collector) wait(t *testing.T, s *CoStream) {
	t.Helper()
	require.NoError(t, s.Close())
	c.wg.Wait()
}

type event struct {
	side  join.Side
	key   string
	value string
}

func feed(t *testing.T, s *CoStream, events ...event) {
	t.Helper()
	ctx := context.Background()
	for _, e := range events {
		var err error
		if e.side == join.SidePrimary {
			err = s.OnPrimary(ctx, e.key, e.value)
		} else {
			err = s.OnSecondary(ctx, e.key, e.value)
		}
		require.NoError(t, err)
	}
}

func eachMode(t *testing.T, fn func(t *testing.T, config *CoStreamConfig)) {
	t.Run(`sync`, func(t *testing.T) { fn(t, testConfig(false)) })
	t.Run(`async`, func(t *testing.T) { fn(t, testConfig(true)) })
	t.Run(`async-memory-store`, func(t *testing.T) { fn(t, storeConfig(true, BackendMemory)) })
	t.Run(`sync-sqlite-store`, func(t *testing.T) { fn(t, storeConfig(false, BackendSqlite)) })
}

func TestCoStream_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		events  []event
		pairs   []join.Pair
		pending map[string]join.State
	}{
		{
			name:   `primary then secondary`,
			events: []event{{join.SidePrimary, `k1`, `a1`}, {join.SideSecondary, `k1`, `b1`}},
			pairs:  []join.Pair{{Key: `k1`, Primary: `a1`, Secondary: `b1`}},
		},
		{
			name:   `secondary then primary`,
			events: []event{{join.SideSecondary, `k1`, `b1`}, {join.SidePrimary, `k1`, `a1`}},
			pairs:  []join.Pair{{Key: `k1`, Primary: `a1`, Secondary: `b1`}},
		},
		{
			name: `interleaved keys`,
			events: []event{
				{join.SidePrimary, `k1`, `a1`},
				{join.SidePrimary, `k2`, `a2`},
				{join.SideSecondary, `k2`, `b2`},
				{join.SideSecondary, `k1`, `b1`},
			},
			pairs: []join.Pair{
				{Key: `k1`, Primary: `a1`, Secondary: `b1`},
				{Key: `k2`, Primary: `a2`, Secondary: `b2`},
			},
		},
		{
			name:    `unmatched stays pending`,
			events:  []event{{join.SidePrimary, `k3`, `a3`}},
			pending: map[string]join.State{`k3`: join.StateWaitingPrimary},
		},
		{
			name: `same side overwrites`,
			events: []event{
				{join.SidePrimary, `k1`, `a1`},
				{join.SidePrimary, `k1`, `a1'`},
				{join.SideSecondary, `k1`, `b1`},
			},
			pairs: []join.Pair{{Key: `k1`, Primary: `a1'`, Secondary: `b1`}},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			eachMode(t, func(t *testing.T, config *CoStreamConfig) {
				s, err := NewCoStream(config)
				require.NoError(t, err)
				c := collect(s)

				feed(t, s, test.events...)

				// read state before Close shuts the slot store
				if s.pool != nil {
					s.pool.Stop()
				}
				for key, want := range test.pending {
					got, err := s.State(context.Background(), key)
					require.NoError(t, err)
					assert.Equal(t, want, got)
				}

				c.wait(t, s)
				assert.Empty(t, c.errs)

				sort.Slice(c.pairs, func(i, j int) bool {
					return fmt.Sprint(c.pairs[i].Key) < fmt.Sprint(c.pairs[j].Key)
				})
				if len(test.pairs) == 0 {
					assert.Empty(t, c.pairs)
					return
				}
				assert.Equal(t, test.pairs, c.pairs)
			})
		})
	}
}

func TestCoStream_KeyIsolation(t *testing.T) {
	eachMode(t, func(t *testing.T, config *CoStreamConfig) {
		config.WorkerPool.NumOfWorkers = 4
		s, err := NewCoStream(config)
		require.NoError(t, err)
		c := collect(s)

		const keys = 200
		var wg sync.WaitGroup
		for _, side := range []join.Side{join.SidePrimary, join.SideSecondary} {
			wg.Add(1)
			go func(side join.Side) {
				defer wg.Done()
				for i := 0; i < keys; i++ {
					key := fmt.Sprintf(`key-%d`, i)
					var err error
					if side == join.SidePrimary {
						err = s.OnPrimary(context.Background(), key, `a-`+key)
					} else {
						err = s.OnSecondary(context.Background(), key, `b-`+key)
					}
					assert.NoError(t, err)
				}
			}(side)
		}
		wg.Wait()

		c.wait(t, s)
		require.Empty(t, c.errs)
		require.Len(t, c.pairs, keys)

		seen := make(map[interface{}]bool)
		for _, p := range c.pairs {
			assert.False(t, seen[p.Key], `key [%v] joined twice`, p.Key)
			seen[p.Key] = true
			assert.Equal(t, fmt.Sprintf(`a-%s`, p.Key), p.Primary)
			assert.Equal(t, fmt.Sprintf(`b-%s`, p.Key), p.Secondary)
		}
	})
}

func TestCoStream_MissingKey(t *testing.T) {
	eachMode(t, func(t *testing.T, config *CoStreamConfig) {
		s, err := NewCoStream(config)
		require.NoError(t, err)
		c := collect(s)

		for _, key := range []interface{}{nil, ``, []byte{}} {
			err := s.OnPrimary(context.Background(), key, `a`)
			require.Error(t, err)
			assert.True(t, kErrors.IsInvalidEvent(err))

			err = s.OnSecondary(context.Background(), key, `b`)
			assert.True(t, kErrors.IsInvalidEvent(err))
		}

		assert.Equal(t, int64(6), s.Stats()[`events.rejected`])
		c.wait(t, s)
		assert.Empty(t, c.pairs)
	})
}

func TestCoStream_NonComparableKey(t *testing.T) {
	eachMode(t, func(t *testing.T, config *CoStreamConfig) {
		s, err := NewCoStream(config)
		require.NoError(t, err)
		c := collect(s)

		err = s.OnPrimary(context.Background(), []int{1}, `ride`)
		require.Error(t, err)
		assert.True(t, kErrors.IsInvalidEvent(err))

		err = s.OnSecondary(context.Background(), map[string]int{`ride`: 1}, `fare`)
		assert.True(t, kErrors.IsInvalidEvent(err))

		assert.Equal(t, int64(2), s.Stats()[`events.rejected`])
		c.wait(t, s)
		assert.Empty(t, c.pairs)
		assert.Empty(t, c.errs)
	})
}

func TestCoStream_ClosedRejectsEvents(t *testing.T) {
	s, err := NewCoStream(testConfig(true))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Error(t, s.OnPrimary(context.Background(), `k1`, `a1`))
}

type failingBackend struct {
	backend.Backend
}

func (failingBackend) Get(key []byte) ([]byte, error) {
	return nil, errors.New(`backend unavailable`)
}

func failingConfig(async bool) *CoStreamConfig {
	c := storeConfig(async, BackendMemory)
	c.Store.BackendBuilder = func(name string) (backend.Backend, error) {
		return failingBackend{memory.NewMemoryBackend(name, memory.NewConfig())}, nil
	}
	return c
}

func TestCoStream_StateFailure_Sync(t *testing.T) {
	var handled []*kErrors.Error
	config := failingConfig(false)
	config.ErrorHandler = kErrors.ErrorHandlerFunc(func(ctx context.Context, err *kErrors.Error) {
		handled = append(handled, err)
	})

	s, err := NewCoStream(config)
	require.NoError(t, err)
	defer s.Close()

	err = s.OnPrimary(context.Background(), `k1`, `a1`)
	require.Error(t, err)
	assert.True(t, kErrors.IsState(err))
	require.Len(t, handled, 1)
	assert.Equal(t, kErrors.KindState, handled[0].Kind)
	assert.Equal(t, int64(1), s.Stats()[`errors.State`])
}

func TestCoStream_StateFailure_Async(t *testing.T) {
	s, err := NewCoStream(failingConfig(true))
	require.NoError(t, err)
	c := collect(s)

	require.NoError(t, s.OnSecondary(context.Background(), `k1`, `b1`))

	c.wait(t, s)
	require.Len(t, c.errs, 1)
	assert.True(t, kErrors.IsState(c.errs[0]))
	assert.Empty(t, c.pairs)
}

func TestNewCoStream_InitFailure(t *testing.T) {
	config := storeConfig(true, BackendMemory)
	config.Store.BackendBuilder = func(name string) (backend.Backend, error) {
		return nil, errors.New(`cannot open`)
	}

	_, err := NewCoStream(config)
	require.Error(t, err)
	assert.Equal(t, kErrors.KindInit, kErrors.KindOf(err))

	config = testConfig(true)
	config.Name = ``
	_, err = NewCoStream(config)
	assert.Equal(t, kErrors.KindInit, kErrors.KindOf(err))
}

func TestCoStream_ValueMapper(t *testing.T) {
	config := testConfig(false)
	config.ValueMapper = func(primary, secondary interface{}) (interface{}, error) {
		return fmt.Sprintf(`%s+%s`, primary, secondary), nil
	}

	s, err := NewCoStream(config)
	require.NoError(t, err)
	c := collect(s)

	feed(t, s, event{join.SideSecondary, `k1`, `b1`}, event{join.SidePrimary, `k1`, `a1`})

	c.wait(t, s)
	require.Len(t, c.pairs, 1)
	assert.Equal(t, `a1+b1`, c.pairs[0].Joined)
}

func TestCoStream_Run(t *testing.T) {
	eachMode(t, func(t *testing.T, config *CoStreamConfig) {
		s, err := NewCoStream(config)
		require.NoError(t, err)
		c := collect(s)

		rides := NewSliceSource(
			Record{Key: `1`, Value: `ride-1`},
			Record{Key: `2`, Value: `ride-2`},
			Record{Key: `3`, Value: `ride-3`},
		)
		fares := NewSliceSource(
			Record{Key: `3`, Value: `fare-3`},
			Record{Key: `1`, Value: `fare-1`},
		)

		require.NoError(t, s.Run(context.Background(), rides, fares))

		c.wait(t, s)
		assert.Len(t, c.pairs, 2)
		assert.Equal(t, int64(3), s.Stats()[`events.primary`])
	})
}

func TestCoStream_RunStopsOnInvalidEvent(t *testing.T) {
	s, err := NewCoStream(testConfig(false))
	require.NoError(t, err)
	c := collect(s)

	err = s.Run(context.Background(),
		NewSliceSource(Record{Key: `1`, Value: `ride-1`}, Record{Key: nil, Value: `ride-?`}),
		NewSliceSource())
	require.Error(t, err)
	assert.True(t, kErrors.IsInvalidEvent(err))

	c.wait(t, s)
}

func TestCoStream_Pending(t *testing.T) {
	eachMode(t, func(t *testing.T, config *CoStreamConfig) {
		s, err := NewCoStream(config)
		require.NoError(t, err)
		c := collect(s)

		feed(t, s,
			event{join.SidePrimary, `k1`, `a1`},
			event{join.SideSecondary, `k2`, `b2`},
			event{join.SidePrimary, `k3`, `a3`},
			event{join.SideSecondary, `k3`, `b3`},
		)
		if s.pool != nil {
			s.pool.Stop()
		}

		pending, err := s.Pending(context.Background())
		require.NoError(t, err)
		sort.Slice(pending, func(i, j int) bool {
			return fmt.Sprint(pending[i].Key) < fmt.Sprint(pending[j].Key)
		})
		require.Len(t, pending, 2)
		assert.Equal(t, `k1`, fmt.Sprint(pending[0].Key))
		assert.Equal(t, join.SidePrimary.String(), pending[0].Side)
		assert.Equal(t, `a1`, pending[0].Value)
		assert.Equal(t, `k2`, fmt.Sprint(pending[1].Key))
		assert.Equal(t, join.SideSecondary.String(), pending[1].Side)

		c.wait(t, s)
	})
}

func TestCoStream_Router(t *testing.T) {
	s, err := NewCoStream(storeConfig(false, BackendMemory))
	require.NoError(t, err)
	c := collect(s)
	defer c.wait(t, s)

	feed(t, s, event{join.SidePrimary, `k1`, `a1`})

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	for path, want := range map[string]string{
		`/pending`: `"key":"k1"`,
		`/stats`:   `"events.`,
		`/stores`:  `rides-fares`,
	} {
		res, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		body, err := ioutil.ReadAll(res.Body)
		res.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
		assert.Contains(t, string(body), want, path)
	}
}

func TestCoStream_DescribeAndGraph(t *testing.T) {
	s, err := NewCoStream(storeConfig(true, BackendSqlite))
	require.NoError(t, err)
	c := collect(s)
	defer c.wait(t, s)

	buf := new(bytes.Buffer)
	s.Describe(buf)
	assert.Contains(t, buf.String(), `sqlite`)
	assert.Contains(t, buf.String(), `OrderByKey`)

	dot, err := s.Graph(`rides`, `fares`, `print`)
	require.NoError(t, err)
	assert.True(t, strings.Contains(dot, `"rides"->"rides-fares-joiner"`))
	assert.True(t, strings.Contains(dot, `"rides-fares-joiner"->"print"`))
}
