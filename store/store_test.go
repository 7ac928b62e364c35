package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pickme-go/k-join/backend/memory"
	"github.com/pickme-go/k-join/encoding"
	"github.com/pickme-go/log/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, name string) Store {
	conf := memory.NewConfig()
	conf.ExpiredRecordCleanupInterval = 0
	s, err := NewStore(name, encoding.IntEncoder{}, encoding.StringEncoder{},
		WithBackend(memory.NewMemoryBackend(name, conf)))
	require.NoError(t, err)
	return s
}

func TestStore_SetGetDelete(t *testing.T) {
	s := newTestStore(t, `rides`)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 1, `ride-1`, 0))
	v, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, `ride-1`, v)

	require.NoError(t, s.Delete(ctx, 1))
	v, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStore_NilValueIsTombstone(t *testing.T) {
	s := newTestStore(t, `rides`)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 1, `ride-1`, 0))
	require.NoError(t, s.Set(ctx, 1, nil, 0))

	v, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStore_KeyEncodeError(t *testing.T) {
	s := newTestStore(t, `rides`)
	assert.Error(t, s.Set(context.Background(), `not-an-int`, `v`, 0))
}

func TestNewStore_RequiresBackend(t *testing.T) {
	_, err := NewStore(`orphan`, encoding.IntEncoder{}, encoding.StringEncoder{})
	assert.Error(t, err)
}

func TestRegistry_Duplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newTestStore(t, `a`)))
	assert.Error(t, r.Register(newTestStore(t, `a`)))
	require.NoError(t, r.Register(newTestStore(t, `b`)))

	assert.Equal(t, []string{`a`, `b`}, r.List())
	assert.Nil(t, r.Store(`c`))
}

func TestHttp_Endpoints(t *testing.T) {
	s := newTestStore(t, `rides`)
	require.NoError(t, s.Set(context.Background(), 1, `ride-1`, 0))
	require.NoError(t, s.Set(context.Background(), 2, `ride-2`, 0))

	r := NewRegistry()
	require.NoError(t, r.Register(s))
	srv := httptest.NewServer(NewRouter(r, log.NewNoopLogger()))
	defer srv.Close()

	res, err := http.Get(srv.URL + `/stores`)
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&names))
	res.Body.Close()
	assert.Equal(t, []string{`rides`}, names)

	res, err = http.Get(srv.URL + `/stores/rides`)
	require.NoError(t, err)
	var all []keyVal
	require.NoError(t, json.NewDecoder(res.Body).Decode(&all))
	res.Body.Close()
	require.Len(t, all, 2)
	assert.Equal(t, `ride-1`, all[0].Value)

	res, err = http.Get(srv.URL + `/stores/rides/2`)
	require.NoError(t, err)
	var one keyVal
	require.NoError(t, json.NewDecoder(res.Body).Decode(&one))
	res.Body.Close()
	assert.Equal(t, `ride-2`, one.Value)

	res, err = http.Get(srv.URL + `/stores/rides/9`)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, err = http.Get(srv.URL + `/stores/fares`)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}
