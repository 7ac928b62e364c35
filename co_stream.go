/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package kjoin

import (
	"context"
	"fmt"
	"github.com/cespare/xxhash/v2"
	"github.com/pickme-go/errors"
	kContext "github.com/pickme-go/k-join/context"
	kErrors "github.com/pickme-go/k-join/errors"
	"github.com/pickme-go/k-join/join"
	"github.com/pickme-go/k-join/store"
	"github.com/pickme-go/k-join/task_pool"
	"github.com/pickme-go/log/v2"
	gometrics "github.com/rcrowley/go-metrics"
	"net/http"
	"sync"
	"time"
)

// CoStream routes the events of two keyed streams to a PairJoiner. Every key is
// owned by exactly one worker (or one lock stripe when processing synchronously)
// so the events of a key are never joined concurrently, while different keys
// proceed in parallel.
//
// Pairs, and Errors when processing asynchronously, must be drained by the
// caller until Close closes them, otherwise workers block on emission.
type CoStream struct {
	config   *CoStreamConfig
	joiner   *join.PairJoiner
	slots    join.SlotStore
	pool     *task_pool.Pool
	stripes  []sync.Mutex
	pairs    chan join.Pair
	errs     chan error
	logger   log.Logger
	stats    gometrics.Registry
	registry store.Registry
	server   *http.Server
	mu       *sync.RWMutex
	closed   bool
}

type PendingSlot struct {
	Key   interface{} `json:"key"`
	Side  string      `json:"side"`
	Value interface{} `json:"value"`
}

// NewCoStream opens the slot store and starts the workers. A failure opening the
// store is returned as a KindInit error.
func NewCoStream(config *CoStreamConfig) (*CoStream, error) {
	if err := config.validate(); err != nil {
		return nil, kErrors.New(kErrors.KindInit, nil, errors.WithPrevious(err, `invalid co-stream config`))
	}

	s := &CoStream{
		config:   config,
		pairs:    make(chan join.Pair, config.OutputBufferSize),
		errs:     make(chan error, config.OutputBufferSize),
		logger:   config.Logger.NewLog(log.Prefixed(fmt.Sprintf(`co-stream-%s`, config.Name))),
		stats:    gometrics.NewRegistry(),
		registry: store.NewRegistry(),
		mu:       new(sync.RWMutex),
	}

	if s.config.ErrorHandler == nil {
		s.config.ErrorHandler = kErrors.NewLogHandler(s.logger)
	}

	slots, err := s.openSlots()
	if err != nil {
		return nil, kErrors.New(kErrors.KindInit, nil, err)
	}
	s.slots = slots

	options := []join.Option{
		join.WithLogger(config.Logger),
		join.WithMetricsReporter(config.MetricsReporter),
	}
	if config.ValueMapper != nil {
		options = append(options, join.WithValueMapper(config.ValueMapper))
	}
	s.joiner = join.NewPairJoiner(config.Name, slots, options...)

	if config.AsyncProcessing {
		s.pool = task_pool.NewPool(config.Name, config.Logger, config.MetricsReporter, &config.WorkerPool)
	} else {
		s.stripes = make([]sync.Mutex, config.LockStripes)
	}

	if config.Store.Http.Host != `` {
		s.server = store.MakeEndpoints(config.Store.Http.Host, s.Router(), s.logger)
	}

	s.logger.Info(fmt.Sprintf(`co-stream started (async: %t, backend: %s)`, config.AsyncProcessing, config.Store.Backend))

	return s, nil
}

func (s *CoStream) openSlots() (join.SlotStore, error) {
	if s.config.Store.Backend == BackendWindow {
		return join.NewWindow(), nil
	}

	st, err := store.NewStore(s.config.Name, s.config.KeyEncoder, join.SlotEncoder{
		Primary:   s.config.PrimaryEncoder,
		Secondary: s.config.SecondaryEncoder,
	},
		store.WithBackendBuilder(s.config.backendBuilder()),
		store.Expire(s.config.Store.Expiry),
		store.WithLogger(s.config.Logger))
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot open slot store`)
	}

	if err := s.registry.Register(st); err != nil {
		return nil, err
	}

	return join.NewStoreSlots(st)
}

// OnPrimary routes a primary event. Events without a key are rejected with a
// KindInvalidEvent error. In synchronous mode state failures are returned here,
// in asynchronous mode they are published on Errors.
func (s *CoStream) OnPrimary(ctx context.Context, key, value interface{}) error {
	return s.dispatch(ctx, join.SidePrimary, key, value)
}

// OnSecondary routes a secondary event, symmetric to OnPrimary.
func (s *CoStream) OnSecondary(ctx context.Context, key, value interface{}) error {
	return s.dispatch(ctx, join.SideSecondary, key, value)
}

func (s *CoStream) Pairs() <-chan join.Pair {
	return s.pairs
}

func (s *CoStream) Errors() <-chan error {
	return s.errs
}

func (s *CoStream) dispatch(ctx context.Context, side join.Side, key, value interface{}) error {
	if join.MissingKey(key) {
		s.counter(`events.rejected`).Inc(1)
		return kErrors.New(kErrors.KindInvalidEvent, nil, errors.New(fmt.Sprintf(`%s event without a key`, side)))
	}

	if join.UnusableKey(key) {
		s.counter(`events.rejected`).Inc(1)
		return kErrors.New(kErrors.KindInvalidEvent, nil, errors.New(fmt.Sprintf(`%s event key of type [%T] is not comparable`, side, key)))
	}

	hashKey, err := s.hashKey(key)
	if err != nil {
		s.counter(`events.rejected`).Inc(1)
		return kErrors.New(kErrors.KindInvalidEvent, key, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New(fmt.Sprintf(`co-stream [%s] closed`, s.config.Name))
	}

	s.counter(fmt.Sprintf(`events.%s`, side)).Inc(1)

	ctx = kContext.WithRecord(ctx, &kContext.RecordMeta{
		Side:      side.String(),
		Key:       key,
		Source:    s.config.Name,
		Timestamp: time.Now(),
	})

	if s.pool == nil {
		stripe := &s.stripes[xxhash.Sum64(hashKey)%uint64(len(s.stripes))]
		stripe.Lock()
		defer stripe.Unlock()

		if err := s.process(ctx, side, key, value); err != nil {
			s.handleError(ctx, err)
			return err
		}
		return nil
	}

	if !s.pool.Run(ctx, hashKey, func(ctx context.Context) {
		if err := s.process(ctx, side, key, value); err != nil {
			s.handleError(ctx, err)
			s.errs <- err
		}
	}) {
		return errors.WithPrevious(ctx.Err(), fmt.Sprintf(`%s event of key [%v] not dispatched`, side, key))
	}

	return nil
}

func (s *CoStream) process(ctx context.Context, side join.Side, key, value interface{}) error {
	pair, err := s.joiner.On(ctx, side, key, value)
	if err != nil {
		s.counter(fmt.Sprintf(`errors.%s`, kErrors.KindOf(err))).Inc(1)
		return err
	}

	if pair == nil {
		return nil
	}

	s.counter(`pairs.emitted`).Inc(1)
	s.pairs <- *pair

	return nil
}

func (s *CoStream) handleError(ctx context.Context, err error) {
	if e, ok := err.(*kErrors.Error); ok {
		s.config.ErrorHandler.Handle(ctx, e)
	}
}

// hashKey returns the bytes used to pick the worker or lock of key.
func (s *CoStream) hashKey(key interface{}) ([]byte, error) {
	if s.config.KeyEncoder != nil {
		byt, err := s.config.KeyEncoder.Encode(key)
		if err != nil {
			return nil, errors.WithPrevious(err, `key encode error`)
		}
		return byt, nil
	}

	switch k := key.(type) {
	case []byte:
		return k, nil
	case string:
		return []byte(k), nil
	}

	return []byte(fmt.Sprintf(`%T:%v`, key, key)), nil
}

func (s *CoStream) counter(name string) gometrics.Counter {
	return gometrics.GetOrRegisterCounter(name, s.stats)
}

// Stats returns a snapshot of the event, pair and error counters.
func (s *CoStream) Stats() map[string]int64 {
	stats := make(map[string]int64)
	s.stats.Each(func(name string, i interface{}) {
		if c, ok := i.(gometrics.Counter); ok {
			stats[name] = c.Count()
		}
	})

	return stats
}

// State returns the logical join state of key.
func (s *CoStream) State(ctx context.Context, key interface{}) (join.State, error) {
	return s.joiner.State(ctx, key)
}

// Pending lists the events still waiting for their counterpart.
func (s *CoStream) Pending(ctx context.Context) ([]PendingSlot, error) {
	keys, err := s.slots.Keys(ctx)
	if err != nil {
		return nil, kErrors.New(kErrors.KindState, nil, err)
	}

	pending := make([]PendingSlot, 0, len(keys))
	for _, k := range keys {
		slot, err := s.joiner.Pending(ctx, k)
		if err != nil {
			return nil, err
		}
		// matched since Keys was read
		if slot == nil {
			continue
		}
		pending = append(pending, PendingSlot{Key: k, Side: slot.Side.String(), Value: slot.Value})
	}

	return pending, nil
}

// Close stops accepting events, waits for queued events to be joined, then
// closes Pairs, Errors and the slot store.
func (s *CoStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.pool != nil {
		s.pool.Stop()
	}

	close(s.pairs)
	close(s.errs)

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error(err)
		}
	}

	defer s.logger.Info(`co-stream closed`)

	return s.slots.Close()
}
