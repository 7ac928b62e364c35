package join

import (
	"context"
	"fmt"
	pErrors "github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/errors"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	"time"
)

// PairJoiner matches one primary with one secondary event per key. It keeps at
// most one pending Slot per key: the first event of a pair is stored, the second
// one is emitted together with the stored event and the slot is cleared.
//
// A second event on the side that is already pending replaces the pending one
// (last write wins) and the replaced event is never emitted.
//
// PairJoiner does not serialise calls for the same key. Callers must never run
// two events of one key concurrently, events of different keys may run in
// parallel.
type PairJoiner struct {
	name        string
	slots       SlotStore
	valueMapper ValueMapper
	logger      log.Logger
	metrics     struct {
		matched     metrics.Counter
		stored      metrics.Counter
		overwritten metrics.Counter
		latency     metrics.Observer
	}
}

type joinerOptions struct {
	valueMapper     ValueMapper
	logger          log.Logger
	metricsReporter metrics.Reporter
}

type Option func(*joinerOptions)

func WithValueMapper(mapper ValueMapper) Option {
	return func(o *joinerOptions) {
		o.valueMapper = mapper
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *joinerOptions) {
		o.logger = logger
	}
}

func WithMetricsReporter(reporter metrics.Reporter) Option {
	return func(o *joinerOptions) {
		o.metricsReporter = reporter
	}
}

func NewPairJoiner(name string, slots SlotStore, options ...Option) *PairJoiner {
	opts := &joinerOptions{
		logger:          log.NewNoopLogger(),
		metricsReporter: metrics.NoopReporter(),
	}
	for _, opt := range options {
		opt(opts)
	}

	j := &PairJoiner{
		name:        name,
		slots:       slots,
		valueMapper: opts.valueMapper,
		logger:      opts.logger.NewLog(log.Prefixed(fmt.Sprintf(`pair-joiner-%s`, name))),
	}

	labels := []string{`joiner`, `side`}
	j.metrics.matched = opts.metricsReporter.Counter(metrics.MetricConf{Path: `k_join_pairs_matched`, Labels: labels})
	j.metrics.stored = opts.metricsReporter.Counter(metrics.MetricConf{Path: `k_join_slots_stored`, Labels: labels})
	j.metrics.overwritten = opts.metricsReporter.Counter(metrics.MetricConf{Path: `k_join_slots_overwritten`, Labels: labels})
	j.metrics.latency = opts.metricsReporter.Observer(metrics.MetricConf{Path: `k_join_event_latency_microseconds`, Labels: labels})

	return j
}

func (j *PairJoiner) Name() string {
	return j.name
}

// OnPrimary handles a primary (A side) event. It returns the matched Pair, or nil
// when the event was stored as pending.
func (j *PairJoiner) OnPrimary(ctx context.Context, key, value interface{}) (*Pair, error) {
	return j.On(ctx, SidePrimary, key, value)
}

// OnSecondary handles a secondary (B side) event, symmetric to OnPrimary.
func (j *PairJoiner) OnSecondary(ctx context.Context, key, value interface{}) (*Pair, error) {
	return j.On(ctx, SideSecondary, key, value)
}

func (j *PairJoiner) On(ctx context.Context, side Side, key, value interface{}) (*Pair, error) {
	if side != SidePrimary && side != SideSecondary {
		return nil, errors.New(errors.KindInvalidEvent, key, pErrors.New(fmt.Sprintf(`invalid side [%d]`, side)))
	}

	if MissingKey(key) {
		return nil, errors.New(errors.KindInvalidEvent, nil, pErrors.New(fmt.Sprintf(`%s event without a key`, side)))
	}

	if UnusableKey(key) {
		return nil, errors.New(errors.KindInvalidEvent, nil, pErrors.New(fmt.Sprintf(`%s event key of type [%T] is not comparable`, side, key)))
	}

	lbs := map[string]string{`joiner`: j.name, `side`: side.String()}
	defer func(begin time.Time) {
		j.metrics.latency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), lbs)
	}(time.Now())

	held, err := j.slots.Get(ctx, key)
	if err != nil {
		return nil, errors.New(errors.KindState, key, pErrors.WithPrevious(err, `cannot read pending slot`))
	}

	if held == nil || held.Side == side {
		if held != nil {
			j.metrics.overwritten.Count(1, lbs)
			j.logger.DebugContext(ctx, fmt.Sprintf(`pending %s event of key [%v] replaced`, side, key))
		}

		if err := j.slots.Set(ctx, key, &Slot{Side: side, Value: value}); err != nil {
			return nil, errors.New(errors.KindState, key, pErrors.WithPrevious(err, `cannot write pending slot`))
		}

		j.metrics.stored.Count(1, lbs)
		return nil, nil
	}

	pair := &Pair{Key: key}
	if side == SidePrimary {
		pair.Primary, pair.Secondary = value, held.Value
	} else {
		pair.Primary, pair.Secondary = held.Value, value
	}

	if j.valueMapper != nil {
		joined, err := j.valueMapper(pair.Primary, pair.Secondary)
		if err != nil {
			return nil, errors.New(errors.KindMapper, key, pErrors.WithPrevious(err, `value mapper failed`))
		}
		pair.Joined = joined
	}

	if err := j.slots.Clear(ctx, key); err != nil {
		return nil, errors.New(errors.KindState, key, pErrors.WithPrevious(err, `cannot clear pending slot`))
	}

	j.metrics.matched.Count(1, lbs)

	return pair, nil
}

// State returns the logical state of key.
func (j *PairJoiner) State(ctx context.Context, key interface{}) (State, error) {
	if MissingKey(key) {
		return StateEmpty, errors.New(errors.KindInvalidEvent, nil, pErrors.New(`missing key`))
	}

	if UnusableKey(key) {
		return StateEmpty, errors.New(errors.KindInvalidEvent, nil, pErrors.New(fmt.Sprintf(`key of type [%T] is not comparable`, key)))
	}

	slot, err := j.slots.Get(ctx, key)
	if err != nil {
		return StateEmpty, errors.New(errors.KindState, key, pErrors.WithPrevious(err, `cannot read pending slot`))
	}

	return slot.State(), nil
}

// Pending returns the pending slot of key or nil.
func (j *PairJoiner) Pending(ctx context.Context, key interface{}) (*Slot, error) {
	slot, err := j.slots.Get(ctx, key)
	if err != nil {
		return nil, errors.New(errors.KindState, key, pErrors.WithPrevious(err, `cannot read pending slot`))
	}

	return slot, nil
}

func (j *PairJoiner) Slots() SlotStore {
	return j.slots
}
