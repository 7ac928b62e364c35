/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package memory

import (
	"bytes"
	"fmt"
	"github.com/google/btree"
	"github.com/pickme-go/k-join/backend"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	"sync"
	"time"
)

type item struct {
	key       []byte
	value     []byte
	expiresAt time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && now.After(i.expiresAt)
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

type Config struct {
	ExpiredRecordCleanupInterval time.Duration
	Logger                       log.Logger
	MetricsReporter              metrics.Reporter
}

func NewConfig() *Config {
	conf := new(Config)
	conf.ExpiredRecordCleanupInterval = time.Second
	conf.Logger = log.NewNoopLogger()
	conf.MetricsReporter = metrics.NoopReporter()

	return conf
}

// Builder returns a backend.Builder creating a fresh memory backend per name.
func Builder(config *Config) backend.Builder {
	return func(name string) (backend.Backend, error) {
		return NewMemoryBackend(name, config), nil
	}
}

type memory struct {
	name    string
	expiry  time.Duration
	records *btree.BTreeG[item]
	mu      *sync.RWMutex
	logger  log.Logger
	stop    chan struct{}
	metrics struct {
		updateLatency metrics.Observer
		readLatency   metrics.Observer
		deleteLatency metrics.Observer
	}
}

func NewMemoryBackend(name string, config *Config) backend.Backend {
	m := &memory{
		name:    name,
		records: btree.NewG[item](32, less),
		mu:      new(sync.RWMutex),
		logger:  config.Logger.NewLog(log.Prefixed(`backend.memory`)),
		stop:    make(chan struct{}),
	}

	labels := []string{`name`, `type`}
	m.metrics.readLatency = config.MetricsReporter.Observer(metrics.MetricConf{Path: `k_join_backend_read_latency_microseconds`, Labels: labels})
	m.metrics.updateLatency = config.MetricsReporter.Observer(metrics.MetricConf{Path: `k_join_backend_update_latency_microseconds`, Labels: labels})
	m.metrics.deleteLatency = config.MetricsReporter.Observer(metrics.MetricConf{Path: `k_join_backend_delete_latency_microseconds`, Labels: labels})

	if config.ExpiredRecordCleanupInterval > 0 {
		go m.runCleaner(config.ExpiredRecordCleanupInterval)
	}

	return m
}

func (m *memory) runCleaner(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			var expired []item
			m.records.Ascend(func(i item) bool {
				if i.expired(now) {
					expired = append(expired, i)
				}
				return true
			})
			for _, i := range expired {
				m.records.Delete(i)
			}
			m.mu.Unlock()

			if len(expired) > 0 {
				m.logger.Debug(fmt.Sprintf(`%d expired records removed from [%s]`, len(expired), m.name))
			}
		}
	}
}

func (m *memory) Name() string {
	return m.name
}

func (m *memory) String() string {
	return fmt.Sprintf(`memory(%s)`, m.name)
}

func (m *memory) Persistent() bool {
	return false
}

func (m *memory) SetExpiry(d time.Duration) {
	m.expiry = d
}

func (m *memory) Set(key []byte, value []byte, expiry time.Duration) error {
	defer func(begin time.Time) {
		m.metrics.updateLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), map[string]string{`name`: m.name, `type`: `memory`})
	}(time.Now())

	if expiry == 0 {
		expiry = m.expiry
	}

	i := item{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	}
	if expiry > 0 {
		i.expiresAt = time.Now().Add(expiry)
	}

	m.mu.Lock()
	m.records.ReplaceOrInsert(i)
	m.mu.Unlock()

	return nil
}

func (m *memory) Get(key []byte) ([]byte, error) {
	defer func(begin time.Time) {
		m.metrics.readLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), map[string]string{`name`: m.name, `type`: `memory`})
	}(time.Now())

	m.mu.RLock()
	i, ok := m.records.Get(item{key: key})
	m.mu.RUnlock()

	if !ok || i.expired(time.Now()) {
		return nil, nil
	}

	return i.value, nil
}

func (m *memory) Delete(key []byte) error {
	defer func(begin time.Time) {
		m.metrics.deleteLatency.Observe(float64(time.Since(begin).Nanoseconds()/1e3), map[string]string{`name`: m.name, `type`: `memory`})
	}(time.Now())

	m.mu.Lock()
	m.records.Delete(item{key: key})
	m.mu.Unlock()

	return nil
}

// Iterator iterates over a point in time copy of the live records.
func (m *memory) Iterator() backend.Iterator {
	now := time.Now()
	var records []item

	m.mu.RLock()
	m.records.Ascend(func(i item) bool {
		if !i.expired(now) {
			records = append(records, i)
		}
		return true
	})
	m.mu.RUnlock()

	return &iterator{records: records}
}

func (m *memory) Close() error {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}

	return nil
}

func (m *memory) Destroy() error {
	m.mu.Lock()
	m.records.Clear(false)
	m.mu.Unlock()

	return m.Close()
}

type iterator struct {
	records []item
	cursor  int
}

func (i *iterator) SeekToFirst() {
	i.cursor = 0
}

func (i *iterator) Valid() bool {
	return i.cursor < len(i.records)
}

func (i *iterator) Next() {
	i.cursor++
}

func (i *iterator) Key() []byte {
	return i.records[i.cursor].key
}

func (i *iterator) Value() []byte {
	return i.records[i.cursor].value
}

func (i *iterator) Error() error {
	return nil
}

func (i *iterator) Close() {
	i.records = nil
}
