/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package kjoin

import (
	"fmt"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/backend"
	"github.com/pickme-go/k-join/backend/memory"
	"github.com/pickme-go/k-join/backend/redis"
	"github.com/pickme-go/k-join/backend/rocksdb"
	"github.com/pickme-go/k-join/backend/sqlite"
	"github.com/pickme-go/k-join/encoding"
	kErrors "github.com/pickme-go/k-join/errors"
	"github.com/pickme-go/k-join/join"
	"github.com/pickme-go/k-join/logger"
	"github.com/pickme-go/k-join/task_pool"
	"github.com/pickme-go/log/v2"
	"github.com/pickme-go/metrics/v2"
	"time"
)

type BackendType string

const (
	// BackendWindow keeps pending slots in a plain in-process map.
	BackendWindow  BackendType = `window`
	BackendMemory  BackendType = `memory`
	BackendSqlite  BackendType = `sqlite`
	BackendRocksDb BackendType = `rocksdb`
	BackendRedis   BackendType = `redis`
)

type CoStreamConfig struct {
	Name            string
	AsyncProcessing bool
	WorkerPool      task_pool.PoolConfig
	// LockStripes is the number of key striped locks used when AsyncProcessing
	// is off.
	LockStripes      int
	OutputBufferSize int
	KeyEncoder       encoding.Encoder
	PrimaryEncoder   encoding.Encoder
	SecondaryEncoder encoding.Encoder
	Store            struct {
		Backend BackendType
		// Expiry evicts a pending slot after the given time. Zero (the default)
		// keeps unmatched events forever.
		Expiry         time.Duration
		BackendBuilder backend.Builder
		Sqlite         sqlite.Config
		RocksDb        rocksdb.Config
		Redis          redis.Config
		Http           struct {
			Host string
		}
	}
	ValueMapper     join.ValueMapper
	ErrorHandler    kErrors.ErrorHandler
	Logger          log.Logger
	MetricsReporter metrics.Reporter
}

func NewCoStreamConfig() *CoStreamConfig {
	config := &CoStreamConfig{}
	config.Name = `co-stream`
	config.AsyncProcessing = true
	config.LockStripes = 64
	config.OutputBufferSize = 100

	// default task execution order
	config.WorkerPool.Order = task_pool.OrderByKey
	config.WorkerPool.NumOfWorkers = 10
	config.WorkerPool.WorkerBufferSize = 10

	config.Store.Backend = BackendWindow
	config.Store.Sqlite.Path = `:memory:`
	config.Store.Redis.Timeout = time.Second

	config.Logger = logger.DefaultLogger
	config.MetricsReporter = metrics.NoopReporter()

	return config
}

func (c *CoStreamConfig) validate() error {
	if c.Name == `` {
		return errors.New(`[Name] cannot be empty`)
	}

	if c.OutputBufferSize < 0 {
		return errors.New(`[OutputBufferSize] cannot be negative`)
	}

	if c.Store.Expiry < 0 {
		return errors.New(`[Store.Expiry] cannot be negative`)
	}

	if c.Logger == nil {
		return errors.New(`[Logger] cannot be nil`)
	}

	if c.MetricsReporter == nil {
		return errors.New(`[MetricsReporter] cannot be nil`)
	}

	if c.AsyncProcessing {
		if c.WorkerPool.Order != task_pool.OrderByKey && c.WorkerPool.Order != task_pool.OrderPreserved {
			return errors.New(`invalid WorkerPool Order`)
		}

		if c.WorkerPool.WorkerBufferSize < 1 {
			return errors.New(`WorkerPool WorkerBufferSize should be greater than 0`)
		}

		if c.WorkerPool.NumOfWorkers < 1 {
			return errors.New(`WorkerPool NumOfWorkers should be greater than 0`)
		}
	} else if c.LockStripes < 1 {
		return errors.New(`[LockStripes] should be greater than 0`)
	}

	switch c.Store.Backend {
	case BackendWindow:
		if c.Store.Expiry > 0 {
			return errors.New(`[Store.Expiry] is not supported by the window backend`)
		}
		return nil
	case BackendMemory, BackendSqlite, BackendRocksDb, BackendRedis:
	default:
		return errors.New(fmt.Sprintf(`unknown store backend [%s]`, c.Store.Backend))
	}

	if c.KeyEncoder == nil || c.PrimaryEncoder == nil || c.SecondaryEncoder == nil {
		return errors.New(fmt.Sprintf(`store backend [%s] needs KeyEncoder, PrimaryEncoder and SecondaryEncoder`, c.Store.Backend))
	}

	if c.Store.Backend == BackendRocksDb && c.Store.RocksDb.Dir == `` {
		return errors.New(`[Store.RocksDb.Dir] cannot be empty`)
	}

	if c.Store.Backend == BackendRedis && c.Store.Redis.Addr == `` {
		return errors.New(`[Store.Redis.Addr] cannot be empty`)
	}

	return nil
}

func (c *CoStreamConfig) backendBuilder() backend.Builder {
	if c.Store.BackendBuilder != nil {
		return c.Store.BackendBuilder
	}

	switch c.Store.Backend {
	case BackendSqlite:
		return sqlite.Builder(&c.Store.Sqlite)
	case BackendRocksDb:
		return rocksdb.Builder(&c.Store.RocksDb)
	case BackendRedis:
		return redis.Builder(&c.Store.Redis)
	}

	conf := memory.NewConfig()
	conf.Logger = c.Logger
	conf.MetricsReporter = c.MetricsReporter
	return memory.Builder(conf)
}
