package kjoin

import (
	"fmt"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/task_pool"
	"github.com/pickme-go/log/v2"
	"gopkg.in/yaml.v3"
	"io/ioutil"
	"strings"
	"time"
)

type fileConfig struct {
	Name            string `yaml:"name"`
	AsyncProcessing *bool  `yaml:"async_processing"`
	WorkerPool      struct {
		NumOfWorkers     int    `yaml:"num_of_workers"`
		WorkerBufferSize int    `yaml:"worker_buffer_size"`
		Order            string `yaml:"order"`
	} `yaml:"worker_pool"`
	LockStripes      int    `yaml:"lock_stripes"`
	OutputBufferSize int    `yaml:"output_buffer_size"`
	LogLevel         string `yaml:"log_level"`
	Store            struct {
		Backend string        `yaml:"backend"`
		Expiry  time.Duration `yaml:"expiry"`
		Sqlite  struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
		RocksDb struct {
			Dir string `yaml:"dir"`
		} `yaml:"rocksdb"`
		Redis struct {
			Addr     string        `yaml:"addr"`
			Password string        `yaml:"password"`
			DB       int           `yaml:"db"`
			Timeout  time.Duration `yaml:"timeout"`
		} `yaml:"redis"`
		Http struct {
			Host string `yaml:"host"`
		} `yaml:"http"`
	} `yaml:"store"`
}

// LoadConfig reads a yaml config file on top of NewCoStreamConfig defaults.
// Encoders, value mappers and handlers are code only and must be set afterwards.
func LoadConfig(path string) (*CoStreamConfig, error) {
	byt, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot read config file [%s]`, path))
	}

	return ParseConfig(byt)
}

func ParseConfig(byt []byte) (*CoStreamConfig, error) {
	file := new(fileConfig)
	if err := yaml.Unmarshal(byt, file); err != nil {
		return nil, errors.WithPrevious(err, `invalid yaml config`)
	}

	config := NewCoStreamConfig()

	if file.Name != `` {
		config.Name = file.Name
	}

	if file.AsyncProcessing != nil {
		config.AsyncProcessing = *file.AsyncProcessing
	}

	if file.WorkerPool.NumOfWorkers > 0 {
		config.WorkerPool.NumOfWorkers = file.WorkerPool.NumOfWorkers
	}

	if file.WorkerPool.WorkerBufferSize > 0 {
		config.WorkerPool.WorkerBufferSize = file.WorkerPool.WorkerBufferSize
	}

	switch strings.ToLower(file.WorkerPool.Order) {
	case ``, `by_key`:
	case `preserved`:
		config.WorkerPool.Order = task_pool.OrderPreserved
	default:
		return nil, errors.New(fmt.Sprintf(`unknown worker pool order [%s]`, file.WorkerPool.Order))
	}

	if file.LockStripes > 0 {
		config.LockStripes = file.LockStripes
	}

	if file.OutputBufferSize > 0 {
		config.OutputBufferSize = file.OutputBufferSize
	}

	if file.LogLevel != `` {
		config.Logger = log.NewLog(
			log.FileDepth(2),
			log.WithLevel(log.Level(strings.ToUpper(file.LogLevel))),
			log.WithColors(false),
		).Log(log.Prefixed(`k-join`))
	}

	if file.Store.Backend != `` {
		config.Store.Backend = BackendType(strings.ToLower(file.Store.Backend))
	}
	config.Store.Expiry = file.Store.Expiry
	config.Store.Http.Host = file.Store.Http.Host

	if file.Store.Sqlite.Path != `` {
		config.Store.Sqlite.Path = file.Store.Sqlite.Path
	}
	config.Store.RocksDb.Dir = file.Store.RocksDb.Dir
	config.Store.Redis.Addr = file.Store.Redis.Addr
	config.Store.Redis.Password = file.Store.Redis.Password
	config.Store.Redis.DB = file.Store.Redis.DB
	if file.Store.Redis.Timeout > 0 {
		config.Store.Redis.Timeout = file.Store.Redis.Timeout
	}

	return config, nil
}
