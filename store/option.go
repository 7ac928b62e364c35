package store

import (
	"github.com/pickme-go/k-join/backend"
	"github.com/pickme-go/log/v2"
	"time"
)

type storeOptions struct {
	backend        backend.Backend
	backendBuilder backend.Builder
	expiry         time.Duration
	logger         log.Logger
}

type Options func(config *storeOptions)

func (c *storeOptions) apply(options ...Options) {
	for _, opt := range options {
		opt(c)
	}
}

// Expire sets the default time to live of every record written through the
// store. Zero keeps records until they are deleted.
func Expire(d time.Duration) Options {
	return func(options *storeOptions) {
		options.expiry = d
	}
}

func WithBackend(backend backend.Backend) Options {
	return func(config *storeOptions) {
		config.backend = backend
	}
}

func WithBackendBuilder(builder backend.Builder) Options {
	return func(config *storeOptions) {
		config.backendBuilder = builder
	}
}

func WithLogger(logger log.Logger) Options {
	return func(config *storeOptions) {
		config.logger = logger
	}
}
