package store

import (
	"context"
	"fmt"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/backend"
	"github.com/pickme-go/k-join/encoding"
	"github.com/pickme-go/log/v2"
	"time"
)

type Builder func(name string, keyEncoder encoding.Encoder, valEncoder encoding.Encoder, options ...Options) (Store, error)

type Store interface {
	Name() string
	Backend() backend.Backend
	KeyEncoder() encoding.Encoder
	ValEncoder() encoding.Encoder
	Set(ctx context.Context, key interface{}, value interface{}, expiry time.Duration) error
	Get(ctx context.Context, key interface{}) (value interface{}, err error)
	GetAll(ctx context.Context) (Iterator, error)
	Delete(ctx context.Context, key interface{}) error
	Close() error
	String() string
}

type store struct {
	backend    backend.Backend
	name       string
	logger     log.Logger
	keyEncoder encoding.Encoder
	valEncoder encoding.Encoder
}

func NewStore(name string, keyEncoder encoding.Encoder, valEncoder encoding.Encoder, options ...Options) (Store, error) {

	opts := new(storeOptions)
	opts.logger = log.NewNoopLogger()
	opts.apply(options...)

	if opts.backend == nil {
		if opts.backendBuilder == nil {
			return nil, errors.New(fmt.Sprintf(`store [%s] needs a backend or a backend builder`, name))
		}

		b, err := opts.backendBuilder(name)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`store [%s] backend builder error`, name))
		}
		opts.backend = b
	}

	s := &store{
		name:       name,
		keyEncoder: keyEncoder,
		logger:     opts.logger.NewLog(log.Prefixed(`store`)),
		valEncoder: valEncoder,
		backend:    opts.backend,
	}

	s.backend.SetExpiry(opts.expiry)

	s.logger.Info(fmt.Sprintf(`store [%s] inited on %s`, name, s.backend))

	return s, nil
}

func (s *store) Name() string {
	return s.name
}

func (s *store) String() string {
	return fmt.Sprintf(`Store: %s Backend: %s`, s.name, s.backend)
}

func (s *store) KeyEncoder() encoding.Encoder {
	return s.keyEncoder
}

func (s *store) ValEncoder() encoding.Encoder {
	return s.valEncoder
}

func (s *store) Backend() backend.Backend {
	return s.backend
}

func (s *store) Set(ctx context.Context, key interface{}, value interface{}, expiry time.Duration) error {

	k, err := s.keyEncoder.Encode(key)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`store [%s] key encode error`, s.name))
	}

	// a nil value is a tombstone
	if value == nil {
		return s.backend.Delete(k)
	}

	v, err := s.valEncoder.Encode(value)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`store [%s] value encode error`, s.name))
	}

	return s.backend.Set(k, v, expiry)
}

func (s *store) Get(ctx context.Context, key interface{}) (value interface{}, err error) {

	k, err := s.keyEncoder.Encode(key)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`store [%s] key encode error`, s.name))
	}

	byt, err := s.backend.Get(k)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`store [%s] backend read error`, s.name))
	}

	if len(byt) < 1 {
		return nil, nil
	}

	v, err := s.valEncoder.Decode(byt)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`store [%s] value decode error`, s.name))
	}

	return v, nil
}

func (s *store) GetAll(ctx context.Context) (Iterator, error) {
	i := s.backend.Iterator()
	if i.Error() != nil {
		return nil, errors.WithPrevious(i.Error(), fmt.Sprintf(`store [%s] backend iterator error`, s.name))
	}
	i.SeekToFirst()

	return &iterator{
		iterator:   i,
		keyEncoder: s.keyEncoder,
		valEncoder: s.valEncoder,
	}, nil
}

func (s *store) Delete(ctx context.Context, key interface{}) (err error) {
	k, err := s.keyEncoder.Encode(key)
	if err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`store [%s] key encode error`, s.name))
	}

	return s.backend.Delete(k)
}

func (s *store) Close() error {
	defer s.logger.Info(fmt.Sprintf(`store [%s] closed`, s.name))
	return s.backend.Close()
}
