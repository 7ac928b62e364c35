package redis

import (
	"context"
	"fmt"
	"github.com/go-redis/redis/v9"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/backend"
	"sort"
	"strings"
	"time"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	// Timeout bounds every redis round trip.
	Timeout time.Duration
}

func Builder(config *Config) backend.Builder {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return func(name string) (backend.Backend, error) {
		return NewRedisBackend(name, client, config.Timeout)
	}
}

// redisBackend namespaces keys as "<name>:<key>" inside a shared redis database.
type redisBackend struct {
	name    string
	client  redis.UniversalClient
	timeout time.Duration
	expiry  time.Duration
}

func NewRedisBackend(name string, client redis.UniversalClient, timeout time.Duration) (backend.Backend, error) {
	if timeout <= 0 {
		timeout = time.Second
	}

	b := &redisBackend{
		name:    name,
		client:  client,
		timeout: timeout,
	}

	ctx, cancel := b.ctx()
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`redis backend [%s] unreachable`, name))
	}

	return b, nil
}

func (r *redisBackend) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *redisBackend) key(k []byte) string {
	return r.name + `:` + string(k)
}

func (r *redisBackend) Name() string {
	return r.name
}

func (r *redisBackend) String() string {
	return fmt.Sprintf(`redis(%s)`, r.name)
}

func (r *redisBackend) Persistent() bool {
	return true
}

func (r *redisBackend) SetExpiry(d time.Duration) {
	r.expiry = d
}

func (r *redisBackend) Set(key []byte, value []byte, expiry time.Duration) error {
	if expiry == 0 {
		expiry = r.expiry
	}

	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Set(ctx, r.key(key), value, expiry).Err(); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`redis backend [%s] set failed`, r.name))
	}

	return nil
}

func (r *redisBackend) Get(key []byte) ([]byte, error) {
	ctx, cancel := r.ctx()
	defer cancel()

	byt, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`redis backend [%s] get failed`, r.name))
	}

	return byt, nil
}

func (r *redisBackend) Delete(key []byte) error {
	ctx, cancel := r.ctx()
	defer cancel()
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`redis backend [%s] delete failed`, r.name))
	}

	return nil
}

// Iterator scans the namespace and loads the matching values sorted by key.
func (r *redisBackend) Iterator() backend.Iterator {
	it := new(iterator)

	ctx, cancel := r.ctx()
	defer cancel()

	var keys []string
	scan := r.client.Scan(ctx, 0, r.name+`:*`, 100).Iterator()
	for scan.Next(ctx) {
		keys = append(keys, scan.Val())
	}
	if err := scan.Err(); err != nil {
		it.err = errors.WithPrevious(err, fmt.Sprintf(`redis backend [%s] scan failed`, r.name))
		return it
	}
	sort.Strings(keys)

	for _, k := range keys {
		byt, err := r.client.Get(ctx, k).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			it.err = errors.WithPrevious(err, fmt.Sprintf(`redis backend [%s] get failed`, r.name))
			return it
		}
		it.keys = append(it.keys, []byte(strings.TrimPrefix(k, r.name+`:`)))
		it.values = append(it.values, byt)
	}

	return it
}

func (r *redisBackend) Close() error {
	return r.client.Close()
}

func (r *redisBackend) Destroy() error {
	i := r.Iterator()
	for i.SeekToFirst(); i.Valid(); i.Next() {
		if err := r.Delete(i.Key()); err != nil {
			return err
		}
	}
	if i.Error() != nil {
		return i.Error()
	}

	return r.Close()
}

type iterator struct {
	keys   [][]byte
	values [][]byte
	cursor int
	err    error
}

func (i *iterator) SeekToFirst() { i.cursor = 0 }
func (i *iterator) Valid() bool   { return i.err == nil && i.cursor < len(i.keys) }
func (i *iterator) Next()         { i.cursor++ }
func (i *iterator) Key() []byte   { return i.keys[i.cursor] }
func (i *iterator) Value() []byte { return i.values[i.cursor] }
func (i *iterator) Error() error  { return i.err }
func (i *iterator) Close()        {}
