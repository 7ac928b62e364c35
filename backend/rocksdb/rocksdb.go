/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package rocksdb

import (
	"fmt"
	"github.com/pickme-go/errors"
	"github.com/pickme-go/k-join/backend"
	"github.com/pickme-go/k-join/backend/framing"
	"github.com/tecbot/gorocksdb"
	"path/filepath"
	"time"
)

type Config struct {
	Dir string
}

func Builder(config *Config) backend.Builder {
	return func(name string) (backend.Backend, error) {
		return NewRocksDb(name, config)
	}
}

// rocksDb frames every stored value with its expiry deadline since rocksdb has
// no per key ttl.
type rocksDb struct {
	name   string
	path   string
	expiry time.Duration
	db     *gorocksdb.DB
	opts   *gorocksdb.Options
	ro     *gorocksdb.ReadOptions
	wo     *gorocksdb.WriteOptions
}

func NewRocksDb(name string, config *Config) (backend.Backend, error) {
	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)

	path := filepath.Join(config.Dir, name)
	db, err := gorocksdb.OpenDb(opts, path)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot open rocksdb backend [%s]`, path))
	}

	return &rocksDb{
		name: name,
		path: path,
		db:   db,
		opts: opts,
		ro:   gorocksdb.NewDefaultReadOptions(),
		wo:   gorocksdb.NewDefaultWriteOptions(),
	}, nil
}

func (r *rocksDb) Name() string {
	return r.name
}

func (r *rocksDb) String() string {
	return fmt.Sprintf(`rocksdb(%s)`, r.path)
}

func (r *rocksDb) Persistent() bool {
	return true
}

func (r *rocksDb) SetExpiry(d time.Duration) {
	r.expiry = d
}

func (r *rocksDb) Set(key []byte, value []byte, expiry time.Duration) error {
	if expiry == 0 {
		expiry = r.expiry
	}

	var deadline time.Time
	if expiry > 0 {
		deadline = time.Now().Add(expiry)
	}

	if err := r.db.Put(r.wo, key, framing.Frame(value, deadline)); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`rocksdb backend [%s] put failed`, r.name))
	}

	return nil
}

func (r *rocksDb) Get(key []byte) ([]byte, error) {
	slice, err := r.db.Get(r.ro, key)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`rocksdb backend [%s] get failed`, r.name))
	}
	defer slice.Free()

	if !slice.Exists() {
		return nil, nil
	}

	value, live := framing.Unframe(slice.Data(), time.Now())
	if !live {
		return nil, nil
	}

	return value, nil
}

func (r *rocksDb) Delete(key []byte) error {
	if err := r.db.Delete(r.wo, key); err != nil {
		return errors.WithPrevious(err, fmt.Sprintf(`rocksdb backend [%s] delete failed`, r.name))
	}

	return nil
}

func (r *rocksDb) Iterator() backend.Iterator {
	return &iterator{
		it:  r.db.NewIterator(r.ro),
		now: time.Now(),
	}
}

func (r *rocksDb) Close() error {
	r.db.Close()
	r.ro.Destroy()
	r.wo.Destroy()

	return nil
}

func (r *rocksDb) Destroy() error {
	if err := r.Close(); err != nil {
		return err
	}

	return gorocksdb.DestroyDb(r.path, r.opts)
}

type iterator struct {
	it    *gorocksdb.Iterator
	now   time.Time
	value []byte
}

// skip moves past expired entries.
func (i *iterator) skip() {
	i.value, _ = framing.SkipExpired(cursor{i.it}, i.now)
}

// cursor copies values out of rocksdb owned slices.
type cursor struct {
	it *gorocksdb.Iterator
}

func (c cursor) Valid() bool { return c.it.Valid() }
func (c cursor) Next()       { c.it.Next() }

func (c cursor) Value() []byte {
	v := c.it.Value()
	defer v.Free()
	return append([]byte(nil), v.Data()...)
}

func (i *iterator) SeekToFirst() {
	i.it.SeekToFirst()
	i.skip()
}

func (i *iterator) Valid() bool {
	return i.it.Valid()
}

func (i *iterator) Next() {
	i.it.Next()
	i.skip()
}

func (i *iterator) Key() []byte {
	k := i.it.Key()
	defer k.Free()
	return append([]byte(nil), k.Data()...)
}

func (i *iterator) Value() []byte {
	return i.value
}

func (i *iterator) Error() error {
	return i.it.Err()
}

func (i *iterator) Close() {
	i.it.Close()
}
