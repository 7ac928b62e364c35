/**
 * Copyright 2018 PickMe (Digital Mobility Solutions Lanka (PVT) Ltd).
 * All rights reserved.
 * Authors:
 *    Gayan Yapa (gayan@pickme.lk)
 */

package backend

import (
	"time"
)

type Builder func(name string) (Backend, error)

// Backend is a byte oriented key value store. Get returns nil, nil for missing
// keys. An expiry of zero means the entry never expires.
type Backend interface {
	Name() string
	Set(key []byte, value []byte, expiry time.Duration) error
	Get(key []byte) ([]byte, error)
	Iterator() Iterator
	Delete(key []byte) error
	SetExpiry(time time.Duration)
	String() string
	Persistent() bool
	Close() error
	Destroy() error
}

type Iterator interface {
	SeekToFirst()
	Valid() bool
	Next()
	Key() []byte
	Value() []byte
	Error() error
	Close()
}
