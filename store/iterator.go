package store

import (
	"github.com/pickme-go/k-join/backend"
	"github.com/pickme-go/k-join/encoding"
)

type Iterator interface {
	SeekToFirst()
	Valid() bool
	Next()
	Key() (interface{}, error)
	Value() (interface{}, error)
	Error() error
	Close()
}

type iterator struct {
	iterator   backend.Iterator
	keyEncoder encoding.Encoder
	valEncoder encoding.Encoder
}

func (i *iterator) SeekToFirst() {
	i.iterator.SeekToFirst()
}

func (i *iterator) Valid() bool {
	return i.iterator.Valid()
}

func (i *iterator) Next() {
	i.iterator.Next()
}

func (i *iterator) Key() (interface{}, error) {
	return i.keyEncoder.Decode(i.iterator.Key())
}

func (i *iterator) Value() (interface{}, error) {
	return i.valEncoder.Decode(i.iterator.Value())
}

func (i *iterator) Error() error {
	return i.iterator.Error()
}

func (i *iterator) Close() {
	i.iterator.Close()
}
