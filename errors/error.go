package errors

import (
	stdErrors "errors"
	"fmt"
)

type Kind int

const (
	// KindInvalidEvent rejects an event before it reaches join state (missing key).
	KindInvalidEvent Kind = iota + 1
	// KindState is a failure reading or writing the pending slot of a key.
	KindState
	// KindMapper is returned when the user supplied value mapper fails.
	KindMapper
	// KindInit is a failure opening the slot store of a partition.
	KindInit
)

func (k Kind) String() string {
	switch k {
	case KindInvalidEvent:
		return `InvalidEvent`
	case KindState:
		return `State`
	case KindMapper:
		return `Mapper`
	case KindInit:
		return `Init`
	}

	return `Unknown`
}

// Error is the only error type surfaced by the join operator. None of the kinds
// are retried internally.
type Error struct {
	Kind Kind
	Key  interface{}
	Err  error
}

func New(kind Kind, key interface{}, err error) *Error {
	return &Error{
		Kind: kind,
		Key:  key,
		Err:  err,
	}
}

func (e *Error) Error() string {
	if e.Key == nil {
		return fmt.Sprintf(`k-join [%s]: %v`, e.Kind, e.Err)
	}
	return fmt.Sprintf(`k-join [%s] key [%v]: %v`, e.Kind, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain or 0.
func KindOf(err error) Kind {
	var e *Error
	if stdErrors.As(err, &e) {
		return e.Kind
	}

	return 0
}

func IsInvalidEvent(err error) bool {
	return KindOf(err) == KindInvalidEvent
}

func IsState(err error) bool {
	return KindOf(err) == KindState
}
