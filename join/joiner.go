package join

import (
	"context"
	"reflect"
)

type Side int8

const (
	SidePrimary Side = iota + 1
	SideSecondary
)

func (s Side) String() string {
	switch s {
	case SidePrimary:
		return `primary`
	case SideSecondary:
		return `secondary`
	}

	return `unknown`
}

func (s Side) Opposite() Side {
	if s == SidePrimary {
		return SideSecondary
	}

	return SidePrimary
}

// State is the logical state of one key. A match is a transition, never a state.
type State int

const (
	StateEmpty State = iota
	StateWaitingPrimary
	StateWaitingSecondary
)

func (s State) String() string {
	switch s {
	case StateWaitingPrimary:
		return `WAITING_A`
	case StateWaitingSecondary:
		return `WAITING_B`
	}

	return `EMPTY`
}

// Slot is the pending, not yet matched, event of a key.
type Slot struct {
	Side  Side        `json:"side"`
	Value interface{} `json:"value"`
}

func (s *Slot) State() State {
	if s == nil {
		return StateEmpty
	}

	if s.Side == SidePrimary {
		return StateWaitingPrimary
	}

	return StateWaitingSecondary
}

// Pair is emitted exactly once per completed match. Joined is only set when the
// joiner has a ValueMapper.
type Pair struct {
	Key       interface{} `json:"key"`
	Primary   interface{} `json:"primary"`
	Secondary interface{} `json:"secondary"`
	Joined    interface{} `json:"joined,omitempty"`
}

type ValueMapper func(primary, secondary interface{}) (joined interface{}, err error)

// SlotStore holds at most one Slot per key. Get returns nil, nil for an empty key.
// Implementations need not serialise access per key, the caller does.
type SlotStore interface {
	Get(ctx context.Context, key interface{}) (*Slot, error)
	Set(ctx context.Context, key interface{}, slot *Slot) error
	Clear(ctx context.Context, key interface{}) error
	Keys(ctx context.Context) ([]interface{}, error)
	Close() error
}

// MissingKey reports whether key cannot identify a pair.
func MissingKey(key interface{}) bool {
	switch k := key.(type) {
	case nil:
		return true
	case string:
		return k == ``
	case []byte:
		return len(k) == 0
	}

	return false
}

// UnusableKey reports whether key cannot be held as a map key, such as slices
// (other than []byte) and maps.
func UnusableKey(key interface{}) bool {
	if _, ok := key.([]byte); ok || key == nil {
		return false
	}

	return !reflect.TypeOf(key).Comparable()
}
