// Package framing prefixes stored values with an expiry deadline for backends
// without a per key ttl.
package framing

import (
	"encoding/binary"
	"time"
)

const headerSize = 8

// Frame prefixes value with deadline as big endian unix nanos. A zero deadline
// never expires.
func Frame(value []byte, deadline time.Time) []byte {
	var nanos int64
	if !deadline.IsZero() {
		nanos = deadline.UnixNano()
	}

	framed := make([]byte, headerSize+len(value))
	binary.BigEndian.PutUint64(framed, uint64(nanos))
	copy(framed[headerSize:], value)

	return framed
}

// Unframe returns a copy of the framed value and whether it is still live at now.
// Values shorter than the header are never live.
func Unframe(framed []byte, now time.Time) ([]byte, bool) {
	if len(framed) < headerSize {
		return nil, false
	}

	deadline := int64(binary.BigEndian.Uint64(framed[:headerSize]))
	if deadline > 0 && now.UnixNano() > deadline {
		return nil, false
	}

	return append([]byte(nil), framed[headerSize:]...), true
}

// Cursor is a forward iterator over framed values.
type Cursor interface {
	Valid() bool
	Next()
	Value() []byte
}

// SkipExpired advances c to the first entry live at now and returns its value.
// It returns false once c is exhausted.
func SkipExpired(c Cursor, now time.Time) ([]byte, bool) {
	for c.Valid() {
		if value, live := Unframe(c.Value(), now); live {
			return value, true
		}
		c.Next()
	}

	return nil, false
}
