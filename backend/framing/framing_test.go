package framing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUnframe(t *testing.T) {
	now := time.Unix(1000, 0)

	tests := []struct {
		name   string
		framed []byte
		value  []byte
		live   bool
	}{
		{`no deadline`, Frame([]byte(`ride`), time.Time{}), []byte(`ride`), true},
		{`deadline ahead`, Frame([]byte(`ride`), now.Add(time.Second)), []byte(`ride`), true},
		{`deadline reached`, Frame([]byte(`ride`), now), []byte(`ride`), true},
		{`expired`, Frame([]byte(`ride`), now.Add(-time.Nanosecond)), nil, false},
		{`empty value`, Frame(nil, time.Time{}), nil, true},
		{`short header`, []byte{0, 1, 2}, nil, false},
		{`nil`, nil, nil, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			value, live := Unframe(test.framed, now)
			assert.Equal(t, test.live, live)
			assert.Equal(t, test.value, value)
		})
	}
}

func TestUnframe_Copies(t *testing.T) {
	framed := Frame([]byte(`ride`), time.Time{})
	value, live := Unframe(framed, time.Now())
	assert.True(t, live)

	framed[8] = 'x'
	assert.Equal(t, []byte(`ride`), value)
}

func TestFrame_Header(t *testing.T) {
	framed := Frame([]byte(`fare`), time.Time{})
	assert.Len(t, framed, 12)
	assert.Equal(t, make([]byte, 8), framed[:8])
}

type sliceCursor struct {
	values [][]byte
	pos    int
}

func (c *sliceCursor) Valid() bool   { return c.pos < len(c.values) }
func (c *sliceCursor) Next()         { c.pos++ }
func (c *sliceCursor) Value() []byte { return c.values[c.pos] }

func TestSkipExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	c := &sliceCursor{values: [][]byte{
		Frame([]byte(`r-1`), now.Add(-time.Minute)),
		Frame([]byte(`r-2`), time.Time{}),
		Frame([]byte(`r-3`), now.Add(-time.Second)),
		Frame([]byte(`r-4`), now.Add(time.Minute)),
		Frame([]byte(`r-5`), now.Add(-time.Second)),
	}}

	var live []string
	for value, ok := SkipExpired(c, now); ok; value, ok = SkipExpired(c, now) {
		live = append(live, string(value))
		c.Next()
	}

	assert.Equal(t, []string{`r-2`, `r-4`}, live)
	assert.False(t, c.Valid())
}
