package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf(`dispatch: %w`, New(KindState, 1, fmt.Errorf(`backend down`)))

	assert.Equal(t, KindState, KindOf(err))
	assert.True(t, IsState(err))
	assert.False(t, IsInvalidEvent(err))
	assert.Equal(t, Kind(0), KindOf(fmt.Errorf(`plain`)))
}

func TestError_Message(t *testing.T) {
	err := New(KindInvalidEvent, nil, fmt.Errorf(`missing key`))
	assert.Equal(t, `k-join [InvalidEvent]: missing key`, err.Error())

	err = New(KindState, `r-1`, fmt.Errorf(`boom`))
	assert.Equal(t, `k-join [State] key [r-1]: boom`, err.Error())
}
