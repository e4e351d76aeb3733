package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	a, b := New(), New()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)
	// monotonic within the process
	assert.Less(t, a, b)
}

func TestSequenceDeterministic(t *testing.T) {
	s1 := NewSequence("bt")
	s2 := NewSequence("bt")

	for i := 0; i < 3; i++ {
		assert.Equal(t, s1.Next(), s2.Next())
	}
	assert.Equal(t, "bt-000004", s1.Next())
}
