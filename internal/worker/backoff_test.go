package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoff_Next(t *testing.T) {
	b := NewBackoff(5*time.Second, 60*time.Second)

	// Doubles each call, capped at max
	expected := []time.Duration{
		5 * time.Second,
		10 * time.Second,
		20 * time.Second,
		40 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for i, want := range expected {
		assert.Equal(t, want, b.Next(), "call %d", i)
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(2*time.Second, 30*time.Second)

	b.Next()
	b.Next()
	assert.Equal(t, 8*time.Second, b.Current())

	b.Reset()
	assert.Equal(t, 2*time.Second, b.Current())
	assert.Equal(t, 2*time.Second, b.Next())
}

func TestBackoff_MaxBelowDouble(t *testing.T) {
	// Cap that is not a power-of-two multiple of the base
	b := NewBackoff(5*time.Second, 12*time.Second)

	assert.Equal(t, 5*time.Second, b.Next())
	assert.Equal(t, 10*time.Second, b.Next())
	assert.Equal(t, 12*time.Second, b.Next())
	assert.Equal(t, 12*time.Second, b.Next())
}
