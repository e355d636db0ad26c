package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimClock(t *testing.T) {
	c := NewSimClock(1)
	assert.Equal(t, 1.0, c.Now())

	c.Advance(0.5)
	assert.Equal(t, 1.5, c.Now())

	c.Advance(-1)
	assert.Equal(t, 1.5, c.Now())

	c.Set(1)
	assert.Equal(t, 1.5, c.Now())
	c.Set(3)
	assert.Equal(t, 3.0, c.Now())
}

func TestElapsed(t *testing.T) {
	assert.Equal(t, 0.25, Elapsed(1, 1.25))
	assert.Equal(t, 0.0, Elapsed(2, 1))
}

func TestWallClockMonotonic(t *testing.T) {
	c := NewWallClock()
	a := c.Now()
	b := c.Now()
	assert.GreaterOrEqual(t, a, 0.0)
	assert.GreaterOrEqual(t, b, a)
}
