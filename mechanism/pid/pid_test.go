package pid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	_, err := New(1, 0, 0, 0)
	assert.Error(t, err)
	_, err = New(math.NaN(), 0, 0, 0.02)
	assert.Error(t, err)
}

func TestProportional(t *testing.T) {
	c, err := New(2, 0, 0, 0.02)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.Calculate(0.5, 1), 1e-12)
	assert.InDelta(t, -2.0, c.Calculate(1, 0), 1e-12)
}

func TestDerivativeSkipsFirstSample(t *testing.T) {
	c, err := New(0, 0, 1, 0.02)
	require.NoError(t, err)

	assert.Equal(t, 0.0, c.Calculate(0, 1))
	// error went from 1 to 0.9 in one period
	assert.InDelta(t, -5.0, c.Calculate(0.1, 1), 1e-9)

	c.Reset()
	assert.Equal(t, 0.0, c.Calculate(0.5, 1))
}

func TestIntegral(t *testing.T) {
	c, err := New(0, 10, 0, 0.02)
	require.NoError(t, err)

	out := 0.0
	for i := 0; i < 5; i++ {
		out = c.Calculate(0, 1)
	}
	assert.InDelta(t, 10*5*0.02, out, 1e-12)

	c.SetIntegratorRange(-0.5, 0.5)
	for i := 0; i < 100; i++ {
		out = c.Calculate(0, 1)
	}
	assert.InDelta(t, 0.5, out, 1e-12)
}

func TestAtSetpoint(t *testing.T) {
	c, err := New(1, 0, 0, 0.02)
	require.NoError(t, err)
	c.SetTolerance(0.01, 0.05)

	assert.False(t, c.AtSetpoint(), "no measurement yet")
	c.Calculate(0.995, 1)
	assert.True(t, c.AtSetpoint())
	assert.InDelta(t, 0.005, c.Error(), 1e-12)

	c.Calculate(0.95, 1)
	assert.False(t, c.AtSetpoint())
}
