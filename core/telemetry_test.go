package core

import (
	"testing"

	"github.com/edaniels/golog"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	clock := NewSimClock(0)
	logger, logs := golog.NewObservedTestLogger(t)
	r := NewRecorder(clock, 2, LogTelemetry{Logger: logger})

	r.PutNumber("Elevator Height", 0.1)
	clock.Advance(0.02)
	r.PutNumber("Elevator Height", 0.2)
	clock.Advance(0.02)
	r.PutNumber("Elevator Height", 0.3)
	r.PutNumber("Arm Angle", 1)

	s := r.Series("Elevator Height")
	assert.Len(t, s, 2)
	assert.InDelta(t, 0.02, s[0].Time, 1e-12)
	assert.Equal(t, 0.3, s[1].Value)

	v, ok := r.Last("Arm Angle")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	_, ok = r.Last("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"Arm Angle", "Elevator Height"}, r.Keys())
	assert.Equal(t, 4, logs.FilterMessage("telemetry").Len())
}
