package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rebelmotion/mechanism"
	"rebelmotion/mechanism/config"
)

func elevatorConfig() mechanism.MechanismConfig {
	cfg := config.DefaultElevatorConfig()
	cfg.Inverted = false
	return cfg
}

func TestNewMechanismValidation(t *testing.T) {
	cfg := elevatorConfig()
	cfg.Feedforward.A = 0
	_, err := NewMechanism(cfg)
	assert.Error(t, err)

	cfg = elevatorConfig()
	cfg.Sim.MinPosition, cfg.Sim.MaxPosition = 1, -1
	_, err = NewMechanism(cfg)
	assert.Error(t, err)
}

func TestMechanismReachesSteadyVelocity(t *testing.T) {
	cfg := elevatorConfig()
	m, err := NewMechanism(cfg)
	require.NoError(t, err)

	ff := cfg.Feedforward
	m.SetVoltage(ff.S + ff.G + ff.V*0.1)
	for i := 0; i < 200; i++ {
		m.Update(0.02)
	}

	_, velocity, _ := m.State()
	assert.InDelta(t, 0.1, velocity, 1e-3)
	assert.InDelta(t, 0.1*2048*132/(2*3.141592653589793*0.03), m.ReadVelocity(), 50)
}

func TestMechanismHardStops(t *testing.T) {
	cfg := elevatorConfig()
	m, err := NewMechanism(cfg)
	require.NoError(t, err)

	m.SetState(0.5, 0)
	m.SetVoltage(-12)
	for i := 0; i < 500; i++ {
		m.Update(0.02)
	}
	pos, vel, _ := m.State()
	assert.Equal(t, cfg.Sim.MinPosition, pos)
	assert.Equal(t, 0.0, vel)

	m.SetVoltage(12)
	for i := 0; i < 500; i++ {
		m.Update(0.02)
	}
	pos, _, _ = m.State()
	assert.Equal(t, cfg.Sim.MaxPosition, pos)
}

func TestMechanismInvertedMounting(t *testing.T) {
	cfg := config.DefaultElevatorConfig()
	require.True(t, cfg.Inverted)
	m, err := NewMechanism(cfg)
	require.NoError(t, err)

	// the reversed motor lifts on negative voltage and counts down
	m.SetVoltage(-6)
	for i := 0; i < 10; i++ {
		m.Update(0.02)
	}
	pos, vel, volts := m.State()
	assert.Greater(t, pos, 0.0)
	assert.Greater(t, vel, 0.0)
	assert.Equal(t, 6.0, volts)
	assert.Less(t, m.ReadPosition(), 0.0)
	assert.Less(t, m.ReadVelocity(), 0.0)

	m.Stop()
	_, _, volts = m.State()
	assert.Equal(t, 0.0, volts)
}

func TestMechanismResetPosition(t *testing.T) {
	m, err := NewMechanism(config.DefaultArmConfig())
	require.NoError(t, err)

	m.SetState(0.4, 0)
	assert.NotEqual(t, 0.0, m.ReadPosition())
	m.ResetPosition()
	assert.InDelta(t, 0, m.ReadPosition(), 1e-9)

	m.SetState(0.5, 0)
	assert.InDelta(t, 0.1*2048*36/(2*3.141592653589793), m.ReadPosition(), 1e-6)
}

func TestMechanismIgnoresNonPositiveStep(t *testing.T) {
	m, err := NewMechanism(config.DefaultArmConfig())
	require.NoError(t, err)
	m.SetVoltage(3)
	m.Update(0)
	m.Update(-1)
	pos, vel, _ := m.State()
	assert.Equal(t, 0.0, pos)
	assert.Equal(t, 0.0, vel)
}
