package config

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"rebelmotion/mechanism"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`
arm:
  feedforward:
    kind: arm
    kv: 16
elevator:
  max_velocity: 0.3
`))
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Period)
	assert.Equal(t, "arm", cfg.Arm.Name)
	assert.Equal(t, 2048.0, cfg.Arm.CountsPerRev)
	assert.Equal(t, 36.0, cfg.Arm.GearRatio)
	assert.Equal(t, 16.0, cfg.Arm.Feedforward.V)
	assert.Equal(t, 0.0, cfg.Arm.PositionGains.P, "gains are never defaulted")
	assert.True(t, math.IsInf(cfg.Arm.SoftLimits.Upper, 1))
	assert.True(t, math.IsInf(cfg.Arm.SoftLimits.Lower, -1))

	assert.Equal(t, 0.3, cfg.Elevator.MaxVelocity)
	assert.Equal(t, mechanism.ElevatorFeedforward, cfg.Elevator.Feedforward.Kind)
	assert.Equal(t, 132.0, cfg.Elevator.GearRatio)

	assert.Equal(t, 0.762, cfg.Drivetrain.TrackWidth)
	assert.Equal(t, 2, cfg.Drivetrain.MotorsPerSide)
	assert.Equal(t, mechanism.SimpleFeedforward, cfg.Drivetrain.WheelFeedforward.Kind)
}

func TestLoadConfigCollectsErrors(t *testing.T) {
	_, err := LoadConfig([]byte(`
period: 0.02
arm:
  max_velocity: -1
  soft_limits: {lower: 10, upper: -10}
  feedforward: {kind: flywheel}
drivetrain:
  motors_per_side: -2
`))
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.GreaterOrEqual(t, len(errs), 2)
	assert.Contains(t, err.Error(), "max_velocity")
	assert.Contains(t, err.Error(), "soft limits")
	assert.Contains(t, err.Error(), "flywheel")
	assert.Contains(t, err.Error(), "motors_per_side")
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	_, err := LoadConfig([]byte("arm: [1, 2"))
	assert.Error(t, err)
}

func TestDefaultsValidate(t *testing.T) {
	cfg := DefaultRobotConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 55000.0, cfg.Arm.SoftLimits.Upper)
	assert.Equal(t, -65000.0, cfg.Arm.SoftLimits.Lower)
	assert.Equal(t, 3.0, cfg.Arm.MaxVoltage)
	assert.True(t, cfg.Elevator.Inverted)
	assert.Equal(t, 0.01, cfg.Elevator.PositionTolerance)
}

func TestLoadFile(t *testing.T) {
	data, err := Marshal(DefaultRobotConfig())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "robot.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, *DefaultRobotConfig(), *cfg)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
