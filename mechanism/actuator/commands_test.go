package actuator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rebelmotion/core"
	"rebelmotion/mechanism"
	"rebelmotion/mechanism/config"
	"rebelmotion/mechanism/sim"
)

func TestMoveToCommand(t *testing.T) {
	cfg := config.DefaultArmConfig()
	plant, err := sim.NewMechanism(cfg)
	require.NoError(t, err)

	loop := core.NewLoop(core.NewSimClock(0), cfg.Period)
	c := newController(t, cfg, plant, loop.Clock())
	loop.Scheduler.Every("arm", 0, cfg.Period, c.Periodic)
	loop.Scheduler.Every("plant", 0, cfg.Period, func() { plant.Update(cfg.Period) })

	cmd := NewMoveTo(c, mechanism.MotionGoal{Position: 0.2})
	task := loop.Scheduler.ScheduleCommand(cmd, 0, cfg.Period)

	loop.StepN(2)
	assert.Equal(t, mechanism.PositionHold, c.Mode())
	assert.Equal(t, 3, loop.Scheduler.Pending())

	loop.StepN(400)
	assert.Equal(t, 2, loop.Scheduler.Pending(), "command finished")
	assert.False(t, loop.Scheduler.Cancel(task))
	assert.True(t, c.AtGoal())
}

func TestMoveToInterrupted(t *testing.T) {
	d := &fakeDriver{position: 2}
	c := newController(t, unitConfig(), d, &manualClock{})
	cmd := NewMoveTo(c, mechanism.MotionGoal{Position: 10})
	cmd.Initialize()
	c.Periodic()
	cmd.End(true)
	assert.InDelta(t, 2, c.Goal().Position, 1e-9)
}

func TestHoldVelocityCommand(t *testing.T) {
	c := newController(t, unitConfig(), &fakeDriver{}, &manualClock{})
	cmd := NewHoldVelocity(c, 0.7)
	cmd.Initialize()
	assert.Equal(t, mechanism.VelocityHold, c.Mode())
	assert.Equal(t, 0.7, c.VelocitySetpoint())
	assert.False(t, cmd.IsFinished())
	cmd.End(true)
	assert.Equal(t, 0.0, c.VelocitySetpoint())
}
