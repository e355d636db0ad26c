package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerOrdering(t *testing.T) {
	s := NewScheduler()
	var order []string
	add := func(name string, wake float64) {
		s.Schedule(&Task{Name: name, WakeTime: wake, Handler: func(tk *Task) uint8 {
			order = append(order, tk.Name)
			return SF_DONE
		}})
	}

	add("c", 0.3)
	add("a", 0.1)
	add("b1", 0.2)
	add("b2", 0.2)
	add("d", 0.9)

	assert.Equal(t, 3, s.Dispatch(0.25))
	assert.Equal(t, []string{"a", "b1", "b2"}, order)
	assert.Equal(t, 2, s.Pending())

	s.Dispatch(1.0)
	assert.Equal(t, []string{"a", "b1", "b2", "c", "d"}, order)
	assert.Equal(t, 0, s.Pending())
}

func TestSchedulerReschedule(t *testing.T) {
	s := NewScheduler()
	count := 0
	task := s.Every("tick", 0, 0.02, func() { count++ })

	for i := 0; i < 5; i++ {
		s.Dispatch(float64(i) * 0.02)
	}
	assert.Equal(t, 5, count)

	// a long stall runs the task once, not once per missed period
	s.Dispatch(1.0)
	assert.Equal(t, 6, count)
	assert.InDelta(t, 1.02, task.WakeTime, 1e-12)

	assert.True(t, s.Scheduled(task))
	assert.True(t, s.Cancel(task))
	assert.False(t, s.Cancel(task))
	assert.False(t, s.Scheduled(task))
	s.Dispatch(2.0)
	assert.Equal(t, 6, count)
}

type countingCommand struct {
	initialized, executed int
	limit                 int
	ended                 bool
	interrupted           bool
}

func (c *countingCommand) Initialize() { c.initialized++ }
func (c *countingCommand) Execute() { c.executed++ }
func (c *countingCommand) IsFinished() bool { return c.executed >= c.limit }
func (c *countingCommand) End(interrupted bool) {
	c.ended = true
	c.interrupted = interrupted
}

func TestSchedulerCommandLifecycle(t *testing.T) {
	loop := NewLoop(NewSimClock(0), 0.02)
	cmd := &countingCommand{limit: 3}
	loop.Scheduler.ScheduleCommand(cmd, 0, loop.Period())

	loop.StepN(10)
	assert.Equal(t, 1, cmd.initialized)
	assert.Equal(t, 3, cmd.executed)
	assert.True(t, cmd.ended)
	assert.False(t, cmd.interrupted)
	assert.Equal(t, 0, loop.Scheduler.Pending())
	assert.InDelta(t, 0.2, loop.Clock().Now(), 1e-9)
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	loop := NewLoop(NewWallClock(), 0.001)
	ticks := make(chan struct{}, 100)
	loop.Scheduler.Every("tick", 0, 0.001, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never dispatched")
	}
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
