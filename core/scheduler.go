package core

import (
	"context"
	"time"
)

// Task is a scheduled unit of work ordered by WakeTime (seconds).
type Task struct {
	Name     string
	WakeTime float64
	Period   float64
	Handler  func(*Task) uint8
	next     *Task
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Command is a unit of robot behaviour run once per cycle until it finishes.
type Command interface {
	Initialize()
	Execute()
	IsFinished() bool
	End(interrupted bool)
}

// Scheduler keeps tasks in a list sorted by wake time. Tasks sharing a wake
// time run in the order they were scheduled. It is not safe for concurrent use;
// the control loop owns it.
type Scheduler struct {
	list *Task
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule inserts t in wake-time order.
func (s *Scheduler) Schedule(t *Task) {
	t.next = nil
	if s.list == nil || t.WakeTime < s.list.WakeTime {
		t.next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.next != nil && current.next.WakeTime <= t.WakeTime {
		current = current.next
	}

	t.next = current.next
	current.next = t
}

// Every schedules fn to run each period seconds starting at start.
func (s *Scheduler) Every(name string, start, period float64, fn func()) *Task {
	t := &Task{
		Name:     name,
		WakeTime: start,
		Period:   period,
		Handler: func(*Task) uint8 {
			fn()
			return SF_RESCHEDULE
		},
	}
	s.Schedule(t)
	return t
}

// ScheduleCommand runs cmd every period seconds until it reports finished.
// The returned task can be passed to Cancel to interrupt it.
func (s *Scheduler) ScheduleCommand(cmd Command, start, period float64) *Task {
	initialized := false
	t := &Task{
		WakeTime: start,
		Period:   period,
	}
	t.Handler = func(*Task) uint8 {
		if !initialized {
			cmd.Initialize()
			initialized = true
		}
		cmd.Execute()
		if cmd.IsFinished() {
			cmd.End(false)
			return SF_DONE
		}
		return SF_RESCHEDULE
	}
	s.Schedule(t)
	return t
}

// Cancel removes t from the schedule. It reports whether t was pending.
func (s *Scheduler) Cancel(t *Task) bool {
	if s.list == nil {
		return false
	}
	if s.list == t {
		s.list = t.next
		t.next = nil
		return true
	}
	for current := s.list; current.next != nil; current = current.next {
		if current.next == t {
			current.next = t.next
			t.next = nil
			return true
		}
	}
	return false
}

// Scheduled reports whether t is waiting to run.
func (s *Scheduler) Scheduled(t *Task) bool {
	for current := s.list; current != nil; current = current.next {
		if current == t {
			return true
		}
	}
	return false
}

// Pending returns the number of scheduled tasks.
func (s *Scheduler) Pending() int {
	n := 0
	for t := s.list; t != nil; t = t.next {
		n++
	}
	return n
}

// Dispatch runs every task whose WakeTime <= now and returns how many ran.
// A rescheduled task advances by its period; missed periods are skipped
// rather than replayed.
func (s *Scheduler) Dispatch(now float64) int {
	var again []*Task
	ran := 0
	for s.list != nil && s.list.WakeTime <= now {
		task := s.list
		s.list = task.next
		task.next = nil

		ran++
		if task.Handler(task) == SF_RESCHEDULE {
			task.WakeTime += task.Period
			if task.WakeTime <= now {
				task.WakeTime = now + task.Period
			}
			again = append(again, task)
		}
	}
	for _, task := range again {
		s.Schedule(task)
	}
	return ran
}

// Advancer is implemented by clocks that can be stepped manually.
type Advancer interface {
	Advance(dt float64)
}

// Loop drives a Scheduler at a fixed period from a Clock.
type Loop struct {
	Scheduler *Scheduler
	clock     Clock
	period    float64
}

func NewLoop(clock Clock, period float64) *Loop {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Loop{Scheduler: NewScheduler(), clock: clock, period: period}
}

func (l *Loop) Period() float64 { return l.period }

func (l *Loop) Clock() Clock { return l.clock }

// Step dispatches due tasks once and, for a manual clock, advances it one period.
func (l *Loop) Step() {
	l.Scheduler.Dispatch(l.clock.Now())
	if a, ok := l.clock.(Advancer); ok {
		a.Advance(l.period)
	}
}

// StepN runs n cycles.
func (l *Loop) StepN(n int) {
	for i := 0; i < n; i++ {
		l.Step()
	}
}

// Run dispatches on a wall-clock ticker until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(l.period * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Scheduler.Dispatch(l.clock.Now())
		}
	}
}
