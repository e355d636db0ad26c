package actuator

import "rebelmotion/mechanism"

// MoveTo switches a controller to PositionHold on a goal and finishes once
// the profile arrives. The controller's own Periodic does the work.
type MoveTo struct {
	controller *Controller
	goal       mechanism.MotionGoal
}

func NewMoveTo(c *Controller, goal mechanism.MotionGoal) *MoveTo {
	return &MoveTo{controller: c, goal: goal}
}

func (m *MoveTo) Initialize() {
	m.controller.SetMode(mechanism.PositionHold)
	m.controller.SetGoal(m.goal)
}

func (m *MoveTo) Execute() {}

func (m *MoveTo) IsFinished() bool {
	return m.controller.AtGoal()
}

// End holds the current position when interrupted.
func (m *MoveTo) End(interrupted bool) {
	if interrupted {
		m.controller.SetGoalPosition(m.controller.State().Position)
	}
}

// HoldVelocity runs a controller at a fixed velocity until cancelled.
type HoldVelocity struct {
	controller *Controller
	velocity   float64
}

func NewHoldVelocity(c *Controller, velocity float64) *HoldVelocity {
	return &HoldVelocity{controller: c, velocity: velocity}
}

func (h *HoldVelocity) Initialize() {
	h.controller.SetMode(mechanism.VelocityHold)
	h.controller.SetVelocitySetpoint(h.velocity)
}

func (h *HoldVelocity) Execute() {}

func (h *HoldVelocity) IsFinished() bool { return false }

func (h *HoldVelocity) End(bool) {
	h.controller.SetVelocitySetpoint(0)
}
