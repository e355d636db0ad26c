package planner

import (
	"math"

	"github.com/pkg/errors"
)

// State is a profile setpoint.
type State struct {
	Position float64
	Velocity float64
}

// Constraints bound the profile's velocity and acceleration magnitudes.
type Constraints struct {
	MaxVelocity     float64
	MaxAcceleration float64
}

// Tolerance is how close a setpoint must be to count as at the goal.
type Tolerance struct {
	Position float64
	Velocity float64
}

// TrapezoidProfile produces setpoints that accelerate, cruise and decelerate
// onto a goal without exceeding its constraints. It holds no motion state;
// callers feed back the previous setpoint each cycle.
type TrapezoidProfile struct {
	constraints Constraints
}

// NewTrapezoidProfile validates the constraints.
func NewTrapezoidProfile(c Constraints) (*TrapezoidProfile, error) {
	if !(c.MaxVelocity > 0) || math.IsInf(c.MaxVelocity, 0) {
		return nil, errors.Errorf("max velocity must be positive, got %v", c.MaxVelocity)
	}
	if !(c.MaxAcceleration > 0) || math.IsInf(c.MaxAcceleration, 0) {
		return nil, errors.Errorf("max acceleration must be positive, got %v", c.MaxAcceleration)
	}
	return &TrapezoidProfile{constraints: c}, nil
}

func (p *TrapezoidProfile) Constraints() Constraints {
	return p.constraints
}

// timing describes one profile from current toward goal, in the direction
// where the goal lies ahead.
type timing struct {
	dir       float64
	current   State
	goal      State
	endAccel  float64
	endCruise float64
	endDecel  float64
}

func (p *TrapezoidProfile) plan(current, goal State) timing {
	maxV := p.constraints.MaxVelocity
	maxA := p.constraints.MaxAcceleration

	dir := 1.0
	if current.Position > goal.Position {
		dir = -1
	}
	current = State{Position: current.Position * dir, Velocity: clamp(current.Velocity*dir, -maxV, maxV)}
	goal = State{Position: goal.Position * dir, Velocity: clamp(goal.Velocity*dir, -maxV, maxV)}

	// Extend the profile backwards and forwards to zero velocity so the
	// trapezoid can be solved as if it started and ended at rest.
	cutoffBegin := current.Velocity / maxA
	cutoffDistBegin := cutoffBegin * cutoffBegin * maxA / 2
	cutoffEnd := goal.Velocity / maxA
	cutoffDistEnd := cutoffEnd * cutoffEnd * maxA / 2

	fullDist := cutoffDistBegin + (goal.Position - current.Position) + cutoffDistEnd
	accelTime := maxV / maxA
	cruiseDist := fullDist - accelTime*accelTime*maxA
	if cruiseDist < 0 {
		accelTime = math.Sqrt(fullDist / maxA)
		cruiseDist = 0
	}

	t := timing{dir: dir, current: current, goal: goal}
	t.endAccel = accelTime - cutoffBegin
	t.endCruise = t.endAccel + cruiseDist/maxV
	t.endDecel = t.endCruise + accelTime - cutoffEnd
	return t
}

// Calculate returns the setpoint dt seconds after current on the way to goal.
// A current velocity beyond MaxVelocity is first clamped; from there the
// velocity changes by at most MaxAcceleration·dt per call.
func (p *TrapezoidProfile) Calculate(dt float64, current, goal State) State {
	maxA := p.constraints.MaxAcceleration
	maxV := p.constraints.MaxVelocity
	current.Velocity = clamp(current.Velocity, -maxV, maxV)
	if next, ok := p.brake(dt, current, goal); ok {
		return next
	}
	tm := p.plan(current, goal)
	cur, g := tm.current, tm.goal

	var result State
	switch {
	case dt < tm.endAccel:
		result.Velocity = cur.Velocity + dt*maxA
		result.Position = cur.Position + (cur.Velocity+dt*maxA/2)*dt
	case dt < tm.endCruise:
		result.Velocity = maxV
		result.Position = cur.Position + (cur.Velocity+tm.endAccel*maxA/2)*tm.endAccel + maxV*(dt-tm.endAccel)
	case dt <= tm.endDecel:
		timeLeft := tm.endDecel - dt
		result.Velocity = g.Velocity + timeLeft*maxA
		result.Position = g.Position - (g.Velocity+timeLeft*maxA/2)*timeLeft
	default:
		result = g
	}
	result.Velocity = clamp(result.Velocity, -maxV, maxV)

	return State{Position: result.Position * tm.dir, Velocity: result.Velocity * tm.dir}
}

// brake handles states the trapezoid cannot be solved from: moving away from
// the goal, or too fast to stop before reaching it. It decelerates to rest at
// MaxAcceleration, overshooting if it must; the trapezoid takes over again
// once the goal is reachable.
func (p *TrapezoidProfile) brake(dt float64, current, goal State) (State, bool) {
	maxA := p.constraints.MaxAcceleration
	maxV := p.constraints.MaxVelocity

	dir := 1.0
	if current.Position > goal.Position {
		dir = -1
	}
	v := current.Velocity * dir
	dist := (goal.Position - current.Position) * dir
	endV := clamp(goal.Velocity*dir, 0, maxV)

	stopping := (v*v - endV*endV) / (2 * maxA)
	if v >= 0 && (v <= endV || stopping <= dist*(1+1e-9)+1e-12) {
		return State{}, false
	}

	next := v - math.Copysign(math.Min(math.Abs(v), maxA*dt), v)
	moving := math.Abs(next-v) / maxA
	travel := (v+next)/2*moving + next*(dt-moving)
	return State{
		Position: current.Position + travel*dir,
		Velocity: next * dir,
	}, true
}

// TotalTime is the time remaining to reach goal from current.
func (p *TrapezoidProfile) TotalTime(current, goal State) float64 {
	return math.Max(0, p.plan(current, goal).endDecel)
}

// Generate samples the whole profile at a fixed step, starting after current
// and ending on the goal.
func (p *TrapezoidProfile) Generate(dt float64, current, goal State) []State {
	if dt <= 0 {
		return nil
	}
	var out []State
	state := current
	for i := 0; i < 1_000_000; i++ {
		state = p.Calculate(dt, state, goal)
		out = append(out, state)
		if state == p.normalizeGoal(goal) {
			break
		}
	}
	return out
}

func (p *TrapezoidProfile) normalizeGoal(goal State) State {
	maxV := p.constraints.MaxVelocity
	return State{Position: goal.Position, Velocity: clamp(goal.Velocity, -maxV, maxV)}
}

// AtGoal reports whether setpoint is within tol of goal.
func AtGoal(setpoint, goal State, tol Tolerance) bool {
	return math.Abs(setpoint.Position-goal.Position) <= tol.Position &&
		math.Abs(setpoint.Velocity-goal.Velocity) <= tol.Velocity
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
