// Package actuator closes the loop around a single-axis mechanism, blending a
// motion profile, PID feedback and a feedforward model into one voltage.
package actuator

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"rebelmotion/core"
	"rebelmotion/mechanism"
	"rebelmotion/mechanism/feedforward"
	"rebelmotion/mechanism/pid"
	"rebelmotion/mechanism/planner"
)

// Output records how one cycle's voltage was built.
type Output struct {
	Mode         mechanism.ControlMode
	Setpoint     planner.State
	Acceleration float64
	Feedforward  float64
	Feedback     float64
	Voltage      float64
	// LimitEngaged is set when a soft limit removed the feedforward term.
	LimitEngaged bool
}

// Controller drives one mechanism. All methods must be called from the
// control loop goroutine.
type Controller struct {
	cfg       mechanism.MechanismConfig
	driver    core.MotorDriver
	clock     core.Clock
	logger    golog.Logger
	telemetry core.Telemetry

	conv        core.Converter
	profile     *planner.TrapezoidProfile
	ff          feedforward.Model
	positionPID *pid.Controller
	velocityPID *pid.Controller

	mode             mechanism.ControlMode
	goal             planner.State
	goalSet          bool
	setpoint         planner.State
	velocitySetpoint float64
	resetProfile     bool

	lastVelocitySetpoint float64
	lastTime             float64
	haveHistory          bool

	rawOffset float64
	state     mechanism.ActuatorState
	last      Output
}

// New validates cfg and builds a controller around driver.
func New(
	cfg mechanism.MechanismConfig,
	driver core.MotorDriver,
	clock core.Clock,
	logger golog.Logger,
	telemetry core.Telemetry,
) (*Controller, error) {
	if driver == nil {
		return nil, errors.Errorf("%s: motor driver is required", cfg.Name)
	}
	if clock == nil {
		return nil, errors.Errorf("%s: clock is required", cfg.Name)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if telemetry == nil {
		telemetry = core.NopTelemetry{}
	}
	if logger == nil {
		logger = golog.Global()
	}

	conv, err := core.NewConverter(cfg.CountsPerRev, cfg.GearRatio, cfg.Radius)
	if err != nil {
		return nil, errors.Wrap(err, cfg.Name)
	}
	profile, err := planner.NewTrapezoidProfile(planner.Constraints{
		MaxVelocity:     cfg.MaxVelocity,
		MaxAcceleration: cfg.MaxAcceleration,
	})
	if err != nil {
		return nil, errors.Wrap(err, cfg.Name)
	}
	ffg := cfg.Feedforward
	ff, err := feedforward.New(string(ffg.Kind), ffg.S, ffg.G, ffg.V, ffg.A, ffg.StaticBand)
	if err != nil {
		return nil, errors.Wrap(err, cfg.Name)
	}
	pg, vg := cfg.PositionGains, cfg.VelocityGains
	positionPID, err := pid.New(pg.P, pg.I, pg.D, cfg.Period)
	if err != nil {
		return nil, errors.Wrap(err, cfg.Name)
	}
	positionPID.SetTolerance(cfg.PositionTolerance, cfg.VelocityTolerance)
	velocityPID, err := pid.New(vg.P, vg.I, vg.D, cfg.Period)
	if err != nil {
		return nil, errors.Wrap(err, cfg.Name)
	}

	c := &Controller{
		cfg:         cfg,
		driver:      driver,
		clock:       clock,
		logger:      logger.Named(cfg.Name),
		telemetry:   telemetry,
		conv:        conv,
		profile:     profile,
		ff:          ff,
		positionPID: positionPID,
		velocityPID: velocityPID,
	}
	c.enterMode(cfg.Mode())
	return c, nil
}

func (c *Controller) Name() string { return c.cfg.Name }

func (c *Controller) Config() mechanism.MechanismConfig { return c.cfg }

func (c *Controller) Converter() core.Converter { return c.conv }

func (c *Controller) Mode() mechanism.ControlMode { return c.mode }

// SetMode switches control mode. Re-selecting the current mode is a no-op.
func (c *Controller) SetMode(mode mechanism.ControlMode) {
	if mode == c.mode {
		return
	}
	c.logger.Debugw("mode change", "from", c.mode, "to", mode)
	c.enterMode(mode)
}

// enterMode resets the history that would otherwise leak from the previous
// mode into the first cycle of the new one.
func (c *Controller) enterMode(mode mechanism.ControlMode) {
	c.mode = mode
	c.haveHistory = false
	switch mode {
	case mechanism.PositionHold:
		c.resetProfile = true
		c.positionPID.Reset()
	case mechanism.VelocityHold:
		c.velocityPID.Reset()
	}
}

// SetGoal sets the PositionHold target.
func (c *Controller) SetGoal(goal mechanism.MotionGoal) {
	c.goal = planner.State{Position: goal.Position, Velocity: goal.Velocity}
	c.goalSet = true
}

// SetGoalPosition sets a goal to arrive at rest.
func (c *Controller) SetGoalPosition(position float64) {
	c.SetGoal(mechanism.MotionGoal{Position: position})
}

func (c *Controller) Goal() mechanism.MotionGoal {
	return mechanism.MotionGoal{Position: c.goal.Position, Velocity: c.goal.Velocity}
}

// SetVelocitySetpoint sets the VelocityHold target, limited to the
// configured maximum velocity.
func (c *Controller) SetVelocitySetpoint(velocity float64) {
	c.velocitySetpoint = math.Max(-c.cfg.MaxVelocity, math.Min(c.cfg.MaxVelocity, velocity))
}

func (c *Controller) VelocitySetpoint() float64 { return c.velocitySetpoint }

// AtGoal reports whether the profile has converged on the goal. It says
// nothing about whether the hardware has settled.
func (c *Controller) AtGoal() bool {
	if c.mode != mechanism.PositionHold || c.resetProfile {
		return false
	}
	return planner.AtGoal(c.setpoint, c.goal, planner.Tolerance{
		Position: c.cfg.PositionTolerance,
		Velocity: c.cfg.VelocityTolerance,
	})
}

// ZeroEncoder makes the current position the new raw zero.
func (c *Controller) ZeroEncoder() {
	if r, ok := c.driver.(core.PositionResetter); ok {
		r.ResetPosition()
		c.rawOffset = 0
	} else {
		c.rawOffset = c.driver.ReadPosition()
	}
	if c.mode == mechanism.PositionHold {
		c.resetProfile = true
		c.positionPID.Reset()
	}
	c.haveHistory = false
	c.logger.Infow("encoder zeroed", "offset", c.rawOffset)
}

// Stop halts the motor and clears the velocity setpoint. The mode is left
// alone, so the next Periodic in PositionHold resumes the goal.
func (c *Controller) Stop() {
	c.driver.Stop()
	c.velocitySetpoint = 0
	c.last.Voltage = 0
	c.logger.Infow("stopped")
}

// State is the measurement from the last cycle.
func (c *Controller) State() mechanism.ActuatorState { return c.state }

// LastOutput describes the last issued command.
func (c *Controller) LastOutput() Output { return c.last }

// Setpoint is the current profile setpoint in PositionHold.
func (c *Controller) Setpoint() planner.State { return c.setpoint }

// RawPosition is the zeroed raw position in the mechanism's positive direction.
func (c *Controller) RawPosition() float64 {
	raw := c.driver.ReadPosition() - c.rawOffset
	if c.cfg.Inverted {
		raw = -raw
	}
	return raw
}

func (c *Controller) rawVelocity() float64 {
	v := c.driver.ReadVelocity()
	if c.cfg.Inverted {
		v = -v
	}
	return v
}

// Periodic runs one control cycle.
func (c *Controller) Periodic() {
	now := c.clock.Now()
	raw := c.RawPosition()
	c.state = mechanism.ActuatorState{
		Position:  c.conv.RawToPhysical(raw),
		Velocity:  c.conv.RawRateToPhysical(c.rawVelocity()),
		Timestamp: now,
	}

	out := Output{Mode: c.mode}
	switch c.mode {
	case mechanism.PositionHold:
		if c.resetProfile {
			c.setpoint = planner.State{Position: c.state.Position, Velocity: c.state.Velocity}
			if !c.goalSet {
				c.goal = planner.State{Position: c.state.Position}
			}
			c.resetProfile = false
		}
		c.setpoint = c.profile.Calculate(c.cfg.Period, c.setpoint, c.goal)
		out.Setpoint = c.setpoint
		out.Acceleration = c.acceleration(c.setpoint.Velocity, now)
		out.Feedforward = c.ff.Calculate(c.setpoint.Position, c.setpoint.Velocity, out.Acceleration)
		out.Feedback = c.positionPID.Calculate(c.state.Position, c.setpoint.Position)

	case mechanism.VelocityHold:
		out.Setpoint = planner.State{
			Position: c.state.Position + c.velocitySetpoint*c.cfg.Period,
			Velocity: c.velocitySetpoint,
		}
		// a held velocity has no acceleration setpoint
		out.Feedforward = c.ff.Calculate(out.Setpoint.Position, out.Setpoint.Velocity, 0)
		out.Feedback = c.velocityPID.Calculate(c.state.Velocity, c.velocitySetpoint)
	}

	command := c.clampVoltage(out.Feedforward + out.Feedback)
	if c.cfg.SoftLimits.Blocks(raw, command) {
		out.Feedforward = 0
		out.LimitEngaged = true
		command = c.clampVoltage(out.Feedback)
		if !c.last.LimitEngaged {
			c.logger.Infow("soft limit engaged", "raw", raw, "lower", c.cfg.SoftLimits.Lower, "upper", c.cfg.SoftLimits.Upper)
		}
	}
	out.Voltage = command

	if c.cfg.Inverted {
		c.driver.SetVoltage(-command)
	} else {
		c.driver.SetVoltage(command)
	}
	c.last = out
	c.publish()
}

// acceleration differentiates successive profile velocities. Intervals shorter
// than MinDerivativeInterval are skipped and the history kept, so the next
// cycle differentiates over the longer span.
func (c *Controller) acceleration(velocity, now float64) float64 {
	if !c.haveHistory {
		c.lastVelocitySetpoint = velocity
		c.lastTime = now
		c.haveHistory = true
		return 0
	}
	dt := core.Elapsed(c.lastTime, now)
	if dt < c.cfg.MinDerivativeInterval {
		return 0
	}
	accel := (velocity - c.lastVelocitySetpoint) / dt
	c.lastVelocitySetpoint = velocity
	c.lastTime = now
	return accel
}

func (c *Controller) clampVoltage(v float64) float64 {
	return math.Max(-c.cfg.MaxVoltage, math.Min(c.cfg.MaxVoltage, v))
}

func (c *Controller) publish() {
	name := c.cfg.Name
	c.telemetry.PutNumber(name+"/position", c.state.Position)
	c.telemetry.PutNumber(name+"/velocity", c.state.Velocity)
	c.telemetry.PutNumber(name+"/setpoint", c.last.Setpoint.Position)
	c.telemetry.PutNumber(name+"/feedforward", c.last.Feedforward)
	c.telemetry.PutNumber(name+"/voltage", c.last.Voltage)
}
