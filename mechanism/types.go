package mechanism

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// ControlMode selects how an actuator controller computes its command.
type ControlMode int

const (
	// VelocityHold tracks a commanded velocity with velocity feedback.
	VelocityHold ControlMode = iota
	// PositionHold tracks a profiled position goal with position feedback.
	PositionHold
)

func (m ControlMode) String() string {
	switch m {
	case VelocityHold:
		return "velocity_hold"
	case PositionHold:
		return "position_hold"
	default:
		return "unknown"
	}
}

// ActuatorState is a measured mechanism state in physical units.
type ActuatorState struct {
	Position  float64
	Velocity  float64
	Timestamp float64
}

// MotionGoal is a target position with the velocity to arrive at.
type MotionGoal struct {
	Position float64
	Velocity float64
}

// SoftLimits bound travel in raw sensor units. Infinite bounds disable a side.
type SoftLimits struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// Unbounded returns limits that never trip.
func Unbounded() SoftLimits {
	return SoftLimits{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

func (l SoftLimits) Validate() error {
	if math.IsNaN(l.Lower) || math.IsNaN(l.Upper) || !(l.Lower < l.Upper) {
		return errors.Errorf("soft limits: lower (%v) must be below upper (%v)", l.Lower, l.Upper)
	}
	return nil
}

// Blocks reports whether a command of the given sign would drive further
// past a limit the raw position has already reached.
func (l SoftLimits) Blocks(raw, command float64) bool {
	return (raw >= l.Upper && command > 0) || (raw <= l.Lower && command < 0)
}

// Gains are PID coefficients.
type Gains struct {
	P float64 `yaml:"p"`
	I float64 `yaml:"i"`
	D float64 `yaml:"d"`
}

// FeedforwardKind names a feedforward model.
type FeedforwardKind string

const (
	ArmFeedforward      FeedforwardKind = "arm"
	ElevatorFeedforward FeedforwardKind = "elevator"
	SimpleFeedforward   FeedforwardKind = "simple"
)

const (
	DefaultStaticBand            = 1e-3
	DefaultMinDerivativeInterval = 1e-3
)

// FeedforwardGains are the characterized plant constants, in volts per unit.
type FeedforwardGains struct {
	Kind FeedforwardKind `yaml:"kind"`
	S    float64         `yaml:"ks"`
	G    float64         `yaml:"kg"`
	V    float64         `yaml:"kv"`
	A    float64         `yaml:"ka"`
	// StaticBand is the velocity over which the static friction term ramps
	// from zero to S. Zero gives a hard sign function.
	StaticBand float64 `yaml:"static_band"`
}

// MechanismSim describes the simulated plant behind a mechanism.
type MechanismSim struct {
	MinPosition     float64 `yaml:"min_position"`
	MaxPosition     float64 `yaml:"max_position"`
	InitialPosition float64 `yaml:"initial_position"`
}

// MechanismConfig is the immutable tuning for one single-axis actuator.
type MechanismConfig struct {
	Name string `yaml:"name"`

	CountsPerRev float64 `yaml:"counts_per_rev"`
	GearRatio    float64 `yaml:"gear_ratio"`
	// Radius converts output rotation to linear travel; zero means radians.
	Radius float64 `yaml:"radius"`

	MaxVelocity     float64 `yaml:"max_velocity"`
	MaxAcceleration float64 `yaml:"max_acceleration"`

	PositionGains Gains            `yaml:"position_gains"`
	VelocityGains Gains            `yaml:"velocity_gains"`
	Feedforward   FeedforwardGains `yaml:"feedforward"`

	SoftLimits SoftLimits `yaml:"soft_limits"`
	MaxVoltage float64    `yaml:"max_voltage"`
	Period     float64    `yaml:"period"`

	PositionTolerance float64 `yaml:"position_tolerance"`
	VelocityTolerance float64 `yaml:"velocity_tolerance"`

	// MinDerivativeInterval is the shortest elapsed time over which the
	// acceleration setpoint is differentiated.
	MinDerivativeInterval float64 `yaml:"min_derivative_interval"`

	Inverted bool `yaml:"inverted"`
	// StartMode is the control mode a new controller begins in.
	StartMode string `yaml:"start_mode"`

	Sim MechanismSim `yaml:"sim"`
}

// Mode parses StartMode.
func (c MechanismConfig) Mode() ControlMode {
	if c.StartMode == PositionHold.String() {
		return PositionHold
	}
	return VelocityHold
}

// Validate reports every problem with the configuration.
func (c MechanismConfig) Validate() error {
	var err error
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			err = multierr.Append(err, errors.Errorf("%s must be positive, got %v", name, v))
		}
	}
	positive("counts_per_rev", c.CountsPerRev)
	positive("gear_ratio", c.GearRatio)
	positive("max_velocity", c.MaxVelocity)
	positive("max_acceleration", c.MaxAcceleration)
	positive("max_voltage", c.MaxVoltage)
	positive("period", c.Period)
	if c.Radius < 0 {
		err = multierr.Append(err, errors.Errorf("radius must be non-negative, got %v", c.Radius))
	}
	if c.PositionTolerance < 0 || c.VelocityTolerance < 0 {
		err = multierr.Append(err, errors.New("tolerances must be non-negative"))
	}
	if c.Feedforward.StaticBand < 0 {
		err = multierr.Append(err, errors.New("static_band must be non-negative"))
	}
	switch c.Feedforward.Kind {
	case ArmFeedforward, ElevatorFeedforward, SimpleFeedforward:
	default:
		err = multierr.Append(err, errors.Errorf("unknown feedforward kind %q", c.Feedforward.Kind))
	}
	switch c.StartMode {
	case "", VelocityHold.String(), PositionHold.String():
	default:
		err = multierr.Append(err, errors.Errorf("unknown start_mode %q", c.StartMode))
	}
	err = multierr.Append(err, c.SoftLimits.Validate())
	if err != nil {
		return errors.Wrapf(err, "mechanism %q", c.Name)
	}
	return nil
}

// DrivetrainConfig describes a differential drivetrain and its wheel control.
type DrivetrainConfig struct {
	TrackWidth          float64 `yaml:"track_width"`
	WheelRadius         float64 `yaml:"wheel_radius"`
	EncoderCountsPerRev float64 `yaml:"encoder_counts_per_rev"`
	// Gearing is motor revolutions per wheel revolution.
	Gearing         float64 `yaml:"gearing"`
	MaxSpeed        float64 `yaml:"max_speed"`
	MaxAngularSpeed float64 `yaml:"max_angular_speed"`
	MaxVoltage      float64 `yaml:"max_voltage"`

	WheelGains       Gains            `yaml:"wheel_gains"`
	WheelFeedforward FeedforwardGains `yaml:"wheel_feedforward"`

	Motor           string  `yaml:"motor"`
	MotorsPerSide   int     `yaml:"motors_per_side"`
	Mass            float64 `yaml:"mass"`
	MomentOfInertia float64 `yaml:"moment_of_inertia"`

	// RightInverted mirrors the right side's output and encoder.
	RightInverted bool `yaml:"right_inverted"`
}

func (c DrivetrainConfig) Validate() error {
	var err error
	positive := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			err = multierr.Append(err, errors.Errorf("%s must be positive, got %v", name, v))
		}
	}
	positive("track_width", c.TrackWidth)
	positive("wheel_radius", c.WheelRadius)
	positive("encoder_counts_per_rev", c.EncoderCountsPerRev)
	positive("gearing", c.Gearing)
	positive("max_speed", c.MaxSpeed)
	positive("max_angular_speed", c.MaxAngularSpeed)
	positive("max_voltage", c.MaxVoltage)
	positive("mass", c.Mass)
	positive("moment_of_inertia", c.MomentOfInertia)
	if c.MotorsPerSide <= 0 {
		err = multierr.Append(err, errors.Errorf("motors_per_side must be positive, got %d", c.MotorsPerSide))
	}
	if err != nil {
		return errors.Wrap(err, "drivetrain")
	}
	return nil
}

// WheelMechanism expresses one drivetrain side as a single-axis velocity
// controlled mechanism. Wheel encoders count at the wheel.
func (c DrivetrainConfig) WheelMechanism(name string, period float64) MechanismConfig {
	return MechanismConfig{
		Name:                  name,
		CountsPerRev:          c.EncoderCountsPerRev,
		GearRatio:             1,
		Radius:                c.WheelRadius,
		MaxVelocity:           c.MaxSpeed,
		MaxAcceleration:       c.MaxSpeed / period,
		VelocityGains:         c.WheelGains,
		Feedforward:           c.WheelFeedforward,
		SoftLimits:            Unbounded(),
		MaxVoltage:            c.MaxVoltage,
		Period:                period,
		MinDerivativeInterval: DefaultMinDerivativeInterval,
		StartMode:             VelocityHold.String(),
	}
}

// RobotConfig is the full tuning document.
type RobotConfig struct {
	Period     float64          `yaml:"period"`
	Arm        MechanismConfig  `yaml:"arm"`
	Elevator   MechanismConfig  `yaml:"elevator"`
	Drivetrain DrivetrainConfig `yaml:"drivetrain"`
}

func (c RobotConfig) Validate() error {
	var err error
	if !(c.Period > 0) {
		err = multierr.Append(err, errors.Errorf("period must be positive, got %v", c.Period))
	}
	return multierr.Combine(err, c.Arm.Validate(), c.Elevator.Validate(), c.Drivetrain.Validate())
}
