package config

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"rebelmotion/core"
	"rebelmotion/mechanism"
)

// LoadConfig parses a YAML (or JSON) robot configuration, fills unset values
// and validates the result.
func LoadConfig(data []byte) (*mechanism.RobotConfig, error) {
	var config mechanism.RobotConfig

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "parsing robot config")
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFile reads and parses the configuration at path.
func LoadFile(path string) (*mechanism.RobotConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return LoadConfig(data)
}

// Marshal renders a configuration as YAML.
func Marshal(config *mechanism.RobotConfig) ([]byte, error) {
	return yaml.Marshal(config)
}

// applyDefaults fills in missing configuration values with the robot's
// characterized defaults.
func applyDefaults(config *mechanism.RobotConfig) {
	if config.Period == 0 {
		config.Period = core.DefaultPeriod
	}
	if config.Arm.Name == "" {
		config.Arm.Name = "arm"
	}
	if config.Elevator.Name == "" {
		config.Elevator.Name = "elevator"
	}
	applyMechanismDefaults(&config.Arm, DefaultArmConfig(), config.Period)
	applyMechanismDefaults(&config.Elevator, DefaultElevatorConfig(), config.Period)

	dt := &config.Drivetrain
	def := DefaultDrivetrainConfig()
	setIfZero(&dt.TrackWidth, def.TrackWidth)
	setIfZero(&dt.WheelRadius, def.WheelRadius)
	setIfZero(&dt.EncoderCountsPerRev, def.EncoderCountsPerRev)
	setIfZero(&dt.Gearing, def.Gearing)
	setIfZero(&dt.MaxSpeed, def.MaxSpeed)
	setIfZero(&dt.MaxAngularSpeed, def.MaxAngularSpeed)
	setIfZero(&dt.MaxVoltage, def.MaxVoltage)
	setIfZero(&dt.Mass, def.Mass)
	setIfZero(&dt.MomentOfInertia, def.MomentOfInertia)
	if dt.Motor == "" {
		dt.Motor = def.Motor
	}
	if dt.MotorsPerSide == 0 {
		dt.MotorsPerSide = def.MotorsPerSide
	}
	if dt.WheelFeedforward.Kind == "" {
		dt.WheelFeedforward.Kind = mechanism.SimpleFeedforward
	}
	if dt.WheelFeedforward.StaticBand == 0 {
		dt.WheelFeedforward.StaticBand = mechanism.DefaultStaticBand
	}
}

// applyMechanismDefaults fills structural values only. Gains left at zero
// stay zero.
func applyMechanismDefaults(m *mechanism.MechanismConfig, def mechanism.MechanismConfig, period float64) {
	setIfZero(&m.CountsPerRev, def.CountsPerRev)
	setIfZero(&m.GearRatio, def.GearRatio)
	setIfZero(&m.MaxVelocity, def.MaxVelocity)
	setIfZero(&m.MaxAcceleration, def.MaxAcceleration)
	setIfZero(&m.MaxVoltage, def.MaxVoltage)
	setIfZero(&m.Period, period)
	setIfZero(&m.PositionTolerance, def.PositionTolerance)
	setIfZero(&m.VelocityTolerance, def.VelocityTolerance)
	setIfZero(&m.MinDerivativeInterval, mechanism.DefaultMinDerivativeInterval)
	setIfZero(&m.Feedforward.StaticBand, mechanism.DefaultStaticBand)
	if m.Feedforward.Kind == "" {
		m.Feedforward.Kind = def.Feedforward.Kind
	}
	if m.SoftLimits.Lower == 0 && m.SoftLimits.Upper == 0 {
		m.SoftLimits = mechanism.Unbounded()
	}
	if m.Sim.MinPosition == 0 && m.Sim.MaxPosition == 0 {
		m.Sim.MinPosition = def.Sim.MinPosition
		m.Sim.MaxPosition = def.Sim.MaxPosition
	}
}

func setIfZero(v *float64, def float64) {
	if *v == 0 {
		*v = def
	}
}

// DefaultArmConfig returns the characterized single-jointed arm: a 2048
// count encoder behind a 36:1 reduction, output in radians.
func DefaultArmConfig() mechanism.MechanismConfig {
	return mechanism.MechanismConfig{
		Name:            "arm",
		CountsPerRev:    2048,
		GearRatio:       36,
		MaxVelocity:     0.2,
		MaxAcceleration: 0.1,
		PositionGains:   mechanism.Gains{P: 5.8146, I: 0, D: 0.55603},
		VelocityGains:   mechanism.Gains{P: 1, I: 0, D: 0},
		Feedforward: mechanism.FeedforwardGains{
			Kind:       mechanism.ArmFeedforward,
			S:          0.057774,
			G:          0.01,
			V:          16.376,
			A:          0.41226,
			StaticBand: mechanism.DefaultStaticBand,
		},
		SoftLimits:            mechanism.SoftLimits{Lower: -65000, Upper: 55000},
		MaxVoltage:            3,
		Period:                core.DefaultPeriod,
		PositionTolerance:     0.05,
		VelocityTolerance:     0.05,
		MinDerivativeInterval: mechanism.DefaultMinDerivativeInterval,
		StartMode:             mechanism.VelocityHold.String(),
		Sim: mechanism.MechanismSim{
			MinPosition: -math.Pi,
			MaxPosition: math.Pi,
		},
	}
}

// DefaultElevatorConfig returns the characterized elevator: 2048 counts,
// 100:1 gearbox with a 1.32 sprocket stage, 3 cm drum, output in meters.
// The motor is mounted inverted.
func DefaultElevatorConfig() mechanism.MechanismConfig {
	return mechanism.MechanismConfig{
		Name:            "elevator",
		CountsPerRev:    2048,
		GearRatio:       100 * 1.32,
		Radius:          0.03,
		MaxVelocity:     0.2,
		MaxAcceleration: 0.1,
		PositionGains:   mechanism.Gains{P: 342, I: 0, D: 32},
		VelocityGains:   mechanism.Gains{P: 10, I: 0, D: 0},
		Feedforward: mechanism.FeedforwardGains{
			Kind:       mechanism.ElevatorFeedforward,
			S:          0.048191,
			G:          0.029984,
			V:          58.715,
			A:          1.5688,
			StaticBand: mechanism.DefaultStaticBand,
		},
		// about -1 cm to 1.0 m of travel
		SoftLimits:            mechanism.SoftLimits{Lower: -14000, Upper: 1434000},
		MaxVoltage:            12,
		Period:                core.DefaultPeriod,
		PositionTolerance:     0.01,
		VelocityTolerance:     0.05,
		MinDerivativeInterval: mechanism.DefaultMinDerivativeInterval,
		Inverted:              true,
		StartMode:             mechanism.VelocityHold.String(),
		Sim: mechanism.MechanismSim{
			MinPosition: -0.02,
			MaxPosition: 1.1,
		},
	}
}

// DefaultDrivetrainConfig returns the kit drivetrain: two CIMs per side on
// an 8:1 gearbox with 4 inch wheels and wheel-mounted 4096 count encoders.
func DefaultDrivetrainConfig() mechanism.DrivetrainConfig {
	return mechanism.DrivetrainConfig{
		TrackWidth:          0.762,
		WheelRadius:         0.0508,
		EncoderCountsPerRev: 4096,
		Gearing:             8,
		MaxSpeed:            3.0,
		MaxAngularSpeed:     2 * math.Pi,
		MaxVoltage:          12,
		WheelGains:          mechanism.Gains{P: 1},
		WheelFeedforward: mechanism.FeedforwardGains{
			Kind:       mechanism.SimpleFeedforward,
			S:          1,
			V:          3,
			StaticBand: mechanism.DefaultStaticBand,
		},
		Motor:           "cim",
		MotorsPerSide:   2,
		Mass:            54,
		MomentOfInertia: 6,
		RightInverted:   true,
	}
}

// DefaultRobotConfig bundles the default mechanisms.
func DefaultRobotConfig() *mechanism.RobotConfig {
	return &mechanism.RobotConfig{
		Period:     core.DefaultPeriod,
		Arm:        DefaultArmConfig(),
		Elevator:   DefaultElevatorConfig(),
		Drivetrain: DefaultDrivetrainConfig(),
	}
}
