// Package drivetrain turns chassis velocity commands into per-wheel voltages
// and tracks the robot pose.
package drivetrain

import (
	"math"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"rebelmotion/core"
	"rebelmotion/drivetrain/kinematics"
	"rebelmotion/drivetrain/odometry"
	"rebelmotion/drivetrain/sim"
	"rebelmotion/mechanism"
	"rebelmotion/mechanism/actuator"
)

// Drivetrain runs a velocity controller on each side of a differential drive.
type Drivetrain struct {
	cfg       mechanism.DrivetrainConfig
	kin       kinematics.DifferentialDrive
	left      *actuator.Controller
	right     *actuator.Controller
	gyro      core.HeadingSource
	odom      *odometry.Odometry
	sim       *sim.Drivetrain
	logger    golog.Logger
	telemetry core.Telemetry
}

// New wires the wheel controllers to their drivers. period is the control
// loop period in seconds.
func New(
	cfg mechanism.DrivetrainConfig,
	period float64,
	leftDriver, rightDriver core.MotorDriver,
	gyro core.HeadingSource,
	clock core.Clock,
	logger golog.Logger,
	telemetry core.Telemetry,
) (*Drivetrain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gyro == nil {
		return nil, errors.New("drivetrain: heading source is required")
	}
	if logger == nil {
		logger = golog.Global()
	}
	if telemetry == nil {
		telemetry = core.NopTelemetry{}
	}
	kin, err := kinematics.NewDifferentialDrive(cfg.TrackWidth)
	if err != nil {
		return nil, err
	}

	leftCfg := cfg.WheelMechanism("drive-left", period)
	rightCfg := cfg.WheelMechanism("drive-right", period)
	rightCfg.Inverted = cfg.RightInverted

	left, err := actuator.New(leftCfg, leftDriver, clock, logger, telemetry)
	if err != nil {
		return nil, errors.Wrap(err, "drivetrain")
	}
	right, err := actuator.New(rightCfg, rightDriver, clock, logger, telemetry)
	if err != nil {
		return nil, errors.Wrap(err, "drivetrain")
	}

	d := &Drivetrain{
		cfg:       cfg,
		kin:       kin,
		left:      left,
		right:     right,
		gyro:      gyro,
		logger:    logger.Named("drivetrain"),
		telemetry: telemetry,
	}
	d.odom = odometry.New(gyro.Heading(), d.leftDistance(), d.rightDistance(), odometry.Pose2D{})
	return d, nil
}

// AttachSimulation lets ResetOdometry and SimulationPeriodic drive a
// simulated chassis. The simulator's wheel drivers must be the ones passed
// to New.
func (d *Drivetrain) AttachSimulation(s *sim.Drivetrain) {
	d.sim = s
}

func (d *Drivetrain) Kinematics() kinematics.DifferentialDrive { return d.kin }

// Drive commands a forward speed (m/s) and rotation rate (rad/s, CCW
// positive). Inputs beyond the configured maxima are limited, and the wheel
// speeds are desaturated so the commanded curvature is kept.
func (d *Drivetrain) Drive(forward, rotation float64) {
	forward = math.Max(-d.cfg.MaxSpeed, math.Min(d.cfg.MaxSpeed, forward))
	rotation = math.Max(-d.cfg.MaxAngularSpeed, math.Min(d.cfg.MaxAngularSpeed, rotation))
	d.SetSpeeds(d.kin.ToWheelSpeeds(kinematics.ChassisSpeeds{Forward: forward, Rotation: rotation}))
}

// SetSpeeds commands wheel speeds directly.
func (d *Drivetrain) SetSpeeds(speeds kinematics.WheelSpeeds) {
	speeds = speeds.Desaturate(d.cfg.MaxSpeed)
	d.left.SetMode(mechanism.VelocityHold)
	d.right.SetMode(mechanism.VelocityHold)
	d.left.SetVelocitySetpoint(speeds.Left)
	d.right.SetVelocitySetpoint(speeds.Right)
}

// Setpoints are the wheel speeds currently commanded.
func (d *Drivetrain) Setpoints() kinematics.WheelSpeeds {
	return kinematics.WheelSpeeds{Left: d.left.VelocitySetpoint(), Right: d.right.VelocitySetpoint()}
}

// Periodic runs both wheel controllers and then updates odometry.
func (d *Drivetrain) Periodic() {
	d.left.Periodic()
	d.right.Periodic()
	d.UpdateOdometry()
}

// UpdateOdometry folds the latest encoder and gyro readings into the pose.
func (d *Drivetrain) UpdateOdometry() odometry.Pose2D {
	pose := d.odom.Update(d.gyro.Heading(), d.leftDistance(), d.rightDistance())
	d.telemetry.PutNumber("drive/x", pose.X())
	d.telemetry.PutNumber("drive/y", pose.Y())
	d.telemetry.PutNumber("drive/heading", pose.Heading.Radians())
	return pose
}

// ResetOdometry zeroes the encoders and declares the robot to be at pose.
func (d *Drivetrain) ResetOdometry(pose odometry.Pose2D) {
	if d.sim != nil {
		d.sim.SetPose(pose)
	}
	d.left.ZeroEncoder()
	d.right.ZeroEncoder()
	d.odom.ResetPosition(d.gyro.Heading(), d.leftDistance(), d.rightDistance(), pose)
	d.logger.Infow("odometry reset", "pose", pose.String())
}

// SimulationPeriodic advances the attached simulator by dt.
func (d *Drivetrain) SimulationPeriodic(dt float64) {
	if d.sim != nil {
		d.sim.Update(dt)
	}
}

func (d *Drivetrain) Pose() odometry.Pose2D { return d.odom.Pose() }

// WheelSpeeds are the measured wheel speeds from the last cycle.
func (d *Drivetrain) WheelSpeeds() kinematics.WheelSpeeds {
	return kinematics.WheelSpeeds{Left: d.left.State().Velocity, Right: d.right.State().Velocity}
}

// ChassisSpeeds are the measured chassis speeds from the last cycle.
func (d *Drivetrain) ChassisSpeeds() kinematics.ChassisSpeeds {
	return d.kin.ToChassisSpeeds(d.WheelSpeeds())
}

// Stop stops both sides.
func (d *Drivetrain) Stop() {
	d.left.Stop()
	d.right.Stop()
}

func (d *Drivetrain) leftDistance() float64 {
	return d.left.Converter().RawToPhysical(d.left.RawPosition())
}

func (d *Drivetrain) rightDistance() float64 {
	return d.right.Converter().RawToPhysical(d.right.RawPosition())
}
