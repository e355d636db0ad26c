package robot

import (
	"github.com/pkg/errors"

	"rebelmotion/core"
	dsim "rebelmotion/drivetrain/sim"
	"rebelmotion/mechanism"
	msim "rebelmotion/mechanism/sim"
)

// Hardware is the set of devices a robot is built from.
type Hardware struct {
	Arm      core.MotorDriver
	Elevator core.MotorDriver
	Left     core.MotorDriver
	Right    core.MotorDriver
	Gyro     core.HeadingSource
}

func (h Hardware) validate() error {
	switch {
	case h.Arm == nil:
		return errors.New("arm motor driver is required")
	case h.Elevator == nil:
		return errors.New("elevator motor driver is required")
	case h.Left == nil || h.Right == nil:
		return errors.New("drivetrain motor drivers are required")
	case h.Gyro == nil:
		return errors.New("heading source is required")
	}
	return nil
}

// Simulation holds simulated plants for every device.
type Simulation struct {
	Arm        *msim.Mechanism
	Elevator   *msim.Mechanism
	Drivetrain *dsim.Drivetrain
}

// NewSimulation builds plants matching cfg.
func NewSimulation(cfg mechanism.RobotConfig) (*Simulation, error) {
	arm, err := msim.NewMechanism(cfg.Arm)
	if err != nil {
		return nil, errors.Wrap(err, "arm")
	}
	elevator, err := msim.NewMechanism(cfg.Elevator)
	if err != nil {
		return nil, errors.Wrap(err, "elevator")
	}
	drive, err := dsim.NewDrivetrain(cfg.Drivetrain)
	if err != nil {
		return nil, err
	}
	return &Simulation{Arm: arm, Elevator: elevator, Drivetrain: drive}, nil
}

// Hardware exposes the plants as devices.
func (s *Simulation) Hardware() Hardware {
	return Hardware{
		Arm:      s.Arm,
		Elevator: s.Elevator,
		Left:     s.Drivetrain.LeftDriver(),
		Right:    s.Drivetrain.RightDriver(),
		Gyro:     s.Drivetrain.Gyro(),
	}
}
