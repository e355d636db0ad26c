// Package sim models drivetrain physics so the drive code can run without a robot.
package sim

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// DCMotor holds the electrical constants of one gearbox's worth of identical
// brushed or brushless DC motors.
type DCMotor struct {
	NominalVoltage float64
	StallTorque    float64 // N·m
	StallCurrent   float64 // A
	FreeCurrent    float64 // A
	FreeSpeed      float64 // rad/s

	R  float64 // winding resistance, ohms
	Kv float64 // rad/s per volt
	Kt float64 // N·m per amp
}

// NewDCMotor derives resistance and motor constants from datasheet values
// for numMotors motors sharing a gearbox.
func NewDCMotor(nominalVoltage, stallTorque, stallCurrent, freeCurrent, freeSpeed float64, numMotors int) DCMotor {
	n := float64(numMotors)
	m := DCMotor{
		NominalVoltage: nominalVoltage,
		StallTorque:    stallTorque * n,
		StallCurrent:   stallCurrent * n,
		FreeCurrent:    freeCurrent * n,
		FreeSpeed:      freeSpeed,
	}
	m.R = nominalVoltage / m.StallCurrent
	m.Kv = freeSpeed / (nominalVoltage - m.R*m.FreeCurrent)
	m.Kt = m.StallTorque / m.StallCurrent
	return m
}

func rpmToRadPerSec(rpm float64) float64 { return rpm * 2 * math.Pi / 60 }

// CIM is the classic 2.5" CIM motor.
func CIM(numMotors int) DCMotor {
	return NewDCMotor(12, 2.42, 133, 2.7, rpmToRadPerSec(5310), numMotors)
}

func MiniCIM(numMotors int) DCMotor {
	return NewDCMotor(12, 1.41, 89, 3, rpmToRadPerSec(5840), numMotors)
}

func Falcon500(numMotors int) DCMotor {
	return NewDCMotor(12, 4.69, 257, 1.5, rpmToRadPerSec(6380), numMotors)
}

func NEO(numMotors int) DCMotor {
	return NewDCMotor(12, 2.6, 105, 1.8, rpmToRadPerSec(5676), numMotors)
}

// MotorByName looks up a motor model: cim, minicim, falcon500 or neo.
func MotorByName(name string, numMotors int) (DCMotor, error) {
	if numMotors <= 0 {
		return DCMotor{}, errors.Errorf("motor count must be positive, got %d", numMotors)
	}
	switch strings.ToLower(name) {
	case "cim":
		return CIM(numMotors), nil
	case "minicim":
		return MiniCIM(numMotors), nil
	case "falcon500", "falcon":
		return Falcon500(numMotors), nil
	case "neo":
		return NEO(numMotors), nil
	default:
		return DCMotor{}, errors.Errorf("unknown motor %q", name)
	}
}

// Current is the current drawn at a motor shaft speed (rad/s) and voltage.
func (m DCMotor) Current(speed, voltage float64) float64 {
	return -speed/(m.Kv*m.R) + voltage/m.R
}

// Torque produced at a given current.
func (m DCMotor) Torque(current float64) float64 {
	return current * m.Kt
}
