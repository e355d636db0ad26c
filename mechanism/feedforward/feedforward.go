// Package feedforward models the voltage a mechanism needs to follow a
// position/velocity/acceleration setpoint with no error.
package feedforward

import (
	"math"

	"github.com/pkg/errors"
)

// Model computes a feedforward voltage.
type Model interface {
	Calculate(position, velocity, acceleration float64) float64
}

// staticSign is sgn(v) ramped linearly over |v| < band so the static term has
// no jump at rest. A zero band gives the plain sign function.
func staticSign(v, band float64) float64 {
	if band > 0 {
		return math.Max(-1, math.Min(1, v/band))
	}
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Arm is a single-jointed arm whose gravity load varies with the cosine of its
// angle. Position is radians from horizontal.
type Arm struct {
	S, G, V, A float64
	StaticBand float64
}

func (f Arm) Calculate(position, velocity, acceleration float64) float64 {
	return f.S*staticSign(velocity, f.StaticBand) + f.G*math.Cos(position) + f.V*velocity + f.A*acceleration
}

// Elevator is a linear mechanism with a constant gravity load.
type Elevator struct {
	S, G, V, A float64
	StaticBand float64
}

func (f Elevator) Calculate(_, velocity, acceleration float64) float64 {
	return f.S*staticSign(velocity, f.StaticBand) + f.G + f.V*velocity + f.A*acceleration
}

// SimpleMotor is a mechanism with no gravity load, such as a drive wheel.
type SimpleMotor struct {
	S, V, A    float64
	StaticBand float64
}

func (f SimpleMotor) Calculate(_, velocity, acceleration float64) float64 {
	return f.S*staticSign(velocity, f.StaticBand) + f.V*velocity + f.A*acceleration
}

// MaxAchievableVelocity is the steady velocity reachable with maxVoltage while
// also accelerating at acceleration.
func (f SimpleMotor) MaxAchievableVelocity(maxVoltage, acceleration float64) float64 {
	if f.V == 0 {
		return math.Inf(1)
	}
	return (maxVoltage - f.S - f.A*acceleration) / f.V
}

// New builds a model by kind name: "arm", "elevator" or "simple".
func New(kind string, s, g, v, a, staticBand float64) (Model, error) {
	switch kind {
	case "arm":
		return Arm{S: s, G: g, V: v, A: a, StaticBand: staticBand}, nil
	case "elevator":
		return Elevator{S: s, G: g, V: v, A: a, StaticBand: staticBand}, nil
	case "simple":
		if g != 0 {
			return nil, errors.New("simple motor feedforward has no gravity term")
		}
		return SimpleMotor{S: s, V: v, A: a, StaticBand: staticBand}, nil
	default:
		return nil, errors.Errorf("unknown feedforward kind %q", kind)
	}
}

// Invertible models can solve for the acceleration a voltage produces.
type Invertible interface {
	Model
	MaxAchievableAcceleration(voltage, position, velocity float64) float64
}

func (f Arm) MaxAchievableAcceleration(voltage, position, velocity float64) float64 {
	return accelFrom(voltage, f.Calculate(position, velocity, 0), f.A)
}

func (f Elevator) MaxAchievableAcceleration(voltage, position, velocity float64) float64 {
	return accelFrom(voltage, f.Calculate(position, velocity, 0), f.A)
}

func (f SimpleMotor) MaxAchievableAcceleration(voltage, position, velocity float64) float64 {
	return accelFrom(voltage, f.Calculate(position, velocity, 0), f.A)
}

func accelFrom(voltage, holdVoltage, ka float64) float64 {
	if ka == 0 {
		return 0
	}
	return (voltage - holdVoltage) / ka
}
