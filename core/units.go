package core

import (
	"math"

	"github.com/pkg/errors"
)

// Converter maps raw encoder counts to mechanism units and back.
// With a zero radius the physical unit is radians of output shaft rotation,
// otherwise it is meters of travel at that drum or wheel radius.
type Converter struct {
	countsPerRev float64
	gearRatio    float64
	radius       float64
}

// NewConverter validates the gearing parameters.
func NewConverter(countsPerRev, gearRatio, radius float64) (Converter, error) {
	switch {
	case !(countsPerRev > 0) || math.IsInf(countsPerRev, 0):
		return Converter{}, errors.Errorf("counts per revolution must be positive, got %v", countsPerRev)
	case !(gearRatio > 0) || math.IsInf(gearRatio, 0):
		return Converter{}, errors.Errorf("gear ratio must be positive, got %v", gearRatio)
	case radius < 0 || math.IsNaN(radius) || math.IsInf(radius, 0):
		return Converter{}, errors.Errorf("radius must be non-negative, got %v", radius)
	}
	return Converter{countsPerRev: countsPerRev, gearRatio: gearRatio, radius: radius}, nil
}

// unitsPerRev is the physical distance covered by one output revolution.
func (c Converter) unitsPerRev() float64 {
	if c.radius == 0 {
		return 2 * math.Pi
	}
	return 2 * math.Pi * c.radius
}

// CountsPerUnit is the number of raw counts per physical unit.
func (c Converter) CountsPerUnit() float64 {
	return c.countsPerRev * c.gearRatio / c.unitsPerRev()
}

func (c Converter) RawToPhysical(raw float64) float64 {
	return raw / (c.countsPerRev * c.gearRatio) * c.unitsPerRev()
}

func (c Converter) PhysicalToRaw(physical float64) float64 {
	return physical / c.unitsPerRev() * (c.countsPerRev * c.gearRatio)
}

// RawRateToPhysical converts counts/s to units/s.
func (c Converter) RawRateToPhysical(rate float64) float64 {
	return c.RawToPhysical(rate)
}

// PhysicalRateToRaw converts units/s to counts/s.
func (c Converter) PhysicalRateToRaw(rate float64) float64 {
	return c.PhysicalToRaw(rate)
}

// RawToPhysical is the stateless form of Converter.RawToPhysical.
func RawToPhysical(raw, gearRatio, countsPerRev, radius float64) (float64, error) {
	c, err := NewConverter(countsPerRev, gearRatio, radius)
	if err != nil {
		return 0, err
	}
	return c.RawToPhysical(raw), nil
}

// PhysicalToRaw is the stateless form of Converter.PhysicalToRaw.
func PhysicalToRaw(physical, gearRatio, countsPerRev, radius float64) (float64, error) {
	c, err := NewConverter(countsPerRev, gearRatio, radius)
	if err != nil {
		return 0, err
	}
	return c.PhysicalToRaw(physical), nil
}
