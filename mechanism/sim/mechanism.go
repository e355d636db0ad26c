// Package sim simulates single-axis mechanisms for running controllers
// without hardware.
package sim

import (
	"math"
	"sync"

	"github.com/pkg/errors"

	"rebelmotion/core"
	"rebelmotion/mechanism"
	"rebelmotion/mechanism/feedforward"
)

const (
	batteryVoltage = 12.0
	substeps       = 20
)

// Mechanism is a single-axis plant whose dynamics are the inverse of its
// feedforward model. It implements core.MotorDriver and core.PositionResetter
// and reports raw counts the way the real encoder would, including a
// reversed motor mounting.
type Mechanism struct {
	mu sync.Mutex

	model    feedforward.Invertible
	conv     core.Converter
	sign     float64
	min, max float64

	position  float64
	velocity  float64
	voltage   float64
	rawOffset float64
}

// NewMechanism builds a plant from the mechanism's characterization.
func NewMechanism(cfg mechanism.MechanismConfig) (*Mechanism, error) {
	ffg := cfg.Feedforward
	if !(ffg.A > 0) {
		return nil, errors.Errorf("%s: simulation needs a positive ka, got %v", cfg.Name, ffg.A)
	}
	model, err := feedforward.New(string(ffg.Kind), ffg.S, ffg.G, ffg.V, ffg.A, ffg.StaticBand)
	if err != nil {
		return nil, errors.Wrap(err, cfg.Name)
	}
	inv, ok := model.(feedforward.Invertible)
	if !ok {
		return nil, errors.Errorf("%s: feedforward %q cannot be simulated", cfg.Name, ffg.Kind)
	}
	conv, err := core.NewConverter(cfg.CountsPerRev, cfg.GearRatio, cfg.Radius)
	if err != nil {
		return nil, errors.Wrap(err, cfg.Name)
	}

	lo, hi := cfg.Sim.MinPosition, cfg.Sim.MaxPosition
	if lo == 0 && hi == 0 {
		lo, hi = math.Inf(-1), math.Inf(1)
	}
	if !(lo < hi) {
		return nil, errors.Errorf("%s: simulated travel %v..%v is empty", cfg.Name, lo, hi)
	}

	sign := 1.0
	if cfg.Inverted {
		sign = -1
	}
	return &Mechanism{
		model:    inv,
		conv:     conv,
		sign:     sign,
		min:      lo,
		max:      hi,
		position: math.Max(lo, math.Min(hi, cfg.Sim.InitialPosition)),
	}, nil
}

func (m *Mechanism) ReadPosition() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sign*m.conv.PhysicalToRaw(m.position) - m.rawOffset
}

func (m *Mechanism) ReadVelocity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sign * m.conv.PhysicalRateToRaw(m.velocity)
}

// SetVoltage applies volts at the motor terminals, limited to the battery.
func (m *Mechanism) SetVoltage(volts float64) {
	m.mu.Lock()
	m.voltage = math.Max(-batteryVoltage, math.Min(batteryVoltage, m.sign*volts))
	m.mu.Unlock()
}

func (m *Mechanism) Stop() {
	m.mu.Lock()
	m.voltage = 0
	m.mu.Unlock()
}

func (m *Mechanism) ResetPosition() {
	m.mu.Lock()
	m.rawOffset = m.sign * m.conv.PhysicalToRaw(m.position)
	m.mu.Unlock()
}

// Update advances the plant by dt seconds.
func (m *Mechanism) Update(dt float64) {
	if dt <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	h := dt / substeps
	for i := 0; i < substeps; i++ {
		accel := m.model.MaxAchievableAcceleration(m.voltage, m.position, m.velocity)
		m.velocity += accel * h
		m.position += m.velocity * h
		if m.position < m.min {
			m.position = m.min
			m.velocity = math.Max(0, m.velocity)
		} else if m.position > m.max {
			m.position = m.max
			m.velocity = math.Min(0, m.velocity)
		}
	}
}

// State returns the physical position, velocity and the voltage in the
// mechanism's positive direction.
func (m *Mechanism) State() (position, velocity, voltage float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position, m.velocity, m.voltage
}

// SetState places the mechanism, clamped to its travel.
func (m *Mechanism) SetState(position, velocity float64) {
	m.mu.Lock()
	m.position = math.Max(m.min, math.Min(m.max, position))
	m.velocity = velocity
	m.mu.Unlock()
}
