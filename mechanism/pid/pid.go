package pid

import (
	"math"

	"github.com/pkg/errors"
)

// Controller is a discrete PID loop run at a fixed period.
type Controller struct {
	kp, ki, kd float64
	period     float64

	minIntegral, maxIntegral float64
	positionTolerance        float64
	velocityTolerance        float64

	integral    float64
	prevError   float64
	errorRate   float64
	lastError   float64
	initialized bool
}

// New creates a controller. period is the expected time between Calculate calls.
func New(kp, ki, kd, period float64) (*Controller, error) {
	if !(period > 0) {
		return nil, errors.Errorf("pid period must be positive, got %v", period)
	}
	if math.IsNaN(kp) || math.IsNaN(ki) || math.IsNaN(kd) {
		return nil, errors.New("pid gains must be numbers")
	}
	return &Controller{
		kp:                kp,
		ki:                ki,
		kd:                kd,
		period:            period,
		minIntegral:       math.Inf(-1),
		maxIntegral:       math.Inf(1),
		positionTolerance: 0.05,
		velocityTolerance: math.Inf(1),
	}, nil
}

// SetTolerance sets the error bands used by AtSetpoint.
func (c *Controller) SetTolerance(position, velocity float64) {
	c.positionTolerance = position
	c.velocityTolerance = velocity
}

// SetIntegratorRange bounds the contribution of the integral term.
func (c *Controller) SetIntegratorRange(min, max float64) {
	c.minIntegral = min
	c.maxIntegral = max
}

// Calculate returns the feedback output for one period.
func (c *Controller) Calculate(measurement, setpoint float64) float64 {
	err := setpoint - measurement

	if c.initialized {
		c.errorRate = (err - c.prevError) / c.period
	} else {
		// no history yet, so no derivative kick
		c.errorRate = 0
		c.initialized = true
	}
	c.prevError = err
	c.lastError = err

	if c.ki != 0 {
		lo, hi := c.minIntegral/c.ki, c.maxIntegral/c.ki
		if lo > hi {
			lo, hi = hi, lo
		}
		c.integral = math.Max(lo, math.Min(hi, c.integral+err*c.period))
	}

	return c.kp*err + c.ki*c.integral + c.kd*c.errorRate
}

// AtSetpoint reports whether the last error and its rate are within tolerance.
func (c *Controller) AtSetpoint() bool {
	return c.initialized &&
		math.Abs(c.lastError) <= c.positionTolerance &&
		math.Abs(c.errorRate) <= c.velocityTolerance
}

// Error is the error from the last Calculate.
func (c *Controller) Error() float64 { return c.lastError }

// Reset clears the integral and derivative history.
func (c *Controller) Reset() {
	c.integral = 0
	c.prevError = 0
	c.errorRate = 0
	c.lastError = 0
	c.initialized = false
}
