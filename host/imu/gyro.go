// Package imu provides a heading source from an LSM6DS3TR gyro.
package imu

import (
	"math"
	"sync"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm6ds3tr"

	"rebelmotion/core"
)

// Gyro integrates the yaw rate into a heading, counter-clockwise positive.
type Gyro struct {
	dev    *lsm6ds3tr.Device
	logger golog.Logger

	mu       sync.Mutex
	bias     float64
	rate     float64
	heading  float64
	lastTime float64
	haveTime bool
}

var _ core.HeadingSource = (*Gyro)(nil)

func New(bus drivers.I2C, logger golog.Logger) *Gyro {
	if logger == nil {
		logger = golog.Global()
	}
	return &Gyro{dev: lsm6ds3tr.New(bus), logger: logger.Named("gyro")}
}

// Configure checks the device identity and sets the full 2000 dps range.
func (g *Gyro) Configure() error {
	err := g.dev.Configure(lsm6ds3tr.Configuration{
		GyroRange:      lsm6ds3tr.GYRO_2000DPS,
		GyroSampleRate: lsm6ds3tr.GYRO_SR_104,
	})
	return errors.Wrap(err, "configure gyro")
}

// Calibrate averages samples readings taken at rest and subtracts the
// result from every later reading.
func (g *Gyro) Calibrate(samples int) error {
	if samples <= 0 {
		return errors.Errorf("calibration needs at least one sample, got %d", samples)
	}
	sum := 0.0
	for i := 0; i < samples; i++ {
		z, err := g.readZ()
		if err != nil {
			return errors.Wrap(err, "calibrate gyro")
		}
		sum += z
	}
	g.mu.Lock()
	g.bias = sum / float64(samples)
	g.mu.Unlock()
	g.logger.Infow("calibrated", "bias_deg_per_s", g.bias*180/math.Pi)
	return nil
}

// readZ returns the yaw rate in rad/s.
func (g *Gyro) readZ() (float64, error) {
	_, _, z, err := g.dev.ReadRotation()
	if err != nil {
		return 0, err
	}
	return float64(z) * 1e-6 * math.Pi / 180, nil
}

// Update samples the rate and integrates it over the time since the last
// call. On a read error the heading holds.
func (g *Gyro) Update(now float64) error {
	z, err := g.readZ()
	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "read gyro")
	}
	g.rate = z - g.bias
	if g.haveTime {
		g.heading += g.rate * core.Elapsed(g.lastTime, now)
	}
	g.lastTime = now
	g.haveTime = true
	return nil
}

// Heading returns radians, unwrapped.
func (g *Gyro) Heading() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.heading
}

// Rate is the last bias-corrected yaw rate in rad/s.
func (g *Gyro) Rate() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rate
}

// Reset zeroes the heading.
func (g *Gyro) Reset() {
	g.mu.Lock()
	g.heading = 0
	g.mu.Unlock()
}
