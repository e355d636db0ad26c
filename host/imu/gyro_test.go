package imu

import (
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers/lsm6ds3tr"
	"tinygo.org/x/drivers/tester"
)

// 2000 dps full scale is 70 mdps per LSB.
const radPerLSB = 70e-3 * math.Pi / 180

func newGyro(t *testing.T) (*Gyro, *tester.I2CDevice8) {
	t.Helper()
	bus := tester.NewI2CBus(t)
	dev := bus.NewDevice(lsm6ds3tr.Address)
	dev.Registers[lsm6ds3tr.WHO_AM_I] = 0x6A
	g := New(bus, golog.NewTestLogger(t))
	require.NoError(t, g.Configure())
	return g, dev
}

func setZ(dev *tester.I2CDevice8, raw int16) {
	dev.Registers[lsm6ds3tr.OUTZ_L_G] = uint8(uint16(raw))
	dev.Registers[lsm6ds3tr.OUTZ_H_G] = uint8(uint16(raw) >> 8)
}

func TestConfigure(t *testing.T) {
	_, dev := newGyro(t)
	assert.Equal(t, uint8(lsm6ds3tr.GYRO_2000DPS)|uint8(lsm6ds3tr.GYRO_SR_104), dev.Registers[lsm6ds3tr.CTRL2_G])

	bus := tester.NewI2CBus(t)
	bus.NewDevice(lsm6ds3tr.Address)
	assert.Error(t, New(bus, golog.NewTestLogger(t)).Configure(), "wrong WHO_AM_I")
}

func TestIntegratesRate(t *testing.T) {
	g, dev := newGyro(t)
	setZ(dev, 1000)

	require.NoError(t, g.Update(0))
	assert.Equal(t, 0.0, g.Heading(), "first sample only sets the time base")
	require.NoError(t, g.Update(0.5))
	assert.InDelta(t, 1000*radPerLSB, g.Rate(), 1e-9)
	assert.InDelta(t, 1000*radPerLSB*0.5, g.Heading(), 1e-9)

	setZ(dev, -2000)
	require.NoError(t, g.Update(1.0))
	assert.InDelta(t, (1000*0.5-2000*0.5)*radPerLSB, g.Heading(), 1e-9)

	// time going backwards integrates nothing
	require.NoError(t, g.Update(0.8))
	assert.InDelta(t, (1000*0.5-2000*0.5)*radPerLSB, g.Heading(), 1e-9)

	g.Reset()
	assert.Equal(t, 0.0, g.Heading())
}

func TestCalibrateRemovesBias(t *testing.T) {
	g, dev := newGyro(t)
	setZ(dev, 12)
	require.NoError(t, g.Calibrate(10))
	assert.Error(t, g.Calibrate(0))

	require.NoError(t, g.Update(0))
	require.NoError(t, g.Update(2))
	assert.InDelta(t, 0, g.Heading(), 1e-12)

	setZ(dev, 112)
	require.NoError(t, g.Update(3))
	assert.InDelta(t, 100*radPerLSB, g.Heading(), 1e-9)
}
