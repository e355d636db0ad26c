package motorlink

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers/lsm6ds3tr"
	"tinygo.org/x/drivers/tester"

	"rebelmotion/protocol"
)

const imuOID = 7

// fakeBoard answers the motor controller protocol from memory, with one
// simulated I2C device behind it.
type fakeBoard struct {
	endpoint *protocol.Endpoint
	i2c      *tester.I2CDevice8

	mu        sync.Mutex
	silent    bool
	positions map[int32]int32
	velocity  map[int32]int32
	voltages  map[int32]int32
	stops     map[int32]int
	queries   int
}

func newFakeBoard(t *testing.T) (*Board, *fakeBoard) {
	t.Helper()
	host, dev := net.Pipe()
	f := &fakeBoard{
		i2c:       tester.NewI2CDevice8(t, lsm6ds3tr.Address),
		positions: map[int32]int32{},
		velocity:  map[int32]int32{},
		voltages:  map[int32]int32{},
		stops:     map[int32]int{},
	}
	f.endpoint = protocol.NewEndpoint(dev, f.handle)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := dev.Read(buf)
			if err != nil {
				return
			}
			f.mu.Lock()
			silent := f.silent
			f.mu.Unlock()
			if !silent {
				_ = f.endpoint.Receive(buf[:n])
			}
		}
	}()
	t.Cleanup(func() { dev.Close() })
	return NewBoard(host, golog.NewTestLogger(t)), f
}

func (f *fakeBoard) setSilent(silent bool) {
	f.mu.Lock()
	f.silent = silent
	f.mu.Unlock()
}

func (f *fakeBoard) handle(cmdID uint16, data *[]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var oid, a, b int32
	switch cmdID {
	case protocol.CmdSetVoltage:
		if err := protocol.DecodeArgs(data, &oid, &a); err != nil {
			return err
		}
		f.voltages[oid] = a
	case protocol.CmdQueryEncoder:
		if err := protocol.DecodeArgs(data, &oid); err != nil {
			return err
		}
		f.queries++
		return f.endpoint.Respond(protocol.RspEncoderState, protocol.Ints(oid, f.positions[oid], f.velocity[oid]))
	case protocol.CmdResetEncoder:
		if err := protocol.DecodeArgs(data, &oid); err != nil {
			return err
		}
		f.positions[oid] = 0
	case protocol.CmdStop:
		if err := protocol.DecodeArgs(data, &oid); err != nil {
			return err
		}
		f.stops[oid]++
		f.voltages[oid] = 0
	case protocol.CmdI2CWrite:
		if err := protocol.DecodeArgs(data, &oid); err != nil {
			return err
		}
		w, err := protocol.DecodeVLQBytes(data)
		if err != nil {
			return err
		}
		return f.i2c.Tx(w, nil)
	case protocol.CmdI2CRead:
		if err := protocol.DecodeArgs(data, &oid, &a, &b); err != nil {
			return err
		}
		buf := make([]byte, b)
		if err := f.i2c.Tx([]byte{byte(a)}, buf); err != nil {
			return err
		}
		return f.endpoint.Respond(protocol.RspI2CReadResponse, func(out protocol.OutputBuffer) {
			protocol.EncodeVLQInt(out, oid)
			protocol.EncodeVLQBytes(out, buf)
		})
	}
	return nil
}

func TestMotorReadsEncoder(t *testing.T) {
	board, f := newFakeBoard(t)
	defer board.Close()
	m := board.Motor(1)

	f.mu.Lock()
	f.positions[1] = -1234
	f.velocity[1] = 50
	f.mu.Unlock()

	assert.Equal(t, -1234.0, m.ReadPosition())
	assert.Equal(t, 500.0, m.ReadVelocity())
	assert.NoError(t, m.Err())

	f.mu.Lock()
	assert.Equal(t, 1, f.queries, "velocity reuses the position query")
	f.velocity[1] = -3
	f.mu.Unlock()

	assert.Equal(t, -30.0, m.ReadVelocity())
	f.mu.Lock()
	assert.Equal(t, 2, f.queries)
	f.mu.Unlock()
}

func TestMotorCommands(t *testing.T) {
	board, f := newFakeBoard(t)
	defer board.Close()
	m := board.Motor(2)

	m.SetVoltage(3.2)
	f.mu.Lock()
	assert.Equal(t, int32(3200), f.voltages[2])
	f.positions[2] = 999
	f.mu.Unlock()

	m.SetVoltage(-11.9996)
	f.mu.Lock()
	assert.Equal(t, int32(-12000), f.voltages[2])
	f.mu.Unlock()

	m.ResetPosition()
	assert.Equal(t, 0.0, m.ReadPosition())

	m.Stop()
	f.mu.Lock()
	assert.Equal(t, 1, f.stops[2])
	assert.Equal(t, int32(0), f.voltages[2])
	f.mu.Unlock()
}

func TestMotorHoldsLastReadingOnFailure(t *testing.T) {
	host, dev := net.Pipe()
	logger, logs := golog.NewObservedTestLogger(t)
	f := &fakeBoard{positions: map[int32]int32{3: 77}, velocity: map[int32]int32{3: 2}}
	f.endpoint = protocol.NewEndpoint(dev, f.handle)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := dev.Read(buf)
			if err != nil {
				return
			}
			f.mu.Lock()
			silent := f.silent
			f.mu.Unlock()
			if !silent {
				_ = f.endpoint.Receive(buf[:n])
			}
		}
	}()
	defer dev.Close()

	board := NewBoard(host, logger)
	defer board.Link().Close()
	board.Link().SetTimeout(20 * time.Millisecond)
	m := board.Motor(3)

	require.Equal(t, 77.0, m.ReadPosition())
	f.setSilent(true)
	assert.Equal(t, 77.0, m.ReadPosition())
	assert.Equal(t, 20.0, m.ReadVelocity())
	assert.Error(t, m.Err())
	assert.Equal(t, 1, logs.FilterMessage("motor link error, holding last reading").Len())

	f.setSilent(false)
	f.mu.Lock()
	f.positions[3] = 80
	f.mu.Unlock()
	assert.Equal(t, 80.0, m.ReadPosition())
	assert.NoError(t, m.Err())
}

func TestBoardCloseStopsMotors(t *testing.T) {
	board, f := newFakeBoard(t)
	board.Motor(1)
	board.Motor(4)
	require.NoError(t, board.Close())

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.stops[1])
	assert.Equal(t, 1, f.stops[4])
}

func TestBoardCloseCollectsErrors(t *testing.T) {
	board, f := newFakeBoard(t)
	board.Link().SetTimeout(10 * time.Millisecond)
	board.Motor(1)
	board.Motor(2)
	f.setSilent(true)
	err := board.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stop")
}

func TestI2CBus(t *testing.T) {
	board, f := newFakeBoard(t)
	defer board.Close()
	bus := board.I2C(imuOID, lsm6ds3tr.Address)

	f.i2c.Registers[0x0F] = 0x6A
	r := make([]byte, 1)
	require.NoError(t, bus.Tx(lsm6ds3tr.Address, []byte{0x0F}, r))
	assert.Equal(t, byte(0x6A), r[0])

	require.NoError(t, bus.Tx(lsm6ds3tr.Address, []byte{0x11, 0x4C}, nil))
	assert.Equal(t, uint8(0x4C), f.i2c.Registers[0x11])

	assert.Error(t, bus.Tx(0x10, []byte{0x0F}, r))
	assert.Error(t, bus.Tx(lsm6ds3tr.Address, nil, r))
	assert.Error(t, bus.Tx(lsm6ds3tr.Address, []byte{0x0F, 0x10}, r))

	// the driver talks to the device through the board
	imu := lsm6ds3tr.New(bus)
	assert.True(t, imu.Connected())
	require.NoError(t, imu.Configure(lsm6ds3tr.Configuration{}))
	assert.Equal(t, uint8(lsm6ds3tr.GYRO_2000DPS)|uint8(lsm6ds3tr.GYRO_SR_104), f.i2c.Registers[lsm6ds3tr.CTRL2_G])
}
