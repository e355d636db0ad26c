// Package motorlink drives motors and I2C devices attached to the motor
// controller board over the serial protocol.
package motorlink

import (
	"context"
	"io"
	"math"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"tinygo.org/x/drivers"

	"rebelmotion/core"
	"rebelmotion/host/serial"
	"rebelmotion/protocol"
)

// The board reports encoder velocity in counts per 100 ms.
const velocityScale = 10

// Board is a connection to one motor controller board.
type Board struct {
	link   *protocol.Link
	logger golog.Logger

	mu     sync.Mutex
	motors []*Motor
}

// Open connects to the board on a serial port.
func Open(cfg *serial.Config, timeout time.Duration, logger golog.Logger) (*Board, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	b := NewBoard(port, logger)
	if timeout > 0 {
		b.link.SetTimeout(timeout)
	}
	return b, nil
}

// NewBoard speaks the protocol over an already open port.
func NewBoard(port io.ReadWriteCloser, logger golog.Logger) *Board {
	if logger == nil {
		logger = golog.Global()
	}
	logger = logger.Named("motorlink")
	return &Board{
		link:   protocol.NewLink(port, logger),
		logger: logger,
	}
}

func (b *Board) Link() *protocol.Link { return b.link }

// Motor returns the motor configured on the board as oid.
func (b *Board) Motor(oid uint8) *Motor {
	m := &Motor{board: b, oid: int32(oid), logger: b.logger.With("oid", oid)}
	b.mu.Lock()
	b.motors = append(b.motors, m)
	b.mu.Unlock()
	return m
}

// I2C returns a bus for the I2C device configured on the board as oid at
// address addr.
func (b *Board) I2C(oid uint8, addr uint16) *I2CBus {
	return &I2CBus{board: b, oid: int32(oid), addr: addr}
}

// Close stops every motor handed out and closes the link.
func (b *Board) Close() error {
	b.mu.Lock()
	motors := b.motors
	b.motors = nil
	b.mu.Unlock()

	var err error
	for _, m := range motors {
		err = multierr.Append(err, m.stop())
	}
	return multierr.Append(err, b.link.Close())
}

// Motor implements core.MotorDriver and core.PositionResetter for one motor.
// A failed exchange leaves the last good reading in place and is reported by
// Err, so the control loop keeps running on stale data rather than stalling.
type Motor struct {
	board  *Board
	oid    int32
	logger golog.Logger

	mu            sync.Mutex
	position      float64
	velocity      float64
	velocityFresh bool
	err           error
}

var (
	_ core.MotorDriver      = (*Motor)(nil)
	_ core.PositionResetter = (*Motor)(nil)
)

// ReadPosition queries the encoder and returns raw counts.
func (m *Motor) ReadPosition() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.query()
	return m.position
}

// ReadVelocity returns counts per second. It reuses the reading taken by the
// preceding ReadPosition when there is one.
func (m *Motor) ReadVelocity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.velocityFresh {
		m.query()
	}
	m.velocityFresh = false
	return m.velocity
}

func (m *Motor) query() {
	data, err := m.board.link.Request(context.Background(), protocol.CmdQueryEncoder,
		protocol.Ints(m.oid), protocol.RspEncoderState)
	if err != nil {
		m.fail(err)
		return
	}
	var oid, position, velocity int32
	if err := protocol.DecodeArgs(&data, &oid, &position, &velocity); err != nil {
		m.fail(errors.Wrap(err, "encoder_state"))
		return
	}
	if oid != m.oid {
		m.fail(errors.Errorf("encoder_state for oid %d, want %d", oid, m.oid))
		return
	}
	m.position = float64(position)
	m.velocity = float64(velocity) * velocityScale
	m.velocityFresh = true
	m.err = nil
}

// SetVoltage commands the motor in whole millivolts.
func (m *Motor) SetVoltage(volts float64) {
	mv := int32(math.Round(volts * 1000))
	m.send(protocol.CmdSetVoltage, protocol.Ints(m.oid, mv))
}

func (m *Motor) Stop() {
	m.send(protocol.CmdStop, protocol.Ints(m.oid))
}

func (m *Motor) stop() error {
	return m.board.link.Send(context.Background(), protocol.CmdStop, protocol.Ints(m.oid))
}

// ResetPosition zeroes the encoder on the board.
func (m *Motor) ResetPosition() {
	if m.send(protocol.CmdResetEncoder, protocol.Ints(m.oid)) {
		m.mu.Lock()
		m.position = 0
		m.mu.Unlock()
	}
}

func (m *Motor) send(cmdID uint16, args func(protocol.OutputBuffer)) bool {
	err := m.board.link.Send(context.Background(), cmdID, args)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.fail(err)
		return false
	}
	m.err = nil
	return true
}

// fail records err, warning only when the link goes from healthy to failing.
func (m *Motor) fail(err error) {
	if m.err == nil {
		m.logger.Warnw("motor link error, holding last reading", "error", err)
	}
	m.err = err
}

// Err returns the error from the most recent exchange, or nil.
func (m *Motor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// I2CBus implements drivers.I2C by passing register transfers through the
// board to one attached device.
type I2CBus struct {
	board *Board
	oid   int32
	addr  uint16
}

var _ drivers.I2C = (*I2CBus)(nil)

// Tx writes w, or reads len(r) bytes from the register in w[0].
func (b *I2CBus) Tx(addr uint16, w, r []byte) error {
	if addr != b.addr {
		return errors.Errorf("i2c oid %d is address %#x, not %#x", b.oid, b.addr, addr)
	}
	if len(w) == 0 {
		return errors.New("i2c transfer needs at least one byte to write")
	}
	ctx := context.Background()
	if len(r) == 0 {
		return b.board.link.Send(ctx, protocol.CmdI2CWrite, func(out protocol.OutputBuffer) {
			protocol.EncodeVLQInt(out, b.oid)
			protocol.EncodeVLQBytes(out, w)
		})
	}
	if len(w) != 1 {
		return errors.Errorf("i2c read takes a single register byte, got %d", len(w))
	}

	data, err := b.board.link.Request(ctx, protocol.CmdI2CRead,
		protocol.Ints(b.oid, int32(w[0]), int32(len(r))), protocol.RspI2CReadResponse)
	if err != nil {
		return err
	}
	var oid int32
	if err := protocol.DecodeArgs(&data, &oid); err != nil {
		return errors.Wrap(err, "i2c_read_response")
	}
	payload, err := protocol.DecodeVLQBytes(&data)
	if err != nil {
		return errors.Wrap(err, "i2c_read_response")
	}
	if oid != b.oid || len(payload) != len(r) {
		return errors.Errorf("i2c_read_response: got %d bytes for oid %d, want %d for oid %d", len(payload), oid, len(r), b.oid)
	}
	copy(r, payload)
	return nil
}
