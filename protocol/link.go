package protocol

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds one command/ACK exchange.
const DefaultTimeout = 50 * time.Millisecond

// ErrClosed is returned by exchanges on a closed link.
var ErrClosed = errors.New("link closed")

// Link is the host end of the serial protocol. It sends one command at a
// time, waits for the board's ACK, and optionally for a response.
type Link struct {
	port    io.ReadWriteCloser
	logger  golog.Logger
	timeout time.Duration

	mu  sync.Mutex // serializes exchanges
	seq uint8

	decoder   *Decoder
	acks      chan Frame
	responses chan Frame

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewLink starts reading from port in a background goroutine. Close stops it.
func NewLink(port io.ReadWriteCloser, logger golog.Logger) *Link {
	l := &Link{
		port:      port,
		logger:    logger,
		timeout:   DefaultTimeout,
		seq:       MessageDest,
		decoder:   NewDecoder(),
		acks:      make(chan Frame, 4),
		responses: make(chan Frame, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go l.readLoop()
	return l
}

// SetTimeout changes the per-exchange timeout.
func (l *Link) SetTimeout(d time.Duration) {
	l.mu.Lock()
	l.timeout = d
	l.mu.Unlock()
}

// Sequence is the sequence byte the next command will carry.
func (l *Link) Sequence() uint8 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

// Send transmits a command and waits for its ACK.
func (l *Link) Send(ctx context.Context, cmdID uint16, args func(OutputBuffer)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return errors.Wrap(l.exchange(ctx, EncodeCommand(cmdID, args)), CommandName(cmdID))
}

// Request transmits a command and returns the arguments of the first
// response carrying respID.
func (l *Link) Request(ctx context.Context, cmdID uint16, args func(OutputBuffer), respID uint16) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	// Responses left over from an exchange that timed out would be mistaken
	// for ours.
	for len(l.responses) > 0 {
		<-l.responses
	}
	if err := l.exchange(ctx, EncodeCommand(cmdID, args)); err != nil {
		return nil, errors.Wrap(err, CommandName(cmdID))
	}

	for {
		select {
		case resp := <-l.responses:
			id, data, err := resp.Command()
			if err != nil {
				l.logger.Debugw("undecodable response", "error", err)
				continue
			}
			if id != respID {
				l.logger.Debugw("unexpected response", "want", CommandName(respID), "got", CommandName(id))
				continue
			}
			return data, nil
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "waiting for %s", CommandName(respID))
		case <-l.stop:
			return nil, ErrClosed
		}
	}
}

func (l *Link) exchange(ctx context.Context, payload []byte) error {
	for len(l.acks) > 0 {
		<-l.acks
	}
	msg, err := EncodeFrame(l.seq, payload)
	if err != nil {
		return err
	}
	if err := l.write(msg); err != nil {
		return err
	}

	want := nextSequence(l.seq)
	select {
	case ack := <-l.acks:
		if ack.Sequence != want {
			// The board ACKs with the sequence it expects next; adopt it so
			// the following command is accepted.
			l.logger.Debugw("sequence mismatch", "sent", l.seq, "board expects", ack.Sequence)
			l.seq = ack.Sequence
			return errors.Errorf("sequence mismatch: sent 0x%02x, board expects 0x%02x", msg[MessagePositionSeq], ack.Sequence)
		}
		l.seq = want
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for ack")
	case <-l.stop:
		return ErrClosed
	}
}

func (l *Link) write(msg []byte) error {
	n, err := l.port.Write(msg)
	if err != nil {
		return errors.Wrap(err, "write")
	}
	if n != len(msg) {
		return errors.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}
	return nil
}

func (l *Link) readLoop() {
	defer close(l.done)

	buf := make([]byte, 256)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			for _, f := range l.decoder.Feed(buf[:n]) {
				l.dispatch(f)
			}
		}
		if err != nil {
			select {
			case <-l.stop:
				return
			default:
			}
			// Serial ports report read timeouts as io.EOF.
			if !errors.Is(err, io.EOF) {
				l.logger.Debugw("read error", "error", err)
			}
			select {
			case <-l.stop:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

func (l *Link) dispatch(f Frame) {
	if f.IsAck() {
		select {
		case l.acks <- f:
		default:
		}
		return
	}
	select {
	case l.responses <- f:
	default:
		// full: drop the oldest
		select {
		case <-l.responses:
		default:
		}
		l.responses <- f
	}
}

// Close stops the reader and closes the port.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stop)
		err = l.port.Close()
		<-l.done
	})
	return err
}
