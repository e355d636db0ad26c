package protocol

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// CommandHandler consumes one command's arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Endpoint is the board end of the protocol. It accepts frames in sequence,
// dispatches their commands and ACKs each frame with the sequence it expects
// next. Frames out of sequence are ACKed without being run, which tells the
// host what to send.
type Endpoint struct {
	mu       sync.Mutex
	out      io.Writer
	handler  CommandHandler
	decoder  *Decoder
	expected uint8
	onReset  func()
}

func NewEndpoint(out io.Writer, handler CommandHandler) *Endpoint {
	d := NewDecoder()
	d.checkSeq = true
	return &Endpoint{
		out:      out,
		handler:  handler,
		decoder:  d,
		expected: MessageDest,
	}
}

// SetResetCallback registers fn to run when the host restarts its sequence.
func (e *Endpoint) SetResetCallback(fn func()) {
	e.onReset = fn
}

// Receive processes incoming bytes. Handler errors are returned after the
// frame is ACKed.
func (e *Endpoint) Receive(data []byte) error {
	var firstErr error
	for _, f := range e.decoder.Feed(data) {
		if f.Sequence == MessageDest && e.expected != MessageDest {
			e.expected = MessageDest
			if e.onReset != nil {
				e.onReset()
			}
		}
		if f.Sequence == e.expected {
			e.expected = nextSequence(f.Sequence)
			if err := e.parseFrame(f.Payload); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := e.ack(); err != nil {
			return err
		}
	}
	return firstErr
}

func (e *Endpoint) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("command handler panic: %v", r)
		}
	}()
	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			return err
		}
		if e.handler == nil {
			return errors.Errorf("no handler for %s", CommandName(uint16(cmdID)))
		}
		if err := e.handler(uint16(cmdID), &frame); err != nil {
			return errors.Wrap(err, CommandName(uint16(cmdID)))
		}
	}
	return nil
}

func (e *Endpoint) ack() error {
	msg, err := EncodeFrame(e.expected, nil)
	if err != nil {
		return err
	}
	return e.write(msg)
}

// Respond sends a response frame.
func (e *Endpoint) Respond(cmdID uint16, args func(OutputBuffer)) error {
	msg, err := EncodeFrame(e.expected, EncodeCommand(cmdID, args))
	if err != nil {
		return err
	}
	return e.write(msg)
}

func (e *Endpoint) write(msg []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.out.Write(msg)
	return err
}

// Serve feeds everything read from r into Receive until r fails. Handler
// errors are reported to onError and do not stop serving.
func (e *Endpoint) Serve(r io.Reader, onError func(error)) error {
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if herr := e.Receive(buf[:n]); herr != nil && onError != nil {
				onError(herr)
			}
		}
		if err != nil {
			return err
		}
	}
}
