package protocol

import "github.com/pkg/errors"

// Frame is one decoded message. An empty payload is an ACK.
type Frame struct {
	Sequence uint8
	Payload  []byte
}

func (f Frame) IsAck() bool { return len(f.Payload) == 0 }

// Command splits the payload into its command ID and arguments.
func (f Frame) Command() (uint16, []byte, error) {
	data := f.Payload
	id, err := DecodeVLQUint(&data)
	if err != nil {
		return 0, nil, err
	}
	return uint16(id), data, nil
}

// EncodeFrame wraps payload in a frame with the given sequence byte.
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return nil, errors.Errorf("message too long: %d bytes (max %d)", msgLen, MessageLengthMax)
	}
	out := make([]byte, 0, msgLen)
	out = append(out, uint8(msgLen), seq)
	out = append(out, payload...)
	crc := CRC16(out)
	return append(out, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}

// EncodeCommand builds the payload for cmdID followed by whatever args writes.
func EncodeCommand(cmdID uint16, args func(output OutputBuffer)) []byte {
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	return append([]byte(nil), scratch.Result()...)
}

// Ints returns an args function writing each value as a VLQ integer.
func Ints(values ...int32) func(OutputBuffer) {
	return func(output OutputBuffer) {
		for _, v := range values {
			EncodeVLQInt(output, v)
		}
	}
}

// Decoder reassembles frames from a byte stream. On a bad length, trailer or
// CRC it drops bytes up to the next sync byte and carries on.
type Decoder struct {
	input        *rxQueue
	synchronized bool
	// checkSeq, when set, rejects frames whose sequence lacks MessageDest.
	checkSeq bool
	resyncs  int
}

func NewDecoder() *Decoder {
	return &Decoder{input: newRxQueue(MessageMax), synchronized: true}
}

// Resyncs counts how many times the stream lost framing.
func (d *Decoder) Resyncs() int { return d.resyncs }

// Feed queues data and returns every complete frame now available. Bytes
// that do not fit in the queue are dropped.
func (d *Decoder) Feed(data []byte) []Frame {
	var frames []Frame
	for len(data) > 0 {
		n := d.input.write(data)
		data = data[n:]
		frames = append(frames, d.drain()...)
		if n == 0 {
			// A full queue with no frame in it is garbage.
			d.input.reset()
			d.desync()
		}
	}
	return frames
}

func (d *Decoder) desync() {
	if d.synchronized {
		d.resyncs++
	}
	d.synchronized = false
}

func (d *Decoder) drain() []Frame {
	var frames []Frame
	data := d.input.data()
	avail := len(data)

	for len(data) > 0 {
		if !d.synchronized {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				data = nil
				break
			}
			data = data[syncPos+1:]
			d.synchronized = true
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.desync()
			continue
		}
		seq := data[MessagePositionSeq]
		if d.checkSeq && seq&^MessageSeqMask != MessageDest {
			d.desync()
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.desync()
			continue
		}
		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.desync()
			continue
		}

		payload := make([]byte, msgLen-MessageLengthMin)
		copy(payload, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		frames = append(frames, Frame{Sequence: seq, Payload: payload})
		data = data[msgLen:]
	}

	d.input.pop(avail - len(data))
	return frames
}
