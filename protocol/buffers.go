package protocol

// OutputBuffer receives encoded argument bytes.
type OutputBuffer interface {
	Output(data []byte)
	Len() int
}

// ScratchOutput collects one message body, at most MessageMax bytes.
type ScratchOutput struct {
	buf []byte
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{buf: make([]byte, 0, MessageMax)}
}

// Output appends data, silently truncating at MessageMax.
func (s *ScratchOutput) Output(data []byte) {
	if room := MessageMax - len(s.buf); len(data) > room {
		data = data[:room]
	}
	s.buf = append(s.buf, data...)
}

func (s *ScratchOutput) Len() int { return len(s.buf) }

// Result returns the accumulated bytes. It aliases the scratch buffer.
func (s *ScratchOutput) Result() []byte { return s.buf }

func (s *ScratchOutput) Reset() { s.buf = s.buf[:0] }

// rxQueue holds received bytes that have not yet formed a frame.
type rxQueue struct {
	buf   []byte
	limit int
}

func newRxQueue(limit int) *rxQueue {
	return &rxQueue{buf: make([]byte, 0, limit), limit: limit}
}

// write appends as much of data as fits and returns how much was taken.
func (q *rxQueue) write(data []byte) int {
	n := min(len(data), q.limit-len(q.buf))
	q.buf = append(q.buf, data[:n]...)
	return n
}

// data returns the queued bytes. The slice is valid until the next write.
func (q *rxQueue) data() []byte { return q.buf }

// pop discards n bytes from the front.
func (q *rxQueue) pop(n int) {
	n = min(n, len(q.buf))
	rest := copy(q.buf, q.buf[n:])
	q.buf = q.buf[:rest]
}

func (q *rxQueue) reset() { q.buf = q.buf[:0] }
