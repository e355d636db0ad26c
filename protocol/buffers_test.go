package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	scratch.Output([]byte{4, 5})
	assert.Equal(t, 5, scratch.Len())
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, scratch.Result())

	scratch.Reset()
	assert.Equal(t, 0, scratch.Len())

	scratch.Output(make([]byte, MessageMax+10))
	assert.Equal(t, MessageMax, scratch.Len())
	scratch.Output([]byte{1})
	assert.Equal(t, MessageMax, scratch.Len())
}

func TestRxQueue(t *testing.T) {
	q := newRxQueue(6)
	assert.Equal(t, 4, q.write([]byte{1, 2, 3, 4}))
	q.pop(1)
	assert.Equal(t, []byte{2, 3, 4}, q.data())

	// only the room left is taken
	assert.Equal(t, 3, q.write([]byte{5, 6, 7, 8}))
	assert.Equal(t, []byte{2, 3, 4, 5, 6, 7}, q.data())
	assert.Equal(t, 0, q.write([]byte{9}))

	q.pop(10)
	assert.Empty(t, q.data())

	q.write([]byte{1})
	q.reset()
	assert.Empty(t, q.data())
}
