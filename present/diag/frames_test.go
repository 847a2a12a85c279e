package diag

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/bringyour/classroom/present"
	"github.com/bringyour/classroom/present/model"
)

func TestFrameTrace(t *testing.T) {
	peerId := model.NewId()

	b := &bytes.Buffer{}
	frameTrace := NewFrameTrace(b)

	a := testDeckMessage()
	c := testDeckMessage()
	frameBytes, err := present.EncodeFrame(a, c)
	assert.Equal(t, err, nil)
	byteCount := model.ByteCount(len(frameBytes))

	frameTrace.MessageSent(present.NewMessageSummary(present.DirectionSent, peerId, a, byteCount), frameBytes)
	frameTrace.MessageSent(present.NewMessageSummary(present.DirectionSent, peerId, c, byteCount), frameBytes)
	assert.Equal(t, frameTrace.Flush(), nil)

	r := bufio.NewReader(bytes.NewReader(b.Bytes()))
	readBytes, err := present.ReadDelimitedFrame(r, 1024*1024)
	assert.Equal(t, err, nil)
	assert.Equal(t, readBytes, frameBytes)
	_, err = present.ReadDelimitedFrame(r, 1024*1024)
	assert.Equal(t, errors.Is(err, io.EOF), true)
}
