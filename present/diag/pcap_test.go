package diag

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/bringyour/classroom/present"
	"github.com/bringyour/classroom/present/model"
)

func TestPcapRoundTrip(t *testing.T) {
	peerId := model.NewId()

	b := &bytes.Buffer{}
	trace, err := NewPcapTrace(b)
	assert.Equal(t, err, nil)

	a := testDeckMessage()
	c := testDeckMessage()
	frameBytes, err := present.EncodeFrame(a, c)
	assert.Equal(t, err, nil)
	byteCount := model.ByteCount(len(frameBytes))

	// one packet per frame, not per tree
	trace.MessageSent(present.NewMessageSummary(present.DirectionSent, peerId, a, byteCount), frameBytes)
	trace.MessageSent(present.NewMessageSummary(present.DirectionSent, peerId, c, byteCount), frameBytes)

	receivedBytes := bytes.Clone(frameBytes)
	trace.MessageReceived(present.NewMessageSummary(present.DirectionReceived, peerId, a, byteCount), receivedBytes)

	reader, err := NewPcapReader(bytes.NewReader(b.Bytes()))
	assert.Equal(t, err, nil)

	records := []*PcapRecord{}
	for {
		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		assert.Equal(t, err, nil)
		records = append(records, record)
	}
	assert.Equal(t, len(records), 2)
	assert.Equal(t, records[0].Direction, present.DirectionSent)
	assert.Equal(t, records[0].FrameBytes, frameBytes)
	assert.Equal(t, records[0].PeerIp.Equal(pcapPeerIp(peerId)), true)
	assert.Equal(t, records[1].Direction, present.DirectionReceived)
	assert.Equal(t, records[1].Truncated, false)

	summary, err := SummarizePcap(bytes.NewReader(b.Bytes()))
	assert.Equal(t, err, nil)
	assert.Equal(t, summary.SentFrameCount, 1)
	assert.Equal(t, summary.ReceivedFrameCount, 1)
	assert.Equal(t, summary.TreeCount, 4)
	assert.Equal(t, summary.BadTreeCount, 0)
	assert.Equal(t, summary.LeafTagCounts["DeckInformation"], 4)
}
