package diag

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/bringyour/classroom/present"
	"github.com/bringyour/classroom/present/model"
)

func testDeckMessage() *present.Message {
	presentation := model.NewPresentationModel(model.NewId(), model.PresentationState{
		HumanName: "p",
	})
	deck := model.NewDeckModel(model.NewId(), model.DeckState{
		HumanName: "d",
	})
	message := present.NewPresentationInformationMessage(presentation)
	message.InsertChild(present.NewDeckInformationMessage(deck))
	return message
}

func TestLogRoundTrip(t *testing.T) {
	participantId := model.NewId()
	peerId := model.NewId()

	b := &bytes.Buffer{}
	log, err := NewLog(b, participantId)
	assert.Equal(t, err, nil)

	log.Latency(10 * time.Millisecond)
	log.Latency(30 * time.Millisecond)
	log.ClockSkew(-4 * time.Millisecond)

	message := testDeckMessage()
	frameBytes, err := present.EncodeFrame(message)
	assert.Equal(t, err, nil)
	byteCount := model.ByteCount(len(frameBytes))
	log.MessageSent(present.NewMessageSummary(present.DirectionSent, peerId, message, byteCount), frameBytes)
	log.MessageReceived(present.NewMessageSummary(present.DirectionReceived, peerId, message, byteCount), frameBytes)
	assert.Equal(t, log.Flush(), nil)

	reader, err := NewReader(bytes.NewReader(b.Bytes()))
	assert.Equal(t, err, nil)
	assert.Equal(t, *reader.Header().ParticipantId, participantId)
	assert.NotEqual(t, reader.Header().MachineName, "")

	entries := []*Entry{}
	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		assert.Equal(t, err, nil)
		entries = append(entries, entry)
	}
	assert.Equal(t, len(entries), 5)
	assert.Equal(t, entries[0].Type, EntryTypeLatency)
	assert.Equal(t, entries[0].Sequence, uint64(1))
	assert.Equal(t, entries[1].Sequence, uint64(2))
	assert.Equal(t, entries[2].Type, EntryTypeClockSkew)
	assert.Equal(t, entries[2].SkewMillis, int64(-4))
	assert.Equal(t, entries[3].Type, EntryTypeSent)
	assert.Equal(t, entries[3].Message.PeerId, peerId)
	assert.Equal(t, entries[3].Message.RootTag, "PresentationInformation")
	assert.Equal(t, entries[3].Message.LeafTag, "DeckInformation")
	assert.Equal(t, entries[3].Message.NodeCount, 2)
	assert.Equal(t, entries[4].Type, EntryTypeReceived)

	summary, err := Summarize(bytes.NewReader(b.Bytes()))
	assert.Equal(t, err, nil)
	assert.Equal(t, summary.LatencyCount, 2)
	assert.Equal(t, summary.LatencyMean, 20*time.Millisecond)
	assert.Equal(t, summary.LatencyMax, 30*time.Millisecond)
	assert.Equal(t, summary.ClockSkewMean, -4*time.Millisecond)
	assert.Equal(t, summary.SentCount, 1)
	assert.Equal(t, summary.ReceivedCount, 1)
	assert.Equal(t, summary.SentBytes, byteCount)
	assert.Equal(t, summary.LeafTagCounts["DeckInformation"], 2)
}

func TestReaderBadHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("{\"type\":\"latency\"}\n")))
	assert.NotEqual(t, err, nil)
}
