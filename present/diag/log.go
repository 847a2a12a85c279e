package diag

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/bringyour/classroom/present"
	"github.com/bringyour/classroom/present/model"
)

// A diagnostic log is json lines. The first entry is the header.

type EntryType string

const (
	EntryTypeHeader    EntryType = "header"
	EntryTypeLatency   EntryType = "latency"
	EntryTypeClockSkew EntryType = "clock_skew"
	EntryTypeSent      EntryType = "sent"
	EntryTypeReceived  EntryType = "received"
)

type Entry struct {
	Type EntryType `json:"type"`
	Time time.Time `json:"time"`

	// header
	ParticipantId *model.Id `json:"participant_id,omitempty"`
	MachineName   string    `json:"machine_name,omitempty"`
	UserName      string    `json:"user_name,omitempty"`

	// latency
	Sequence      uint64 `json:"sequence,omitempty"`
	LatencyMillis int64  `json:"latency_millis,omitempty"`

	// clock_skew
	SkewMillis int64 `json:"skew_millis,omitempty"`

	// sent, received
	Message *MessageEntry `json:"message,omitempty"`
}

type MessageEntry struct {
	PeerId    model.Id        `json:"peer_id"`
	RootTag   string          `json:"root_tag"`
	LeafTag   string          `json:"leaf_tag"`
	TargetId  model.Id        `json:"target_id"`
	Group     string          `json:"group"`
	Priority  string          `json:"priority"`
	NodeCount int             `json:"node_count"`
	ByteCount model.ByteCount `json:"byte_count"`
}

func newMessageEntry(summary *present.MessageSummary) *MessageEntry {
	return &MessageEntry{
		PeerId:    summary.PeerId,
		RootTag:   summary.RootTag.String(),
		LeafTag:   summary.LeafTag.String(),
		TargetId:  summary.LeafId,
		Group:     summary.Group.String(),
		Priority:  summary.Priority.String(),
		NodeCount: summary.NodeCount,
		ByteCount: summary.ByteCount,
	}
}

// writes a diagnostic log. Implements `present.MessageTracer`.
type Log struct {
	stateLock       sync.Mutex
	w               *bufio.Writer
	encoder         *json.Encoder
	latencySequence uint64
	err             error
}

func NewLog(w io.Writer, participantId model.Id) (*Log, error) {
	machineName, err := os.Hostname()
	if err != nil {
		machineName = "unknown"
	}
	userName := "unknown"
	if u, err := user.Current(); err == nil {
		userName = u.Username
	}

	bw := bufio.NewWriter(w)
	log := &Log{
		w:       bw,
		encoder: json.NewEncoder(bw),
	}
	err = log.write(&Entry{
		Type:          EntryTypeHeader,
		Time:          time.Now(),
		ParticipantId: &participantId,
		MachineName:   machineName,
		UserName:      userName,
	})
	if err != nil {
		return nil, err
	}
	return log, nil
}

func (self *Log) write(entry *Entry) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.err != nil {
		return self.err
	}
	if err := self.encoder.Encode(entry); err != nil {
		glog.Infof("[diag]write error = %s\n", err)
		self.err = err
		return err
	}
	return nil
}

// records one round trip. Sequence numbers are assigned in call order.
func (self *Log) Latency(latency time.Duration) error {
	self.stateLock.Lock()
	self.latencySequence += 1
	sequence := self.latencySequence
	self.stateLock.Unlock()

	return self.write(&Entry{
		Type:          EntryTypeLatency,
		Time:          time.Now(),
		Sequence:      sequence,
		LatencyMillis: latency.Milliseconds(),
	})
}

// `skew` is the remote clock minus the local clock
func (self *Log) ClockSkew(skew time.Duration) error {
	return self.write(&Entry{
		Type:       EntryTypeClockSkew,
		Time:       time.Now(),
		SkewMillis: skew.Milliseconds(),
	})
}

// present.MessageTracer
func (self *Log) MessageSent(summary *present.MessageSummary, frameBytes []byte) {
	self.write(&Entry{
		Type:    EntryTypeSent,
		Time:    summary.Time,
		Message: newMessageEntry(summary),
	})
}

// present.MessageTracer
func (self *Log) MessageReceived(summary *present.MessageSummary, frameBytes []byte) {
	self.write(&Entry{
		Type:    EntryTypeReceived,
		Time:    summary.Time,
		Message: newMessageEntry(summary),
	})
}

func (self *Log) Flush() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.err != nil {
		return self.err
	}
	return self.w.Flush()
}

type Reader struct {
	decoder *json.Decoder
	header  *Entry
}

// reads the header eagerly
func NewReader(r io.Reader) (*Reader, error) {
	decoder := json.NewDecoder(r)
	var header Entry
	if err := decoder.Decode(&header); err != nil {
		return nil, fmt.Errorf("Bad header: %w", err)
	}
	if header.Type != EntryTypeHeader {
		return nil, fmt.Errorf("Bad header type: %s", header.Type)
	}
	return &Reader{
		decoder: decoder,
		header:  &header,
	}, nil
}

func (self *Reader) Header() *Entry {
	return self.header
}

// returns `io.EOF` at the end of the log
func (self *Reader) Next() (*Entry, error) {
	var entry Entry
	if err := self.decoder.Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

type Summary struct {
	Header *Entry

	LatencyCount  int
	LatencyMean   time.Duration
	LatencyMax    time.Duration
	ClockSkewMean time.Duration

	SentCount     int
	SentBytes     model.ByteCount
	ReceivedCount int
	ReceivedBytes model.ByteCount
	// leaf tag -> count, both directions
	LeafTagCounts map[string]int
}

func Summarize(r io.Reader) (*Summary, error) {
	reader, err := NewReader(r)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Header:        reader.Header(),
		LeafTagCounts: map[string]int{},
	}
	var latencyTotal time.Duration
	var skewTotal time.Duration
	skewCount := 0
	for {
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return summary, err
		}
		switch entry.Type {
		case EntryTypeLatency:
			latency := time.Duration(entry.LatencyMillis) * time.Millisecond
			summary.LatencyCount += 1
			latencyTotal += latency
			summary.LatencyMax = max(summary.LatencyMax, latency)
		case EntryTypeClockSkew:
			skewCount += 1
			skewTotal += time.Duration(entry.SkewMillis) * time.Millisecond
		case EntryTypeSent:
			summary.SentCount += 1
			if entry.Message != nil {
				summary.SentBytes += entry.Message.ByteCount
				summary.LeafTagCounts[entry.Message.LeafTag] += 1
			}
		case EntryTypeReceived:
			summary.ReceivedCount += 1
			if entry.Message != nil {
				summary.ReceivedBytes += entry.Message.ByteCount
				summary.LeafTagCounts[entry.Message.LeafTag] += 1
			}
		}
	}
	if 0 < summary.LatencyCount {
		summary.LatencyMean = latencyTotal / time.Duration(summary.LatencyCount)
	}
	if 0 < skewCount {
		summary.ClockSkewMean = skewTotal / time.Duration(skewCount)
	}
	return summary, nil
}
