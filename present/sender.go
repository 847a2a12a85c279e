package present

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"

	"github.com/bringyour/classroom/present/model"
)

// the injected send primitive of one logical connection
type SendFunction = func(frameBytes []byte, group Group, priority Priority) error

type SenderSettings struct {
	TaskBufferSize int
	// -1 blocks, 0 drops when the task buffer is full
	PostTimeout time.Duration
	// flush after the worker has been idle this long
	IdleFlushTimeout time.Duration
	// flush when the oldest pending tree has waited this long, regardless of merge opportunities
	MaxCoalesceTimeout time.Duration
	// trees are batched into frames up to this size. A single larger tree is sent alone.
	MaxFrameByteCount model.ByteCount
}

func DefaultSenderSettings() *SenderSettings {
	return &SenderSettings{
		TaskBufferSize:     1024,
		PostTimeout:        0,
		IdleFlushTimeout:   20 * time.Millisecond,
		MaxCoalesceTimeout: 200 * time.Millisecond,
		MaxFrameByteCount:  256 * 1024,
	}
}

// a destination. `Participant` is nil for a multicast link that
// carries every tree, leaving the filtering to the receivers.
type Connection struct {
	Participant *model.Participant
	// use the bridge priority of each tree, for a relay hop
	Bridge bool
	Send   SendFunction
}

type senderConnection struct {
	connectionId model.Id
	connection   *Connection
	sendQueue    *SendQueue
}

// the single worker that owns the sending queues of one participant.
// Callers hand work to the worker with `Post`, which never blocks on the network.
type Sender struct {
	ctx    context.Context
	cancel context.CancelFunc

	senderId model.Id
	settings *SenderSettings
	tracer   MessageTracer

	tasks chan func()

	// owned by the worker
	connections map[model.Id]*senderConnection
	sequence    []model.Id
}

func NewSenderWithDefaults(ctx context.Context, senderId model.Id, tracer MessageTracer) *Sender {
	return NewSender(ctx, senderId, tracer, DefaultSenderSettings())
}

func NewSender(ctx context.Context, senderId model.Id, tracer MessageTracer, settings *SenderSettings) *Sender {
	cancelCtx, cancel := context.WithCancel(ctx)
	sender := &Sender{
		ctx:         cancelCtx,
		cancel:      cancel,
		senderId:    senderId,
		settings:    settings,
		tracer:      tracer,
		tasks:       make(chan func(), settings.TaskBufferSize),
		connections: map[model.Id]*senderConnection{},
		sequence:    []model.Id{},
	}
	go sender.run()
	return sender
}

func (self *Sender) Post(task func()) bool {
	return self.PostWithTimeout(task, self.settings.PostTimeout)
}

func (self *Sender) PostWithTimeout(task func(), timeout time.Duration) bool {
	if timeout < 0 {
		select {
		case <-self.ctx.Done():
			return false
		case self.tasks <- task:
			return true
		}
	} else if timeout == 0 {
		select {
		case <-self.ctx.Done():
			return false
		case self.tasks <- task:
			return true
		default:
			senderPostsDroppedTotal.Inc()
			glog.Infof("[sender]task buffer full. Drop task.\n")
			return false
		}
	} else {
		select {
		case <-self.ctx.Done():
			return false
		case self.tasks <- task:
			return true
		case <-time.After(timeout):
			senderPostsDroppedTotal.Inc()
			glog.Infof("[sender]task buffer full after %s. Drop task.\n", timeout)
			return false
		}
	}
}

// places the tree on the queue of every connection the tree reaches
func (self *Sender) Send(message *Message) bool {
	return self.Post(func() {
		self.enqueue(message, model.Id{})
	})
}

// like `Send`, but never back to the participant the tree came from
func (self *Sender) SendFrom(message *Message, originId model.Id) bool {
	return self.Post(func() {
		self.enqueue(message, originId)
	})
}

func (self *Sender) AddConnection(connection *Connection) model.Id {
	connectionId := model.NewId()
	self.PostWithTimeout(func() {
		settings := DefaultSendQueueSettings()
		if connection.Bridge {
			settings = DefaultBridgeSendQueueSettings()
		}
		self.connections[connectionId] = &senderConnection{
			connectionId: connectionId,
			connection:   connection,
			sendQueue:    NewSendQueue(settings),
		}
		self.sequence = append(self.sequence, connectionId)
	}, -1)
	return connectionId
}

// pending trees for the connection are dropped
func (self *Sender) RemoveConnection(connectionId model.Id) {
	self.PostWithTimeout(func() {
		delete(self.connections, connectionId)
		self.sequence = slices.DeleteFunc(self.sequence, func(id model.Id) bool {
			return id == connectionId
		})
	}, -1)
}

// flushes all pending trees and waits for the flush to complete
func (self *Sender) Flush(timeout time.Duration) bool {
	done := make(chan struct{})
	if !self.PostWithTimeout(func() {
		defer close(done)
		self.flush()
	}, timeout) {
		return false
	}
	select {
	case <-done:
		return true
	case <-self.ctx.Done():
		return false
	case <-time.After(timeout):
		return false
	}
}

func (self *Sender) Close() {
	self.cancel()
}

func (self *Sender) run() {
	defer self.cancel()

	for {
		var flushTimeout <-chan time.Time
		if timeout, ok := self.nextFlushTimeout(); ok {
			if timeout <= 0 {
				self.flush()
				continue
			}
			flushTimeout = time.After(timeout)
		}

		select {
		case <-self.ctx.Done():
			return
		case task := <-self.tasks:
			HandleError(task)
			// drain the batch that is already waiting
			func() {
				for {
					select {
					case task := <-self.tasks:
						HandleError(task)
					default:
						return
					}
				}
			}()
		case <-flushTimeout:
			self.flush()
		}
	}
}

// the time until the next flush, or false if nothing is pending
func (self *Sender) nextFlushTimeout() (time.Duration, bool) {
	pending := false
	var oldest time.Time
	for _, c := range self.connections {
		if c.sendQueue.PeekPriority() == PriorityRealTime {
			return 0, true
		}
		if enqueueTime, ok := c.sendQueue.OldestEnqueueTime(); ok {
			pending = true
			if oldest.IsZero() || enqueueTime.Before(oldest) {
				oldest = enqueueTime
			}
		}
	}
	if !pending {
		return 0, false
	}
	coalesceTimeout := self.settings.MaxCoalesceTimeout - time.Since(oldest)
	return min(self.settings.IdleFlushTimeout, coalesceTimeout), true
}

func (self *Sender) enqueue(message *Message, originId model.Id) {
	for _, connectionId := range self.sequence {
		c := self.connections[connectionId]
		if participant := c.connection.Participant; participant != nil {
			if !originId.IsZero() && participant.Id == originId {
				continue
			}
			if !Reaches(message, *participant) {
				continue
			}
		}
		c.sendQueue.Enqueue(message)
	}
}

func (self *Sender) flush() {
	for _, connectionId := range self.sequence {
		c := self.connections[connectionId]
		messages := c.sendQueue.Drain()
		if len(messages) == 0 {
			continue
		}
		self.sendFrames(c, messages)
	}
}

type frameBatch struct {
	group    Group
	priority Priority
	messages []*Message
	encoded  [][]byte
	size     model.ByteCount
}

// batches consecutive trees with the same group and priority into frames
func (self *Sender) sendFrames(c *senderConnection, messages []*Message) {
	var batch *frameBatch
	sendBatch := func() {
		if batch == nil || len(batch.messages) == 0 {
			return
		}
		b := batch
		batch = nil
		frameBytes := []byte{}
		for _, encoded := range b.encoded {
			frameBytes = appendBytesField(frameBytes, fieldFrameMessage, encoded)
		}
		var err error
		if r := HandleError(func() {
			err = c.connection.Send(frameBytes, b.group, b.priority)
		}); r != nil {
			err = fmt.Errorf("Send panic: %v", r)
		}
		if err != nil {
			treesDroppedTotal.WithLabelValues("send_error").Add(float64(len(b.messages)))
			glog.Infof("[sender]send to %s failed. Drop %d trees = %s\n", c.connectionId, len(b.messages), err)
			return
		}
		framesSentTotal.Inc()
		frameBytesSentTotal.Add(float64(len(frameBytes)))
		if self.tracer != nil {
			peerId := model.Id{}
			if c.connection.Participant != nil {
				peerId = c.connection.Participant.Id
			}
			for _, message := range b.messages {
				self.tracer.MessageSent(NewMessageSummary(DirectionSent, peerId, message, model.ByteCount(len(frameBytes))), frameBytes)
			}
		}
	}

	for _, message := range messages {
		encoded, err := EncodeMessage(message)
		if err != nil {
			treesDroppedTotal.WithLabelValues("encode_error").Inc()
			glog.Infof("[sender]drop tree = %s\n", err)
			continue
		}
		group := message.RootGroup()
		priority := message.Priority()
		if c.connection.Bridge {
			priority = message.BridgePriority()
		}
		size := model.ByteCount(len(encoded))
		if batch != nil && (batch.group != group || batch.priority != priority || self.settings.MaxFrameByteCount < batch.size+size) {
			sendBatch()
		}
		if batch == nil {
			batch = &frameBatch{
				group:    group,
				priority: priority,
			}
		}
		batch.messages = append(batch.messages, message)
		batch.encoded = append(batch.encoded, encoded)
		batch.size += size
	}
	sendBatch()
}

func (self *Sender) ConnectionCount() int {
	count := make(chan int, 1)
	if !self.PostWithTimeout(func() {
		count <- len(self.connections)
	}, -1) {
		return 0
	}
	select {
	case n := <-count:
		return n
	case <-self.ctx.Done():
		return 0
	}
}

// connection ids in the order they were added
func (self *Sender) ConnectionIds() []model.Id {
	ids := make(chan []model.Id, 1)
	if !self.PostWithTimeout(func() {
		ids <- slices.Clone(self.sequence)
	}, -1) {
		return nil
	}
	select {
	case connectionIds := <-ids:
		return connectionIds
	case <-self.ctx.Done():
		return nil
	}
}
