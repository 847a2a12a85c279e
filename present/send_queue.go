package present

import (
	"container/heap"
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

type SendQueueSettings struct {
	// when true the queue orders by the bridge priority of each tree
	Bridge bool
}

func DefaultSendQueueSettings() *SendQueueSettings {
	return &SendQueueSettings{
		Bridge: false,
	}
}

func DefaultBridgeSendQueueSettings() *SendQueueSettings {
	return &SendQueueSettings{
		Bridge: true,
	}
}

type sendItem struct {
	message        *Message
	priority       Priority
	mergeKey       string
	sequenceNumber uint64
	enqueueTime    time.Time

	// the index of the item in the heap
	heapIndex int
}

// pending outgoing trees for one destination.
// Ordered by priority descending, then by enqueue order.
// Trees with the same merge key always drain in enqueue order.
// Merge is resolved eagerly on enqueue, against the newest tree with the key.
type SendQueue struct {
	settings *SendQueueSettings

	stateLock sync.Mutex

	orderedItems []*sendItem
	// merge key -> queued items with the key, oldest first
	mergeKeyItems      map[string][]*sendItem
	nextSequenceNumber uint64
}

func NewSendQueueWithDefaults() *SendQueue {
	return NewSendQueue(DefaultSendQueueSettings())
}

func NewSendQueue(settings *SendQueueSettings) *SendQueue {
	sendQueue := &SendQueue{
		settings:      settings,
		orderedItems:  []*sendItem{},
		mergeKeyItems: map[string][]*sendItem{},
	}
	heap.Init(sendQueue)
	return sendQueue
}

func (self *SendQueue) QueueSize() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return len(self.orderedItems)
}

// returns how the message was resolved against the queue
func (self *SendQueue) Enqueue(message *Message) MergeResult {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	priority := message.Priority()
	if self.settings.Bridge {
		priority = message.BridgePriority()
	}

	mergeKey, mergeable := message.MergeKey()
	if !mergeable {
		self.add(message, priority, "")
		return MergeKeepBothInOrder
	}
	items := self.mergeKeyItems[mergeKey]
	if len(items) == 0 {
		self.add(message, priority, mergeKey)
		return MergeKeepBothInOrder
	}
	queued := items[len(items)-1]
	result, mergedBody := message.Leaf().Body.mergeInto(queued.message.Leaf().Body)
	messagesMergedTotal.WithLabelValues(result.String()).Inc()
	switch result {
	case MergeDiscardOther:
		self.remove(queued)
	case MergeDiscardThis:
		if mergedBody != nil {
			queued.message = copySpine(queued.message, mergedBody)
		}
		self.raise(mergeKey, priority)
		return result
	}
	self.raise(mergeKey, priority)
	self.add(message, priority, mergeKey)
	return result
}

// raises queued items with the key to at least `priority`, so that a newer tree
// with the key cannot drain ahead of them
func (self *SendQueue) raise(mergeKey string, priority Priority) {
	for _, item := range self.mergeKeyItems[mergeKey] {
		if item.priority < priority {
			item.priority = priority
			heap.Fix(self, item.heapIndex)
		}
	}
}

func (self *SendQueue) add(message *Message, priority Priority, mergeKey string) {
	item := &sendItem{
		message:        message,
		priority:       priority,
		mergeKey:       mergeKey,
		sequenceNumber: self.nextSequenceNumber,
		enqueueTime:    time.Now(),
	}
	self.nextSequenceNumber += 1
	heap.Push(self, item)
	if mergeKey != "" {
		self.mergeKeyItems[mergeKey] = append(self.mergeKeyItems[mergeKey], item)
	}
	messagesEnqueuedTotal.WithLabelValues(message.Leaf().ClassTag().String()).Inc()
}

func (self *SendQueue) remove(item *sendItem) {
	if item.mergeKey != "" {
		items := slices.DeleteFunc(self.mergeKeyItems[item.mergeKey], func(i *sendItem) bool {
			return i == item
		})
		if len(items) == 0 {
			delete(self.mergeKeyItems, item.mergeKey)
		} else {
			self.mergeKeyItems[item.mergeKey] = items
		}
	}
	heap.Remove(self, item.heapIndex)
}

// the highest pending priority, or `PriorityDefault` if empty
func (self *SendQueue) PeekPriority() Priority {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if len(self.orderedItems) == 0 {
		return PriorityDefault
	}
	return self.orderedItems[0].priority
}

// the enqueue time of the longest waiting item
func (self *SendQueue) OldestEnqueueTime() (time.Time, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	var oldest time.Time
	for _, item := range self.orderedItems {
		if oldest.IsZero() || item.enqueueTime.Before(oldest) {
			oldest = item.enqueueTime
		}
	}
	return oldest, !oldest.IsZero()
}

// removes every pending tree in flush order
func (self *SendQueue) Drain() []*Message {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	messages := make([]*Message, 0, len(self.orderedItems))
	for 0 < len(self.orderedItems) {
		item := heap.Pop(self).(*sendItem)
		messages = append(messages, item.message)
	}
	clear(self.mergeKeyItems)
	return messages
}

// heap.Interface

func (self *SendQueue) Push(x any) {
	item := x.(*sendItem)
	item.heapIndex = len(self.orderedItems)
	self.orderedItems = append(self.orderedItems, item)
}

func (self *SendQueue) Pop() any {
	n := len(self.orderedItems)
	i := n - 1
	item := self.orderedItems[i]
	self.orderedItems[i] = nil
	self.orderedItems = self.orderedItems[:n-1]
	return item
}

// sort.Interface

func (self *SendQueue) Len() int {
	return len(self.orderedItems)
}

func (self *SendQueue) Less(i int, j int) bool {
	a := self.orderedItems[i]
	b := self.orderedItems[j]
	if a.priority != b.priority {
		return b.priority < a.priority
	}
	return a.sequenceNumber < b.sequenceNumber
}

func (self *SendQueue) Swap(i int, j int) {
	a := self.orderedItems[i]
	b := self.orderedItems[j]
	b.heapIndex = i
	self.orderedItems[i] = b
	a.heapIndex = j
	self.orderedItems[j] = a
}

// copies the single spine tree with a new leaf body.
// Queued trees may be shared by several queues so they are never modified in place.
func copySpine(message *Message, leafBody MessageBody) *Message {
	var root *Message
	var parent *Message
	for m := message; m != nil; m = m.Child {
		c := *m
		c.Parent = parent
		c.Child = nil
		c.Predecessor = nil
		c.oldestPredecessor = nil
		if m.Child == nil {
			c.Body = leafBody
		}
		if parent == nil {
			root = &c
		} else {
			parent.Child = &c
		}
		parent = &c
	}
	return root
}
