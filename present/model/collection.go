package model

import (
	"sync"

	"golang.org/x/exp/slices"
)

type CollectionChangeFunction[M comparable] func(index int, member M)

type collectionChange[M comparable] struct {
	callbacks []CollectionChangeFunction[M]
	index     int
	member    M
}

// an ordered set of members with change notification.
// Changes are delivered to the callbacks in mutation order, one at a time.
type Collection[M comparable] struct {
	stateLock sync.Mutex
	members   []M
	// undelivered changes, oldest first
	changes    []collectionChange[M]
	delivering bool

	addedCallbacks   *CallbackList[CollectionChangeFunction[M]]
	removedCallbacks *CallbackList[CollectionChangeFunction[M]]
}

func NewCollection[M comparable]() *Collection[M] {
	return &Collection[M]{
		members:          []M{},
		addedCallbacks:   NewCallbackList[CollectionChangeFunction[M]](),
		removedCallbacks: NewCallbackList[CollectionChangeFunction[M]](),
	}
}

func (self *Collection[M]) Members() []M {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return slices.Clone(self.members)
}

func (self *Collection[M]) Len() int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return len(self.members)
}

func (self *Collection[M]) Contains(member M) bool {
	return 0 <= self.IndexOf(member)
}

func (self *Collection[M]) IndexOf(member M) int {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return slices.Index(self.members, member)
}

func (self *Collection[M]) Find(match func(M) bool) (M, bool) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	for _, member := range self.members {
		if match(member) {
			return member, true
		}
	}
	var empty M
	return empty, false
}

// insert-if-absent at the end
func (self *Collection[M]) Add(member M) bool {
	return self.Insert(-1, member)
}

// insert-if-absent. An out of range index appends.
func (self *Collection[M]) Insert(index int, member M) bool {
	inserted := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if 0 <= slices.Index(self.members, member) {
			return
		}
		if index < 0 || len(self.members) < index {
			index = len(self.members)
		}
		self.members = slices.Insert(self.members, index, member)
		self.changes = append(self.changes, collectionChange[M]{
			callbacks: self.addedCallbacks.Get(),
			index:     index,
			member:    member,
		})
		inserted = true
	}()
	if inserted {
		self.deliver()
	}
	return inserted
}

func (self *Collection[M]) Remove(member M) bool {
	index := -1
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		index = slices.Index(self.members, member)
		if 0 <= index {
			self.members = slices.Delete(self.members, index, index+1)
			self.changes = append(self.changes, collectionChange[M]{
				callbacks: self.removedCallbacks.Get(),
				index:     index,
				member:    member,
			})
		}
	}()
	if index < 0 {
		return false
	}
	self.deliver()
	return true
}

// drains the undelivered changes unless another call is already draining.
// A change made from inside a callback is delivered after that callback returns.
func (self *Collection[M]) deliver() {
	self.stateLock.Lock()
	if self.delivering {
		self.stateLock.Unlock()
		return
	}
	self.delivering = true
	self.stateLock.Unlock()

	defer func() {
		if r := recover(); r != nil {
			self.stateLock.Lock()
			self.delivering = false
			self.stateLock.Unlock()
			panic(r)
		}
	}()

	for {
		self.stateLock.Lock()
		if len(self.changes) == 0 {
			self.delivering = false
			self.stateLock.Unlock()
			return
		}
		change := self.changes[0]
		self.changes = self.changes[1:]
		self.stateLock.Unlock()

		for _, callback := range change.callbacks {
			callback(change.index, change.member)
		}
	}
}

func (self *Collection[M]) OnAdded(callback CollectionChangeFunction[M]) func() {
	callbackId := self.addedCallbacks.Add(callback)
	return func() {
		self.addedCallbacks.Remove(callbackId)
	}
}

func (self *Collection[M]) OnRemoved(callback CollectionChangeFunction[M]) func() {
	callbackId := self.removedCallbacks.Add(callback)
	return func() {
		self.removedCallbacks.Remove(callbackId)
	}
}

// registers both callbacks and returns the current members atomically with the registration.
// The callbacks receive exactly the changes after the snapshot.
func (self *Collection[M]) Observe(added CollectionChangeFunction[M], removed CollectionChangeFunction[M]) ([]M, func()) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	addedCallbackId := self.addedCallbacks.Add(added)
	removedCallbackId := self.removedCallbacks.Add(removed)
	unsubscribe := func() {
		self.addedCallbacks.Remove(addedCallbackId)
		self.removedCallbacks.Remove(removedCallbackId)
	}
	return slices.Clone(self.members), unsubscribe
}
