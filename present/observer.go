package present

import (
	"sync"

	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

// returns the tag to keep for the member, or false to not track the member
type SetUpFunction[M comparable, G any] func(index int, member M) (G, bool)

// called once for each tracked member when it leaves the collection or the observer closes
type TearDownFunction[M comparable, G any] func(index int, member M, tag G)

// keeps one tag alive per member of an ordered collection, exactly as long as
// the member is in the collection.
// `setUp` and `tearDown` run under the observer lock and must not mutate the observed collection.
type CollectionObserver[M comparable, G any] struct {
	collection *model.Collection[M]
	setUp      SetUpFunction[M, G]
	tearDown   TearDownFunction[M, G]

	stateLock sync.Mutex
	// members that were set up, tracked or not
	seen map[M]bool
	// tracked member -> tag
	tags   map[M]G
	closed bool

	unsubscribe func()
}

func NewCollectionObserver[M comparable, G any](
	collection *model.Collection[M],
	setUp SetUpFunction[M, G],
	tearDown TearDownFunction[M, G],
) *CollectionObserver[M, G] {
	observer := &CollectionObserver[M, G]{
		collection: collection,
		setUp:      setUp,
		tearDown:   tearDown,
		seen:       map[M]bool{},
		tags:       map[M]G{},
	}

	observer.stateLock.Lock()
	defer observer.stateLock.Unlock()

	members, unsubscribe := collection.Observe(observer.added, observer.removed)
	observer.unsubscribe = unsubscribe
	for index, member := range members {
		observer.add(index, member)
	}
	return observer
}

func (self *CollectionObserver[M, G]) added(index int, member M) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.closed {
		return
	}
	self.add(index, member)
}

func (self *CollectionObserver[M, G]) add(index int, member M) {
	if self.seen[member] {
		return
	}
	self.seen[member] = true
	var tag G
	ok := false
	if r := HandleError(func() {
		tag, ok = self.setUp(index, member)
	}); r != nil {
		glog.Infof("[observer]set up failed. Member is not tracked.\n")
	}
	if ok {
		self.tags[member] = tag
	}
}

func (self *CollectionObserver[M, G]) removed(index int, member M) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.closed {
		return
	}
	self.remove(index, member)
}

func (self *CollectionObserver[M, G]) remove(index int, member M) {
	if !self.seen[member] {
		return
	}
	delete(self.seen, member)
	tag, ok := self.tags[member]
	if !ok {
		return
	}
	delete(self.tags, member)
	HandleError(func() {
		self.tearDown(index, member, tag)
	})
}

// tracked member -> tag
func (self *CollectionObserver[M, G]) Tags() map[M]G {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	tags := map[M]G{}
	for member, tag := range self.tags {
		tags[member] = tag
	}
	return tags
}

// tags of tracked members in collection order
func (self *CollectionObserver[M, G]) OrderedTags() []G {
	members := self.collection.Members()

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	tags := []G{}
	for _, member := range members {
		if tag, ok := self.tags[member]; ok {
			tags = append(tags, tag)
		}
	}
	return tags
}

// tears down every tracked member
func (self *CollectionObserver[M, G]) Close() {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.closed {
		return
	}
	self.closed = true
	self.unsubscribe()
	for index, member := range self.collection.Members() {
		self.remove(index, member)
	}
	// members that left without a remove event
	for member, tag := range self.tags {
		HandleError(func() {
			self.tearDown(-1, member, tag)
		})
	}
	clear(self.tags)
	clear(self.seen)
}
