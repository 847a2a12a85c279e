package model

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Lock order. Each object guards its own state with one lock and each collection
// guards its members with its own lock. Code that must hold more than one lock at a time
// acquires them outer to inner:
//     classroom -> presentation -> deck -> slide -> sheet -> strokes
// Property and collection callbacks always run after the lock that produced them
// is released, so a callback may freely read or mutate other objects.

// the variant tag carried by every domain object
type Kind int

const (
	KindUnknown Kind = iota
	KindPresentation
	KindDeck
	KindSlide
	KindInkSheet
	KindTextSheet
	KindImageSheet
	KindQuickPoll
	KindQuickPollResult
)

func (self Kind) String() string {
	switch self {
	case KindPresentation:
		return "presentation"
	case KindDeck:
		return "deck"
	case KindSlide:
		return "slide"
	case KindInkSheet:
		return "ink_sheet"
	case KindTextSheet:
		return "text_sheet"
	case KindImageSheet:
		return "image_sheet"
	case KindQuickPoll:
		return "quick_poll"
	case KindQuickPollResult:
		return "quick_poll_result"
	default:
		return fmt.Sprintf("kind(%d)", int(self))
	}
}

func (self Kind) IsSheet() bool {
	switch self {
	case KindInkSheet, KindTextSheet, KindImageSheet:
		return true
	default:
		return false
	}
}

type Disposition uint32

const (
	// the object was materialized from a message received from another participant.
	// Network services never rebroadcast remote objects.
	DispositionRemote Disposition = 1 << iota
)

type PropertyChangeFunction func(object Object, property string)

// all domain objects implement `Object`
type Object interface {
	Id() Id
	Kind() Kind
	Disposition() Disposition
	Remote() bool
	MarkRemote()
	// `property` "" matches every property
	OnPropertyChanged(property string, callback PropertyChangeFunction) func()
}

type propertyCallback struct {
	property string
	callback PropertyChangeFunction
}

type object struct {
	id   Id
	kind Kind

	disposition atomic.Uint32

	stateLock sync.Mutex

	propertyCallbacks *CallbackList[*propertyCallback]

	self Object
}

func (self *object) init(id Id, kind Kind, owner Object) {
	self.id = id
	self.kind = kind
	self.propertyCallbacks = NewCallbackList[*propertyCallback]()
	self.self = owner
}

func (self *object) Id() Id {
	return self.id
}

func (self *object) Kind() Kind {
	return self.kind
}

func (self *object) Disposition() Disposition {
	return Disposition(self.disposition.Load())
}

func (self *object) Remote() bool {
	return self.Disposition()&DispositionRemote != 0
}

// must be called before the object is attached to the model
func (self *object) MarkRemote() {
	for {
		disposition := self.disposition.Load()
		if self.disposition.CompareAndSwap(disposition, disposition|uint32(DispositionRemote)) {
			return
		}
	}
}

func (self *object) OnPropertyChanged(property string, callback PropertyChangeFunction) func() {
	callbackId := self.propertyCallbacks.Add(&propertyCallback{
		property: property,
		callback: callback,
	})
	return func() {
		self.propertyCallbacks.Remove(callbackId)
	}
}

func (self *object) firePropertiesChanged(properties []string) {
	if len(properties) == 0 {
		return
	}
	callbacks := self.propertyCallbacks.Get()
	for _, property := range properties {
		for _, c := range callbacks {
			if c.property == "" || c.property == property {
				c.callback(self.self, property)
			}
		}
	}
}

// runs `mutate` on the state under the object lock and fires change callbacks
// for the properties that `diff` reports, after the lock is released
func updateState[S any](self *object, state *S, mutate func(*S), diff func(a S, b S) []string) []string {
	var properties []string
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		before := *state
		mutate(state)
		properties = diff(before, *state)
	}()
	self.firePropertiesChanged(properties)
	return properties
}

func snapshotState[S any](self *object, state *S) S {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return *state
}
