package present

import (
	"sync"

	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

// shared by every network service of one session
type serviceContext struct {
	participant      model.Participant
	table            *LocalObjectTable
	sender           *Sender
	submissionStatus *model.SubmissionStatusModel
	settings         *SessionSettings
}

// wraps a message in the information messages of its ancestors
type wrapFunction = func(message *Message) *Message

// Network services translate model mutations of local objects into messages.
// Each service owns the registrations for one domain object and
// the services of its children, mirroring the containment tree.
type NetworkService interface {
	// resends the whole current state to the group
	ForceUpdate(group Group)
	Close()
}

type service struct {
	context *serviceContext
	// wraps the messages about this object
	wrap wrapFunction
	// wraps the messages about the children of this object
	childWrap wrapFunction

	stateLock    sync.Mutex
	closing      bool
	unsubscribes []func()
}

// `information` builds the information message of the object
func (self *service) init(context *serviceContext, wrap wrapFunction, information func() *Message) {
	self.context = context
	self.wrap = wrap
	self.childWrap = nest(wrap, information)
	self.unsubscribes = []func(){}
}

// sends a message about this object as its own tree, wrapped in its ancestors
func (self *service) send(message *Message) {
	self.sendWrapped(self.wrap, message, GroupInherit)
}

// sends a message about a child of this object
func (self *service) sendChild(message *Message) {
	self.sendWrapped(self.childWrap, message, GroupInherit)
}

func (self *service) sendToGroup(message *Message, group Group) {
	self.sendWrapped(self.wrap, message, group)
}

func (self *service) sendWrapped(wrap wrapFunction, message *Message, group Group) {
	root := wrap(message)
	if !group.IsInherit() {
		root.Group = group
	}
	root.AddLocalRefs(self.context.table)
	if !self.context.sender.Send(root) {
		glog.Infof("[svc]drop %s %s\n", message.ClassTag(), message.TargetId)
	}
}

// builds and sends a message. A builder panic drops only that message.
func (self *service) build(build func() *Message) {
	var message *Message
	if r := HandleError(func() {
		message = build()
	}); r != nil {
		treesDroppedTotal.WithLabelValues("build_error").Inc()
		return
	}
	if message != nil {
		self.send(message)
	}
}

// calls `send` on every property change of a local object
func (self *service) watch(object model.Object, send func()) {
	unsubscribe := object.OnPropertyChanged("", func(o model.Object, property string) {
		if o.Remote() || self.isClosing() {
			return
		}
		glog.V(2).Infof("[svc]%s %s changed %s\n", o.Kind(), o.Id(), property)
		send()
	})
	self.addUnsubscribe(unsubscribe)
}

func (self *service) addUnsubscribe(unsubscribe func()) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	self.unsubscribes = append(self.unsubscribes, unsubscribe)
}

func (self *service) isClosing() bool {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return self.closing
}

// returns false if the service was already closing
func (self *service) close() bool {
	var unsubscribes []func()
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.closing {
			return
		}
		self.closing = true
		unsubscribes = self.unsubscribes
		self.unsubscribes = nil
	}()
	if unsubscribes == nil {
		return false
	}
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
	return true
}

// wraps `message` as the child of `parent`, then in the ancestors of `parent`
func nest(wrap wrapFunction, parent func() *Message) wrapFunction {
	return func(message *Message) *Message {
		p := parent()
		p.InsertChild(message)
		return wrap(p)
	}
}

// the wrap of a root object
func unwrapped(message *Message) *Message {
	return message
}
