package present

import (
	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

// the state threaded through one apply pass of a received tree
type receiveContext struct {
	receiver *Receiver
	senderId model.Id
	// the enclosing node, whose `Target` is resolved
	parent *Message
}

func (self *receiveContext) table() *LocalObjectTable {
	return self.receiver.table
}

func (self *receiveContext) child(parent *Message) *receiveContext {
	return &receiveContext{
		receiver: self.receiver,
		senderId: self.senderId,
		parent:   parent,
	}
}

// applies received trees to the local model of one participant
type Receiver struct {
	participant      model.Participant
	table            *LocalObjectTable
	classroom        *model.ClassroomModel
	submissionStatus *model.SubmissionStatusModel
	tracer           MessageTracer
}

func NewReceiver(
	participant model.Participant,
	table *LocalObjectTable,
	classroom *model.ClassroomModel,
	submissionStatus *model.SubmissionStatusModel,
	tracer MessageTracer,
) *Receiver {
	return &Receiver{
		participant:      participant,
		table:            table,
		classroom:        classroom,
		submissionStatus: submissionStatus,
		tracer:           tracer,
	}
}

// decodes and applies every tree in the frame.
// A malformed tree is dropped without affecting the other trees in the frame.
func (self *Receiver) Receive(senderId model.Id, frameBytes []byte) error {
	messages, treeErrs, err := DecodeFrame(frameBytes)
	for range treeErrs {
		treesDroppedTotal.WithLabelValues("malformed").Inc()
	}
	if err != nil {
		treesDroppedTotal.WithLabelValues("malformed_frame").Inc()
		glog.Infof("[recv]frame from %s truncated after %d trees = %s\n", senderId, len(messages), err)
	}
	for _, message := range messages {
		if self.tracer != nil {
			self.tracer.MessageReceived(NewMessageSummary(DirectionReceived, senderId, message, model.ByteCount(len(frameBytes))), frameBytes)
		}
		self.Apply(senderId, message)
	}
	return err
}

// applies one tree. Each node is applied after its parent target is resolved.
// Unresolved nodes are skipped along with their children.
func (self *Receiver) Apply(senderId model.Id, message *Message) {
	context := &receiveContext{
		receiver: self,
		senderId: senderId,
	}
	self.apply(context, message, GroupInherit)
}

func (self *Receiver) apply(context *receiveContext, message *Message, parentGroup Group) {
	for _, m := range message.chain() {
		group := m.Group.Resolve(parentGroup)
		if !Accepts(group, self.participant, context.senderId) {
			glog.V(2).Infof("[recv]%s %s not for %s (%s)\n", m.ClassTag(), m.TargetId, self.participant.Role, group)
			messagesAppliedTotal.WithLabelValues(m.ClassTag().String(), "filtered").Inc()
			continue
		}
		keep := false
		HandleError(func() {
			keep = m.Body.updateTarget(context, m)
		})
		if !keep {
			m.Target = nil
			messagesAppliedTotal.WithLabelValues(m.ClassTag().String(), "unresolved").Inc()
			continue
		}
		messagesAppliedTotal.WithLabelValues(m.ClassTag().String(), "applied").Inc()
		if m.Child != nil {
			self.apply(context.child(m), m.Child, group)
		}
	}
}

// the resolved target of the enclosing node as a concrete type
func parentTarget[T model.Object](context *receiveContext) (T, bool) {
	var empty T
	if context.parent == nil || context.parent.Target == nil {
		return empty, false
	}
	t, ok := context.parent.Target.(T)
	if !ok {
		glog.Infof("[recv]parent %s %s does not contain %T\n", context.parent.Target.Kind(), context.parent.TargetId, empty)
		return empty, false
	}
	return t, true
}

// an enclosing node whose object is already bound only gives context to its child.
// It creates the object when absent but never overwrites or re-attaches it.
func contextOnly(context *receiveContext, message *Message) bool {
	if message.Child == nil {
		return false
	}
	_, ok := context.table().Lookup(message.TargetId)
	return ok
}

// resolves the target by id, constructing and binding a remote object if the id is new.
// `create` may be nil for variants that never construct.
func resolveTarget[T model.Object](context *receiveContext, message *Message, create func() T) (T, bool) {
	var empty T
	if message.Target != nil {
		if t, ok := message.Target.(T); ok {
			return t, true
		}
	}
	if object, ok := context.table().Lookup(message.TargetId); ok {
		t, ok := object.(T)
		if !ok {
			glog.Infof("[recv]type mismatch for %s: bound %s, expected %T\n", message.TargetId, object.Kind(), empty)
			return empty, false
		}
		message.Target = t
		return t, true
	}
	if create == nil {
		return empty, false
	}
	t := create()
	t.MarkRemote()
	bound, _ := context.table().Bind(t)
	t, ok := bound.(T)
	if !ok {
		glog.Infof("[recv]type mismatch for %s: bound %s, expected %T\n", message.TargetId, bound.Kind(), empty)
		return empty, false
	}
	message.Target = t
	return t, true
}
