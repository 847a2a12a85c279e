package present

import (
	"fmt"
	"strings"

	"github.com/bringyour/classroom/present/model"
)

// fixed enumeration shared by all participants of the same protocol version
type ClassTag uint32

const (
	ClassTagNone ClassTag = 0

	ClassTagGroup ClassTag = 1
	ClassTagTags  ClassTag = 2
	ClassTagColor ClassTag = 3

	ClassTagPresentationInformation ClassTag = 100

	ClassTagDeckInformation ClassTag = 110
	ClassTagDeckRemoved     ClassTag = 111

	ClassTagSlideInformation                  ClassTag = 120
	ClassTagSlideDeleted                      ClassTag = 121
	ClassTagStudentSubmissionSlideInformation ClassTag = 122

	ClassTagInkSheetInformation   ClassTag = 130
	ClassTagTextSheetInformation  ClassTag = 131
	ClassTagImageSheetInformation ClassTag = 132
	ClassTagSheetRemoved          ClassTag = 133

	ClassTagInkSheetStrokesAdded    ClassTag = 140
	ClassTagInkSheetStrokesDeleting ClassTag = 141
	ClassTagRealTimeInkPackets      ClassTag = 142

	ClassTagQuickPollInformation       ClassTag = 150
	ClassTagQuickPollResultInformation ClassTag = 151

	ClassTagSubmissionStatus ClassTag = 160
)

func (self ClassTag) String() string {
	switch self {
	case ClassTagGroup:
		return "Group"
	case ClassTagTags:
		return "Tags"
	case ClassTagColor:
		return "Color"
	case ClassTagPresentationInformation:
		return "PresentationInformation"
	case ClassTagDeckInformation:
		return "DeckInformation"
	case ClassTagDeckRemoved:
		return "DeckRemoved"
	case ClassTagSlideInformation:
		return "SlideInformation"
	case ClassTagSlideDeleted:
		return "SlideDeleted"
	case ClassTagStudentSubmissionSlideInformation:
		return "StudentSubmissionSlideInformation"
	case ClassTagInkSheetInformation:
		return "InkSheetInformation"
	case ClassTagTextSheetInformation:
		return "TextSheetInformation"
	case ClassTagImageSheetInformation:
		return "ImageSheetInformation"
	case ClassTagSheetRemoved:
		return "SheetRemoved"
	case ClassTagInkSheetStrokesAdded:
		return "InkSheetStrokesAdded"
	case ClassTagInkSheetStrokesDeleting:
		return "InkSheetStrokesDeleting"
	case ClassTagRealTimeInkPackets:
		return "RealTimeInkPackets"
	case ClassTagQuickPollInformation:
		return "QuickPollInformation"
	case ClassTagQuickPollResultInformation:
		return "QuickPollResultInformation"
	case ClassTagSubmissionStatus:
		return "SubmissionStatus"
	default:
		return fmt.Sprintf("ClassTag(%d)", uint32(self))
	}
}

// ordered. Higher priority drains first.
type Priority int

const (
	// not set. Resolves to the body default.
	PriorityDefault Priority = iota
	PriorityLowest
	PriorityLow
	PriorityNormal
	PriorityHigher
	PriorityRealTime
)

func (self Priority) String() string {
	switch self {
	case PriorityDefault:
		return "default"
	case PriorityLowest:
		return "lowest"
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigher:
		return "higher"
	case PriorityRealTime:
		return "realtime"
	default:
		return fmt.Sprintf("priority(%d)", int(self))
	}
}

// out of band hints. These never affect how a message applies.
type MessageTags struct {
	// correlates the message with a slide in the ui
	SlideId  model.Id
	Priority Priority
	// used in place of `Priority` when a relay forwards the message
	BridgePriority Priority
}

type MergeResult int

const (
	MergeKeepBothInOrder MergeResult = iota
	// the new message supersedes the queued one
	MergeDiscardOther
	// the new message is redundant or was absorbed into the queued one
	MergeDiscardThis
)

func (self MergeResult) String() string {
	switch self {
	case MergeDiscardOther:
		return "discard_other"
	case MergeDiscardThis:
		return "discard_this"
	default:
		return "keep_both"
	}
}

// the payload of one message variant.
// Each variant owns exactly its own fields.
type MessageBody interface {
	ClassTag() ClassTag

	// appends the variant fields, numbered from `firstVariantField`
	appendFields(b []byte) []byte
	consumeField(f *field) error

	// resolves or constructs the target and copies the payload onto it.
	// Returns true if the target should be kept as the binding for the target id.
	updateTarget(context *receiveContext, message *Message) bool

	// `other` is the queued body for the same target and class tag.
	// On `MergeDiscardThis` a non-nil body replaces the queued body.
	// Neither body is modified.
	mergeInto(other MessageBody) (MergeResult, MessageBody)

	defaultPriority() Priority
}

// a replicable fact about one domain object.
// `Child` nests the fact about a contained object. Siblings of the child are
// its predecessors, so that `Predecessor` orders facts that happened earlier.
type Message struct {
	TargetId model.Id
	Group    Group
	Tags     *MessageTags
	Body     MessageBody

	Parent      *Message
	Child       *Message
	Predecessor *Message

	oldestPredecessor *Message

	// on send, the source object. On receive, the resolved local object.
	Target model.Object
}

func NewMessage(targetId model.Id, body MessageBody) *Message {
	return &Message{
		TargetId: targetId,
		Group:    GroupInherit,
		Body:     body,
	}
}

func (self *Message) ClassTag() ClassTag {
	if self.Body == nil {
		return ClassTagNone
	}
	return self.Body.ClassTag()
}

// the new child is ordered after any existing children
func (self *Message) InsertChild(child *Message) {
	child.Parent = self
	if self.Child != nil {
		child.AddOldestPredecessor(self.Child)
	}
	self.Child = child
}

func (self *Message) OldestPredecessor() *Message {
	oldest := self
	if self.oldestPredecessor != nil {
		oldest = self.oldestPredecessor
	}
	for oldest.Predecessor != nil {
		oldest = oldest.Predecessor
	}
	self.oldestPredecessor = oldest
	return oldest
}

// appends `predecessor` and its own predecessors to the tail of the predecessor chain
func (self *Message) AddOldestPredecessor(predecessor *Message) {
	tail := self.OldestPredecessor()
	tail.Predecessor = predecessor
	self.oldestPredecessor = predecessor.OldestPredecessor()
	for p := predecessor; p != nil; p = p.Predecessor {
		p.Parent = self.Parent
	}
}

// the child and its predecessors, oldest first
func (self *Message) Children() []*Message {
	return self.Child.chain()
}

// the predecessor chain oldest first, ending with self
func (self *Message) chain() []*Message {
	chain := []*Message{}
	for m := self; m != nil; m = m.Predecessor {
		chain = append(chain, m)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// the newest leaf following child pointers
func (self *Message) Leaf() *Message {
	leaf := self
	for leaf.Child != nil {
		leaf = leaf.Child
	}
	return leaf
}

// visits every node in application order with the resolved group
func (self *Message) Walk(visit func(message *Message, group Group)) {
	self.walk(GroupInherit, visit)
}

func (self *Message) walk(parentGroup Group, visit func(message *Message, group Group)) {
	for _, m := range self.chain() {
		group := m.Group.Resolve(parentGroup)
		visit(m, group)
		if m.Child != nil {
			m.Child.walk(group, visit)
		}
	}
}

func (self *Message) Count() int {
	count := 0
	self.Walk(func(message *Message, group Group) {
		count += 1
	})
	return count
}

// the group of the tree root, used to place the tree on destination queues
func (self *Message) RootGroup() Group {
	return self.Group.Resolve(GroupInherit)
}

// the first explicit priority in application order, else the highest default
// of the facts the tree carries. Ancestor nodes only give context and do not count.
func (self *Message) Priority() Priority {
	if priority := self.explicitPriority(func(tags *MessageTags) Priority {
		return tags.Priority
	}); priority != PriorityDefault {
		return priority
	}
	if priority := self.implicitPriority(); priority != PriorityDefault {
		return priority
	}
	return PriorityNormal
}

// the first explicit bridge priority, else `Priority`
func (self *Message) BridgePriority() Priority {
	if priority := self.explicitPriority(func(tags *MessageTags) Priority {
		return tags.BridgePriority
	}); priority != PriorityDefault {
		return priority
	}
	return self.Priority()
}

func (self *Message) explicitPriority(get func(*MessageTags) Priority) Priority {
	explicit := PriorityDefault
	self.Walk(func(message *Message, group Group) {
		if explicit == PriorityDefault && message.Tags != nil {
			explicit = get(message.Tags)
		}
	})
	return explicit
}

func (self *Message) implicitPriority() Priority {
	implicit := PriorityDefault
	self.Walk(func(message *Message, group Group) {
		if message.Child == nil && message.Body != nil {
			implicit = max(implicit, message.Body.defaultPriority())
		}
	})
	return implicit
}

// the key of the object path a single spine tree describes. Facts about the same
// object share a key whatever their variant, so that a removal meets the queued creation.
// Trees that carry predecessors describe more than one fact and are never merged.
func (self *Message) MergeKey() (string, bool) {
	parts := []string{}
	for m := self; m != nil; m = m.Child {
		if m.Predecessor != nil {
			return "", false
		}
		parts = append(parts, m.TargetId.String())
	}
	return strings.Join(parts, "/"), true
}

// binds the source objects of a tree built on the sending side, so that
// the echo of the message resolves to the same local instance
func (self *Message) AddLocalRefs(table *LocalObjectTable) {
	self.Walk(func(message *Message, group Group) {
		if message.Target != nil && !message.Target.Remote() {
			table.AddLocalRef(message.Target)
		}
	})
}

func (self *Message) String() string {
	var sb strings.Builder
	var write func(m *Message, depth int)
	write = func(m *Message, depth int) {
		for _, c := range m.chain() {
			sb.WriteString(strings.Repeat("  ", depth))
			sb.WriteString(fmt.Sprintf("%s %s", c.ClassTag(), c.TargetId))
			if !c.Group.IsInherit() {
				sb.WriteString(fmt.Sprintf(" group=%s", c.Group))
			}
			sb.WriteString("\n")
			if c.Child != nil {
				write(c.Child, depth+1)
			}
		}
	}
	write(self, 0)
	return sb.String()
}
