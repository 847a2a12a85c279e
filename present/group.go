package present

import (
	"fmt"

	"github.com/bringyour/classroom/present/model"
)

type GroupKind int

const (
	// take the group of the enclosing message
	GroupKindInherit GroupKind = iota
	GroupKindAllParticipant
	// visible to graders and the board: instructors and public displays
	GroupKindSubmissions
	GroupKindAllInstructor
	GroupKindSingleton
)

// comparable
// a destination filter. Immutable once attached to a message.
type Group struct {
	Kind GroupKind
	// set for `GroupKindSingleton`
	ParticipantId model.Id
}

var (
	GroupInherit        = Group{Kind: GroupKindInherit}
	GroupAllParticipant = Group{Kind: GroupKindAllParticipant}
	GroupSubmissions    = Group{Kind: GroupKindSubmissions}
	GroupAllInstructor  = Group{Kind: GroupKindAllInstructor}
)

func GroupSingleton(participantId model.Id) Group {
	return Group{
		Kind:          GroupKindSingleton,
		ParticipantId: participantId,
	}
}

func (self Group) IsInherit() bool {
	return self.Kind == GroupKindInherit
}

// resolves an inherited group against the enclosing group
func (self Group) Resolve(parent Group) Group {
	if self.IsInherit() {
		if parent.IsInherit() {
			return GroupAllParticipant
		}
		return parent
	}
	return self
}

func (self Group) String() string {
	switch self.Kind {
	case GroupKindInherit:
		return "inherit"
	case GroupKindAllParticipant:
		return "all"
	case GroupKindSubmissions:
		return "submissions"
	case GroupKindAllInstructor:
		return "instructors"
	case GroupKindSingleton:
		return fmt.Sprintf("singleton(%s)", self.ParticipantId)
	default:
		return fmt.Sprintf("group(%d)", int(self.Kind))
	}
}

// pure function of the group and the participant
func Matches(group Group, participant model.Participant) bool {
	switch group.Kind {
	case GroupKindInherit, GroupKindAllParticipant:
		return true
	case GroupKindAllInstructor:
		return participant.Role == model.RoleInstructor
	case GroupKindSubmissions:
		switch participant.Role {
		case model.RoleInstructor, model.RolePublicDisplay:
			return true
		default:
			return false
		}
	case GroupKindSingleton:
		return group.ParticipantId == participant.Id
	default:
		return false
	}
}

// receive side filter. A participant always accepts the echo of its own messages,
// which is how a submitter sees its own submission.
func Accepts(group Group, receiver model.Participant, senderId model.Id) bool {
	if senderId == receiver.Id && !senderId.IsZero() {
		return true
	}
	return Matches(group, receiver)
}

// sender side filter. True if some fact the tree carries would be applied by the
// participant, that is, a childless node whose whole ancestor path matches.
func Reaches(message *Message, participant model.Participant) bool {
	return reaches(message, GroupInherit, participant)
}

func reaches(message *Message, parentGroup Group, participant model.Participant) bool {
	for _, m := range message.chain() {
		group := m.Group.Resolve(parentGroup)
		if !Matches(group, participant) {
			continue
		}
		if m.Child == nil || reaches(m.Child, group, participant) {
			return true
		}
	}
	return false
}
