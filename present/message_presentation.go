package present

import (
	"github.com/bringyour/classroom/present/model"
)

func init() {
	registerMessageBody(ClassTagPresentationInformation, func() MessageBody {
		return &PresentationInformation{}
	})
	registerMessageBody(ClassTagDeckInformation, func() MessageBody {
		return &DeckInformation{}
	})
	registerMessageBody(ClassTagDeckRemoved, func() MessageBody {
		return &DeckRemoved{}
	})
}

// the root of every tree about presentation content
type PresentationInformation struct {
	HumanName string
	OwnerId   model.Id
}

func NewPresentationInformationMessage(presentation *model.PresentationModel) *Message {
	state := presentation.Snapshot()
	message := NewMessage(presentation.Id(), &PresentationInformation{
		HumanName: state.HumanName,
		OwnerId:   state.OwnerId,
	})
	message.Target = presentation
	return message
}

func (self *PresentationInformation) ClassTag() ClassTag {
	return ClassTagPresentationInformation
}

func (self *PresentationInformation) appendFields(b []byte) []byte {
	b = appendStringField(b, firstVariantField, self.HumanName)
	b = appendIdField(b, firstVariantField+1, self.OwnerId)
	return b
}

func (self *PresentationInformation) consumeField(f *field) (err error) {
	switch f.num {
	case firstVariantField:
		self.HumanName, err = f.Text()
	case firstVariantField + 1:
		self.OwnerId, err = f.Id()
	}
	return
}

func (self *PresentationInformation) updateTarget(context *receiveContext, message *Message) bool {
	wrapper := contextOnly(context, message)
	presentation, ok := resolveTarget(context, message, func() *model.PresentationModel {
		return model.NewPresentationModel(message.TargetId, model.PresentationState{})
	})
	if !ok {
		return false
	}
	if !presentation.Remote() || wrapper {
		return true
	}
	presentation.Update(func(state *model.PresentationState) {
		state.HumanName = self.HumanName
		state.OwnerId = self.OwnerId
	})
	context.receiver.classroom.Presentations().Add(presentation)
	return true
}

func (self *PresentationInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *PresentationInformation) defaultPriority() Priority {
	return PriorityHigher
}

type DeckInformation struct {
	HumanName       string
	DeckDisposition model.DeckDisposition
	BackgroundColor model.Color
}

func NewDeckInformationMessage(deck *model.DeckModel) *Message {
	state := deck.Snapshot()
	message := NewMessage(deck.Id(), &DeckInformation{
		HumanName:       state.HumanName,
		DeckDisposition: state.DeckDisposition,
		BackgroundColor: state.BackgroundColor,
	})
	message.Target = deck
	return message
}

func (self *DeckInformation) ClassTag() ClassTag {
	return ClassTagDeckInformation
}

func (self *DeckInformation) appendFields(b []byte) []byte {
	b = appendStringField(b, firstVariantField, self.HumanName)
	b = appendVarintField(b, firstVariantField+1, uint64(self.DeckDisposition))
	b = appendColorField(b, firstVariantField+2, self.BackgroundColor)
	return b
}

func (self *DeckInformation) consumeField(f *field) (err error) {
	switch f.num {
	case firstVariantField:
		self.HumanName, err = f.Text()
	case firstVariantField + 1:
		var v uint32
		v, err = f.Uint32()
		self.DeckDisposition = model.DeckDisposition(v)
	case firstVariantField + 2:
		self.BackgroundColor, err = f.Color()
	}
	return
}

func (self *DeckInformation) updateTarget(context *receiveContext, message *Message) bool {
	presentation, ok := parentTarget[*model.PresentationModel](context)
	if !ok {
		return false
	}
	wrapper := contextOnly(context, message)
	deck, ok := resolveTarget(context, message, func() *model.DeckModel {
		return model.NewDeckModel(message.TargetId, model.DeckState{})
	})
	if !ok {
		return false
	}
	if !deck.Remote() || wrapper {
		return true
	}
	deck.Update(func(state *model.DeckState) {
		state.HumanName = self.HumanName
		state.DeckDisposition = self.DeckDisposition
		state.BackgroundColor = self.BackgroundColor
	})
	presentation.Decks().Add(deck)
	return true
}

func (self *DeckInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *DeckInformation) defaultPriority() Priority {
	return PriorityHigher
}

// removes the deck from the enclosing presentation
type DeckRemoved struct {
}

func NewDeckRemovedMessage(deck *model.DeckModel) *Message {
	message := NewMessage(deck.Id(), &DeckRemoved{})
	message.Target = deck
	return message
}

func (self *DeckRemoved) ClassTag() ClassTag {
	return ClassTagDeckRemoved
}

func (self *DeckRemoved) appendFields(b []byte) []byte {
	return b
}

func (self *DeckRemoved) consumeField(f *field) error {
	return nil
}

func (self *DeckRemoved) updateTarget(context *receiveContext, message *Message) bool {
	presentation, ok := parentTarget[*model.PresentationModel](context)
	if !ok {
		return false
	}
	deck, ok := resolveTarget[*model.DeckModel](context, message, nil)
	if !ok || !deck.Remote() {
		return false
	}
	presentation.Decks().Remove(deck)
	// notification only
	return false
}

func (self *DeckRemoved) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *DeckRemoved) defaultPriority() Priority {
	return PriorityHigher
}
