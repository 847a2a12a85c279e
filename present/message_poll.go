package present

import (
	"golang.org/x/exp/slices"

	"github.com/bringyour/classroom/present/model"
)

func init() {
	registerMessageBody(ClassTagQuickPollInformation, func() MessageBody {
		return &QuickPollInformation{}
	})
	registerMessageBody(ClassTagQuickPollResultInformation, func() MessageBody {
		return &QuickPollResultInformation{}
	})
}

// nested under the presentation
type QuickPollInformation struct {
	Style   model.QuickPollStyle
	Choices []string
	Enabled bool
	SlideId model.Id
}

func NewQuickPollInformationMessage(quickPoll *model.QuickPollModel) *Message {
	state := quickPoll.Snapshot()
	message := NewMessage(quickPoll.Id(), &QuickPollInformation{
		Style:   state.Style,
		Choices: state.Choices,
		Enabled: state.Enabled,
		SlideId: state.SlideId,
	})
	message.Target = quickPoll
	return message
}

func (self *QuickPollInformation) ClassTag() ClassTag {
	return ClassTagQuickPollInformation
}

func (self *QuickPollInformation) appendFields(b []byte) []byte {
	b = appendVarintField(b, firstVariantField, uint64(self.Style))
	for _, choice := range self.Choices {
		b = appendStringField(b, firstVariantField+1, choice)
	}
	b = appendBoolField(b, firstVariantField+2, self.Enabled)
	b = appendIdField(b, firstVariantField+3, self.SlideId)
	return b
}

func (self *QuickPollInformation) consumeField(f *field) (err error) {
	switch f.num {
	case firstVariantField:
		var v uint32
		v, err = f.Uint32()
		self.Style = model.QuickPollStyle(v)
	case firstVariantField + 1:
		var choice string
		choice, err = f.Text()
		self.Choices = append(self.Choices, choice)
	case firstVariantField + 2:
		self.Enabled, err = f.Bool()
	case firstVariantField + 3:
		self.SlideId, err = f.Id()
	}
	return
}

func (self *QuickPollInformation) updateTarget(context *receiveContext, message *Message) bool {
	presentation, ok := parentTarget[*model.PresentationModel](context)
	if !ok {
		return false
	}
	wrapper := contextOnly(context, message)
	quickPoll, ok := resolveTarget(context, message, func() *model.QuickPollModel {
		return model.NewQuickPollModel(message.TargetId, model.QuickPollState{
			Style: self.Style,
		})
	})
	if !ok {
		return false
	}
	if !quickPoll.Remote() || wrapper {
		return true
	}
	quickPoll.Update(func(state *model.QuickPollState) {
		state.Style = self.Style
		state.Choices = slices.Clone(self.Choices)
		if state.Choices == nil {
			state.Choices = []string{}
		}
		state.Enabled = self.Enabled
		state.SlideId = self.SlideId
	})
	presentation.QuickPolls().Add(quickPoll)
	return true
}

func (self *QuickPollInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *QuickPollInformation) defaultPriority() Priority {
	return PriorityHigher
}

// one participant's vote, nested under its quick poll
type QuickPollResultInformation struct {
	OwnerId model.Id
	Choice  string
}

func NewQuickPollResultInformationMessage(result *model.QuickPollResultModel) *Message {
	state := result.Snapshot()
	message := NewMessage(result.Id(), &QuickPollResultInformation{
		OwnerId: state.OwnerId,
		Choice:  state.Choice,
	})
	message.Target = result
	return message
}

func (self *QuickPollResultInformation) ClassTag() ClassTag {
	return ClassTagQuickPollResultInformation
}

func (self *QuickPollResultInformation) appendFields(b []byte) []byte {
	b = appendIdField(b, firstVariantField, self.OwnerId)
	b = appendStringField(b, firstVariantField+1, self.Choice)
	return b
}

func (self *QuickPollResultInformation) consumeField(f *field) (err error) {
	switch f.num {
	case firstVariantField:
		self.OwnerId, err = f.Id()
	case firstVariantField + 1:
		self.Choice, err = f.Text()
	}
	return
}

func (self *QuickPollResultInformation) updateTarget(context *receiveContext, message *Message) bool {
	quickPoll, ok := parentTarget[*model.QuickPollModel](context)
	if !ok {
		return false
	}
	wrapper := contextOnly(context, message)
	result, ok := resolveTarget(context, message, func() *model.QuickPollResultModel {
		return model.NewQuickPollResultModel(message.TargetId, model.QuickPollResultState{})
	})
	if !ok {
		return false
	}
	if !result.Remote() || wrapper {
		return true
	}
	result.Update(func(state *model.QuickPollResultState) {
		state.OwnerId = self.OwnerId
		state.Choice = self.Choice
	})
	quickPoll.Results().Add(result)
	return true
}

// votes are never merged, so each vote lands in the order it was cast
func (self *QuickPollResultInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeKeepBothInOrder, nil
}

func (self *QuickPollResultInformation) defaultPriority() Priority {
	return PriorityNormal
}
