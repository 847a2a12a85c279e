package present

import (
	"github.com/bringyour/classroom/present/model"
)

func init() {
	registerMessageBody(ClassTagSlideInformation, func() MessageBody {
		return &SlideInformation{}
	})
	registerMessageBody(ClassTagStudentSubmissionSlideInformation, func() MessageBody {
		return &StudentSubmissionSlideInformation{}
	})
	registerMessageBody(ClassTagSlideDeleted, func() MessageBody {
		return &SlideDeleted{}
	})
	registerMessageBody(ClassTagSubmissionStatus, func() MessageBody {
		return &SubmissionStatus{}
	})
}

const (
	fieldSlideTitle           = firstVariantField
	fieldSlideBounds          = firstVariantField + 1
	fieldSlideZoom            = firstVariantField + 2
	fieldSlideBackgroundColor = firstVariantField + 3
	fieldSlideSubmissionId    = firstVariantField + 4
	fieldSlideOwnerId         = firstVariantField + 5
)

type SlideInformation struct {
	Title  string
	Bounds model.Rectangle
	Zoom   float32
	// nil inherits the deck background
	BackgroundColor *model.Color
}

// a student submission slide is sent with `NewStudentSubmissionSlideInformationMessage`
func NewSlideInformationMessage(slide *model.SlideModel) *Message {
	state := slide.Snapshot()
	message := NewMessage(slide.Id(), &SlideInformation{
		Title:           state.Title,
		Bounds:          state.Bounds,
		Zoom:            state.Zoom,
		BackgroundColor: state.BackgroundColor,
	})
	message.Target = slide
	return message
}

func (self *SlideInformation) ClassTag() ClassTag {
	return ClassTagSlideInformation
}

func (self *SlideInformation) appendFields(b []byte) []byte {
	return appendSlideFields(b, self.Title, self.Bounds, self.Zoom, self.BackgroundColor)
}

func (self *SlideInformation) consumeField(f *field) (err error) {
	switch f.num {
	case fieldSlideTitle:
		self.Title, err = f.Text()
	case fieldSlideBounds:
		self.Bounds, err = f.Rectangle()
	case fieldSlideZoom:
		self.Zoom, err = f.Float32()
	case fieldSlideBackgroundColor:
		self.BackgroundColor, err = consumeOptionalColorField(f)
	}
	return
}

func (self *SlideInformation) updateTarget(context *receiveContext, message *Message) bool {
	return applySlide(context, message, func(state *model.SlideState) {
		state.Title = self.Title
		state.Bounds = self.Bounds
		state.Zoom = self.Zoom
		state.BackgroundColor = self.BackgroundColor
	})
}

func (self *SlideInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *SlideInformation) defaultPriority() Priority {
	return PriorityNormal
}

// a slide a student submitted to the instructor
type StudentSubmissionSlideInformation struct {
	Title           string
	Bounds          model.Rectangle
	Zoom            float32
	BackgroundColor *model.Color
	SubmissionId    model.Id
	OwnerId         model.Id
}

func NewStudentSubmissionSlideInformationMessage(slide *model.SlideModel) *Message {
	state := slide.Snapshot()
	message := NewMessage(slide.Id(), &StudentSubmissionSlideInformation{
		Title:           state.Title,
		Bounds:          state.Bounds,
		Zoom:            state.Zoom,
		BackgroundColor: state.BackgroundColor,
		SubmissionId:    state.SubmissionId,
		OwnerId:         state.OwnerId,
	})
	message.Target = slide
	return message
}

func (self *StudentSubmissionSlideInformation) ClassTag() ClassTag {
	return ClassTagStudentSubmissionSlideInformation
}

func (self *StudentSubmissionSlideInformation) appendFields(b []byte) []byte {
	b = appendSlideFields(b, self.Title, self.Bounds, self.Zoom, self.BackgroundColor)
	b = appendIdField(b, fieldSlideSubmissionId, self.SubmissionId)
	b = appendIdField(b, fieldSlideOwnerId, self.OwnerId)
	return b
}

func (self *StudentSubmissionSlideInformation) consumeField(f *field) (err error) {
	switch f.num {
	case fieldSlideTitle:
		self.Title, err = f.Text()
	case fieldSlideBounds:
		self.Bounds, err = f.Rectangle()
	case fieldSlideZoom:
		self.Zoom, err = f.Float32()
	case fieldSlideBackgroundColor:
		self.BackgroundColor, err = consumeOptionalColorField(f)
	case fieldSlideSubmissionId:
		self.SubmissionId, err = f.Id()
	case fieldSlideOwnerId:
		self.OwnerId, err = f.Id()
	}
	return
}

func (self *StudentSubmissionSlideInformation) updateTarget(context *receiveContext, message *Message) bool {
	return applySlide(context, message, func(state *model.SlideState) {
		state.Title = self.Title
		state.Bounds = self.Bounds
		state.Zoom = self.Zoom
		state.BackgroundColor = self.BackgroundColor
		state.SubmissionId = self.SubmissionId
		state.OwnerId = self.OwnerId
	})
}

// distinct submissions are never merged, even when they share a target
func (self *StudentSubmissionSlideInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeKeepBothInOrder, nil
}

func (self *StudentSubmissionSlideInformation) defaultPriority() Priority {
	return PriorityNormal
}

func appendSlideFields(b []byte, title string, bounds model.Rectangle, zoom float32, backgroundColor *model.Color) []byte {
	b = appendStringField(b, fieldSlideTitle, title)
	b = appendRectangleField(b, fieldSlideBounds, bounds)
	b = appendFloat32Field(b, fieldSlideZoom, zoom)
	b = appendOptionalColorField(b, fieldSlideBackgroundColor, backgroundColor)
	return b
}

// resolves the slide under the enclosing deck, updates it and attaches it
func applySlide(context *receiveContext, message *Message, update func(*model.SlideState)) bool {
	deck, ok := parentTarget[*model.DeckModel](context)
	if !ok {
		return false
	}
	wrapper := contextOnly(context, message)
	slide, ok := resolveTarget(context, message, func() *model.SlideModel {
		return model.NewSlideModel(message.TargetId, model.SlideState{})
	})
	if !ok {
		return false
	}
	if !slide.Remote() || wrapper {
		return true
	}
	slide.Update(update)
	deck.Slides().Add(slide)
	return true
}

type SlideDeleted struct {
}

func NewSlideDeletedMessage(slide *model.SlideModel) *Message {
	message := NewMessage(slide.Id(), &SlideDeleted{})
	message.Target = slide
	return message
}

func (self *SlideDeleted) ClassTag() ClassTag {
	return ClassTagSlideDeleted
}

func (self *SlideDeleted) appendFields(b []byte) []byte {
	return b
}

func (self *SlideDeleted) consumeField(f *field) error {
	return nil
}

func (self *SlideDeleted) updateTarget(context *receiveContext, message *Message) bool {
	deck, ok := parentTarget[*model.DeckModel](context)
	if !ok {
		return false
	}
	slide, ok := resolveTarget[*model.SlideModel](context, message, nil)
	if !ok || !slide.Remote() {
		return false
	}
	deck.Slides().Remove(slide)
	return false
}

func (self *SlideDeleted) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *SlideDeleted) defaultPriority() Priority {
	return PriorityNormal
}

// the instructor acknowledges a submission back to the submitter.
// The target id is the submission id.
type SubmissionStatus struct {
	Status model.SubmissionStatus
}

func NewSubmissionStatusMessage(submissionId model.Id, status model.SubmissionStatus) *Message {
	return NewMessage(submissionId, &SubmissionStatus{
		Status: status,
	})
}

func (self *SubmissionStatus) ClassTag() ClassTag {
	return ClassTagSubmissionStatus
}

func (self *SubmissionStatus) appendFields(b []byte) []byte {
	return appendVarintField(b, firstVariantField, uint64(self.Status))
}

func (self *SubmissionStatus) consumeField(f *field) (err error) {
	switch f.num {
	case firstVariantField:
		var v uint32
		v, err = f.Uint32()
		self.Status = model.SubmissionStatus(v)
	}
	return
}

func (self *SubmissionStatus) updateTarget(context *receiveContext, message *Message) bool {
	context.receiver.submissionStatus.SetStatus(message.TargetId, self.Status)
	return false
}

func (self *SubmissionStatus) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeKeepBothInOrder, nil
}

func (self *SubmissionStatus) defaultPriority() Priority {
	return PriorityNormal
}
