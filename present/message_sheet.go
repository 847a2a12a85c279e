package present

import (
	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

func init() {
	registerMessageBody(ClassTagInkSheetInformation, func() MessageBody {
		return &InkSheetInformation{}
	})
	registerMessageBody(ClassTagTextSheetInformation, func() MessageBody {
		return &TextSheetInformation{}
	})
	registerMessageBody(ClassTagImageSheetInformation, func() MessageBody {
		return &ImageSheetInformation{}
	})
	registerMessageBody(ClassTagSheetRemoved, func() MessageBody {
		return &SheetRemoved{}
	})
}

const (
	fieldSheetBounds           = firstVariantField
	fieldSheetSheetDisposition = firstVariantField + 1
	// variant fields of the concrete sheet follow
	fieldSheetText     = firstVariantField + 2
	fieldSheetColor    = firstVariantField + 3
	fieldSheetFontSize = firstVariantField + 4
	fieldSheetMimeType = firstVariantField + 2
	fieldSheetImage    = firstVariantField + 3
)

// sheet kind -> information message.
// Services dispatch on the kind carried by the sheet rather than on its type.
var sheetInformationBuilders = map[model.Kind]func(model.Sheet) *Message{
	model.KindInkSheet: func(sheet model.Sheet) *Message {
		return NewInkSheetInformationMessage(sheet.(*model.InkSheetModel))
	},
	model.KindTextSheet: func(sheet model.Sheet) *Message {
		return NewTextSheetInformationMessage(sheet.(*model.TextSheetModel))
	},
	model.KindImageSheet: func(sheet model.Sheet) *Message {
		return NewImageSheetInformationMessage(sheet.(*model.ImageSheetModel))
	},
}

// returns false for a sheet kind that is not replicated
func NewSheetInformationMessage(sheet model.Sheet) (*Message, bool) {
	builder, ok := sheetInformationBuilders[sheet.Kind()]
	if !ok {
		glog.V(1).Infof("[msg]no information message for sheet kind %s\n", sheet.Kind())
		return nil, false
	}
	return builder(sheet), true
}

func appendSheetFields(b []byte, state model.SheetState) []byte {
	b = appendRectangleField(b, fieldSheetBounds, state.Bounds)
	b = appendVarintField(b, fieldSheetSheetDisposition, uint64(state.SheetDisposition))
	return b
}

// returns true if the field was a common sheet field
func consumeSheetField(f *field, state *model.SheetState) (bool, error) {
	switch f.num {
	case fieldSheetBounds:
		bounds, err := f.Rectangle()
		state.Bounds = bounds
		return true, err
	case fieldSheetSheetDisposition:
		v, err := f.Uint32()
		state.SheetDisposition = model.SheetDisposition(v)
		return true, err
	default:
		return false, nil
	}
}

// resolves the sheet under the enclosing slide, updates it and attaches it
func applySheet[T model.Sheet](context *receiveContext, message *Message, sheetState model.SheetState, create func() T, update func(T)) bool {
	slide, ok := parentTarget[*model.SlideModel](context)
	if !ok {
		return false
	}
	wrapper := contextOnly(context, message)
	sheet, ok := resolveTarget(context, message, create)
	if !ok {
		return false
	}
	if !sheet.Remote() || wrapper {
		return true
	}
	sheet.UpdateSheet(func(state *model.SheetState) {
		*state = sheetState
	})
	if update != nil {
		update(sheet)
	}
	slide.Sheets().Add(sheet)
	return true
}

type InkSheetInformation struct {
	SheetState model.SheetState
}

func NewInkSheetInformationMessage(inkSheet *model.InkSheetModel) *Message {
	message := NewMessage(inkSheet.Id(), &InkSheetInformation{
		SheetState: inkSheet.SheetSnapshot(),
	})
	message.Target = inkSheet
	return message
}

func (self *InkSheetInformation) ClassTag() ClassTag {
	return ClassTagInkSheetInformation
}

func (self *InkSheetInformation) appendFields(b []byte) []byte {
	return appendSheetFields(b, self.SheetState)
}

func (self *InkSheetInformation) consumeField(f *field) error {
	_, err := consumeSheetField(f, &self.SheetState)
	return err
}

func (self *InkSheetInformation) updateTarget(context *receiveContext, message *Message) bool {
	return applySheet(context, message, self.SheetState, func() *model.InkSheetModel {
		return model.NewInkSheetModel(message.TargetId, self.SheetState)
	}, nil)
}

func (self *InkSheetInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *InkSheetInformation) defaultPriority() Priority {
	return PriorityNormal
}

type TextSheetInformation struct {
	SheetState model.SheetState
	Text       string
	Color      model.Color
	FontSize   float32
}

func NewTextSheetInformationMessage(textSheet *model.TextSheetModel) *Message {
	state := textSheet.Snapshot()
	message := NewMessage(textSheet.Id(), &TextSheetInformation{
		SheetState: textSheet.SheetSnapshot(),
		Text:       state.Text,
		Color:      state.Color,
		FontSize:   state.FontSize,
	})
	message.Target = textSheet
	return message
}

func (self *TextSheetInformation) ClassTag() ClassTag {
	return ClassTagTextSheetInformation
}

func (self *TextSheetInformation) appendFields(b []byte) []byte {
	b = appendSheetFields(b, self.SheetState)
	b = appendStringField(b, fieldSheetText, self.Text)
	b = appendColorField(b, fieldSheetColor, self.Color)
	b = appendFloat32Field(b, fieldSheetFontSize, self.FontSize)
	return b
}

func (self *TextSheetInformation) consumeField(f *field) (err error) {
	if ok, err := consumeSheetField(f, &self.SheetState); ok {
		return err
	}
	switch f.num {
	case fieldSheetText:
		self.Text, err = f.Text()
	case fieldSheetColor:
		self.Color, err = f.Color()
	case fieldSheetFontSize:
		self.FontSize, err = f.Float32()
	}
	return
}

func (self *TextSheetInformation) updateTarget(context *receiveContext, message *Message) bool {
	return applySheet(context, message, self.SheetState, func() *model.TextSheetModel {
		return model.NewTextSheetModel(message.TargetId, self.SheetState, model.TextSheetState{})
	}, func(textSheet *model.TextSheetModel) {
		textSheet.Update(func(state *model.TextSheetState) {
			state.Text = self.Text
			state.Color = self.Color
			state.FontSize = self.FontSize
		})
	})
}

func (self *TextSheetInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *TextSheetInformation) defaultPriority() Priority {
	return PriorityNormal
}

// the image is sent whole. Large images go at low priority so that
// interactive traffic is not blocked behind them.
type ImageSheetInformation struct {
	SheetState model.SheetState
	MimeType   string
	Image      []byte
}

func NewImageSheetInformationMessage(imageSheet *model.ImageSheetModel) *Message {
	state := imageSheet.Snapshot()
	message := NewMessage(imageSheet.Id(), &ImageSheetInformation{
		SheetState: imageSheet.SheetSnapshot(),
		MimeType:   state.MimeType,
		Image:      state.Image,
	})
	message.Target = imageSheet
	return message
}

func (self *ImageSheetInformation) ClassTag() ClassTag {
	return ClassTagImageSheetInformation
}

func (self *ImageSheetInformation) appendFields(b []byte) []byte {
	b = appendSheetFields(b, self.SheetState)
	b = appendStringField(b, fieldSheetMimeType, self.MimeType)
	b = appendBytesField(b, fieldSheetImage, self.Image)
	return b
}

func (self *ImageSheetInformation) consumeField(f *field) (err error) {
	if ok, err := consumeSheetField(f, &self.SheetState); ok {
		return err
	}
	switch f.num {
	case fieldSheetMimeType:
		self.MimeType, err = f.Text()
	case fieldSheetImage:
		self.Image, err = f.Bytes()
	}
	return
}

func (self *ImageSheetInformation) updateTarget(context *receiveContext, message *Message) bool {
	return applySheet(context, message, self.SheetState, func() *model.ImageSheetModel {
		return model.NewImageSheetModel(message.TargetId, self.SheetState, model.ImageSheetState{})
	}, func(imageSheet *model.ImageSheetModel) {
		imageSheet.SetImage(self.MimeType, self.Image)
	})
}

func (self *ImageSheetInformation) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *ImageSheetInformation) defaultPriority() Priority {
	if self.SheetState.SheetDisposition == model.SheetDispositionBackground {
		return PriorityLowest
	}
	return PriorityLow
}

type SheetRemoved struct {
}

func NewSheetRemovedMessage(sheet model.Sheet) *Message {
	message := NewMessage(sheet.Id(), &SheetRemoved{})
	message.Target = sheet
	return message
}

func (self *SheetRemoved) ClassTag() ClassTag {
	return ClassTagSheetRemoved
}

func (self *SheetRemoved) appendFields(b []byte) []byte {
	return b
}

func (self *SheetRemoved) consumeField(f *field) error {
	return nil
}

func (self *SheetRemoved) updateTarget(context *receiveContext, message *Message) bool {
	slide, ok := parentTarget[*model.SlideModel](context)
	if !ok {
		return false
	}
	sheet, ok := resolveTarget[model.Sheet](context, message, nil)
	if !ok || !sheet.Remote() {
		return false
	}
	slide.Sheets().Remove(sheet)
	return false
}

func (self *SheetRemoved) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	return MergeDiscardOther, nil
}

func (self *SheetRemoved) defaultPriority() Priority {
	return PriorityNormal
}
