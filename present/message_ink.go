package present

import (
	"golang.org/x/exp/slices"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bringyour/classroom/present/model"
)

func init() {
	registerMessageBody(ClassTagInkSheetStrokesAdded, func() MessageBody {
		return &InkSheetStrokesAdded{}
	})
	registerMessageBody(ClassTagInkSheetStrokesDeleting, func() MessageBody {
		return &InkSheetStrokesDeleting{}
	})
	registerMessageBody(ClassTagRealTimeInkPackets, func() MessageBody {
		return &RealTimeInkPackets{}
	})
}

// stroke record fields
const (
	fieldStrokeId  protowire.Number = 1
	fieldStrokeInk protowire.Number = 2
)

// Ink messages are nested under the information message of their ink sheet
// and target the same sheet id.

type StrokeData struct {
	Id  model.Id
	Ink []byte
}

type InkSheetStrokesAdded struct {
	Strokes []StrokeData
}

func NewInkSheetStrokesAddedMessage(inkSheet *model.InkSheetModel, strokes ...*model.Stroke) *Message {
	strokeDatas := []StrokeData{}
	for _, stroke := range strokes {
		strokeDatas = append(strokeDatas, StrokeData{
			Id:  stroke.Id,
			Ink: stroke.Ink,
		})
	}
	message := NewMessage(inkSheet.Id(), &InkSheetStrokesAdded{
		Strokes: strokeDatas,
	})
	message.Target = inkSheet
	return message
}

func (self *InkSheetStrokesAdded) ClassTag() ClassTag {
	return ClassTagInkSheetStrokesAdded
}

func (self *InkSheetStrokesAdded) appendFields(b []byte) []byte {
	for _, stroke := range self.Strokes {
		var sb []byte
		sb = appendIdField(sb, fieldStrokeId, stroke.Id)
		sb = appendBytesField(sb, fieldStrokeInk, stroke.Ink)
		b = appendBytesField(b, firstVariantField, sb)
	}
	return b
}

func (self *InkSheetStrokesAdded) consumeField(f *field) error {
	if f.num != firstVariantField {
		return nil
	}
	if err := f.expect(protowire.BytesType); err != nil {
		return err
	}
	stroke := StrokeData{}
	err := consumeFields(f.bytes, func(f *field) (err error) {
		switch f.num {
		case fieldStrokeId:
			stroke.Id, err = f.Id()
		case fieldStrokeInk:
			stroke.Ink, err = f.Bytes()
		}
		return
	})
	if err != nil {
		return err
	}
	self.Strokes = append(self.Strokes, stroke)
	return nil
}

func (self *InkSheetStrokesAdded) updateTarget(context *receiveContext, message *Message) bool {
	inkSheet, ok := parentTarget[*model.InkSheetModel](context)
	if !ok {
		return false
	}
	if inkSheet.Id() != message.TargetId {
		return false
	}
	message.Target = inkSheet
	if !inkSheet.Remote() {
		return true
	}
	for _, strokeData := range self.Strokes {
		if _, ok := inkSheet.StrokeById(strokeData.Id); ok {
			continue
		}
		inkSheet.Strokes().Add(&model.Stroke{
			Id:  strokeData.Id,
			Ink: strokeData.Ink,
		})
		inkSheet.EndRealTimeStroke(strokeData.Id)
	}
	return true
}

// the queued message absorbs the new strokes
func (self *InkSheetStrokesAdded) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	queued, ok := other.(*InkSheetStrokesAdded)
	if !ok {
		return MergeKeepBothInOrder, nil
	}
	strokes := slices.Clone(queued.Strokes)
	for _, stroke := range self.Strokes {
		if !slices.ContainsFunc(strokes, func(s StrokeData) bool {
			return s.Id == stroke.Id
		}) {
			strokes = append(strokes, stroke)
		}
	}
	return MergeDiscardThis, &InkSheetStrokesAdded{
		Strokes: strokes,
	}
}

func (self *InkSheetStrokesAdded) defaultPriority() Priority {
	return PriorityHigher
}

type InkSheetStrokesDeleting struct {
	StrokeIds []model.Id
}

func NewInkSheetStrokesDeletingMessage(inkSheet *model.InkSheetModel, strokeIds ...model.Id) *Message {
	message := NewMessage(inkSheet.Id(), &InkSheetStrokesDeleting{
		StrokeIds: strokeIds,
	})
	message.Target = inkSheet
	return message
}

func (self *InkSheetStrokesDeleting) ClassTag() ClassTag {
	return ClassTagInkSheetStrokesDeleting
}

func (self *InkSheetStrokesDeleting) appendFields(b []byte) []byte {
	for _, strokeId := range self.StrokeIds {
		b = appendIdField(b, firstVariantField, strokeId)
	}
	return b
}

func (self *InkSheetStrokesDeleting) consumeField(f *field) error {
	if f.num != firstVariantField {
		return nil
	}
	strokeId, err := f.Id()
	if err != nil {
		return err
	}
	self.StrokeIds = append(self.StrokeIds, strokeId)
	return nil
}

func (self *InkSheetStrokesDeleting) updateTarget(context *receiveContext, message *Message) bool {
	inkSheet, ok := parentTarget[*model.InkSheetModel](context)
	if !ok {
		return false
	}
	if inkSheet.Id() != message.TargetId {
		return false
	}
	message.Target = inkSheet
	if !inkSheet.Remote() {
		return true
	}
	for _, strokeId := range self.StrokeIds {
		if stroke, ok := inkSheet.StrokeById(strokeId); ok {
			inkSheet.Strokes().Remove(stroke)
		}
	}
	return true
}

func (self *InkSheetStrokesDeleting) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	queued, ok := other.(*InkSheetStrokesDeleting)
	if !ok {
		return MergeKeepBothInOrder, nil
	}
	strokeIds := slices.Clone(queued.StrokeIds)
	for _, strokeId := range self.StrokeIds {
		if !slices.Contains(strokeIds, strokeId) {
			strokeIds = append(strokeIds, strokeId)
		}
	}
	return MergeDiscardThis, &InkSheetStrokesDeleting{
		StrokeIds: strokeIds,
	}
}

func (self *InkSheetStrokesDeleting) defaultPriority() Priority {
	return PriorityHigher
}

// live pen packets for a stroke still being drawn
type RealTimeInkPackets struct {
	StrokeId model.Id
	Packets  []int32
}

func NewRealTimeInkPacketsMessage(inkSheet *model.InkSheetModel, strokeId model.Id, packets []int32) *Message {
	message := NewMessage(inkSheet.Id(), &RealTimeInkPackets{
		StrokeId: strokeId,
		Packets:  slices.Clone(packets),
	})
	message.Target = inkSheet
	return message
}

func (self *RealTimeInkPackets) ClassTag() ClassTag {
	return ClassTagRealTimeInkPackets
}

func (self *RealTimeInkPackets) appendFields(b []byte) []byte {
	b = appendIdField(b, firstVariantField, self.StrokeId)
	b = appendInt32sField(b, firstVariantField+1, self.Packets)
	return b
}

func (self *RealTimeInkPackets) consumeField(f *field) (err error) {
	switch f.num {
	case firstVariantField:
		self.StrokeId, err = f.Id()
	case firstVariantField + 1:
		self.Packets, err = f.Int32s()
	}
	return
}

func (self *RealTimeInkPackets) updateTarget(context *receiveContext, message *Message) bool {
	inkSheet, ok := parentTarget[*model.InkSheetModel](context)
	if !ok {
		return false
	}
	if inkSheet.Id() != message.TargetId || !inkSheet.Remote() {
		return false
	}
	if _, ok := inkSheet.StrokeById(self.StrokeId); ok {
		// already committed
		return false
	}
	inkSheet.AppendRealTimePackets(self.StrokeId, self.Packets)
	return false
}

// packets of the same stroke are concatenated onto the queued message
func (self *RealTimeInkPackets) mergeInto(other MessageBody) (MergeResult, MessageBody) {
	queued, ok := other.(*RealTimeInkPackets)
	if !ok || queued.StrokeId != self.StrokeId {
		return MergeKeepBothInOrder, nil
	}
	packets := make([]int32, 0, len(queued.Packets)+len(self.Packets))
	packets = append(packets, queued.Packets...)
	packets = append(packets, self.Packets...)
	return MergeDiscardThis, &RealTimeInkPackets{
		StrokeId: self.StrokeId,
		Packets:  packets,
	}
}

func (self *RealTimeInkPackets) defaultPriority() Priority {
	return PriorityRealTime
}
