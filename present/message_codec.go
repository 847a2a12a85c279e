package present

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/golang/glog"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bringyour/classroom/present/model"
)

// message node record fields
const (
	fieldTargetId protowire.Number = 3
	fieldGroup    protowire.Number = 4
	fieldTags     protowire.Number = 5
	fieldChild    protowire.Number = 6
	// repeated, oldest first
	fieldPredecessors protowire.Number = 7
)

// group and tags record fields
const (
	fieldGroupKind          protowire.Number = 16
	fieldGroupParticipantId protowire.Number = 17

	fieldTagsSlideId        protowire.Number = 16
	fieldTagsPriority       protowire.Number = 17
	fieldTagsBridgePriority protowire.Number = 18
)

// frame fields
const (
	fieldFrameMessage protowire.Number = 1
)

// bounds the containment depth of a decoded tree
const MaxMessageDepth = 32

// class tag -> empty body. The decode dispatch table.
var messageBodyConstructors = map[ClassTag]func() MessageBody{}

func registerMessageBody(classTag ClassTag, constructor func() MessageBody) {
	if _, ok := messageBodyConstructors[classTag]; ok {
		panic(fmt.Errorf("Duplicate class tag: %s", classTag))
	}
	messageBodyConstructors[classTag] = constructor
}

func EncodeMessage(message *Message) ([]byte, error) {
	if err := validateForEncode(message, 0); err != nil {
		return nil, err
	}
	return recordBytes(message.ClassTag(), func(record []byte) []byte {
		return appendMessageFields(record, message, true)
	}), nil
}

func DecodeMessage(b []byte) (*Message, error) {
	message, err := decodeMessageRecord(b, nil, 0, true)
	if err != nil {
		return nil, err
	}
	if message == nil {
		return nil, fmt.Errorf("%w null message", ErrMalformed)
	}
	return message, nil
}

// a frame carries one or more independent trees
func EncodeFrame(messages ...*Message) ([]byte, error) {
	var b []byte
	for _, message := range messages {
		if err := validateForEncode(message, 0); err != nil {
			return nil, err
		}
		b = appendMessage(b, fieldFrameMessage, message)
	}
	return b, nil
}

// decodes every tree in the frame. A malformed tree is dropped and
// reported in `treeErrs` without affecting the other trees.
// `err` is set only when the frame itself cannot be split into trees.
func DecodeFrame(b []byte) (messages []*Message, treeErrs []error, err error) {
	err = consumeFields(b, func(f *field) error {
		if f.num != fieldFrameMessage || f.typ != protowire.BytesType {
			// unknown frame field
			return nil
		}
		message, treeErr := DecodeMessage(f.bytes)
		if treeErr != nil {
			glog.Infof("[codec]drop tree = %s\n", treeErr)
			treeErrs = append(treeErrs, treeErr)
			return nil
		}
		messages = append(messages, message)
		return nil
	})
	return
}

func validateForEncode(message *Message, depth int) error {
	if message == nil {
		return fmt.Errorf("Cannot encode a nil message.")
	}
	if MaxMessageDepth <= depth {
		return fmt.Errorf("Message tree exceeds max depth %d.", MaxMessageDepth)
	}
	for _, m := range message.chain() {
		if m.Body == nil {
			return fmt.Errorf("Message %s has no body.", m.TargetId)
		}
		if m.Child != nil {
			if err := validateForEncode(m.Child, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func appendMessage(b []byte, num protowire.Number, message *Message) []byte {
	return appendRecord(b, num, message.ClassTag(), func(record []byte) []byte {
		return appendMessageFields(record, message, true)
	})
}

func appendMessageFields(b []byte, message *Message, withPredecessors bool) []byte {
	b = appendIdField(b, fieldTargetId, message.TargetId)
	if !message.Group.IsInherit() {
		b = appendRecord(b, fieldGroup, ClassTagGroup, func(record []byte) []byte {
			record = appendVarintField(record, fieldGroupKind, uint64(message.Group.Kind))
			if message.Group.Kind == GroupKindSingleton {
				record = appendIdField(record, fieldGroupParticipantId, message.Group.ParticipantId)
			}
			return record
		})
	}
	if message.Tags != nil {
		b = appendRecord(b, fieldTags, ClassTagTags, func(record []byte) []byte {
			if !message.Tags.SlideId.IsZero() {
				record = appendIdField(record, fieldTagsSlideId, message.Tags.SlideId)
			}
			record = appendVarintField(record, fieldTagsPriority, uint64(message.Tags.Priority))
			record = appendVarintField(record, fieldTagsBridgePriority, uint64(message.Tags.BridgePriority))
			return record
		})
	}
	if message.Child != nil {
		b = appendMessage(b, fieldChild, message.Child)
	}
	if withPredecessors && message.Predecessor != nil {
		// flatten the chain so that depth is bounded by containment only
		chain := message.Predecessor.chain()
		for _, p := range chain {
			b = appendRecord(b, fieldPredecessors, p.ClassTag(), func(record []byte) []byte {
				return appendMessageFields(record, p, false)
			})
		}
	}
	b = message.Body.appendFields(b)
	return b
}

// predecessors are flattened on encode, so a predecessor record never carries its own
func decodeMessageRecord(b []byte, parent *Message, depth int, withPredecessors bool) (*Message, error) {
	if MaxMessageDepth <= depth {
		return nil, fmt.Errorf("%w tree exceeds max depth %d", ErrMalformed, MaxMessageDepth)
	}
	classTag, null, rest, err := consumeRecordHeader(b)
	if err != nil {
		return nil, err
	}
	if null {
		return nil, nil
	}
	constructor, ok := messageBodyConstructors[classTag]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownClassTag, classTag)
	}
	message := NewMessage(model.Id{}, constructor())
	message.Parent = parent

	// oldest first
	predecessors := []*Message{}

	err = consumeFields(rest, func(f *field) error {
		switch f.num {
		case fieldTargetId:
			targetId, err := f.Id()
			if err != nil {
				return err
			}
			message.TargetId = targetId
		case fieldGroup:
			group, err := decodeGroup(f)
			if err != nil {
				return err
			}
			message.Group = group
		case fieldTags:
			tags, err := decodeTags(f)
			if err != nil {
				return err
			}
			message.Tags = tags
		case fieldChild:
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			child, err := decodeMessageRecord(f.bytes, message, depth+1, true)
			if err != nil {
				return err
			}
			message.Child = child
		case fieldPredecessors:
			if !withPredecessors {
				return fmt.Errorf("%w nested predecessors", ErrMalformed)
			}
			if err := f.expect(protowire.BytesType); err != nil {
				return err
			}
			predecessor, err := decodeMessageRecord(f.bytes, parent, depth, false)
			if err != nil {
				return err
			}
			if predecessor != nil {
				predecessors = append(predecessors, predecessor)
			}
		default:
			if firstVariantField <= f.num {
				return message.Body.consumeField(f)
			}
			// unknown header field
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := len(predecessors) - 1; 0 <= i; i -= 1 {
		message.AddOldestPredecessor(predecessors[i])
	}
	return message, nil
}

func decodeGroup(f *field) (Group, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return Group{}, err
	}
	classTag, null, rest, err := consumeRecordHeader(f.bytes)
	if err != nil {
		return Group{}, err
	}
	if classTag != ClassTagGroup {
		return Group{}, fmt.Errorf("%w expected group, found %s", ErrMalformed, classTag)
	}
	group := GroupInherit
	if null {
		return group, nil
	}
	err = consumeFields(rest, func(f *field) error {
		switch f.num {
		case fieldGroupKind:
			kind, err := f.Uint32()
			if err != nil {
				return err
			}
			group.Kind = GroupKind(kind)
		case fieldGroupParticipantId:
			participantId, err := f.Id()
			if err != nil {
				return err
			}
			group.ParticipantId = participantId
		}
		return nil
	})
	return group, err
}

func decodeTags(f *field) (*MessageTags, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	classTag, null, rest, err := consumeRecordHeader(f.bytes)
	if err != nil {
		return nil, err
	}
	if classTag != ClassTagTags {
		return nil, fmt.Errorf("%w expected tags, found %s", ErrMalformed, classTag)
	}
	if null {
		return nil, nil
	}
	tags := &MessageTags{}
	err = consumeFields(rest, func(f *field) error {
		switch f.num {
		case fieldTagsSlideId:
			slideId, err := f.Id()
			if err != nil {
				return err
			}
			tags.SlideId = slideId
		case fieldTagsPriority:
			priority, err := f.Uint32()
			if err != nil {
				return err
			}
			tags.Priority = Priority(priority)
		case fieldTagsBridgePriority:
			priority, err := f.Uint32()
			if err != nil {
				return err
			}
			tags.BridgePriority = Priority(priority)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tags, nil
}

// optional colors are encoded as a record so that nil survives as a null record
func appendOptionalColorField(b []byte, num protowire.Number, color *model.Color) []byte {
	if color == nil {
		return appendNullRecord(b, num, ClassTagColor)
	}
	return appendRecord(b, num, ClassTagColor, func(record []byte) []byte {
		return appendColorField(record, firstVariantField, *color)
	})
}

func consumeOptionalColorField(f *field) (*model.Color, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	classTag, null, rest, err := consumeRecordHeader(f.bytes)
	if err != nil {
		return nil, err
	}
	if classTag != ClassTagColor {
		return nil, fmt.Errorf("%w expected color, found %s", ErrMalformed, classTag)
	}
	if null {
		return nil, nil
	}
	var color *model.Color
	err = consumeFields(rest, func(f *field) error {
		if f.num == firstVariantField {
			c, err := f.Color()
			if err != nil {
				return err
			}
			color = &c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if color == nil {
		return nil, fmt.Errorf("%w color record has no value", ErrMalformed)
	}
	return color, nil
}

// length delimited frames on a byte stream
func WriteDelimitedFrame(w io.Writer, frameBytes []byte) error {
	b := protowire.AppendVarint(nil, uint64(len(frameBytes)))
	b = append(b, frameBytes...)
	_, err := w.Write(b)
	return err
}

func ReadDelimitedFrame(r *bufio.Reader, maxByteCount int) ([]byte, error) {
	var lenBytes []byte
	for {
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && 0 < len(lenBytes) {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
		lenBytes = append(lenBytes, c)
		if c < 0x80 {
			break
		}
		if binary.MaxVarintLen64 <= len(lenBytes) {
			return nil, fmt.Errorf("%w frame length overflow", ErrMalformed)
		}
	}
	n, m := protowire.ConsumeVarint(lenBytes)
	if m < 0 {
		return nil, parseError(m)
	}
	if uint64(maxByteCount) < n {
		return nil, fmt.Errorf("%w frame too large: %d", ErrMalformed, n)
	}
	frameBytes := make([]byte, n)
	if _, err := io.ReadFull(r, frameBytes); err != nil {
		return nil, err
	}
	return frameBytes, nil
}
