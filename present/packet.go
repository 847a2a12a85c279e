package present

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bringyour/classroom/present/model"
)

// Records are encoded depth first with the protobuf wire format.
// Every record starts with its class tag in field 1. A null record carries
// only the would-be class tag and the null marker in field 2.
// Fields numbered `firstVariantField` and up belong to the concrete record type.

var (
	ErrTruncated       = errors.New("Truncated packet.")
	ErrMalformed       = errors.New("Malformed packet.")
	ErrUnknownClassTag = errors.New("Unknown class tag.")
)

const (
	fieldClassTag protowire.Number = 1
	fieldNull     protowire.Number = 2

	firstVariantField protowire.Number = 16
)

func recordBytes(classTag ClassTag, appendFields func([]byte) []byte) []byte {
	var record []byte
	record = protowire.AppendTag(record, fieldClassTag, protowire.VarintType)
	record = protowire.AppendVarint(record, uint64(classTag))
	if appendFields != nil {
		record = appendFields(record)
	}
	return record
}

func appendRecord(b []byte, num protowire.Number, classTag ClassTag, appendFields func([]byte) []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, recordBytes(classTag, appendFields))
}

func appendNullRecord(b []byte, num protowire.Number, classTag ClassTag) []byte {
	return appendRecord(b, num, classTag, func(record []byte) []byte {
		return appendBoolField(record, fieldNull, true)
	})
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	return appendVarintField(b, num, protowire.EncodeBool(v))
}

func appendInt32Field(b []byte, num protowire.Number, v int32) []byte {
	return appendVarintField(b, num, protowire.EncodeZigZag(int64(v)))
}

func appendFloat32Field(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendColorField(b []byte, num protowire.Number, v model.Color) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, uint32(v))
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendStringField(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendIdField(b []byte, num protowire.Number, id model.Id) []byte {
	return appendBytesField(b, num, id.Bytes())
}

func appendRectangleField(b []byte, num protowire.Number, r model.Rectangle) []byte {
	var rb []byte
	rb = protowire.AppendVarint(rb, protowire.EncodeZigZag(int64(r.X)))
	rb = protowire.AppendVarint(rb, protowire.EncodeZigZag(int64(r.Y)))
	rb = protowire.AppendVarint(rb, protowire.EncodeZigZag(int64(r.Width)))
	rb = protowire.AppendVarint(rb, protowire.EncodeZigZag(int64(r.Height)))
	return appendBytesField(b, num, rb)
}

// packed, length prefixed
func appendInt32sField(b []byte, num protowire.Number, vs []int32) []byte {
	var pb []byte
	for _, v := range vs {
		pb = protowire.AppendVarint(pb, protowire.EncodeZigZag(int64(v)))
	}
	return appendBytesField(b, num, pb)
}

type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	fixed64 uint64
	bytes   []byte
}

func parseError(n int) error {
	err := protowire.ParseError(n)
	// -1 is the protowire code for an unexpected end of input
	if n == -1 {
		return fmt.Errorf("%w %s", ErrTruncated, err)
	}
	return fmt.Errorf("%w %s", ErrMalformed, err)
}

// calls `handle` for each field in order
func consumeFields(b []byte, handle func(f *field) error) error {
	for 0 < len(b) {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return parseError(n)
		}
		b = b[n:]
		f := &field{
			num: num,
			typ: typ,
		}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.Fixed64Type:
			f.fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			return fmt.Errorf("%w unsupported wire type %d", ErrMalformed, typ)
		}
		if n < 0 {
			return parseError(n)
		}
		b = b[n:]
		if err := handle(f); err != nil {
			return err
		}
	}
	return nil
}

// returns the class tag and the remaining fields of a record
func consumeRecordHeader(b []byte) (classTag ClassTag, null bool, rest []byte, err error) {
	num, typ, n := protowire.ConsumeTag(b)
	if n < 0 {
		err = parseError(n)
		return
	}
	if num != fieldClassTag || typ != protowire.VarintType {
		err = fmt.Errorf("%w record must start with a class tag", ErrMalformed)
		return
	}
	b = b[n:]
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		err = parseError(n)
		return
	}
	classTag = ClassTag(v)
	rest = b[n:]

	// the null marker, if present, immediately follows the class tag
	if 0 < len(rest) {
		num, typ, n := protowire.ConsumeTag(rest)
		if 0 < n && num == fieldNull && typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(rest[n:])
			if m < 0 {
				err = parseError(m)
				return
			}
			null = protowire.DecodeBool(v)
			rest = rest[n+m:]
		}
	}
	return
}

func (self *field) expect(typ protowire.Type) error {
	if self.typ != typ {
		return fmt.Errorf("%w field %d has wire type %d, expected %d", ErrMalformed, self.num, self.typ, typ)
	}
	return nil
}

func (self *field) Bool() (bool, error) {
	if err := self.expect(protowire.VarintType); err != nil {
		return false, err
	}
	return protowire.DecodeBool(self.varint), nil
}

func (self *field) Uint32() (uint32, error) {
	if err := self.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	if math.MaxUint32 < self.varint {
		return 0, fmt.Errorf("%w field %d overflows uint32", ErrMalformed, self.num)
	}
	return uint32(self.varint), nil
}

func (self *field) Int32() (int32, error) {
	if err := self.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	v := protowire.DecodeZigZag(self.varint)
	if v < math.MinInt32 || math.MaxInt32 < v {
		return 0, fmt.Errorf("%w field %d overflows int32", ErrMalformed, self.num)
	}
	return int32(v), nil
}

func (self *field) Float32() (float32, error) {
	if err := self.expect(protowire.Fixed32Type); err != nil {
		return 0, err
	}
	return math.Float32frombits(self.fixed32), nil
}

func (self *field) Color() (model.Color, error) {
	if err := self.expect(protowire.Fixed32Type); err != nil {
		return 0, err
	}
	return model.Color(self.fixed32), nil
}

func (self *field) Bytes() ([]byte, error) {
	if err := self.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	if len(self.bytes) == 0 {
		return nil, nil
	}
	// copy out of the frame buffer
	return append([]byte{}, self.bytes...), nil
}

func (self *field) Text() (string, error) {
	if err := self.expect(protowire.BytesType); err != nil {
		return "", err
	}
	return string(self.bytes), nil
}

func (self *field) Id() (model.Id, error) {
	if err := self.expect(protowire.BytesType); err != nil {
		return model.Id{}, err
	}
	id, err := model.IdFromBytes(self.bytes)
	if err != nil {
		return model.Id{}, fmt.Errorf("%w %s", ErrMalformed, err)
	}
	return id, nil
}

func (self *field) Rectangle() (model.Rectangle, error) {
	vs, err := self.Int32s()
	if err != nil {
		return model.Rectangle{}, err
	}
	if len(vs) != 4 {
		return model.Rectangle{}, fmt.Errorf("%w rectangle must have 4 components", ErrMalformed)
	}
	return model.Rect(vs[0], vs[1], vs[2], vs[3]), nil
}

func (self *field) Int32s() ([]int32, error) {
	if err := self.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	var vs []int32
	b := self.bytes
	for 0 < len(b) {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, parseError(n)
		}
		b = b[n:]
		i := protowire.DecodeZigZag(v)
		if i < math.MinInt32 || math.MaxInt32 < i {
			return nil, fmt.Errorf("%w field %d overflows int32", ErrMalformed, self.num)
		}
		vs = append(vs, int32(i))
	}
	return vs, nil
}
