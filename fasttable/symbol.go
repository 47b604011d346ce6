package fasttable

import (
	"fmt"

	"google.golang.org/protobuf/types/descriptorpb"
)

// Cardinality is the first component of a specialized decoder symbol key:
// "cardinality ∈ {s(calar), o(neof), r(epeated), p(acked)}".
type Cardinality byte

const (
	CardScalar  Cardinality = 's'
	CardOneof   Cardinality = 'o'
	CardRepeated Cardinality = 'r'
	CardPacked  Cardinality = 'p'
)

// SizeCeiling is the smallest bound on a referenced sub-message's size used
// to pick a size-specialized message decoder.
type SizeCeiling int

const (
	Ceil64 SizeCeiling = 64
	Ceil128 SizeCeiling = 128
	Ceil192 SizeCeiling = 192
	Ceil256 SizeCeiling = 256
	CeilMax SizeCeiling = -1 // unbounded / cross-file reference
)

func (c SizeCeiling) String() string {
	if c == CeilMax {
		return "max"
	}
	return fmt.Sprintf("%d", int(c))
}

// ChooseSizeCeiling picks the smallest ceiling >= (sub-message size + 8).
func ChooseSizeCeiling(subMessageSize uint32) SizeCeiling {
	need := subMessageSize + 8
	for _, c := range []SizeCeiling{Ceil64, Ceil128, Ceil192, Ceil256} {
		if need <= uint32(c) {
			return c
		}
	}
	return CeilMax
}

// typeMnemonic is the second component of the decoder symbol key: "type
// mnemonic ∈ {b1,v4,v8,f4,f8,z4,z8,s,b,m}".
func typeMnemonic(t descriptorpb.FieldDescriptorProto_Type, ceiling SizeCeiling) (string, bool) {
	switch t {
	case descriptorpb.FieldDescriptorProto_TYPE_BOOL:
		return "b1", true
	case descriptorpb.FieldDescriptorProto_TYPE_INT32, descriptorpb.FieldDescriptorProto_TYPE_UINT32,
		descriptorpb.FieldDescriptorProto_TYPE_ENUM:
		return "v4", true
	case descriptorpb.FieldDescriptorProto_TYPE_INT64, descriptorpb.FieldDescriptorProto_TYPE_UINT64:
		return "v8", true
	case descriptorpb.FieldDescriptorProto_TYPE_SINT32:
		return "z4", true
	case descriptorpb.FieldDescriptorProto_TYPE_SINT64:
		return "z8", true
	case descriptorpb.FieldDescriptorProto_TYPE_FIXED32, descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
		descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return "f4", true
	case descriptorpb.FieldDescriptorProto_TYPE_FIXED64, descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
		descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return "f8", true
	case descriptorpb.FieldDescriptorProto_TYPE_STRING:
		return "s", true
	case descriptorpb.FieldDescriptorProto_TYPE_BYTES:
		return "b", true
	case descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, descriptorpb.FieldDescriptorProto_TYPE_GROUP:
		return "m" + ceiling.String(), true
	default:
		return "", false
	}
}

// tagWidthBytes returns the varint-encoded byte width of tag, or 0 if it
// would take more than two bytes.
func tagWidthBytes(tag uint32) int {
	switch {
	case tag <= 0x7F:
		return 1
	case tag <= 0x7FFF:
		return 2
	default:
		return 0
	}
}

// DecoderSymbol builds the specialized decoder symbol name for an eligible
// field.
func DecoderSymbol(card Cardinality, mnemonic string, tagWidth int) string {
	return fmt.Sprintf("upb_p%c%s_%dbt", byte(card), mnemonic, tagWidth)
}

// EncodeTag computes the little-endian varint encoding of
// (fieldNumber<<3)|wireType, first encoded byte in the low byte. An
// encoding longer than four bytes keeps only its first four, which still
// compares above every two-byte encoding.
func EncodeTag(fieldNumber int32, wireType int) uint32 {
	tag := uint32(fieldNumber)<<3 | uint32(wireType)
	var enc uint32
	shift := uint(0)
	for tag >= 0x80 && shift < 32 {
		enc |= (tag&0x7F | 0x80) << shift
		tag >>= 7
		shift += 8
	}
	if shift < 32 {
		enc |= tag << shift
	}
	return enc
}
