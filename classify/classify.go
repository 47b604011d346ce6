// Package classify derives the canonical field-category tuple used by
// layout and fasttable from a field descriptor.
package classify

import (
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// Mode is the field's storage shape.
type Mode int

const (
	ModeScalar Mode = iota
	ModeArray
	ModeMap
)

func (m Mode) String() string {
	switch m {
	case ModeScalar:
		return "scalar"
	case ModeArray:
		return "array"
	case ModeMap:
		return "map"
	default:
		return "unknown"
	}
}

// Repr is the in-memory representation width/shape of a field's data slot.
type Repr int

const (
	Repr1Byte Repr = iota
	Repr4Byte
	Repr8Byte
	ReprStringView // pointer + length
	ReprPointer
)

func (r Repr) String() string {
	switch r {
	case Repr1Byte:
		return "1-byte"
	case Repr4Byte:
		return "4-byte"
	case Repr8Byte:
		return "8-byte"
	case ReprStringView:
		return "string-view"
	case ReprPointer:
		return "pointer"
	default:
		return "unknown"
	}
}

// Presence is how a field's "has" state is tracked.
type Presence int

const (
	PresenceImplicit Presence = iota
	PresenceHasbit
	PresenceOneofCase
	PresenceSubMessageNonNull
)

func (p Presence) String() string {
	switch p {
	case PresenceImplicit:
		return "implicit"
	case PresenceHasbit:
		return "hasbit"
	case PresenceOneofCase:
		return "oneof-case"
	case PresenceSubMessageNonNull:
		return "submessage-nonnull"
	default:
		return "unknown"
	}
}

// WireType is the protobuf wire encoding kind, independent of Go/C
// representation.
type WireType int

const (
	WireVarint  WireType = 0
	WireFixed64 WireType = 1
	WireBytes   WireType = 2
	WireFixed32 WireType = 5
)

// Category is the tuple computed once per field.
type Category struct {
	Mode           Mode
	Repr           Repr
	Presence       Presence
	Packed         bool
	Extension      bool
	Alternate      bool // proto3 implicit vs. explicit-presence representation divergence
	WireType       WireType
	DescriptorType descriptorpb.FieldDescriptorProto_Type
}

// Classify derives the category tuple for field.
func Classify(field *protogen.Field) Category {
	d := field.Desc
	cat := Category{
		DescriptorType: descriptorpb.FieldDescriptorProto_Type(d.Kind()),
		Extension:      d.IsExtension(),
		Packed:         d.IsPacked(),
		WireType:       wireTypeOf(d.Kind()),
	}

	switch {
	case d.IsMap():
		cat.Mode = ModeMap
		cat.Repr = ReprPointer
		cat.Presence = PresenceImplicit
		return cat
	case d.IsList():
		cat.Mode = ModeArray
		cat.Repr = ReprPointer
		cat.Presence = PresenceImplicit
		return cat
	}

	cat.Mode = ModeScalar
	cat.Repr = reprOf(d.Kind())

	inOneof := d.ContainingOneof() != nil && !d.ContainingOneof().IsSynthetic()

	switch d.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		if inOneof {
			cat.Presence = PresenceOneofCase
		} else {
			cat.Presence = PresenceSubMessageNonNull
		}
		return cat
	}

	explicit := hasExplicitPresence(d, inOneof)
	switch {
	case inOneof:
		cat.Presence = PresenceOneofCase
	case explicit:
		cat.Presence = PresenceHasbit
	default:
		cat.Presence = PresenceImplicit
	}

	// Alternate distinguishes proto3 implicit singular scalars from the
	// explicit-presence representation the runtime needs to special-case
	// (e.g. a proto3 `optional` field behaves like proto2 optional).
	cat.Alternate = !inOneof && d.HasPresence() && d.Syntax() == protoreflect.Proto3

	return cat
}

func hasExplicitPresence(d protoreflect.FieldDescriptor, inOneof bool) bool {
	if inOneof {
		return true
	}
	if d.Cardinality() == protoreflect.Required {
		return true
	}
	return d.HasPresence()
}

func reprOf(kind protoreflect.Kind) Repr {
	switch kind {
	case protoreflect.BoolKind:
		return Repr1Byte
	case protoreflect.Int32Kind, protoreflect.Sint32Kind, protoreflect.Sfixed32Kind,
		protoreflect.Uint32Kind, protoreflect.Fixed32Kind, protoreflect.FloatKind,
		protoreflect.EnumKind:
		return Repr4Byte
	case protoreflect.Int64Kind, protoreflect.Sint64Kind, protoreflect.Sfixed64Kind,
		protoreflect.Uint64Kind, protoreflect.Fixed64Kind, protoreflect.DoubleKind:
		return Repr8Byte
	case protoreflect.StringKind, protoreflect.BytesKind:
		return ReprStringView
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return ReprPointer
	default:
		return ReprPointer
	}
}

func wireTypeOf(kind protoreflect.Kind) WireType {
	switch kind {
	case protoreflect.Int32Kind, protoreflect.Int64Kind, protoreflect.Uint32Kind,
		protoreflect.Uint64Kind, protoreflect.Sint32Kind, protoreflect.Sint64Kind,
		protoreflect.BoolKind, protoreflect.EnumKind:
		return WireVarint
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind, protoreflect.DoubleKind:
		return WireFixed64
	case protoreflect.StringKind, protoreflect.BytesKind, protoreflect.MessageKind, protoreflect.GroupKind:
		return WireBytes
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind, protoreflect.FloatKind:
		return WireFixed32
	default:
		return WireVarint
	}
}
