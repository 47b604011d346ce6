package emit

import (
	"fmt"

	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/classify"
)

// cTypeOf gives the C type of a field's data slot, following the
// representation bucket PlatformLayout placed it in.
func cTypeOf(cat classify.Category) string {
	switch cat.Repr {
	case classify.Repr1Byte:
		return "bool"
	case classify.Repr4Byte:
		if cat.DescriptorType == descriptorpb.FieldDescriptorProto_TYPE_ENUM {
			return "int32_t"
		}
		return cFixedWidthType(cat, 32)
	case classify.Repr8Byte:
		return cFixedWidthType(cat, 64)
	case classify.ReprStringView:
		return "upb_StringView"
	case classify.ReprPointer:
		return "upb_Message*"
	default:
		return "void*"
	}
}

func cFixedWidthType(cat classify.Category, bits int) string {
	unsigned := false
	switch cat.DescriptorType {
	case descriptorpb.FieldDescriptorProto_TYPE_INT64,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED64,
		descriptorpb.FieldDescriptorProto_TYPE_SINT64:
		return "int64_t"
	case descriptorpb.FieldDescriptorProto_TYPE_UINT64,
		descriptorpb.FieldDescriptorProto_TYPE_FIXED64:
		return "uint64_t"
	case descriptorpb.FieldDescriptorProto_TYPE_DOUBLE:
		return "double"
	case descriptorpb.FieldDescriptorProto_TYPE_FLOAT:
		return "float"
	case descriptorpb.FieldDescriptorProto_TYPE_INT32,
		descriptorpb.FieldDescriptorProto_TYPE_SFIXED32,
		descriptorpb.FieldDescriptorProto_TYPE_SINT32:
		return "int32_t"
	case descriptorpb.FieldDescriptorProto_TYPE_FIXED32,
		descriptorpb.FieldDescriptorProto_TYPE_UINT32:
		unsigned = true
	}
	if bits == 64 {
		if unsigned {
			return "uint64_t"
		}
		return "int64_t"
	}
	if unsigned {
		return "uint32_t"
	}
	return "int32_t"
}

// zeroLiteral is the clear-state value written to a field's data slot by its
// clearer.
func zeroLiteral(cat classify.Category, cType string) string {
	switch cat.Repr {
	case classify.ReprStringView:
		return "upb_StringView_FromDataAndSize(NULL, 0)"
	case classify.ReprPointer:
		return "NULL"
	case classify.Repr1Byte:
		return "false"
	default:
		return "0"
	}
}

// defaultLiteral renders field's declared default value as a C literal of
// the given type, or "" if the field carries no non-zero default.
func defaultLiteral(f *protogen.Field, cType string) string {
	d := f.Desc
	if !d.HasDefault() {
		return ""
	}
	switch d.Kind() {
	case protoreflect.BoolKind:
		if d.Default().Bool() {
			return "true"
		}
		return ""
	case protoreflect.StringKind:
		s := d.Default().String()
		if s == "" {
			return ""
		}
		return fmt.Sprintf("upb_StringView_FromString(%q)", s)
	case protoreflect.BytesKind:
		raw := d.Default().Bytes()
		if len(raw) == 0 {
			return ""
		}
		escaped := make([]byte, 0, 4*len(raw))
		for _, c := range raw {
			escaped = append(escaped, fmt.Sprintf("\\%03o", c)...)
		}
		return fmt.Sprintf("upb_StringView_FromDataAndSize(\"%s\", %d)", escaped, len(raw))
	case protoreflect.FloatKind, protoreflect.DoubleKind:
		v := d.Default().Float()
		if v == 0 {
			return ""
		}
		return fmt.Sprintf("%v", v)
	case protoreflect.EnumKind:
		n := d.Default().Enum()
		if n == 0 {
			return ""
		}
		return fmt.Sprintf("%d", int32(n))
	default:
		v := d.Default()
		if !v.IsValid() {
			return ""
		}
		switch {
		case d.Kind() == protoreflect.Int32Kind || d.Kind() == protoreflect.Sint32Kind || d.Kind() == protoreflect.Sfixed32Kind:
			if v.Int() == 0 {
				return ""
			}
			return fmt.Sprintf("%d", v.Int())
		case d.Kind() == protoreflect.Int64Kind || d.Kind() == protoreflect.Sint64Kind || d.Kind() == protoreflect.Sfixed64Kind:
			if v.Int() == 0 {
				return ""
			}
			return fmt.Sprintf("%d", v.Int())
		case d.Kind() == protoreflect.Uint32Kind || d.Kind() == protoreflect.Fixed32Kind ||
			d.Kind() == protoreflect.Uint64Kind || d.Kind() == protoreflect.Fixed64Kind:
			if v.Uint() == 0 {
				return ""
			}
			return fmt.Sprintf("%d", v.Uint())
		}
		return ""
	}
}
