package layout

import "github.com/upb-gen/protoc-gen-upb/classify"

// reprSize and reprAlign give the size/alignment, in bytes, of a field's
// data slot for a given pointer width. 8-byte representations
// (int64/uint64/sint64/sfixed64/double) are aligned to the pointer width
// rather than unconditionally to 8: on a 32-bit target the struct fields are
// laid out the way a 32-bit C compiler would naturally pack them, matching
// the combined pointer/8-byte bucket. This is a deliberate choice recorded
// in DESIGN.md; the only correctness requirement is offset%align==0 for
// whatever alignment this function reports.
func reprSize(repr classify.Repr, w Width) uint32 {
	switch repr {
	case classify.Repr1Byte:
		return 1
	case classify.Repr4Byte:
		return 4
	case classify.Repr8Byte:
		return 8
	case classify.ReprStringView:
		return 2 * uint32(w)
	case classify.ReprPointer:
		return uint32(w)
	default:
		return uint32(w)
	}
}

func reprAlign(repr classify.Repr, w Width) uint32 {
	switch repr {
	case classify.Repr1Byte:
		return 1
	case classify.Repr4Byte:
		return 4
	case classify.Repr8Byte:
		return uint32(w)
	case classify.ReprStringView:
		return uint32(w)
	case classify.ReprPointer:
		return uint32(w)
	default:
		return uint32(w)
	}
}

func alignUp(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}
