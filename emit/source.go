package emit

import (
	"fmt"
	"strings"

	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/classify"
	"github.com/upb-gen/protoc-gen-upb/fasttable"
	"github.com/upb-gen/protoc-gen-upb/layout"
	"github.com/upb-gen/protoc-gen-upb/names"
)

// FastTableOf resolves the fast table for one message width, or nil when the
// caller disabled fast-table emission.
type FastTableOf func(pair *layout.MessagePair) *fasttable.Table

// Source renders the complete .upb.c body for file into g, in the six-part
// order: sub-tables, field arrays, mini-tables, extensions, enums, file.
func Source(g *protogen.GeneratedFile, file *protogen.File, fl *layout.FileLayout, r *names.Resolver, headerPath string, fastTableOf FastTableOf) {
	g.P("/* Generated by protoc-gen-upb. DO NOT EDIT. */")
	g.P()
	g.P(`#include <stddef.h>`)
	g.P(`#include "upb/internal/decode_fast.h"`)
	g.P(`#include "upb/upb.h"`)
	g.P(`#include "`, strings.TrimSuffix(headerPath, ".proto"), `.upb.h"`)
	for _, dep := range importPaths(file) {
		g.P(`#include "`, strings.TrimSuffix(dep, ".proto"), `.upb.h"`)
	}
	g.P()

	for _, pair := range fl.Messages {
		subTableForMessage(g, r, pair)
	}

	for _, pair := range fl.Messages {
		fieldArrayForMessage(g, r, pair)
	}

	for _, pair := range fl.Messages {
		var t *fasttable.Table
		if fastTableOf != nil {
			t = fastTableOf(pair)
		}
		miniTableForMessage(g, r, pair, t)
	}

	extensionArrays(g, r, fl)
	enumArrays(g, r, fl)
	fileMiniTable(g, r, file, fl)
}

// subTableForMessage emits part 1: one MiniTable_Sub array per message
// that has submessage or closed-enum references.
func subTableForMessage(g *protogen.GeneratedFile, r *names.Resolver, pair *layout.MessagePair) {
	subs := pair.L64.Subs
	if len(subs) == 0 {
		return
	}
	g.P("static const upb_MiniTableSub ", SubTableSymbol(r, pair.Message), "[", len(subs), "] = {")
	for _, s := range subs {
		if s.IsEnum() {
			g.P("  {.subenum = &", EnumMiniTableSymbol(r, s.Enum), "},")
		} else {
			g.P("  {.submsg = &", MiniTableSymbol(r, s.Message), "},")
		}
	}
	g.P("};")
	g.P()
}

// fieldArrayForMessage emits part 2: one MiniTable_Field array per message,
// each field a record combining both platform widths in a single UPB_SIZE
// initializer per field.
func fieldArrayForMessage(g *protogen.GeneratedFile, r *names.Resolver, pair *layout.MessagePair) {
	if len(pair.L64.Fields) == 0 {
		return
	}
	g.P("static const upb_MiniTableField ", FieldArraySymbol(r, pair.Message), "[", len(pair.L64.Fields), "] = {")
	for i := range pair.L64.Fields {
		fl32 := &pair.L32.Fields[i]
		fl64 := &pair.L64.Fields[i]
		g.P("  ", fieldRecord(fl32, fl64), ",")
	}
	g.P("};")
	g.P()
}

func fieldRecord(fl32, fl64 *layout.FieldLayout) string {
	d := fl64.Field.Desc
	offset := sizeExpr(fl32.Offset, fl64.Offset)
	presence := presenceExpr(fl32, fl64)
	submsg := "kUpb_NoSub"
	if fl64.SubMsgIndex != layout.NoSub {
		submsg = fmt.Sprintf("%d", fl64.SubMsgIndex)
	}
	return fmt.Sprintf(
		"{%d, %s, %s, %s, %d, %s}",
		d.Number(), offset, presence, submsg, fl64.Category.DescriptorType, modeInit(fl64.Category),
	)
}

// presenceExpr renders the dual-width presence/case-offset word: a hasbit
// index, or the oneof case-offset when the field is a oneof member.
func presenceExpr(fl32, fl64 *layout.FieldLayout) string {
	if fl64.Category.Presence == classify.PresenceOneofCase {
		return sizeExpr(fl32.CaseOffset(), fl64.CaseOffset())
	}
	if fl64.Presence < 0 {
		return "0"
	}
	return fmt.Sprintf("%d", fl64.Presence)
}

// modeInit composes the symbolic mode_init initializer: field mode, label
// flags, and representation shift.
func modeInit(cat classify.Category) string {
	var parts []string
	switch cat.Mode {
	case classify.ModeMap:
		parts = append(parts, "kUpb_FieldMode_Map")
	case classify.ModeArray:
		parts = append(parts, "kUpb_FieldMode_Array")
	default:
		parts = append(parts, "kUpb_FieldMode_Scalar")
	}
	if cat.Packed {
		parts = append(parts, "kUpb_LabelFlags_IsPacked")
	}
	if cat.Extension {
		parts = append(parts, "kUpb_LabelFlags_IsExtension")
	}
	if cat.Alternate {
		parts = append(parts, "kUpb_LabelFlags_IsAlternate")
	}
	parts = append(parts, repShift(cat.Repr))
	return strings.Join(parts, " | ")
}

func repShift(r classify.Repr) string {
	switch r {
	case classify.Repr1Byte:
		return "kUpb_FieldRep_1Byte << kUpb_FieldRep_Shift"
	case classify.Repr4Byte:
		return "kUpb_FieldRep_4Byte << kUpb_FieldRep_Shift"
	case classify.Repr8Byte:
		return "kUpb_FieldRep_8Byte << kUpb_FieldRep_Shift"
	case classify.ReprStringView:
		return "kUpb_FieldRep_StringView << kUpb_FieldRep_Shift"
	default:
		return "kUpb_FieldRep_Pointer << kUpb_FieldRep_Shift"
	}
}

// miniTableForMessage emits part 3: the MiniTable itself, with its
// fast-table entries inlined when t is non-nil and non-empty.
func miniTableForMessage(g *protogen.GeneratedFile, r *names.Resolver, pair *layout.MessagePair, t *fasttable.Table) {
	subsPtr := "NULL"
	if len(pair.L64.Subs) > 0 {
		subsPtr = SubTableSymbol(r, pair.Message)
	}
	fieldsPtr := "NULL"
	if len(pair.L64.Fields) > 0 {
		fieldsPtr = FieldArraySymbol(r, pair.Message)
	}

	mask := fasttable.Disabled
	if t != nil {
		mask = t.Mask
	}

	g.P("const upb_MiniTable ", MiniTableSymbol(r, pair.Message), " = {")
	g.P("  .subs = ", subsPtr, ",")
	g.P("  .fields = ", fieldsPtr, ",")
	g.P("  .size = ", sizeExpr(pair.L32.Size, pair.L64.Size), ",")
	g.P("  .field_count = ", pair.L64.FieldCount, ",")
	g.P("  .ext = ", extensionModeConst(pair.L64.ExtensionMode), ",")
	g.P("  .dense_below = ", pair.L64.DenseBelow, ",")
	g.P("  .table_mask = ", mask, ",")
	g.P("  .required_count = ", pair.L64.RequiredCount, ",")
	if t != nil && len(t.Entries) > 0 {
		g.P("  .fasttable = {")
		for _, e := range t.Entries {
			g.P(fmt.Sprintf("    {0x%016xULL, &%s},", uint64(e.Data), e.Symbol))
		}
		g.P("  },")
	}
	g.P("};")
	g.P()
}

func extensionModeConst(m layout.ExtensionMode) string {
	switch m {
	case layout.Extendable:
		return "kUpb_ExtMode_Extendable"
	case layout.MessageSet:
		return "kUpb_ExtMode_IsMessageSet"
	default:
		return "kUpb_ExtMode_NonExtendable"
	}
}

// extensionArrays emits part 4: a flat array of MiniTable_Extension
// records and an index array.
func extensionArrays(g *protogen.GeneratedFile, r *names.Resolver, fl *layout.FileLayout) {
	if len(fl.Extensions) == 0 {
		return
	}
	for _, ext := range fl.Extensions {
		cat := classify.Classify(ext)
		sub := "{.submsg = NULL}"
		switch {
		case ext.Message != nil:
			sub = "{.submsg = &" + MiniTableSymbol(r, ext.Message) + "}"
		case ext.Enum != nil && isClosedEnum(ext.Enum):
			sub = "{.subenum = &" + EnumMiniTableSymbol(r, ext.Enum) + "}"
		}
		g.P("const upb_MiniTableExtension ", ExtensionSymbol(r, ext), " = {")
		g.P("  .field = ", fieldRecordForExtension(ext, cat), ",")
		g.P("  .extendee = &", MiniTableSymbol(r, ext.Extendee), ",")
		g.P("  .sub = ", sub, ",")
		g.P("};")
		g.P()
	}

	g.P("static const upb_MiniTableExtension* const ", extensionIndexSymbol(fl), "[", len(fl.Extensions), "] = {")
	for _, ext := range fl.Extensions {
		g.P("  &", ExtensionSymbol(r, ext), ",")
	}
	g.P("};")
	g.P()
}

func fieldRecordForExtension(ext *protogen.Extension, cat classify.Category) string {
	d := ext.Desc
	return fmt.Sprintf("{%d, 0, 0, kUpb_NoSub, %d, %s}", d.Number(), cat.DescriptorType, modeInit(cat))
}

func isClosedEnum(enum *protogen.Enum) bool {
	return enum.Desc.Syntax() == protoreflect.Proto2
}

func extensionIndexSymbol(fl *layout.FileLayout) string {
	return sanitizeIdent(strings.ReplaceAll(string(fl.File.Desc.Package()), ".", "_")) + "_extensions"
}

// enumArrays emits part 5: a flat array of MiniTable_Enum records and an
// index array. The dense-bitset-plus-sorted-vector body of each
// MiniTable_Enum is the runtime's own contract; this emits the two value
// partitions the runtime expects to consume.
func enumArrays(g *protogen.GeneratedFile, r *names.Resolver, fl *layout.FileLayout) {
	for _, enum := range fl.Enums {
		if !isClosedEnum(enum) {
			continue
		}
		dense, sparse := partitionEnumValues(enum)
		mask := denseBitmask(dense)

		g.P("static const uint32_t ", enumIdent(r, enum), "_sparse[] = {")
		for _, v := range sparse {
			g.P(fmt.Sprintf("  %d,", v))
		}
		g.P("};")
		g.P("const upb_MiniTableEnum ", EnumMiniTableSymbol(r, enum), " = {")
		g.P(fmt.Sprintf("  .mask_limit = %d,", maskLimit(dense)))
		g.P(fmt.Sprintf("  .value_count = %d,", len(sparse)))
		g.P("  .data = {", maskLiteral(mask), "},")
		g.P("  .values = ", enumIdent(r, enum), "_sparse,")
		g.P("};")
		g.P()
	}

	if len(fl.Enums) == 0 {
		return
	}
	closed := closedEnums(fl.Enums)
	if len(closed) == 0 {
		return
	}
	g.P("static const upb_MiniTableEnum* const ", enumIndexSymbol(fl), "[", len(closed), "] = {")
	for _, enum := range closed {
		g.P("  &", EnumMiniTableSymbol(r, enum), ",")
	}
	g.P("};")
	g.P()
}

func closedEnums(enums []*protogen.Enum) []*protogen.Enum {
	var out []*protogen.Enum
	for _, e := range enums {
		if isClosedEnum(e) {
			out = append(out, e)
		}
	}
	return out
}

// partitionEnumValues splits an enum's declared values into the
// dense (< 512, bitset-eligible) and sparse (>= 512) partitions the
// runtime's MiniTable_Enum expects.
func partitionEnumValues(enum *protogen.Enum) (dense, sparse []int32) {
	for _, v := range enum.Values {
		n := int32(v.Desc.Number())
		if n >= 0 && n < 512 {
			dense = append(dense, n)
		} else {
			sparse = append(sparse, n)
		}
	}
	return dense, sparse
}

// maskLimit is the number of bits the dense bitset actually covers,
// rounded up to the next 32-bit boundary: the highest dense value's
// word boundary plus one word.
func maskLimit(dense []int32) int32 {
	var max int32
	for _, n := range dense {
		if n > max {
			max = n
		}
	}
	if len(dense) == 0 {
		return 0
	}
	return (max/32 + 1) * 32
}

func denseBitmask(dense []int32) []uint64 {
	words := make([]uint64, 8) // 8 * 64 = 512 bits, covers the dense partition's [0, 512) range.
	for _, n := range dense {
		words[n/64] |= 1 << uint(n%64)
	}
	return words
}

func maskLiteral(words []uint64) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fmt.Sprintf("0x%016xULL", w)
	}
	return strings.Join(parts, ", ")
}

func enumIndexSymbol(fl *layout.FileLayout) string {
	return sanitizeIdent(strings.ReplaceAll(string(fl.File.Desc.Package()), ".", "_")) + "_enums"
}

// fileMiniTable emits part 6: the file-level aggregate MiniTable_File
// struct.
func fileMiniTable(g *protogen.GeneratedFile, r *names.Resolver, file *protogen.File, fl *layout.FileLayout) {
	msgsPtr, msgsLen := "NULL", 0
	if len(fl.Messages) > 0 {
		msgsPtr, msgsLen = fileMiniTablesArray(g, r, fl), len(fl.Messages)
	}
	extsPtr, extsLen := "NULL", 0
	if len(fl.Extensions) > 0 {
		extsPtr, extsLen = extensionIndexSymbol(fl), len(fl.Extensions)
	}
	enumsPtr, enumsLen := "NULL", 0
	if closed := closedEnums(fl.Enums); len(closed) > 0 {
		enumsPtr, enumsLen = enumIndexSymbol(fl), len(closed)
	}

	g.P("const upb_MiniTableFile ", FileMiniTableSymbol(file), " = {")
	g.P("  .msgs = ", msgsPtr, ",")
	g.P("  .enums = ", enumsPtr, ",")
	g.P("  .exts = ", extsPtr, ",")
	g.P("  .msg_count = ", msgsLen, ",")
	g.P("  .enum_count = ", enumsLen, ",")
	g.P("  .ext_count = ", extsLen, ",")
	g.P("};")
}

func fileMiniTablesArray(g *protogen.GeneratedFile, r *names.Resolver, fl *layout.FileLayout) string {
	sym := sanitizeIdent(strings.ReplaceAll(string(fl.File.Desc.Package()), ".", "_")) + "_msgs"
	g.P("static const upb_MiniTable* const ", sym, "[", len(fl.Messages), "] = {")
	for _, pair := range fl.Messages {
		g.P("  &", MiniTableSymbol(r, pair.Message), ",")
	}
	g.P("};")
	g.P()
	return sym
}

// DescriptorTypeComment renders a field's descriptor_type as a readable
// string for the debug dump; the emitted source keeps the bare integer,
// matching upb's own generated output.
func DescriptorTypeComment(t descriptorpb.FieldDescriptorProto_Type) string {
	return t.String()
}
