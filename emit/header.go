package emit

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/compiler/protogen"

	"github.com/upb-gen/protoc-gen-upb/classify"
	"github.com/upb-gen/protoc-gen-upb/layout"
	"github.com/upb-gen/protoc-gen-upb/names"
)

// optionsSuffixedName reports whether msg is one of descriptor.proto's own
// *Options messages, the bootstrapping case the MAXOPT constant exists for.
func optionsSuffixedName(msg *protogen.Message) bool {
	return strings.HasSuffix(string(msg.Desc.Name()), "Options")
}

// Header renders the complete .upb.h body for file into g.
func Header(g *protogen.GeneratedFile, file *protogen.File, fl *layout.FileLayout, r *names.Resolver) {
	for _, pair := range fl.Messages {
		r.ResolveMessage(pair.Message)
	}

	guard := HeaderGuard(file.Desc.Path())
	g.P("/* Generated by protoc-gen-upb. DO NOT EDIT. */")
	g.P()
	g.P("#ifndef ", guard)
	g.P("#define ", guard)
	g.P()
	g.P(`#include "upb/generated_code_support.h"`)
	for _, dep := range importPaths(file) {
		g.P(`#include "`, strings.TrimSuffix(dep, ".proto"), `.upb.h"`)
	}
	g.P()
	g.P(`#ifdef __cplusplus`)
	g.P(`extern "C" {`)
	g.P(`#endif`)
	g.P()

	for _, pair := range fl.Messages {
		g.P("typedef struct ", r.MessageIdent(pair.Message), " ", r.MessageIdent(pair.Message), ";")
	}
	g.P()

	for _, pair := range fl.Messages {
		g.P("extern const upb_MiniTable ", MiniTableSymbol(r, pair.Message), ";")
	}
	for _, ext := range fl.Extensions {
		g.P("extern const upb_MiniTableExtension ", ExtensionSymbol(r, ext), ";")
	}
	for _, enum := range fl.Enums {
		g.P("extern const upb_MiniTableEnum ", EnumMiniTableSymbol(r, enum), ";")
	}
	g.P()

	maxOptMessage(g, file, fl, r)

	for _, pair := range fl.Messages {
		headerForMessage(g, pair, r)
	}

	g.P("extern const upb_MiniTableFile ", FileMiniTableSymbol(file), ";")
	g.P()
	g.P(`#ifdef __cplusplus`)
	g.P(`}  /* extern "C" */`)
	g.P(`#endif`)
	g.P()
	g.P("#endif  /* ", guard, " */")
}

func importPaths(file *protogen.File) []string {
	out := make([]string, 0, len(file.Proto.Dependency))
	out = append(out, file.Proto.Dependency...)
	sort.Strings(out)
	return out
}

// maxOptMessage emits the MAXOPT bootstrapping constant for
// descriptor.proto: "compute the largest *Options*- suffixed message size
// for both widths and emit a MAXOPT compile-time constant".
func maxOptMessage(g *protogen.GeneratedFile, file *protogen.File, fl *layout.FileLayout, r *names.Resolver) {
	if file.Desc.Path() != "google/protobuf/descriptor.proto" {
		return
	}
	var max32, max64 uint32
	for _, pair := range fl.Messages {
		if !optionsSuffixedName(pair.Message) {
			continue
		}
		if pair.L32.Size > max32 {
			max32 = pair.L32.Size
		}
		if pair.L64.Size > max64 {
			max64 = pair.L64.Size
		}
	}
	g.P("#define UPB_PB_DESC_MAXOPT_SIZE32 ", max32)
	g.P("#define UPB_PB_DESC_MAXOPT_SIZE64 ", max64)
	g.P()
}

func headerForMessage(g *protogen.GeneratedFile, pair *layout.MessagePair, r *names.Resolver) {
	ident := r.MessageIdent(pair.Message)
	g.P("/* ", ident, " */")
	g.P()

	emittedOneof := make(map[string]bool)

	for i := range pair.L64.Fields {
		fl64 := &pair.L64.Fields[i]
		fl32 := &pair.L32.Fields[i]
		f := fl64.Field

		if f.Desc.ContainingOneof() != nil && !f.Desc.ContainingOneof().IsSynthetic() {
			oneofName := string(f.Oneof.Desc.FullName())
			if !emittedOneof[oneofName] {
				emittedOneof[oneofName] = true
				emitOneofCase(g, r, f.Oneof, pair)
			}
		}

		fn, ok := r.FieldNamesOf(f)
		if !ok {
			continue
		}
		emitFieldAccessors(g, r, ident, f, fn, fl32, fl64)
	}

	emitExtensionAccessors(g, pair.Message)

	g.P()
}

func emitOneofCase(g *protogen.GeneratedFile, r *names.Resolver, oneof *protogen.Oneof, pair *layout.MessagePair) {
	ct := BuildCaseTag(r, oneof)
	ct.P(g)
	on, _ := r.OneofNamesOf(oneof)

	var ol *layout.OneofLayout
	for i := range pair.L64.Oneofs {
		if pair.L64.Oneofs[i].Oneof.Desc.FullName() == oneof.Desc.FullName() {
			ol = &pair.L64.Oneofs[i]
			break
		}
	}
	ident := r.MessageIdent(pair.Message)
	g.P("UPB_INLINE ", on.EnumName, " ", on.Case, "(const ", ident, "* msg) {")
	if ol != nil {
		var olCase32 uint32
		for i := range pair.L32.Oneofs {
			if pair.L32.Oneofs[i].Oneof.Desc.FullName() == oneof.Desc.FullName() {
				olCase32 = pair.L32.Oneofs[i].CaseOffset
				break
			}
		}
		g.P("  return (", on.EnumName, ")*UPB_PTR_AT(msg, ", sizeExpr(olCase32, ol.CaseOffset), ", int32_t);")
	} else {
		g.P("  return ", on.NotSet, ";")
	}
	g.P("}")
	g.P()
}

func emitFieldAccessors(g *protogen.GeneratedFile, r *names.Resolver, msgIdent string, f *protogen.Field, fn names.FieldNames, fl32, fl64 *layout.FieldLayout) {
	cType := cTypeOf(fl64.Category)

	switch fl64.Category.Mode {
	case classify.ModeArray:
		emitRepeatedAccessors(g, msgIdent, fn, cType, fl32, fl64)
		return
	case classify.ModeMap:
		emitMapAccessors(g, msgIdent, fn, fl32, fl64)
		return
	}

	emitHazzer(g, msgIdent, fn, fl32, fl64)
	emitClearer(g, r, msgIdent, f, fn, cType, fl32, fl64)
	emitGetter(g, msgIdent, f, fn, cType, fl32, fl64)
	emitSetter(g, msgIdent, fn, cType, fl32, fl64)
}

// sizeExpr renders the dual-ABI offset macro the header needs everywhere a
// struct offset appears: mini-table fields carry UPB_SIZE(offset32,
// offset64), and the header accessors reading the same struct need the
// identical expression. Collapses to a bare literal when both widths
// agree.
func sizeExpr(v32, v64 uint32) string {
	if v32 == v64 {
		return fmt.Sprintf("%d", v64)
	}
	return fmt.Sprintf("UPB_SIZE(%d, %d)", v32, v64)
}

func emitHazzer(g *protogen.GeneratedFile, ident string, fn names.FieldNames, fl32, fl64 *layout.FieldLayout) {
	g.P("UPB_INLINE bool ", fn.Hazzer, "(const ", ident, "* msg) {")
	switch fl64.Category.Presence {
	case classify.PresenceHasbit:
		g.P(fmt.Sprintf("  return _upb_hasbit(msg, %d);", fl64.Presence))
	case classify.PresenceOneofCase:
		g.P(fmt.Sprintf("  return *UPB_PTR_AT(msg, %s, int32_t) == %d;", sizeExpr(fl32.CaseOffset(), fl64.CaseOffset()), fl64.Field.Desc.Number()))
	case classify.PresenceSubMessageNonNull:
		g.P(fmt.Sprintf("  return *UPB_PTR_AT(msg, %s, const upb_Message*) != NULL;", sizeExpr(fl32.Offset, fl64.Offset)))
	default:
		g.P("  return true;")
	}
	g.P("}")
}

func emitClearer(g *protogen.GeneratedFile, r *names.Resolver, ident string, f *protogen.Field, fn names.FieldNames, cType string, fl32, fl64 *layout.FieldLayout) {
	zero := zeroLiteral(fl64.Category, cType)
	g.P("UPB_INLINE void ", fn.Clearer, "(", ident, "* msg) {")
	if fl64.Category.Presence == classify.PresenceOneofCase {
		on, _ := r.OneofNamesOf(f.Oneof)
		g.P(fmt.Sprintf("  UPB_WRITE_ONEOF(msg, %s, %s, %s, %s, %s);", cType, sizeExpr(fl32.Offset, fl64.Offset), zero, sizeExpr(fl32.CaseOffset(), fl64.CaseOffset()), on.NotSet))
	} else {
		g.P(fmt.Sprintf("  *UPB_PTR_AT(msg, %s, %s) = %s;", sizeExpr(fl32.Offset, fl64.Offset), cType, zero))
		if fl64.Category.Presence == classify.PresenceHasbit {
			g.P(fmt.Sprintf("  _upb_clearhasbit(msg, %d);", fl64.Presence))
		}
	}
	g.P("}")
}

func emitGetter(g *protogen.GeneratedFile, ident string, f *protogen.Field, fn names.FieldNames, cType string, fl32, fl64 *layout.FieldLayout) {
	g.P("UPB_INLINE ", cType, " ", fn.Stem, "(const ", ident, "* msg) {")
	def := defaultLiteral(f, cType)
	if fl64.Category.Presence == classify.PresenceHasbit && def != "" {
		g.P(fmt.Sprintf("  if (!_upb_hasbit(msg, %d)) return %s;", fl64.Presence, def))
	}
	g.P(fmt.Sprintf("  return *UPB_PTR_AT(msg, %s, %s);", sizeExpr(fl32.Offset, fl64.Offset), cType))
	g.P("}")
}

func emitSetter(g *protogen.GeneratedFile, ident string, fn names.FieldNames, cType string, fl32, fl64 *layout.FieldLayout) {
	g.P("UPB_INLINE void ", fn.Setter, "(", ident, "* msg, ", cType, " value) {")
	g.P(fmt.Sprintf("  *UPB_PTR_AT(msg, %s, %s) = value;", sizeExpr(fl32.Offset, fl64.Offset), cType))
	switch fl64.Category.Presence {
	case classify.PresenceHasbit:
		g.P(fmt.Sprintf("  _upb_sethasbit(msg, %d);", fl64.Presence))
	case classify.PresenceOneofCase:
		g.P(fmt.Sprintf("  *UPB_PTR_AT(msg, %s, int32_t) = %d;", sizeExpr(fl32.CaseOffset(), fl64.CaseOffset()), fl64.Field.Desc.Number()))
	}
	g.P("}")
}

func emitRepeatedAccessors(g *protogen.GeneratedFile, ident string, fn names.FieldNames, elemType string, fl32, fl64 *layout.FieldLayout) {
	off := sizeExpr(fl32.Offset, fl64.Offset)
	g.P("UPB_INLINE size_t ", fn.ListSize, "(const ", ident, "* msg) {")
	g.P(fmt.Sprintf("  const upb_Array* arr = *UPB_PTR_AT(msg, %s, const upb_Array*);", off))
	g.P("  return arr ? arr->size : 0;")
	g.P("}")
	g.P("UPB_INLINE const ", elemType, "* ", fn.ListGet, "(const ", ident, "* msg, size_t i, size_t* len) {")
	g.P(fmt.Sprintf("  const upb_Array* arr = *UPB_PTR_AT(msg, %s, const upb_Array*);", off))
	g.P("  if (len) *len = arr ? arr->size : 0;")
	g.P("  return arr ? (const ", elemType, "*)_upb_array_constptr(arr) + i : NULL;")
	g.P("}")
	g.P("UPB_INLINE ", elemType, "* ", fn.ListMutable, "(", ident, "* msg, size_t i) {")
	g.P(fmt.Sprintf("  upb_Array* arr = *UPB_PTR_AT(msg, %s, upb_Array*);", off))
	g.P("  return (", elemType, "*)_upb_array_ptr(arr) + i;")
	g.P("}")
	g.P("UPB_INLINE bool ", fn.ListResize, "(", ident, "* msg, size_t size, upb_Arena* arena) {")
	g.P(fmt.Sprintf("  return _upb_Array_Resize(UPB_PTR_AT(msg, %s, upb_Array*), size, arena);", off))
	g.P("}")
	g.P("UPB_INLINE bool ", fn.ListAppend, "(", ident, "* msg, ", elemType, " value, upb_Arena* arena) {")
	g.P(fmt.Sprintf("  return _upb_Array_Append(UPB_PTR_AT(msg, %s, upb_Array*), &value, sizeof(value), arena);", off))
	g.P("}")
}

func emitMapAccessors(g *protogen.GeneratedFile, ident string, fn names.FieldNames, fl32, fl64 *layout.FieldLayout) {
	off := sizeExpr(fl32.Offset, fl64.Offset)
	g.P("UPB_INLINE size_t ", fn.MapSize, "(const ", ident, "* msg) {")
	g.P(fmt.Sprintf("  const upb_Map* map = *UPB_PTR_AT(msg, %s, const upb_Map*);", off))
	g.P("  return map ? _upb_Map_Size(map) : 0;")
	g.P("}")
	g.P("UPB_INLINE bool ", fn.MapGet, "(const ", ident, "* msg, upb_MessageValue key, upb_MessageValue* val) {")
	g.P(fmt.Sprintf("  const upb_Map* map = *UPB_PTR_AT(msg, %s, const upb_Map*);", off))
	g.P("  return map ? _upb_Map_Get(map, &key, sizeof(key), val, sizeof(*val)) : false;")
	g.P("}")
	g.P("UPB_INLINE bool ", fn.MapSet, "(", ident, "* msg, upb_MessageValue key, upb_MessageValue val, upb_Arena* arena) {")
	g.P(fmt.Sprintf("  return _upb_Map_Set(UPB_PTR_AT(msg, %s, upb_Map*), &key, sizeof(key), &val, sizeof(val), arena);", off))
	g.P("}")
	g.P("UPB_INLINE bool ", fn.MapDelete, "(", ident, "* msg, upb_MessageValue key) {")
	g.P(fmt.Sprintf("  return _upb_Map_Delete(UPB_PTR_AT(msg, %s, upb_Map*), &key, sizeof(key), NULL);", off))
	g.P("}")
	g.P("UPB_INLINE bool ", fn.MapIter, "(const ", ident, "* msg, size_t* iter, upb_MessageValue* key, upb_MessageValue* val) {")
	g.P(fmt.Sprintf("  const upb_Map* map = *UPB_PTR_AT(msg, %s, const upb_Map*);", off))
	g.P("  return map ? _upb_map_next(map, iter, key, val) : false;")
	g.P("}")
}

func emitExtensionAccessors(g *protogen.GeneratedFile, msg *protogen.Message) {
	for _, ext := range msg.Extensions {
		emitExtension(g, ext)
	}
}

func emitExtension(g *protogen.GeneratedFile, ext *protogen.Extension) {
	fn := names.ExtensionNames(ext)
	ctype := cTypeOf(classify.Classify(ext))
	extendeeIdent := sanitizeIdent(strings.ReplaceAll(string(ext.Extendee.Desc.FullName()), ".", "_"))
	sym := ExtensionSymbol(nil, ext)

	g.P("UPB_INLINE bool ", fn.Hazzer, "(const ", extendeeIdent, "* msg) {")
	g.P("  return _upb_Message_HasExtension((const upb_Message*)msg, &", sym, ");")
	g.P("}")
	g.P("UPB_INLINE void ", fn.Clearer, "(", extendeeIdent, "* msg) {")
	g.P("  _upb_Message_ClearExtension((upb_Message*)msg, &", sym, ");")
	g.P("}")
	g.P("UPB_INLINE ", ctype, " ", fn.Stem, "(const ", extendeeIdent, "* msg) {")
	g.P("  upb_MessageValue val = _upb_Message_GetExtension((const upb_Message*)msg, &", sym, ");")
	g.P("  return (", ctype, ")val;")
	g.P("}")
	g.P("UPB_INLINE bool ", fn.Setter, "(", extendeeIdent, "* msg, ", ctype, " value, upb_Arena* arena) {")
	g.P("  upb_MessageValue val = { .", extensionUnionField(ctype), " = value };")
	g.P("  return _upb_Message_SetExtension((upb_Message*)msg, &", sym, ", val, arena);")
	g.P("}")
}

func extensionUnionField(cType string) string {
	switch cType {
	case "int32_t":
		return "int32_val"
	case "int64_t":
		return "int64_val"
	case "uint32_t":
		return "uint32_val"
	case "uint64_t":
		return "uint64_val"
	case "float":
		return "float_val"
	case "double":
		return "double_val"
	case "bool":
		return "bool_val"
	case "upb_StringView":
		return "str_val"
	default:
		return "msg_val"
	}
}
