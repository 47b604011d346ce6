// Package debugdump writes a JSON snapshot of one file's computed
// layout and fast tables, useful for inspecting what a build actually
// produced without decoding the generated C. Encoding goes straight
// through a jx.Encoder (no encoding/json, no intermediate
// map[string]any).
package debugdump

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/upb-gen/protoc-gen-upb/emit"
	"github.com/upb-gen/protoc-gen-upb/fasttable"
	"github.com/upb-gen/protoc-gen-upb/layout"
)

// Write renders file's FileLayout (and, if non-nil, its per-message
// fast tables) as "<dir>/<file>.layout.json".
func Write(dir string, file *protogen.File, fl *layout.FileLayout, tables map[protoreflect.FullName]*fasttable.Table) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "debugdump: mkdir")
	}

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	marshalFileLayout(e, fl, tables)

	name := strings.ReplaceAll(strings.TrimSuffix(file.Desc.Path(), ".proto"), "/", "_")
	path := filepath.Join(dir, name+".layout.json")
	if err := os.WriteFile(path, e.Bytes(), 0644); err != nil {
		return errors.Wrap(err, "debugdump: write")
	}
	return nil
}

func marshalFileLayout(e *jx.Encoder, fl *layout.FileLayout, tables map[protoreflect.FullName]*fasttable.Table) {
	e.ObjStart()

	e.FieldStart("path")
	e.Str(fl.File.Desc.Path())

	e.FieldStart("messages")
	e.ArrStart()
	for _, pair := range fl.Messages {
		marshalMessagePair(e, pair, tables)
	}
	e.ArrEnd()

	e.FieldStart("enums")
	e.ArrStart()
	for _, enum := range fl.Enums {
		e.Str(string(enum.Desc.FullName()))
	}
	e.ArrEnd()

	e.FieldStart("extensions")
	e.ArrStart()
	for _, ext := range fl.Extensions {
		e.Str(string(ext.Desc.FullName()))
	}
	e.ArrEnd()

	e.ObjEnd()
}

func marshalMessagePair(e *jx.Encoder, pair *layout.MessagePair, tables map[protoreflect.FullName]*fasttable.Table) {
	e.ObjStart()

	e.FieldStart("name")
	e.Str(string(pair.Message.Desc.FullName()))

	e.FieldStart("layout32")
	marshalMessageLayout(e, pair.L32)

	e.FieldStart("layout64")
	marshalMessageLayout(e, pair.L64)

	if tables != nil {
		if t, ok := tables[pair.Message.Desc.FullName()]; ok && t != nil {
			e.FieldStart("fasttable")
			marshalFastTable(e, t)
		}
	}

	e.ObjEnd()
}

func marshalMessageLayout(e *jx.Encoder, ml *layout.MessageLayout) {
	if ml == nil {
		e.Null()
		return
	}
	e.ObjStart()
	e.FieldStart("size")
	e.UInt32(ml.Size)
	e.FieldStart("field_count")
	e.Int(ml.FieldCount)
	e.FieldStart("required_count")
	e.Int(ml.RequiredCount)
	e.FieldStart("dense_below")
	e.Int(ml.DenseBelow)
	e.FieldStart("hasbit_bytes")
	e.UInt32(ml.HasbitBytes)
	e.FieldStart("extension_mode")
	e.Int(int(ml.ExtensionMode))

	e.FieldStart("fields")
	e.ArrStart()
	for i := range ml.Fields {
		marshalFieldLayout(e, &ml.Fields[i])
	}
	e.ArrEnd()

	e.FieldStart("oneofs")
	e.ArrStart()
	for i := range ml.Oneofs {
		marshalOneofLayout(e, &ml.Oneofs[i])
	}
	e.ArrEnd()
	e.ObjEnd()
}

func marshalFieldLayout(e *jx.Encoder, fl *layout.FieldLayout) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(string(fl.Field.Desc.Name()))
	e.FieldStart("number")
	e.Int32(int32(fl.Field.Desc.Number()))
	e.FieldStart("offset")
	e.UInt32(fl.Offset)
	e.FieldStart("presence")
	e.Int32(fl.Presence)
	if fl.SubMsgIndex != layout.NoSub {
		e.FieldStart("sub_msg_index")
		e.Int(fl.SubMsgIndex)
	}
	e.FieldStart("mode")
	e.Str(fl.Category.Mode.String())
	e.FieldStart("repr")
	e.Str(fl.Category.Repr.String())
	e.FieldStart("field_presence")
	e.Str(fl.Category.Presence.String())
	e.FieldStart("descriptor_type")
	e.Str(emit.DescriptorTypeComment(fl.Category.DescriptorType))
	e.ObjEnd()
}

func marshalOneofLayout(e *jx.Encoder, ol *layout.OneofLayout) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(string(ol.Oneof.Desc.Name()))
	e.FieldStart("data_offset")
	e.UInt32(ol.DataOffset)
	e.FieldStart("case_offset")
	e.UInt32(ol.CaseOffset)
	e.ObjEnd()
}

func marshalFastTable(e *jx.Encoder, t *fasttable.Table) {
	e.ObjStart()
	e.FieldStart("size")
	e.Int(t.Size)
	e.FieldStart("mask")
	e.UInt32(t.Mask)

	e.FieldStart("entries")
	e.ArrStart()
	for _, entry := range t.Entries {
		e.ObjStart()
		e.FieldStart("slot")
		e.Int(entry.Slot)
		e.FieldStart("symbol")
		e.Str(entry.Symbol)
		e.FieldStart("data_word")
		e.UInt64(uint64(entry.Data))
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("skipped")
	e.ArrStart()
	for _, s := range t.Skipped {
		e.ObjStart()
		e.FieldStart("field")
		e.Str(s.Field)
		e.FieldStart("reason")
		e.Str(string(s.Reason))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
