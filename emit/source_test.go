package emit_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/emit"
	"github.com/upb-gen/protoc-gen-upb/fasttable"
	"github.com/upb-gen/protoc-gen-upb/internal/fixture"
	"github.com/upb-gen/protoc-gen-upb/layout"
	"github.com/upb-gen/protoc-gen-upb/names"
)

func renderSource(t *testing.T, f *fixture.File, fastTableOf emit.FastTableOf) string {
	t.Helper()
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)
	require.Len(t, p.Files, 1)

	fl, err := layout.BuildFileLayout(p.Files[0])
	require.NoError(t, err)

	r := names.NewResolver()
	for _, pair := range fl.Messages {
		r.ResolveMessage(pair.Message)
	}
	g := p.NewGeneratedFile("t.upb.c", "")
	emit.Source(g, p.Files[0], fl, r, "t.proto", fastTableOf)

	content, err := g.Content()
	require.NoError(t, err)
	return string(content)
}

func TestSource_EmptyMessage_NoFieldArrayNoSub(t *testing.T) {
	msg := fixture.Msg("M")
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	out := renderSource(t, f, nil)

	require.Contains(t, out, "const upb_MiniTable t_M_msginit = {")
	require.NotContains(t, out, "t_M_submsgs")
	require.NotContains(t, out, "t_M_fields")
	require.Contains(t, out, ".table_mask = ")
}

func TestSource_SingleRequiredField_FieldRecordAndHasbit(t *testing.T) {
	msg := fixture.Msg("M", fixture.RequiredField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	f := fixture.NewFile("t.proto", "t", "proto2").AddMessage(msg)
	out := renderSource(t, f, nil)

	require.Contains(t, out, "static const upb_MiniTableField t_M_fields[1] = {")
	require.Contains(t, out, "kUpb_FieldMode_Scalar")
	require.Contains(t, out, ".required_count = 1,")
}

func TestSource_SubmessageInFile_SubTableReferencesMiniTable(t *testing.T) {
	inner := fixture.Msg("Inner", fixture.ScalarField("y", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64))
	outer := fixture.Msg("Outer", fixture.MessageField("x", 1, ".t.Inner"))
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(outer).AddMessage(inner)
	out := renderSource(t, f, nil)

	require.Contains(t, out, "static const upb_MiniTableSub t_Outer_submsgs[1] = {")
	require.Contains(t, out, "{.submsg = &t_Inner_msginit},")
}

func TestSource_RepeatedPacked_ModeInitHasPackedFlag(t *testing.T) {
	msg := fixture.Msg("M", fixture.RepeatedField("xs", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32, true))
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	out := renderSource(t, f, nil)

	require.Contains(t, out, "kUpb_FieldMode_Array")
	require.Contains(t, out, "kUpb_LabelFlags_IsPacked")
}

func TestSource_FastTableEnabled_EmitsFastTableEntries(t *testing.T) {
	msg := fixture.Msg("M", fixture.RequiredField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	f := fixture.NewFile("t.proto", "t", "proto2").AddMessage(msg)

	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)
	fl, err := layout.BuildFileLayout(p.Files[0])
	require.NoError(t, err)

	tables := map[string]*fasttable.Table{
		string(fl.Messages[0].Message.Desc.FullName()): fasttable.Build(fl.Messages[0].L64, fl, nil),
	}
	fastTableOf := func(pair *layout.MessagePair) *fasttable.Table {
		return tables[string(pair.Message.Desc.FullName())]
	}

	out := renderSource(t, f, fastTableOf)
	require.Contains(t, out, ".fasttable = {")
	require.Contains(t, out, "upb_psv4_1bt")
}

func TestSource_FileMiniTable_EmittedLast(t *testing.T) {
	msg := fixture.Msg("M")
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	out := renderSource(t, f, nil)

	require.Contains(t, out, "const upb_MiniTableFile t_file_layout = {")
	require.Contains(t, out, ".msg_count = 1,")
	require.Equal(t, strings.LastIndex(out, "const upb_MiniTable"), strings.Index(out, "const upb_MiniTableFile t_file_layout = {"))
}
