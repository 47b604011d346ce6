package emit_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/emit"
	"github.com/upb-gen/protoc-gen-upb/internal/fixture"
	"github.com/upb-gen/protoc-gen-upb/layout"
	"github.com/upb-gen/protoc-gen-upb/names"
)

func renderHeader(t *testing.T, f *fixture.File) string {
	t.Helper()
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)
	require.Len(t, p.Files, 1)

	fl, err := layout.BuildFileLayout(p.Files[0])
	require.NoError(t, err)

	r := names.NewResolver()
	g := p.NewGeneratedFile("t.upb.h", "")
	emit.Header(g, p.Files[0], fl, r)

	content, err := g.Content()
	require.NoError(t, err)
	return string(content)
}

func TestHeader_EmptyMessage(t *testing.T) {
	msg := fixture.Msg("M")
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	out := renderHeader(t, f)

	require.Contains(t, out, "typedef struct t_M t_M;")
	require.Contains(t, out, "extern const upb_MiniTable t_M_msginit;")
	require.Contains(t, out, "#ifndef")
	require.Contains(t, out, "#endif")
}

func TestHeader_SingleRequiredField_AccessorsPresent(t *testing.T) {
	msg := fixture.Msg("M", fixture.RequiredField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	f := fixture.NewFile("t.proto", "t", "proto2").AddMessage(msg)
	out := renderHeader(t, f)

	require.Contains(t, out, "has_t_M_x")
	require.Contains(t, out, "clear_t_M_x")
	require.Contains(t, out, "_upb_hasbit(msg, 0)")
}

func TestHeader_Oneof_EmitsCaseEnumAndAccessor(t *testing.T) {
	msg := fixture.Msg("M")
	idx := fixture.WithOneof(msg, "o")
	msg.Field = append(msg.Field,
		fixture.OneofField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, idx),
		fixture.OneofField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, idx),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	out := renderHeader(t, f)

	require.Contains(t, out, "typedef enum {")
	require.Contains(t, out, "_NOT_SET = 0,")
	require.Contains(t, out, "case(")
	require.Contains(t, out, "UPB_WRITE_ONEOF(msg,")
	require.Contains(t, out, "_NOT_SET);")
}

func TestHeader_RepeatedField_ArrayAccessors(t *testing.T) {
	msg := fixture.Msg("M", fixture.RepeatedField("xs", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32, true))
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	out := renderHeader(t, f)

	require.Contains(t, out, "const upb_Array* arr")
	require.Contains(t, out, "_upb_Array_Append")
}

func TestHeader_SubmessageInFile_ForwardDeclared(t *testing.T) {
	inner := fixture.Msg("Inner", fixture.ScalarField("y", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64))
	outer := fixture.Msg("Outer", fixture.MessageField("x", 1, ".t.Inner"))
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(outer).AddMessage(inner)
	out := renderHeader(t, f)

	require.Contains(t, out, "typedef struct t_Inner t_Inner;")
	require.Contains(t, out, "typedef struct t_Outer t_Outer;")
}
