package layout_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/internal/fixture"
	"github.com/upb-gen/protoc-gen-upb/layout"
)

func buildFileLayout(t *testing.T, file *fixture.File) *layout.FileLayout {
	t.Helper()
	p, err := fixture.Plugin(file.Proto)
	require.NoError(t, err)
	require.Len(t, p.Files, 1)
	fl, err := layout.BuildFileLayout(p.Files[0])
	require.NoError(t, err)
	return fl
}

func TestEmptyMessage(t *testing.T) {
	msg := fixture.Msg("M")
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	fl := buildFileLayout(t, f)

	pair := fl.Messages[0]
	require.Equal(t, 0, pair.L64.FieldCount)
	require.Equal(t, 0, pair.L64.DenseBelow)
	require.Equal(t, layout.NonExtendable, pair.L64.ExtensionMode)
	require.Zero(t, pair.L64.RequiredCount)
}

func TestSingleRequiredInt32_HasbitZeroAligned(t *testing.T) {
	msg := fixture.Msg("M", fixture.RequiredField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	f := fixture.NewFile("t.proto", "t", "proto2").AddMessage(msg)
	fl := buildFileLayout(t, f)

	pair := fl.Messages[0]
	require.Equal(t, 1, pair.L64.RequiredCount)
	require.Equal(t, 1, pair.L64.DenseBelow)
	fx := pair.L64.FieldByDescriptorName("x")
	require.NotNil(t, fx)
	require.EqualValues(t, 0, fx.Presence)
	require.Zero(t, fx.Offset%4)
}

func TestOneofSharesOffsetAndCaseOffset(t *testing.T) {
	msg := fixture.Msg("M")
	idx := fixture.WithOneof(msg, "o")
	msg.Field = append(msg.Field,
		fixture.OneofField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, idx),
		fixture.OneofField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, idx),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	fl := buildFileLayout(t, f)

	pair := fl.Messages[0]
	fa := pair.L64.FieldByDescriptorName("a")
	fb := pair.L64.FieldByDescriptorName("b")
	require.Equal(t, fa.Offset, fb.Offset)
	require.Equal(t, fa.CaseOffset(), fb.CaseOffset())
	require.Len(t, pair.L64.Oneofs, 1)
	require.Equal(t, fa.Offset, pair.L64.Oneofs[0].DataOffset)
}

func TestRepeatedPackedInt32(t *testing.T) {
	msg := fixture.Msg("M", fixture.RepeatedField("xs", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32, true))
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	fl := buildFileLayout(t, f)

	pair := fl.Messages[0]
	fx := pair.L64.FieldByDescriptorName("xs")
	require.True(t, fx.Category.Packed)
}

func TestSubmessageInFile(t *testing.T) {
	inner := fixture.Msg("Inner", fixture.ScalarField("y", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64))
	outer := fixture.Msg("Outer", fixture.MessageField("x", 1, ".t.Inner"))
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(outer).AddMessage(inner)
	fl := buildFileLayout(t, f)

	outerPair := fl.ByDescriptor(fl.Messages[0].Message.Desc)
	require.NotNil(t, outerPair)

	// find Outer specifically (sorted by FQN, Inner < Outer lexically since
	// 'I' < 'O', so Inner ends up first; look it up by name instead).
	var op *layout.MessagePair
	for _, p := range fl.Messages {
		if string(p.Message.Desc.Name()) == "Outer" {
			op = p
		}
	}
	require.NotNil(t, op)
	fx := op.L64.FieldByDescriptorName("x")
	require.NotEqual(t, layout.NoSub, fx.SubMsgIndex)
	require.Equal(t, 0, fx.SubMsgIndex)
	require.Len(t, op.L64.Subs, 1)
	require.Equal(t, "Inner", string(op.L64.Subs[0].Message.Desc.Name()))
}

func TestFieldsOrderedByNumberNotDeclaration(t *testing.T) {
	msg := fixture.Msg("M",
		fixture.ScalarField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		fixture.ScalarField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	fl := buildFileLayout(t, f)

	pair := fl.Messages[0]
	require.Equal(t, 2, pair.L64.DenseBelow)
	require.Len(t, pair.L64.Fields, 2)
	require.Equal(t, protoreflect.Name("a"), pair.L64.Fields[0].Field.Desc.Name())
	require.Equal(t, protoreflect.Name("b"), pair.L64.Fields[1].Field.Desc.Name())
}

func TestWidthsAreIndependent(t *testing.T) {
	msg := fixture.Msg("M",
		fixture.ScalarField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		fixture.ScalarField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	fl := buildFileLayout(t, f)

	pair := fl.Messages[0]
	require.NotEqual(t, pair.L32.Size, pair.L64.Size)
}
