package classify_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/classify"
	"github.com/upb-gen/protoc-gen-upb/internal/fixture"
)

func buildMessage(t *testing.T, msgName string, msg *descriptorpb.DescriptorProto, syntax string) *classify.Category {
	t.Helper()
	f := fixture.NewFile("test.proto", "test", syntax).AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)
	require.Len(t, p.Files, 1)
	require.Len(t, p.Files[0].Messages, 1)
	field := p.Files[0].Messages[0].Fields[0]
	cat := classify.Classify(field)
	return &cat
}

func TestClassify_RequiredScalarGetsHasbit(t *testing.T) {
	msg := fixture.Msg("M", fixture.RequiredField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	cat := buildMessage(t, "M", msg, "proto2")

	require.Equal(t, classify.ModeScalar, cat.Mode)
	require.Equal(t, classify.Repr4Byte, cat.Repr)
	require.Equal(t, classify.PresenceHasbit, cat.Presence)
	require.Equal(t, classify.WireVarint, cat.WireType)
}

func TestClassify_Proto3ImplicitScalar(t *testing.T) {
	msg := fixture.Msg("M", fixture.ScalarField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	cat := buildMessage(t, "M", msg, "proto3")

	require.Equal(t, classify.PresenceImplicit, cat.Presence)
	require.False(t, cat.Alternate)
}

func TestClassify_Proto3OptionalScalarGetsHasbit(t *testing.T) {
	msg := fixture.Msg("M")
	idx := fixture.WithOneof(msg, "_x")
	msg.Field = append(msg.Field, fixture.Proto3OptionalField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, idx))
	cat := buildMessage(t, "M", msg, "proto3")

	require.Equal(t, classify.PresenceHasbit, cat.Presence)
	require.True(t, cat.Alternate)
}

func TestClassify_RepeatedFieldIsPointerArray(t *testing.T) {
	msg := fixture.Msg("M", fixture.RepeatedField("xs", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, true))
	cat := buildMessage(t, "M", msg, "proto3")

	require.Equal(t, classify.ModeArray, cat.Mode)
	require.Equal(t, classify.ReprPointer, cat.Repr)
	require.True(t, cat.Packed)
}

func TestClassify_StringIsStringView(t *testing.T) {
	msg := fixture.Msg("M", fixture.ScalarField("s", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING))
	cat := buildMessage(t, "M", msg, "proto3")

	require.Equal(t, classify.ReprStringView, cat.Repr)
	require.Equal(t, classify.WireBytes, cat.WireType)
}

func TestClassify_ScalarMessageFieldIsSubmessageNonNull(t *testing.T) {
	inner := fixture.Msg("Inner", fixture.ScalarField("y", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	outer := fixture.Msg("Outer", fixture.MessageField("x", 1, ".test.Inner"))
	f := fixture.NewFile("test.proto", "test", "proto3").AddMessage(outer).AddMessage(inner)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)
	field := p.Files[0].Messages[0].Fields[0]
	cat := classify.Classify(field)

	require.Equal(t, classify.ReprPointer, cat.Repr)
	require.Equal(t, classify.PresenceSubMessageNonNull, cat.Presence)
}

func TestClassify_OneofMemberGetsOneofCase(t *testing.T) {
	msg := fixture.Msg("M")
	idx := fixture.WithOneof(msg, "o")
	msg.Field = append(msg.Field,
		fixture.OneofField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, idx),
		fixture.OneofField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, idx),
	)
	f := fixture.NewFile("test.proto", "test", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	for _, field := range p.Files[0].Messages[0].Fields {
		cat := classify.Classify(field)
		require.Equal(t, classify.PresenceOneofCase, cat.Presence)
	}
}

func TestClassify_MapFieldIsModeMap(t *testing.T) {
	entry := &descriptorpb.DescriptorProto{
		Name: strPtr("MEntry"),
		Field: []*descriptorpb.FieldDescriptorProto{
			fixture.ScalarField("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			fixture.ScalarField("value", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		},
		Options: &descriptorpb.MessageOptions{MapEntry: boolPtr(true)},
	}
	msg := fixture.Msg("M", &descriptorpb.FieldDescriptorProto{
		Name:     strPtr("m"),
		Number:   int32Ptr(1),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(),
		TypeName: strPtr(".test.M.MEntry"),
	})
	msg.NestedType = append(msg.NestedType, entry)

	f := fixture.NewFile("test.proto", "test", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)
	field := p.Files[0].Messages[0].Fields[0]
	cat := classify.Classify(field)

	require.Equal(t, classify.ModeMap, cat.Mode)
	require.Equal(t, classify.ReprPointer, cat.Repr)
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }
func int32Ptr(i int32) *int32 { return &i }
