package names_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/internal/fixture"
	"github.com/upb-gen/protoc-gen-upb/names"
)

func TestResolver_NoCollisionDistinctFields(t *testing.T) {
	msg := fixture.Msg("M",
		fixture.ScalarField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32),
		fixture.ScalarField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	r := names.NewResolver()
	r.ResolveMessage(p.Files[0].Messages[0])
	require.Empty(t, r.Collisions())

	fa, ok := r.FieldNamesOf(p.Files[0].Messages[0].Fields[0])
	require.True(t, ok)
	require.Equal(t, "t_M_a", fa.Stem)
	require.Equal(t, "has_t_M_a", fa.Hazzer)
	require.Equal(t, "clear_t_M_a", fa.Clearer)
	require.Equal(t, "set_t_M_a", fa.Setter)
}

func TestResolver_AccessorStemCollisionRenamesLaterField(t *testing.T) {
	// Repeated field "foo" claims hazzer "has_t_M_foo" and list-size
	// accessor "t_M_foo_size". A later field literally named "foo_size"
	// would derive "t_M_foo_size" as its getter stem and must be renamed.
	msg := fixture.Msg("M",
		fixture.RepeatedField("foo", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, false),
		fixture.ScalarField("foo_size", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	r := names.NewResolver()
	r.ResolveMessage(p.Files[0].Messages[0])

	require.NotEmpty(t, r.Collisions())

	foo, ok := r.FieldNamesOf(p.Files[0].Messages[0].Fields[0])
	require.True(t, ok)
	fooSize, ok := r.FieldNamesOf(p.Files[0].Messages[0].Fields[1])
	require.True(t, ok)

	require.Equal(t, "has_t_M_foo", foo.Hazzer)
	require.NotEqual(t, foo.ListSize, fooSize.Stem)
}

func TestResolver_RepeatedFieldGetsBulkAccessors(t *testing.T) {
	msg := fixture.Msg("M", fixture.RepeatedField("xs", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, true))
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	r := names.NewResolver()
	r.ResolveMessage(p.Files[0].Messages[0])
	fn, ok := r.FieldNamesOf(p.Files[0].Messages[0].Fields[0])
	require.True(t, ok)
	require.Equal(t, "t_M_xs_size", fn.ListSize)
	require.Equal(t, "t_M_xs_append", fn.ListAppend)
}

func TestResolver_OneofCaseNames(t *testing.T) {
	msg := fixture.Msg("M")
	oi := fixture.WithOneof(msg, "o")
	msg.Field = append(msg.Field,
		fixture.OneofField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, oi),
		fixture.OneofField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, oi),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	r := names.NewResolver()
	r.ResolveMessage(p.Files[0].Messages[0])
	on, ok := r.OneofNamesOf(p.Files[0].Messages[0].Oneofs[0])
	require.True(t, ok)
	require.Equal(t, "t_M_o_case", on.Case)
	require.Contains(t, on.CaseOf, protoreflect.Name("a"))
	require.Contains(t, on.CaseOf, protoreflect.Name("b"))
}
