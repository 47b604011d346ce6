package emit_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/emit"
	"github.com/upb-gen/protoc-gen-upb/internal/fixture"
	"github.com/upb-gen/protoc-gen-upb/names"
)

func TestBuildCaseTag_CasesMatchFieldNumbers(t *testing.T) {
	msg := fixture.Msg("M")
	idx := fixture.WithOneof(msg, "o")
	msg.Field = append(msg.Field,
		fixture.OneofField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, idx),
		fixture.OneofField("b", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, idx),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	r := names.NewResolver()
	pm := p.Files[0].Messages[0]
	r.ResolveMessage(pm)

	ct := emit.BuildCaseTag(r, pm.Oneofs[0])
	require.Len(t, ct.Cases, 2)
	require.EqualValues(t, 1, ct.Cases[0].Number)
	require.EqualValues(t, 2, ct.Cases[1].Number)
	require.Contains(t, ct.NotSet, "_NOT_SET")
}

func TestBuildCaseTag_FallsBackWhenMessageNeverResolved(t *testing.T) {
	msg := fixture.Msg("M")
	idx := fixture.WithOneof(msg, "o")
	msg.Field = append(msg.Field,
		fixture.OneofField("a", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, idx),
	)
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	r := names.NewResolver()
	pm := p.Files[0].Messages[0]

	ct := emit.BuildCaseTag(r, pm.Oneofs[0])
	require.Len(t, ct.Cases, 1)
	require.NotEmpty(t, ct.EnumName)
}
