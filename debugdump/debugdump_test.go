package debugdump_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/upb-gen/protoc-gen-upb/debugdump"
	"github.com/upb-gen/protoc-gen-upb/fasttable"
	"github.com/upb-gen/protoc-gen-upb/internal/fixture"
	"github.com/upb-gen/protoc-gen-upb/layout"
)

func TestWrite_ProducesReadableJSONSnapshot(t *testing.T) {
	msg := fixture.Msg("M", fixture.RequiredField("x", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32))
	f := fixture.NewFile("t.proto", "t", "proto2").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	fl, err := layout.BuildFileLayout(p.Files[0])
	require.NoError(t, err)

	tables := map[protoreflect.FullName]*fasttable.Table{
		fl.Messages[0].Message.Desc.FullName(): fasttable.Build(fl.Messages[0].L64, fl, nil),
	}

	dir := t.TempDir()
	require.NoError(t, debugdump.Write(dir, p.Files[0], fl, tables))

	data, err := os.ReadFile(filepath.Join(dir, "t.layout.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), `"path"`)
	require.Contains(t, string(data), `"t.M"`)
	require.Contains(t, string(data), `"fasttable"`)
}

func TestWrite_WithoutFastTables(t *testing.T) {
	msg := fixture.Msg("M")
	f := fixture.NewFile("t.proto", "t", "proto3").AddMessage(msg)
	p, err := fixture.Plugin(f.Proto)
	require.NoError(t, err)

	fl, err := layout.BuildFileLayout(p.Files[0])
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, debugdump.Write(dir, p.Files[0], fl, nil))

	data, err := os.ReadFile(filepath.Join(dir, "t.layout.json"))
	require.NoError(t, err)
	require.NotContains(t, string(data), `"fasttable"`)
}
