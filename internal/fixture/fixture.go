// Package fixture builds hand-written descriptor trees into a
// *protogen.Plugin for unit tests, exercising generator logic against
// literal descriptorpb structures rather than a live protoc invocation.
package fixture

import (
	"github.com/go-faster/errors"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/pluginpb"
)

// Plugin builds a *protogen.Plugin containing exactly the given file,
// treating it (and nothing else) as "to generate".
func Plugin(file *descriptorpb.FileDescriptorProto) (*protogen.Plugin, error) {
	return PluginFiles([]*descriptorpb.FileDescriptorProto{file}, file.GetName())
}

// PluginFiles builds a *protogen.Plugin from a dependency-ordered list of
// files, generating only generate.
func PluginFiles(files []*descriptorpb.FileDescriptorProto, generate ...string) (*protogen.Plugin, error) {
	req := &pluginpb.CodeGeneratorRequest{
		FileToGenerate: generate,
		ProtoFile:      files,
	}
	gen, err := protogen.Options{}.New(req)
	if err != nil {
		return nil, errors.Wrap(err, "build fixture plugin")
	}
	return gen, nil
}

// File is a small builder to keep fixture construction terse in tests.
type File struct {
	Proto *descriptorpb.FileDescriptorProto
}

func NewFile(name, pkg string, syntax string) *File {
	return &File{Proto: &descriptorpb.FileDescriptorProto{
		Name:    proto.String(name),
		Package: proto.String(pkg),
		Syntax:  proto.String(syntax),
		Options: &descriptorpb.FileOptions{
			GoPackage: proto.String("example.com/" + pkg),
		},
	}}
}

func (f *File) AddMessage(msg *descriptorpb.DescriptorProto) *File {
	f.Proto.MessageType = append(f.Proto.MessageType, msg)
	return f
}

func (f *File) AddEnum(enum *descriptorpb.EnumDescriptorProto) *File {
	f.Proto.EnumType = append(f.Proto.EnumType, enum)
	return f
}

// Msg is a terse DescriptorProto builder.
func Msg(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:  proto.String(name),
		Field: fields,
	}
}

// ScalarField builds a non-repeated, non-oneof scalar field.
func ScalarField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Type:   typ.Enum(),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
	}
}

// RequiredField builds a proto2-style required scalar field.
func RequiredField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	f := ScalarField(name, number, typ)
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REQUIRED.Enum()
	return f
}

// RepeatedField builds a repeated scalar field.
func RepeatedField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, packed bool) *descriptorpb.FieldDescriptorProto {
	f := ScalarField(name, number, typ)
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	if packed {
		f.Options = &descriptorpb.FieldOptions{Packed: proto.Bool(true)}
	}
	return f
}

// Proto3OptionalField builds a proto3 `optional` scalar field; callers
// must also register the corresponding synthetic oneof on the message
// (see WithOneof).
func Proto3OptionalField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, oneofIndex int32) *descriptorpb.FieldDescriptorProto {
	f := ScalarField(name, number, typ)
	f.OneofIndex = proto.Int32(oneofIndex)
	f.Proto3Optional = proto.Bool(true)
	return f
}

// MessageField builds a singular message/group-valued field.
func MessageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(number),
		Type:     descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		TypeName: proto.String(typeName),
	}
}

// OneofField builds a field belonging to oneofIndex.
func OneofField(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type, oneofIndex int32) *descriptorpb.FieldDescriptorProto {
	f := ScalarField(name, number, typ)
	f.OneofIndex = proto.Int32(oneofIndex)
	return f
}

// WithOneof appends a oneof declaration to msg, returning its index.
func WithOneof(msg *descriptorpb.DescriptorProto, name string) int32 {
	msg.OneofDecl = append(msg.OneofDecl, &descriptorpb.OneofDescriptorProto{Name: proto.String(name)})
	return int32(len(msg.OneofDecl) - 1)
}
