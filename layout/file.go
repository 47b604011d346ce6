package layout

import (
	"sort"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/upb-gen/protoc-gen-upb/classify"
)

// MessagePair holds both platform widths for one message.
type MessagePair struct {
	Message *protogen.Message
	L32     *MessageLayout
	L64     *MessageLayout
}

// FileLayout holds every message's MessagePair plus the file's ordered enums
// and extensions, all sorted by fully-qualified name.
type FileLayout struct {
	File *protogen.File

	Messages      []*MessagePair
	byMessageDesc map[protoreflect.FullName]*MessagePair
	Enums         []*protogen.Enum
	Extensions    []*protogen.Extension
}

// ByDescriptor looks up the MessagePair for a message descriptor.
func (fl *FileLayout) ByDescriptor(d protoreflect.MessageDescriptor) *MessagePair {
	return fl.byMessageDesc[d.FullName()]
}

// BuildFileLayout constructs the FileLayout for a single file in one pass:
// collect, then per-message build, then validate, then aggregate. Messages
// are built in declaration order, each message before the messages nested
// in it, not in dependency order; no message's layout reads another
// message's layout. Map-entry synthetic messages are handled like any other
// message. Fatal diagnostics across
// every message are joined with multierr before returning, so a single run
// reports every violation instead of only the first.
func BuildFileLayout(file *protogen.File) (*FileLayout, error) {
	fl := &FileLayout{
		File:          file,
		byMessageDesc: make(map[protoreflect.FullName]*MessagePair),
	}

	var allMessages []*protogen.Message
	collectMessages(file.Messages, &allMessages)

	cats := make(map[protoreflect.FullName]classify.Category)
	for _, msg := range allMessages {
		for _, f := range msg.Fields {
			cats[f.Desc.FullName()] = classify.Classify(f)
		}
	}

	var combinedErr error
	for _, msg := range allMessages {
		subs, subIndex := buildSubTable(msg)

		l32, diags32 := ComputePlatformLayout(msg, Width32, cats, subs, subIndex)
		l64, diags64 := ComputePlatformLayout(msg, Width64, cats, subs, subIndex)

		combinedErr = multierr.Append(combinedErr, diagnosticsToErr(msg, diags32))
		combinedErr = multierr.Append(combinedErr, diagnosticsToErr(msg, diags64))

		pair := &MessagePair{Message: msg, L32: l32, L64: l64}
		fl.Messages = append(fl.Messages, pair)
		fl.byMessageDesc[msg.Desc.FullName()] = pair
	}

	sort.SliceStable(fl.Messages, func(i, j int) bool {
		return fl.Messages[i].Message.Desc.FullName() < fl.Messages[j].Message.Desc.FullName()
	})

	collectEnums(file.Enums, &fl.Enums)
	for _, msg := range allMessages {
		collectEnums(msg.Enums, &fl.Enums)
	}
	sort.SliceStable(fl.Enums, func(i, j int) bool {
		return fl.Enums[i].Desc.FullName() < fl.Enums[j].Desc.FullName()
	})

	fl.Extensions = append(fl.Extensions, file.Extensions...)
	for _, msg := range allMessages {
		fl.Extensions = append(fl.Extensions, msg.Extensions...)
	}
	sort.SliceStable(fl.Extensions, func(i, j int) bool {
		return fl.Extensions[i].Desc.FullName() < fl.Extensions[j].Desc.FullName()
	})

	if combinedErr != nil {
		return fl, errors.Wrap(combinedErr, "layout: invariant violation")
	}
	return fl, nil
}

func collectMessages(msgs []*protogen.Message, out *[]*protogen.Message) {
	for _, m := range msgs {
		*out = append(*out, m)
		collectMessages(m.Messages, out)
	}
}

func collectEnums(enums []*protogen.Enum, out *[]*protogen.Enum) {
	*out = append(*out, enums...)
}

func diagnosticsToErr(msg *protogen.Message, diags []Diagnostic) error {
	var err error
	for _, d := range diags {
		if d.Level != DiagError {
			continue
		}
		err = multierr.Append(err, errors.Errorf("%s: %s (message %s)", d.Subject, d.Message, msg.Desc.FullName()))
	}
	return err
}
