package layout

import (
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// isClosedEnum reports whether an enum is closed, i.e. the runtime must
// reject unknown values rather than keeping them as unknown-but-valid.
// Classic proto2 enums are closed; proto3 enums (and anything built under
// edition features resolving to open) are open.
func isClosedEnum(e protoreflect.EnumDescriptor) bool {
	return e.Syntax() == protoreflect.Proto2
}

// buildSubTable scans msg's fields in declaration order and appends each
// referenced submessage or closed enum exactly once. Returns the sub-table
// and, for every field that references an entry, the entry's index.
func buildSubTable(msg *protogen.Message) ([]SubEntry, map[protoreflect.FullName]int) {
	var subs []SubEntry
	index := make(map[protoreflect.FullName]int) // referenced message/enum full name -> subs index
	fieldIndex := make(map[protoreflect.FullName]int)

	appendMessage := func(m *protogen.Message) int {
		name := m.Desc.FullName()
		if idx, ok := index[name]; ok {
			return idx
		}
		idx := len(subs)
		subs = append(subs, SubEntry{Message: m})
		index[name] = idx
		return idx
	}
	appendEnum := func(e *protogen.Enum) int {
		name := e.Desc.FullName()
		if idx, ok := index[name]; ok {
			return idx
		}
		idx := len(subs)
		subs = append(subs, SubEntry{Enum: e})
		index[name] = idx
		return idx
	}

	for _, f := range msg.Fields {
		switch f.Desc.Kind() {
		case protoreflect.MessageKind, protoreflect.GroupKind:
			if f.Message != nil {
				fieldIndex[f.Desc.FullName()] = appendMessage(f.Message)
			}
		case protoreflect.EnumKind:
			if f.Enum != nil && isClosedEnum(f.Enum.Desc) {
				fieldIndex[f.Desc.FullName()] = appendEnum(f.Enum)
			}
		}
	}

	return subs, fieldIndex
}
