// Package layout computes the wire-accelerated binary layout of a message
// for both pointer widths.
package layout

import (
	"google.golang.org/protobuf/compiler/protogen"

	"github.com/upb-gen/protoc-gen-upb/classify"
)

// Width is a target pointer width in bytes.
type Width uint32

const (
	Width32 Width = 4
	Width64 Width = 8
)

func (w Width) String() string {
	if w == Width32 {
		return "32-bit"
	}
	return "64-bit"
}

// ExtensionMode is a message's extension handling mode.
type ExtensionMode int

const (
	NonExtendable ExtensionMode = iota
	Extendable
	MessageSet
)

// NoSub is the sentinel for FieldLayout.SubMsgIndex when a field has no
// submessage/closed-enum reference.
const NoSub = -1

// FieldLayout is the per-field, per-platform layout record.
type FieldLayout struct {
	Field    *protogen.Field
	Category classify.Category

	Offset uint32

	// Presence is: >= 0 a hasbit index < 0 ~caseOffset (bitwise NOT), i.e. the
	// field is a oneof member and caseOffset = ^Presence 0 with
	// Category.Presence == PresenceImplicit means "no presence tracking at all"
	// (the zero value is ambiguous with hasbit index 0, disambiguated by
	// Category.Presence).
	Presence int32

	SubMsgIndex int
}

// CaseOffset returns the byte offset of this oneof member's case-tag
// word. Only valid when Category.Presence == classify.PresenceOneofCase.
func (f FieldLayout) CaseOffset() uint32 {
	return uint32(^f.Presence)
}

// OneofLayout groups the members of a single oneof and the shared slots
// they occupy.
type OneofLayout struct {
	Oneof      *protogen.Oneof
	DataOffset uint32
	CaseOffset uint32
	Members    []*protogen.Field
}

// SubEntry is one element of a message's sub-table: a reference to
// either a submessage or a closed enum referenced by one of its fields.
type SubEntry struct {
	Message *protogen.Message
	Enum    *protogen.Enum
}

func (s SubEntry) IsEnum() bool { return s.Enum != nil }

// MessageLayout is the per-platform layout of one message.
type MessageLayout struct {
	Message *protogen.Message
	Width   Width

	Size          uint32
	Fields        []FieldLayout // ascending field number, matching DenseBelow's 1..N contract
	Oneofs        []OneofLayout
	FieldCount    int
	RequiredCount int
	DenseBelow    int
	Subs          []SubEntry
	ExtensionMode ExtensionMode
	HasbitBytes   uint32
}

// FieldByDescriptorName finds the layout record for the named field, or
// nil. Intended for tests and emitters doing spot lookups.
func (m *MessageLayout) FieldByDescriptorName(name string) *FieldLayout {
	for i := range m.Fields {
		if string(m.Fields[i].Field.Desc.Name()) == name {
			return &m.Fields[i]
		}
	}
	return nil
}

// Diagnostic is a recorded problem found while building a layout.
type Diagnostic struct {
	Level   DiagLevel
	Message string
	Subject string
}

type DiagLevel int

const (
	DiagWarning DiagLevel = iota
	DiagError
)

func (d Diagnostic) Error() string {
	return d.Subject + ": " + d.Message
}
