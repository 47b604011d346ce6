// Package emit renders the two artifacts a file's FileLayout drives:
// the header's inline accessors and the source file's mini-table
// initializers. Both emitters write through protogen.GeneratedFile.P,
// the same incremental line-by-line call used to build Go source
// elsewhere in this module — here the payload is C, not Go, but
// protogen.GeneratedFile only runs its Go-specific formatting pass on
// filenames ending in ".go", so a ".upb.h"/".upb.c" target is written
// back byte-for-byte.
package emit

import (
	"strings"

	"google.golang.org/protobuf/compiler/protogen"

	"github.com/upb-gen/protoc-gen-upb/names"
)

// HeaderGuard derives a stable preprocessor guard from the input path
// "Stable preprocessor guard derived from the input path".
func HeaderGuard(path string) string {
	var b strings.Builder
	for _, r := range path {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	b.WriteString("_UPB_H_")
	return b.String()
}

// MiniTableSymbol is the C symbol for a message's MiniTable, e.g.
// "&foo_bar_Baz_msginit" used as a pointer in sub-tables and
// "foo_bar_Baz_msginit" as the definition's name.
func MiniTableSymbol(r *names.Resolver, msg *protogen.Message) string {
	return r.MessageIdent(msg) + "_msginit"
}

// SubTableSymbol is the C symbol for a message's MiniTable_Sub array.
func SubTableSymbol(r *names.Resolver, msg *protogen.Message) string {
	return r.MessageIdent(msg) + "_submsgs"
}

// FieldArraySymbol is the C symbol for a message's MiniTable_Field array.
func FieldArraySymbol(r *names.Resolver, msg *protogen.Message) string {
	return r.MessageIdent(msg) + "_fields"
}

// EnumMiniTableSymbol is the C symbol for a closed enum's MiniTable_Enum
// entry.
func EnumMiniTableSymbol(r *names.Resolver, enum *protogen.Enum) string {
	return enumIdent(r, enum) + "_enuminit"
}

func enumIdent(r *names.Resolver, enum *protogen.Enum) string {
	pkg := strings.ReplaceAll(string(enum.Desc.ParentFile().Package()), ".", "_")
	name := strings.TrimPrefix(strings.ReplaceAll(string(enum.Desc.FullName()[len(enum.Desc.ParentFile().Package()):]), ".", "_"), "_")
	return sanitizeIdent(pkg + "_" + name)
}

func sanitizeIdent(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// ExtensionSymbol is the C symbol for one MiniTable_Extension entry.
func ExtensionSymbol(r *names.Resolver, ext *protogen.Extension) string {
	extendee := sanitizeIdent(strings.ReplaceAll(string(ext.Extendee.Desc.FullName()), ".", "_"))
	return extendee + "_ext_" + sanitizeIdent(string(ext.Desc.Name())) + "_ext"
}

// FileMiniTableSymbol is the C symbol for the file-level aggregate
// MiniTable_File.
func FileMiniTableSymbol(file *protogen.File) string {
	return sanitizeIdent(strings.ReplaceAll(string(file.Desc.Package()), ".", "_")) + "_file_layout"
}

