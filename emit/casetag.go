package emit

import (
	"fmt"

	"google.golang.org/protobuf/compiler/protogen"

	"github.com/upb-gen/protoc-gen-upb/names"
)

// CaseTag is the discriminator enumeration emitted for one oneof:
// cases are the field numbers plus a NOT_SET = 0 sentinel, paired
// with a case(msg) accessor that reads the runtime case back out.
// Cases is the enumerator list a C `enum` declaration needs; the
// resolver's names.OneofNames.CaseOf maps a field back to its case name.
type CaseTag struct {
	EnumName string
	NotSet   string
	Cases    []CaseValue
}

// CaseValue is one non-sentinel case of a CaseTag enumeration.
type CaseValue struct {
	Name   string
	Number int32
}

// BuildCaseTag derives the CaseTag for one oneof using names already
// resolved by r.ResolveMessage.
func BuildCaseTag(r *names.Resolver, oneof *protogen.Oneof) CaseTag {
	on, ok := r.OneofNamesOf(oneof)
	if !ok {
		on = OneofNamesFallback(r, oneof)
	}
	ct := CaseTag{EnumName: on.EnumName, NotSet: on.NotSet}
	for _, f := range oneof.Fields {
		ct.Cases = append(ct.Cases, CaseValue{
			Name:   on.CaseOf[f.Desc.Name()],
			Number: int32(f.Desc.Number()),
		})
	}
	return ct
}

// OneofNamesFallback covers the rare case where emission is asked to
// describe a oneof whose containing message was never passed through
// ResolveMessage (e.g. a unit test exercising CaseTag in isolation).
func OneofNamesFallback(r *names.Resolver, oneof *protogen.Oneof) names.OneofNames {
	r.ResolveMessage(oneof.Parent)
	on, _ := r.OneofNamesOf(oneof)
	return on
}

// P emits the C enum declaration for ct.
func (ct CaseTag) P(g *protogen.GeneratedFile) {
	g.P("typedef enum {")
	g.P("  ", ct.NotSet, " = 0,")
	for _, c := range ct.Cases {
		g.P(fmt.Sprintf("  %s = %d,", c.Name, c.Number))
	}
	g.P("} ", ct.EnumName, ";")
}
