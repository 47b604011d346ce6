// Package names maps field, oneof, and extension descriptors to
// collision-free C identifiers.
//
// Collisions are tracked as a flat list of "this identifier was
// claimed by more than one origin" records, each naming the colliding
// identifier: the identifier is a derived C name, the sources are the
// protobuf fields that wanted it.
package names

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"
	"google.golang.org/protobuf/compiler/protogen"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Collision records that more than one field wanted the same derived
// C identifier within a message; the later-declared field (by
// protobuf declaration order) was renamed.
type Collision struct {
	Name    string
	Winner  protoreflect.FullName
	Renamed protoreflect.FullName
	Final   string
}

// FieldNames is the full family of accessor identifiers derived for one
// field.
type FieldNames struct {
	Stem    string // the getter name, F(msg)
	Hazzer  string // has_F(msg)
	Clearer string // clear_F(msg)
	Setter  string // set_F(msg, value)

	// Repeated accessor family; populated only for mode=array.
	ListSize    string
	ListGet     string
	ListResize  string
	ListAppend  string
	ListMutable string

	// Map accessor family; populated only for mode=map.
	MapSize       string
	MapGet        string
	MapIter       string
	MapSet        string
	MapDelete     string
	MapNextMutable string
}

// OneofNames is the discriminator family derived for one oneof.
type OneofNames struct {
	EnumName string // the case-tag enum type name
	NotSet   string // the NOT_SET = 0 sentinel case name
	Case     string // case(msg) accessor
	CaseOf   map[protoreflect.Name]string // field name -> enum case identifier
}

// Resolver resolves C identifiers for every message in a file,
// tracking and reporting collisions.
type Resolver struct {
	msgIdent   map[protoreflect.FullName]string
	fields     map[protoreflect.FullName]FieldNames
	oneofs     map[protoreflect.FullName]OneofNames
	collisions []Collision
}

// NewResolver returns an empty Resolver.
func NewResolver() *Resolver {
	return &Resolver{
		msgIdent: make(map[protoreflect.FullName]string),
		fields:   make(map[protoreflect.FullName]FieldNames),
		oneofs:   make(map[protoreflect.FullName]OneofNames),
	}
}

// Collisions returns every collision recorded across every message
// resolved so far, in the order they were detected.
func (r *Resolver) Collisions() []Collision {
	return r.collisions
}

// MessageIdent returns the C identifier stem for a message type:
// the dotted package name and every enclosing type name, joined by
// underscores, e.g. "foo_bar_Outer_Inner" for "foo.bar.Outer.Inner".
func (r *Resolver) MessageIdent(msg *protogen.Message) string {
	full := msg.Desc.FullName()
	if ident, ok := r.msgIdent[full]; ok {
		return ident
	}
	pkg := strings.ReplaceAll(string(msg.Desc.ParentFile().Package()), ".", "_")
	name := strings.ReplaceAll(string(full[len(msg.Desc.ParentFile().Package()):]), ".", "_")
	name = strings.TrimPrefix(name, "_")
	ident := sanitize(pkg + "_" + name)
	r.msgIdent[full] = ident
	return ident
}

// FieldNamesOf returns the previously resolved accessor family for a
// field. ResolveMessage must have been called for the field's
// containing message first.
func (r *Resolver) FieldNamesOf(field *protogen.Field) (FieldNames, bool) {
	n, ok := r.fields[field.Desc.FullName()]
	return n, ok
}

// OneofNamesOf returns the previously resolved discriminator family
// for a oneof. ResolveMessage must have been called first.
func (r *Resolver) OneofNamesOf(oneof *protogen.Oneof) (OneofNames, bool) {
	n, ok := r.oneofs[oneof.Desc.FullName()]
	return n, ok
}

// namespace is the set of C identifiers already claimed within one
// message, mapping the claimed name to the field that claimed it
// first.
type namespace struct {
	claimed map[string]protoreflect.FullName
}

func newNamespace() *namespace {
	return &namespace{claimed: make(map[string]protoreflect.FullName)}
}

func (ns *namespace) claim(name string, owner protoreflect.FullName) bool {
	if existing, ok := ns.claimed[name]; ok {
		return existing == owner
	}
	ns.claimed[name] = owner
	return true
}

// ResolveMessage derives every field's and oneof's C identifiers for msg, in
// declaration order, claiming names in a single per-message namespace so
// that a derived accessor of one field (e.g. a repeated field's "_size"
// accessor) can be detected colliding with the getter of another. Collisions bump the later-declared field's stem with a numeric
// suffix until every derived name is unique, and are recorded via
// Collisions().
func (r *Resolver) ResolveMessage(msg *protogen.Message) {
	ns := newNamespace()
	stem := r.MessageIdent(msg)

	for _, oneof := range msg.Oneofs {
		if oneof.Desc.IsSynthetic() {
			continue
		}
		r.resolveOneof(stem, oneof, ns)
	}

	for _, f := range msg.Fields {
		r.resolveField(stem, f, ns)
	}
}

func (r *Resolver) resolveField(msgIdent string, f *protogen.Field, ns *namespace) {
	fieldOwner := f.Desc.FullName()
	base := msgIdent + "_" + snake(string(f.Desc.Name()))

	for suffix := 0; ; suffix++ {
		candidate := base
		if suffix > 0 {
			candidate = fmt.Sprintf("%s_%d", base, suffix+1)
		}
		fn := buildFieldNames(candidate, f)
		if r.tryClaimAll(ns, fieldOwner, fn) {
			r.fields[fieldOwner] = fn
			if suffix > 0 {
				r.collisions = append(r.collisions, Collision{
					Name:    base,
					Renamed: fieldOwner,
					Final:   candidate,
				})
			}
			return
		}
	}
}

// tryClaimAll attempts to claim every non-empty name in fn under
// owner. On the first clash it rolls back any names it had already
// claimed for this attempt (so a retried, suffixed candidate starts
// from a clean namespace) and reports failure.
func (r *Resolver) tryClaimAll(ns *namespace, owner protoreflect.FullName, fn FieldNames) bool {
	names := allNames(fn)
	claimedSoFar := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		if !ns.claim(n, owner) {
			for _, c := range claimedSoFar {
				delete(ns.claimed, c)
			}
			if prior, ok := ns.claimed[n]; ok && prior != owner {
				r.collisions = append(r.collisions, Collision{Name: n, Winner: prior, Renamed: owner})
			}
			return false
		}
		claimedSoFar = append(claimedSoFar, n)
	}
	return true
}

func allNames(fn FieldNames) []string {
	return []string{
		fn.Stem, fn.Hazzer, fn.Clearer, fn.Setter,
		fn.ListSize, fn.ListGet, fn.ListResize, fn.ListAppend, fn.ListMutable,
		fn.MapSize, fn.MapGet, fn.MapIter, fn.MapSet, fn.MapDelete, fn.MapNextMutable,
	}
}

func buildFieldNames(stem string, f *protogen.Field) FieldNames {
	fn := FieldNames{
		Stem:    stem,
		Hazzer:  "has_" + stem,
		Clearer: "clear_" + stem,
		Setter:  "set_" + stem,
	}
	switch {
	case f.Desc.IsMap():
		fn.MapSize = stem + "_size"
		fn.MapGet = stem + "_get"
		fn.MapIter = stem + "_next"
		fn.MapSet = stem + "_set"
		fn.MapDelete = stem + "_delete"
		fn.MapNextMutable = stem + "_next_mutable"
	case f.Desc.IsList():
		fn.ListSize = stem + "_size"
		fn.ListGet = stem + "_get"
		fn.ListResize = stem + "_resize"
		fn.ListAppend = stem + "_append"
		fn.ListMutable = stem + "_mutable"
	}
	return fn
}

func (r *Resolver) resolveOneof(msgIdent string, oneof *protogen.Oneof, ns *namespace) {
	owner := oneof.Desc.FullName()
	base := msgIdent + "_" + snake(string(oneof.Desc.Name())) + "_case"

	candidate := base
	for suffix := 0; !ns.claim(candidate, owner); suffix++ {
		candidate = fmt.Sprintf("%s_%d", base, suffix+2)
	}

	on := OneofNames{
		EnumName: msgIdent + "_" + pascal(string(oneof.Desc.Name())) + "_case",
		NotSet:   strings.ToUpper(msgIdent) + "_" + strings.ToUpper(snake(string(oneof.Desc.Name()))) + "_NOT_SET",
		Case:     candidate,
		CaseOf:   make(map[protoreflect.Name]string),
	}
	for _, f := range oneof.Fields {
		on.CaseOf[f.Desc.Name()] = strings.ToUpper(msgIdent) + "_" + strings.ToUpper(snake(string(oneof.Desc.Name()))) + "_" + strings.ToUpper(snake(string(f.Desc.Name())))
	}
	r.oneofs[owner] = on
}

// ExtensionNames derives the has/clear/get/set family for an extension
// field, keyed off the extendee and the extension's own full name.
func ExtensionNames(ext *protogen.Extension) FieldNames {
	extendee := strings.ReplaceAll(string(ext.Extendee.Desc.FullName()), ".", "_")
	stem := sanitize(extendee) + "_ext_" + snake(string(ext.Desc.Name()))
	return FieldNames{
		Stem:    stem,
		Hazzer:  "has_" + stem,
		Clearer: "clear_" + stem,
		Setter:  "set_" + stem,
	}
}

func snake(s string) string {
	return strcase.ToSnake(s)
}

func pascal(s string) string {
	return strcase.ToCamel(s)
}

// sanitize collapses any run of characters outside [A-Za-z0-9_] to a
// single underscore, so a generated identifier is always a legal C
// identifier regardless of proto package punctuation.
func sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = r == '_'
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return b.String()
}
