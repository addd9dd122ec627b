// Package typegen synthesizes language-agnostic type shapes from resolved
// lexicon documents, allocates collision-free output names, and emits
// deterministic data-model source files through pluggable Generator
// backends.
package typegen

import (
	"github.com/teranos/lexgen/lexicon"
	"github.com/teranos/lexgen/resolver"
)

// TypeKind tags the closed set of synthesized type shapes.
type TypeKind int

const (
	KindInvalid TypeKind = iota
	KindString
	KindInteger
	KindBoolean
	KindBytes
	KindCIDLink
	KindBlob
	KindUnknown
	KindList
	KindStruct
	KindEnum
	KindToken
	KindUnion
	KindRef
	KindOpaque
)

// String implements fmt.Stringer for diagnostics.
func (k TypeKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindBytes:
		return "bytes"
	case KindCIDLink:
		return "cid-link"
	case KindBlob:
		return "blob"
	case KindUnknown:
		return "unknown"
	case KindList:
		return "list"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindToken:
		return "token"
	case KindUnion:
		return "union"
	case KindRef:
		return "ref"
	case KindOpaque:
		return "opaque"
	default:
		return "invalid"
	}
}

// Constraints carries the scalar validation bounds a definition declared.
// Nil pointer means the bound is absent; no defaults are ever guessed.
type Constraints struct {
	MinLength    *int
	MaxLength    *int
	MinGraphemes *int
	MaxGraphemes *int
	Minimum      *int64
	Maximum      *int64
	Const        *string
	KnownValues  []string
	Accept       []string
	MaxSize      *int64
}

// Empty reports whether no constraint is set.
func (c *Constraints) Empty() bool {
	if c == nil {
		return true
	}
	return c.MinLength == nil && c.MaxLength == nil &&
		c.MinGraphemes == nil && c.MaxGraphemes == nil &&
		c.Minimum == nil && c.Maximum == nil &&
		c.Const == nil && len(c.KnownValues) == 0 &&
		len(c.Accept) == 0 && c.MaxSize == nil
}

// Type is the synthesized, language-agnostic shape of one definition node.
type Type struct {
	Kind TypeKind

	// KindList
	Elem *Type

	// KindStruct
	Fields []Field

	// KindEnum: closed value set of a string def with enum.
	EnumValues []string

	// KindToken: the fully-qualified token identifier ("nsid#name").
	TokenID string

	// KindUnion
	Variants      []resolver.SymbolKey
	Closed        bool
	Discriminator string

	// KindRef and KindOpaque. An Opaque target exists in the symbol
	// table but is excluded from generation by the prefix filter; it
	// renders as an opaque forward reference, never a dropped field.
	Target resolver.SymbolKey

	// Scalar kinds
	Constraints *Constraints
	Format      string
}

// Field is one struct member. Required is true iff the field name appears
// in the owning object's required set; Nullable adds a null arm to the
// rendered type without affecting requiredness.
type Field struct {
	Name        string
	Type        *Type
	Required    bool
	Nullable    bool
	Description string
}

// Unit is one emitted named type: the generation-ordering atom.
type Unit struct {
	Key resolver.SymbolKey
	Doc *lexicon.Document

	// SourceKind is the lexicon kind of the originating def.
	SourceKind string

	// Suffix distinguishes derived units (procedure inputs/outputs,
	// subscription messages) from the def's primary unit.
	Suffix string

	// Name is the allocated output identifier, filled by Allocate.
	Name string

	Type *Type

	// DependsOn lists the generated units this unit's fields reference,
	// in first-reference order. Drives emission ordering.
	DependsOn []resolver.SymbolKey

	// InCycle marks units participating in a reference cycle.
	InCycle bool

	Description string
}

// Import is a cross-file type dependency.
type Import struct {
	Module string
	Name   string
}

// File is one output file handed to a Generator: the units of a single
// document in emission order plus everything needed to render references.
type File struct {
	// Module is the file's base name without extension, derived from
	// the document NSID with dots replaced by underscores.
	Module string

	NSID        string
	Description string

	// Units in deterministic topological emission order.
	Units []*Unit

	// Imports lists cross-module dependencies, sorted by module then name.
	Imports []Import

	// Names maps every referenced symbol to its allocated identifier,
	// including opaque (non-generated) targets.
	Names map[resolver.SymbolKey]string

	// Opaque marks referenced symbols excluded from generation; backends
	// render them as opaque forward references.
	Opaque map[resolver.SymbolKey]bool
}

// UnitIndex returns the position of each unit's symbol within the file,
// letting backends decide whether a same-file reference points forward
// (cycle break) or backward. Derived units never receive references.
func (f *File) UnitIndex() map[resolver.SymbolKey]int {
	idx := make(map[resolver.SymbolKey]int, len(f.Units))
	for i, u := range f.Units {
		if u.Suffix == "" {
			idx[u.Key] = i
		}
	}
	return idx
}
