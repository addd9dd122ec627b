package typegen

import (
	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/lexicon"
	"github.com/teranos/lexgen/logger"
	"github.com/teranos/lexgen/resolver"
)

// position tracks where a schema node sits, because the lexicon grammar
// admits different kind subsets per position: objects may not nest inline
// in properties, arrays may not nest in arrays.
type position int

const (
	posDef position = iota
	posProperty
	posItem
)

func (p position) String() string {
	switch p {
	case posProperty:
		return "property"
	case posItem:
		return "array item"
	default:
		return "def"
	}
}

// Synthesize maps every def of every generated document to one or more
// GeneratedUnits. Top-level record defs synthesize their record object;
// query, procedure and subscription defs synthesize their parameters, with
// derived units for input/output bodies and subscription messages. A field
// is required iff its name is in the object's required set.
func Synthesize(table *resolver.Table) ([]*Unit, error) {
	var units []*Unit

	for _, doc := range table.GeneratedDocuments() {
		for _, name := range doc.DefOrder {
			key := resolver.SymbolKey{NSID: doc.ID, Def: name}
			defUnits, err := synthesizeDef(table, doc, key, doc.Defs[name])
			if err != nil {
				return nil, err
			}
			units = append(units, defUnits...)
		}
	}

	logger.Debugw("synthesized units", logger.FieldCount, len(units))
	return units, nil
}

// synthesizeDef produces the primary unit for a def plus any derived units.
func synthesizeDef(table *resolver.Table, doc *lexicon.Document, key resolver.SymbolKey, def *lexicon.Schema) ([]*Unit, error) {
	newUnit := func(suffix string, typ *Type, deps []resolver.SymbolKey) *Unit {
		return &Unit{
			Key:         key,
			Doc:         doc,
			SourceKind:  def.Type,
			Suffix:      suffix,
			Type:        typ,
			DependsOn:   deps,
			InCycle:     table.InCycle(key),
			Description: def.Description,
		}
	}

	synthOne := func(sch *lexicon.Schema, pos position) (*Type, []resolver.SymbolKey, error) {
		s := &defSynth{table: table, key: key, depSeen: make(map[resolver.SymbolKey]bool)}
		typ, err := s.schema(sch, pos)
		if err != nil {
			return nil, nil, err
		}
		return typ, s.deps, nil
	}

	emptyStruct := &Type{Kind: KindStruct}

	var units []*Unit
	switch def.Type {
	case lexicon.KindRecord:
		if def.Record == nil || def.Record.Type != lexicon.KindObject {
			return nil, errors.Wrapf(errors.ErrUnsupportedKind,
				"lexicon %s def %s: record without object body", key.NSID, key.Def)
		}
		typ, deps, err := synthOne(def.Record, posDef)
		if err != nil {
			return nil, err
		}
		units = append(units, newUnit("", typ, deps))

	case lexicon.KindQuery, lexicon.KindProcedure, lexicon.KindSubscription:
		if def.Parameters != nil {
			typ, deps, err := synthOne(def.Parameters, posDef)
			if err != nil {
				return nil, err
			}
			units = append(units, newUnit("", typ, deps))
		} else {
			units = append(units, newUnit("", emptyStruct, nil))
		}

		for _, derived := range []struct {
			suffix string
			schema *lexicon.Schema
		}{
			{"Input", bodySchema(def.Input)},
			{"Output", bodySchema(def.Output)},
			{"Message", messageSchema(def.Message)},
		} {
			if derived.schema == nil {
				continue
			}
			typ, deps, err := synthOne(derived.schema, posDef)
			if err != nil {
				return nil, err
			}
			units = append(units, newUnit(derived.suffix, typ, deps))
		}

	case lexicon.KindObject, lexicon.KindParams,
		lexicon.KindArray, lexicon.KindString, lexicon.KindInteger,
		lexicon.KindBoolean, lexicon.KindBytes, lexicon.KindCIDLink,
		lexicon.KindBlob, lexicon.KindUnion, lexicon.KindToken,
		lexicon.KindUnknown, lexicon.KindRef:
		typ, deps, err := synthOne(def, posDef)
		if err != nil {
			return nil, err
		}
		units = append(units, newUnit("", typ, deps))

	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedKind,
			"lexicon %s def %s: unrecognized kind %q", key.NSID, key.Def, def.Type)
	}
	return units, nil
}

func bodySchema(b *lexicon.Body) *lexicon.Schema {
	if b == nil {
		return nil
	}
	return b.Schema
}

func messageSchema(m *lexicon.Message) *lexicon.Schema {
	if m == nil {
		return nil
	}
	return m.Schema
}

// defSynth synthesizes one unit's type tree, accumulating its dependency
// set as refs and union variants resolve.
type defSynth struct {
	table   *resolver.Table
	key     resolver.SymbolKey
	deps    []resolver.SymbolKey
	depSeen map[resolver.SymbolKey]bool
}

func (s *defSynth) addDep(target resolver.SymbolKey) {
	if s.depSeen[target] {
		return
	}
	s.depSeen[target] = true
	s.deps = append(s.deps, target)
}

// schema is the fixed kind-to-shape mapping table. The switch is closed:
// anything unrecognized, or recognized in an illegal position, fails with
// ErrUnsupportedKind rather than degrading to a permissive default.
func (s *defSynth) schema(sch *lexicon.Schema, pos position) (*Type, error) {
	switch sch.Type {
	case lexicon.KindString:
		if len(sch.Enum) > 0 {
			return &Type{Kind: KindEnum, EnumValues: sch.Enum}, nil
		}
		return &Type{Kind: KindString, Format: sch.Format, Constraints: scalarConstraints(sch)}, nil

	case lexicon.KindInteger:
		return &Type{Kind: KindInteger, Constraints: scalarConstraints(sch)}, nil

	case lexicon.KindBoolean:
		return &Type{Kind: KindBoolean}, nil

	case lexicon.KindBytes:
		return &Type{Kind: KindBytes, Constraints: scalarConstraints(sch)}, nil

	case lexicon.KindCIDLink:
		return &Type{Kind: KindCIDLink}, nil

	case lexicon.KindBlob:
		return &Type{Kind: KindBlob, Constraints: scalarConstraints(sch)}, nil

	case lexicon.KindUnknown:
		return &Type{Kind: KindUnknown}, nil

	case lexicon.KindArray:
		if pos == posItem {
			return nil, s.unsupported(sch, pos)
		}
		if sch.Items == nil {
			return nil, errors.Wrapf(errors.ErrUnsupportedKind,
				"lexicon %s def %s: array without items", s.key.NSID, s.key.Def)
		}
		elem, err := s.schema(sch.Items, posItem)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindList, Elem: elem, Constraints: scalarConstraints(sch)}, nil

	case lexicon.KindObject, lexicon.KindParams:
		if pos != posDef {
			return nil, s.unsupported(sch, pos)
		}
		return s.object(sch)

	case lexicon.KindToken:
		if pos != posDef {
			return nil, s.unsupported(sch, pos)
		}
		return &Type{Kind: KindToken, TokenID: s.key.String()}, nil

	case lexicon.KindRef:
		return s.ref(sch.Ref)

	case lexicon.KindUnion:
		return s.union(sch)

	case lexicon.KindRecord, lexicon.KindQuery, lexicon.KindProcedure, lexicon.KindSubscription:
		// Primary defs never nest.
		return nil, s.unsupported(sch, pos)

	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedKind,
			"lexicon %s def %s: unrecognized kind %q", s.key.NSID, s.key.Def, sch.Type)
	}
}

func (s *defSynth) unsupported(sch *lexicon.Schema, pos position) error {
	return errors.Wrapf(errors.ErrUnsupportedKind,
		"lexicon %s def %s: kind %q not allowed as %s", s.key.NSID, s.key.Def, sch.Type, pos)
}

// object synthesizes a struct. Field order equals the source document's
// declared property order; requiredness comes from the required set alone.
func (s *defSynth) object(sch *lexicon.Schema) (*Type, error) {
	fields := make([]Field, 0, len(sch.PropertyOrder))
	for _, name := range sch.PropertyOrder {
		prop := sch.Properties[name]
		ft, err := s.schema(prop, posProperty)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{
			Name:        name,
			Type:        ft,
			Required:    sch.IsRequired(name),
			Nullable:    sch.IsNullable(name),
			Description: prop.Description,
		})
	}
	return &Type{Kind: KindStruct, Fields: fields}, nil
}

// ref resolves to a generated target (KindRef, recorded as a dependency)
// or to a filtered-out target (KindOpaque, rendered as an opaque forward
// reference so the field is never silently dropped).
func (s *defSynth) ref(ref string) (*Type, error) {
	target, err := s.table.ResolveRef(s.key, ref)
	if err != nil {
		return nil, err
	}
	sym, ok := s.table.Lookup(target)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnresolvedReference,
			"lexicon %s def %s: ref %q has no target", s.key.NSID, s.key.Def, ref)
	}
	if !sym.Generate {
		return &Type{Kind: KindOpaque, Target: target}, nil
	}
	s.addDep(target)
	return &Type{Kind: KindRef, Target: target}, nil
}

// union synthesizes a discriminated variant set. The discriminator is the
// protocol's $type field; variant order follows the declared ref list.
func (s *defSynth) union(sch *lexicon.Schema) (*Type, error) {
	variants := make([]resolver.SymbolKey, 0, len(sch.Refs))
	for _, ref := range sch.Refs {
		target, err := s.table.ResolveRef(s.key, ref)
		if err != nil {
			return nil, err
		}
		if sym, ok := s.table.Lookup(target); ok && sym.Generate {
			s.addDep(target)
		}
		variants = append(variants, target)
	}
	closed := sch.Closed != nil && *sch.Closed
	return &Type{
		Kind:          KindUnion,
		Variants:      variants,
		Closed:        closed,
		Discriminator: "$type",
	}, nil
}

func scalarConstraints(sch *lexicon.Schema) *Constraints {
	c := &Constraints{
		MinLength:    sch.MinLength,
		MaxLength:    sch.MaxLength,
		MinGraphemes: sch.MinGraphemes,
		MaxGraphemes: sch.MaxGraphemes,
		Minimum:      sch.Minimum,
		Maximum:      sch.Maximum,
		Const:        sch.Const,
		KnownValues:  sch.KnownValues,
		Accept:       sch.Accept,
		MaxSize:      sch.MaxSize,
	}
	if c.Empty() {
		return nil
	}
	return c
}
