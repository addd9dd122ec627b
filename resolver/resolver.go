// Package resolver builds the cross-document symbol table for one compiler
// invocation and resolves every ref to a canonical symbol. The table is
// immutable after Resolve returns and is threaded explicitly through the
// pipeline, so concurrent invocations never share state.
package resolver

import (
	"sort"
	"strings"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/lexicon"
	"github.com/teranos/lexgen/logger"
)

// SymbolKey is the canonical address of any referenceable node: a document
// NSID plus a def name.
type SymbolKey struct {
	NSID string
	Def  string
}

// String renders the key the way lexicon refs spell it: bare NSID for the
// main def, nsid#def otherwise.
func (k SymbolKey) String() string {
	if k.Def == lexicon.MainDef {
		return k.NSID
	}
	return k.NSID + "#" + k.Def
}

// Symbol is one resolvable def.
type Symbol struct {
	Key    SymbolKey
	Doc    *lexicon.Document
	Schema *lexicon.Schema

	// Generate marks symbols whose documents are code-generated.
	// Builtin documents and documents excluded by the prefix filter
	// stay in the table as resolution targets with Generate false.
	Generate bool
}

// Table is the symbol table for one invocation.
type Table struct {
	symbols map[SymbolKey]*Symbol
	order   []SymbolKey // NSID-sorted doc order, def declaration order

	edges  map[SymbolKey][]SymbolKey // def-level dependency edges
	cyclic map[SymbolKey]bool

	generated []*lexicon.Document // NSID-sorted
}

// Lookup returns the symbol for a key.
func (t *Table) Lookup(key SymbolKey) (*Symbol, bool) {
	sym, ok := t.symbols[key]
	return sym, ok
}

// Symbols returns every key in deterministic order: documents sorted by
// NSID, defs in declaration order.
func (t *Table) Symbols() []SymbolKey {
	return t.order
}

// GeneratedDocuments returns the documents selected for code generation,
// sorted by NSID.
func (t *Table) GeneratedDocuments() []*lexicon.Document {
	return t.generated
}

// Dependencies returns the def-level dependency edges out of key, in
// first-reference order.
func (t *Table) Dependencies(key SymbolKey) []SymbolKey {
	return t.edges[key]
}

// InCycle reports whether key participates in a reference cycle. Cycles
// are legal; the emitter breaks them with forward references.
func (t *Table) InCycle(key SymbolKey) bool {
	return t.cyclic[key]
}

// ResolveRef resolves a ref string relative to the def it appears in.
// Rules: "#name" resolves within the same document, "nsid#name" resolves
// cross-document, a bare "nsid" resolves to that document's main def.
func (t *Table) ResolveRef(from SymbolKey, ref string) (SymbolKey, error) {
	target, err := parseRef(from.NSID, ref)
	if err != nil {
		return SymbolKey{}, errors.Wrapf(err, "lexicon %s def %s", from.NSID, from.Def)
	}
	if _, ok := t.symbols[target]; !ok {
		return SymbolKey{}, errors.Wrapf(errors.ErrUnresolvedReference,
			"lexicon %s def %s: ref %q has no target", from.NSID, from.Def, ref)
	}
	return target, nil
}

// parseRef turns a ref string into a SymbolKey without consulting the table.
func parseRef(fromNSID, ref string) (SymbolKey, error) {
	if ref == "" {
		return SymbolKey{}, errors.Wrap(errors.ErrUnresolvedReference, "empty ref")
	}
	if name, ok := strings.CutPrefix(ref, "#"); ok {
		if name == "" {
			return SymbolKey{}, errors.Wrapf(errors.ErrUnresolvedReference, "ref %q has empty fragment", ref)
		}
		return SymbolKey{NSID: fromNSID, Def: name}, nil
	}

	nsid, name, found := strings.Cut(ref, "#")
	if !found {
		name = lexicon.MainDef
	} else if name == "" {
		return SymbolKey{}, errors.Wrapf(errors.ErrUnresolvedReference, "ref %q has empty fragment", ref)
	}
	if _, err := syntax.ParseNSID(nsid); err != nil {
		return SymbolKey{}, errors.Wrapf(errors.ErrUnresolvedReference, "ref %q is not a valid NSID reference: %v", ref, err)
	}
	return SymbolKey{NSID: nsid, Def: name}, nil
}

// MatchesPrefix reports whether an NSID falls inside a namespace prefix.
// Matching is segment-aware: "app.bsky" matches "app.bsky.feed.post" but
// not "app.bskyx.thing". An empty prefix matches everything.
func MatchesPrefix(nsid, prefix string) bool {
	if prefix == "" {
		return true
	}
	return nsid == prefix || strings.HasPrefix(nsid, prefix+".")
}

// Resolve builds the symbol table over input plus extra documents and
// resolves every ref reachable from a generated def. Input documents are
// code-generated when they match the prefix filter; extra documents (the
// embedded builtins) are resolution-only and are shadowed by input
// documents with the same NSID. Unknown ref targets fail with
// ErrUnresolvedReference; reference cycles are recorded, not rejected.
func Resolve(input, extra []*lexicon.Document, prefix string) (*Table, error) {
	t := &Table{
		symbols: make(map[SymbolKey]*Symbol),
		edges:   make(map[SymbolKey][]SymbolKey),
		cyclic:  make(map[SymbolKey]bool),
	}

	seen := make(map[string]*lexicon.Document, len(input))
	for _, doc := range input {
		seen[doc.ID] = doc
	}

	docs := make([]*lexicon.Document, 0, len(input)+len(extra))
	docs = append(docs, input...)
	for _, doc := range extra {
		if _, shadowed := seen[doc.ID]; shadowed {
			logger.Debugw("input lexicon shadows builtin", logger.FieldNSID, doc.ID)
			continue
		}
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	generatedSet := make(map[string]bool, len(input))
	for _, doc := range input {
		generatedSet[doc.ID] = MatchesPrefix(doc.ID, prefix)
	}

	for _, doc := range docs {
		generate := generatedSet[doc.ID]
		if generate {
			t.generated = append(t.generated, doc)
		}
		for _, name := range doc.DefOrder {
			key := SymbolKey{NSID: doc.ID, Def: name}
			t.symbols[key] = &Symbol{
				Key:      key,
				Doc:      doc,
				Schema:   doc.Defs[name],
				Generate: generate,
			}
			t.order = append(t.order, key)
		}
	}

	// Resolve every ref reachable from generated defs. Refs inside
	// resolution-only documents are never rendered, so they may dangle.
	for _, key := range t.order {
		sym := t.symbols[key]
		if !sym.Generate {
			continue
		}
		if err := t.collectEdges(key, sym.Schema); err != nil {
			return nil, err
		}
	}

	t.markCycles()

	logger.Debugw("resolved document set",
		logger.FieldCount, len(t.symbols),
		logger.FieldPrefix, prefix)
	return t, nil
}

// collectEdges walks a def's schema tree, resolves each ref and union
// variant, and records deduplicated dependency edges in first-seen order.
func (t *Table) collectEdges(from SymbolKey, schema *lexicon.Schema) error {
	seen := make(map[SymbolKey]bool)

	return schema.Walk(func(s *lexicon.Schema) error {
		var refs []string
		switch s.Type {
		case lexicon.KindRef:
			refs = []string{s.Ref}
		case lexicon.KindUnion:
			refs = s.Refs
		default:
			return nil
		}

		for _, ref := range refs {
			target, err := t.ResolveRef(from, ref)
			if err != nil {
				return err
			}
			if seen[target] {
				continue
			}
			seen[target] = true
			t.edges[from] = append(t.edges[from], target)
		}
		return nil
	})
}

// markCycles runs an iterative Tarjan SCC pass over the def-level edge
// graph and marks every key inside a non-trivial component (or with a
// self-edge) as cyclic.
func (t *Table) markCycles() {
	index := make(map[SymbolKey]int)
	lowlink := make(map[SymbolKey]int)
	onStack := make(map[SymbolKey]bool)
	var stack []SymbolKey
	next := 0

	type frame struct {
		key  SymbolKey
		edge int
	}

	for _, root := range t.order {
		if _, visited := index[root]; visited {
			continue
		}

		work := []frame{{key: root}}
		for len(work) > 0 {
			f := &work[len(work)-1]
			if f.edge == 0 {
				index[f.key] = next
				lowlink[f.key] = next
				next++
				stack = append(stack, f.key)
				onStack[f.key] = true
			}

			advanced := false
			for f.edge < len(t.edges[f.key]) {
				target := t.edges[f.key][f.edge]
				f.edge++
				if _, visited := index[target]; !visited {
					work = append(work, frame{key: target})
					advanced = true
					break
				}
				if onStack[target] && index[target] < lowlink[f.key] {
					lowlink[f.key] = index[target]
				}
			}
			if advanced {
				continue
			}

			if lowlink[f.key] == index[f.key] {
				var scc []SymbolKey
				for {
					top := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[top] = false
					scc = append(scc, top)
					if top == f.key {
						break
					}
				}
				if len(scc) > 1 {
					for _, k := range scc {
						t.cyclic[k] = true
					}
				} else {
					// Single node: cyclic only via a self-edge.
					for _, target := range t.edges[scc[0]] {
						if target == scc[0] {
							t.cyclic[scc[0]] = true
						}
					}
				}
			}

			done := work[len(work)-1].key
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := &work[len(work)-1]
				if lowlink[done] < lowlink[parent.key] {
					lowlink[parent.key] = lowlink[done]
				}
			}
		}
	}
}
