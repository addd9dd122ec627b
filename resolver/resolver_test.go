package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/lexicon"
)

func mustDoc(t *testing.T, raw string) *lexicon.Document {
	t.Helper()
	var doc lexicon.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.NoError(t, doc.Validate())
	return &doc
}

func TestSymbolKey_String(t *testing.T) {
	assert.Equal(t, "app.test.thing", SymbolKey{NSID: "app.test.thing", Def: "main"}.String())
	assert.Equal(t, "app.test.thing#author", SymbolKey{NSID: "app.test.thing", Def: "author"}.String())
}

func TestMatchesPrefix(t *testing.T) {
	tests := []struct {
		nsid   string
		prefix string
		want   bool
	}{
		{"app.bsky.feed.post", "", true},
		{"app.bsky.feed.post", "app.bsky", true},
		{"app.bsky.feed.post", "app.bsky.feed.post", true},
		{"app.bskyx.thing", "app.bsky", false},
		{"com.atproto.repo.strongRef", "app.bsky", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchesPrefix(tt.nsid, tt.prefix),
			"nsid=%s prefix=%s", tt.nsid, tt.prefix)
	}
}

func TestResolveRef(t *testing.T) {
	docA := mustDoc(t, `{"lexicon": 1, "id": "app.test.a", "defs": {
		"main": {"type": "record", "record": {"type": "object"}},
		"helper": {"type": "object"}
	}}`)
	docB := mustDoc(t, `{"lexicon": 1, "id": "app.test.b", "defs": {
		"main": {"type": "object"}
	}}`)

	table, err := Resolve([]*lexicon.Document{docA, docB}, nil, "")
	require.NoError(t, err)

	from := SymbolKey{NSID: "app.test.a", Def: "main"}

	tests := []struct {
		name    string
		ref     string
		want    SymbolKey
		wantErr bool
	}{
		{name: "local fragment", ref: "#helper", want: SymbolKey{NSID: "app.test.a", Def: "helper"}},
		{name: "cross-document fragment", ref: "app.test.b#main", want: SymbolKey{NSID: "app.test.b", Def: "main"}},
		{name: "bare nsid resolves to main", ref: "app.test.b", want: SymbolKey{NSID: "app.test.b", Def: "main"}},
		{name: "unknown local def", ref: "#missing", wantErr: true},
		{name: "unknown document", ref: "app.test.nope", wantErr: true},
		{name: "empty ref", ref: "", wantErr: true},
		{name: "empty fragment", ref: "app.test.b#", wantErr: true},
		{name: "invalid nsid", ref: "not an nsid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.ResolveRef(from, tt.ref)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsUnresolvedReference(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_UnresolvedRefInGeneratedDoc(t *testing.T) {
	doc := mustDoc(t, `{"lexicon": 1, "id": "app.test.a", "defs": {
		"main": {"type": "record", "record": {"type": "object", "properties": {
			"target": {"type": "ref", "ref": "app.test.missing#thing"}
		}}}
	}}`)

	_, err := Resolve([]*lexicon.Document{doc}, nil, "")
	require.Error(t, err)
	assert.True(t, errors.IsUnresolvedReference(err))
	// The error names the referencing def and the offending ref.
	assert.Contains(t, err.Error(), "app.test.a")
	assert.Contains(t, err.Error(), "app.test.missing#thing")
}

func TestResolve_BuiltinsResolveButDoNotGenerate(t *testing.T) {
	doc := mustDoc(t, `{"lexicon": 1, "id": "app.test.post", "defs": {
		"main": {"type": "record", "record": {"type": "object", "properties": {
			"subject": {"type": "ref", "ref": "com.atproto.repo.strongRef"}
		}}}
	}}`)

	table, err := Resolve([]*lexicon.Document{doc}, lexicon.Builtins(), "")
	require.NoError(t, err)

	gen := table.GeneratedDocuments()
	require.Len(t, gen, 1)
	assert.Equal(t, "app.test.post", gen[0].ID)

	sym, ok := table.Lookup(SymbolKey{NSID: "com.atproto.repo.strongRef", Def: "main"})
	require.True(t, ok)
	assert.False(t, sym.Generate)
}

func TestResolve_InputShadowsBuiltin(t *testing.T) {
	override := mustDoc(t, `{"lexicon": 1, "id": "com.atproto.repo.strongRef", "defs": {
		"main": {"type": "object", "properties": {"custom": {"type": "string"}}}
	}}`)

	table, err := Resolve([]*lexicon.Document{override}, lexicon.Builtins(), "")
	require.NoError(t, err)

	sym, ok := table.Lookup(SymbolKey{NSID: "com.atproto.repo.strongRef", Def: "main"})
	require.True(t, ok)
	assert.True(t, sym.Generate)
	assert.Contains(t, sym.Schema.Properties, "custom")
}

func TestResolve_PrefixFilter(t *testing.T) {
	inside := mustDoc(t, `{"lexicon": 1, "id": "app.bsky.feed.like", "defs": {
		"main": {"type": "record", "record": {"type": "object", "properties": {
			"via": {"type": "ref", "ref": "com.example.other#main"}
		}}}
	}}`)
	outside := mustDoc(t, `{"lexicon": 1, "id": "com.example.other", "defs": {
		"main": {"type": "object"}
	}}`)

	table, err := Resolve([]*lexicon.Document{inside, outside}, nil, "app.bsky")
	require.NoError(t, err)

	gen := table.GeneratedDocuments()
	require.Len(t, gen, 1)
	assert.Equal(t, "app.bsky.feed.like", gen[0].ID)

	// Filtered-out documents stay in the table as resolution targets.
	sym, ok := table.Lookup(SymbolKey{NSID: "com.example.other", Def: "main"})
	require.True(t, ok)
	assert.False(t, sym.Generate)
}

func TestResolve_DanglingRefInResolutionOnlyDoc(t *testing.T) {
	// A filtered-out document with a dangling ref must not fail: its refs
	// are never rendered.
	generated := mustDoc(t, `{"lexicon": 1, "id": "app.test.a", "defs": {
		"main": {"type": "object"}
	}}`)
	filtered := mustDoc(t, `{"lexicon": 1, "id": "com.other.b", "defs": {
		"main": {"type": "object", "properties": {
			"bad": {"type": "ref", "ref": "com.missing.doc#nope"}
		}}
	}}`)

	_, err := Resolve([]*lexicon.Document{generated, filtered}, nil, "app.test")
	require.NoError(t, err)
}

func TestResolve_CrossDocumentCycle(t *testing.T) {
	docA := mustDoc(t, `{"lexicon": 1, "id": "app.test.a", "defs": {
		"main": {"type": "object", "properties": {
			"other": {"type": "ref", "ref": "app.test.b"}
		}}
	}}`)
	docB := mustDoc(t, `{"lexicon": 1, "id": "app.test.b", "defs": {
		"main": {"type": "object", "properties": {
			"back": {"type": "ref", "ref": "app.test.a"}
		}}
	}}`)
	docC := mustDoc(t, `{"lexicon": 1, "id": "app.test.c", "defs": {
		"main": {"type": "object", "properties": {
			"one": {"type": "ref", "ref": "app.test.a"}
		}}
	}}`)

	table, err := Resolve([]*lexicon.Document{docA, docB, docC}, nil, "")
	require.NoError(t, err)

	keyA := SymbolKey{NSID: "app.test.a", Def: "main"}
	keyB := SymbolKey{NSID: "app.test.b", Def: "main"}
	keyC := SymbolKey{NSID: "app.test.c", Def: "main"}

	assert.True(t, table.InCycle(keyA))
	assert.True(t, table.InCycle(keyB))
	// C points into the cycle but is not part of it.
	assert.False(t, table.InCycle(keyC))
}

func TestResolve_SelfReference(t *testing.T) {
	doc := mustDoc(t, `{"lexicon": 1, "id": "app.test.node", "defs": {
		"main": {"type": "object", "properties": {
			"children": {"type": "array", "items": {"type": "ref", "ref": "#main"}}
		}}
	}}`)

	table, err := Resolve([]*lexicon.Document{doc}, nil, "")
	require.NoError(t, err)
	assert.True(t, table.InCycle(SymbolKey{NSID: "app.test.node", Def: "main"}))
}

func TestResolve_DependenciesDeduplicatedInFirstSeenOrder(t *testing.T) {
	doc := mustDoc(t, `{"lexicon": 1, "id": "app.test.a", "defs": {
		"main": {"type": "object", "properties": {
			"one": {"type": "ref", "ref": "#zeta"},
			"two": {"type": "ref", "ref": "#alpha"},
			"three": {"type": "ref", "ref": "#zeta"}
		}},
		"zeta": {"type": "object"},
		"alpha": {"type": "object"}
	}}`)

	table, err := Resolve([]*lexicon.Document{doc}, nil, "")
	require.NoError(t, err)

	deps := table.Dependencies(SymbolKey{NSID: "app.test.a", Def: "main"})
	require.Len(t, deps, 2)
	assert.Equal(t, "zeta", deps[0].Def)
	assert.Equal(t, "alpha", deps[1].Def)
}

func TestResolve_UnionVariantsBecomeEdges(t *testing.T) {
	doc := mustDoc(t, `{"lexicon": 1, "id": "app.test.a", "defs": {
		"main": {"type": "object", "properties": {
			"embed": {"type": "union", "refs": ["#images", "#video"]}
		}},
		"images": {"type": "object"},
		"video": {"type": "object"}
	}}`)

	table, err := Resolve([]*lexicon.Document{doc}, nil, "")
	require.NoError(t, err)

	deps := table.Dependencies(SymbolKey{NSID: "app.test.a", Def: "main"})
	require.Len(t, deps, 2)
	assert.Equal(t, "images", deps[0].Def)
	assert.Equal(t, "video", deps[1].Def)
}

func TestSymbols_DeterministicOrder(t *testing.T) {
	docB := mustDoc(t, `{"lexicon": 1, "id": "app.test.b", "defs": {
		"zeta": {"type": "token"},
		"alpha": {"type": "token"}
	}}`)
	docA := mustDoc(t, `{"lexicon": 1, "id": "app.test.a", "defs": {
		"main": {"type": "object"}
	}}`)

	// Input order should not matter.
	table, err := Resolve([]*lexicon.Document{docB, docA}, nil, "")
	require.NoError(t, err)

	keys := table.Symbols()
	require.Len(t, keys, 3)
	assert.Equal(t, SymbolKey{NSID: "app.test.a", Def: "main"}, keys[0])
	// Defs stay in declaration order, not alphabetical.
	assert.Equal(t, SymbolKey{NSID: "app.test.b", Def: "zeta"}, keys[1])
	assert.Equal(t, SymbolKey{NSID: "app.test.b", Def: "alpha"}, keys[2])
}
