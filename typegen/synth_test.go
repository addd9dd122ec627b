package typegen

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/lexicon"
	"github.com/teranos/lexgen/resolver"
)

func mustTable(t *testing.T, raws ...string) *resolver.Table {
	t.Helper()
	var docs []*lexicon.Document
	for _, raw := range raws {
		var doc lexicon.Document
		require.NoError(t, json.Unmarshal([]byte(raw), &doc))
		require.NoError(t, doc.Validate())
		docs = append(docs, &doc)
	}
	table, err := resolver.Resolve(docs, lexicon.Builtins(), "")
	require.NoError(t, err)
	return table
}

func unitFor(t *testing.T, units []*Unit, key resolver.SymbolKey, suffix string) *Unit {
	t.Helper()
	for _, u := range units {
		if u.Key == key && u.Suffix == suffix {
			return u
		}
	}
	t.Fatalf("no unit for %s suffix %q", key, suffix)
	return nil
}

func TestSynthesize_RecordFieldOrderAndConstraints(t *testing.T) {
	table := mustTable(t, `{
		"lexicon": 1,
		"id": "app.test.thing",
		"defs": {
			"main": {
				"type": "record",
				"key": "tid",
				"record": {
					"type": "object",
					"required": ["title"],
					"properties": {
						"title": {"type": "string", "maxLength": 100},
						"count": {"type": "integer"}
					}
				}
			}
		}
	}`)

	units, err := Synthesize(table)
	require.NoError(t, err)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, lexicon.KindRecord, u.SourceKind)
	require.Equal(t, KindStruct, u.Type.Kind)
	require.Len(t, u.Type.Fields, 2)

	title := u.Type.Fields[0]
	assert.Equal(t, "title", title.Name)
	assert.True(t, title.Required)
	assert.Equal(t, KindString, title.Type.Kind)
	require.NotNil(t, title.Type.Constraints)
	require.NotNil(t, title.Type.Constraints.MaxLength)
	assert.Equal(t, 100, *title.Type.Constraints.MaxLength)

	count := u.Type.Fields[1]
	assert.Equal(t, "count", count.Name)
	assert.False(t, count.Required)
	assert.Equal(t, KindInteger, count.Type.Kind)
	assert.Nil(t, count.Type.Constraints)
}

func TestSynthesize_QueryDerivedUnits(t *testing.T) {
	table := mustTable(t, `{
		"lexicon": 1,
		"id": "app.test.getThing",
		"defs": {
			"main": {
				"type": "query",
				"parameters": {
					"type": "params",
					"properties": {
						"limit": {"type": "integer", "minimum": 1, "maximum": 100}
					}
				},
				"output": {
					"encoding": "application/json",
					"schema": {
						"type": "object",
						"required": ["items"],
						"properties": {
							"items": {"type": "array", "items": {"type": "string"}}
						}
					}
				}
			}
		}
	}`)

	units, err := Synthesize(table)
	require.NoError(t, err)
	require.Len(t, units, 2)

	key := resolver.SymbolKey{NSID: "app.test.getThing", Def: "main"}

	params := unitFor(t, units, key, "")
	require.Equal(t, KindStruct, params.Type.Kind)
	require.Len(t, params.Type.Fields, 1)
	limit := params.Type.Fields[0]
	require.NotNil(t, limit.Type.Constraints)
	assert.Equal(t, int64(1), *limit.Type.Constraints.Minimum)
	assert.Equal(t, int64(100), *limit.Type.Constraints.Maximum)

	output := unitFor(t, units, key, "Output")
	require.Equal(t, KindStruct, output.Type.Kind)
	items := output.Type.Fields[0]
	require.Equal(t, KindList, items.Type.Kind)
	assert.Equal(t, KindString, items.Type.Elem.Kind)
}

func TestSynthesize_SubscriptionMessage(t *testing.T) {
	table := mustTable(t, `{
		"lexicon": 1,
		"id": "app.test.subscribe",
		"defs": {
			"main": {
				"type": "subscription",
				"message": {
					"schema": {
						"type": "union",
						"refs": ["#event"]
					}
				}
			},
			"event": {"type": "object"}
		}
	}`)

	units, err := Synthesize(table)
	require.NoError(t, err)

	key := resolver.SymbolKey{NSID: "app.test.subscribe", Def: "main"}

	// Parameters unit exists even without declared parameters.
	params := unitFor(t, units, key, "")
	assert.Equal(t, KindStruct, params.Type.Kind)
	assert.Empty(t, params.Type.Fields)

	message := unitFor(t, units, key, "Message")
	require.Equal(t, KindUnion, message.Type.Kind)
	assert.Equal(t, "$type", message.Type.Discriminator)
	assert.False(t, message.Type.Closed)
	require.Len(t, message.Type.Variants, 1)
	assert.Equal(t, "event", message.Type.Variants[0].Def)
}

func TestSynthesize_TokenAndEnum(t *testing.T) {
	table := mustTable(t, `{
		"lexicon": 1,
		"id": "app.test.defs",
		"defs": {
			"activeState": {"type": "token", "description": "The thing is active."},
			"state": {"type": "string", "enum": ["active", "inactive"]}
		}
	}`)

	units, err := Synthesize(table)
	require.NoError(t, err)
	require.Len(t, units, 2)

	token := unitFor(t, units, resolver.SymbolKey{NSID: "app.test.defs", Def: "activeState"}, "")
	require.Equal(t, KindToken, token.Type.Kind)
	assert.Equal(t, "app.test.defs#activeState", token.Type.TokenID)

	enum := unitFor(t, units, resolver.SymbolKey{NSID: "app.test.defs", Def: "state"}, "")
	require.Equal(t, KindEnum, enum.Type.Kind)
	assert.Equal(t, []string{"active", "inactive"}, enum.Type.EnumValues)
}

func TestSynthesize_RefToBuiltinIsOpaque(t *testing.T) {
	table := mustTable(t, `{
		"lexicon": 1,
		"id": "app.test.like",
		"defs": {
			"main": {
				"type": "record",
				"record": {
					"type": "object",
					"required": ["subject"],
					"properties": {
						"subject": {"type": "ref", "ref": "com.atproto.repo.strongRef"}
					}
				}
			}
		}
	}`)

	units, err := Synthesize(table)
	require.NoError(t, err)
	require.Len(t, units, 1)

	subject := units[0].Type.Fields[0]
	require.Equal(t, KindOpaque, subject.Type.Kind)
	assert.Equal(t, "com.atproto.repo.strongRef", subject.Type.Target.NSID)
	// Opaque targets are not generation dependencies.
	assert.Empty(t, units[0].DependsOn)
}

func TestSynthesize_RefToGeneratedDefIsDependency(t *testing.T) {
	table := mustTable(t, `{
		"lexicon": 1,
		"id": "app.test.post",
		"defs": {
			"main": {
				"type": "record",
				"record": {
					"type": "object",
					"properties": {
						"author": {"type": "ref", "ref": "#author"}
					}
				}
			},
			"author": {"type": "object"}
		}
	}`)

	units, err := Synthesize(table)
	require.NoError(t, err)

	main := unitFor(t, units, resolver.SymbolKey{NSID: "app.test.post", Def: "main"}, "")
	require.Len(t, main.DependsOn, 1)
	assert.Equal(t, "author", main.DependsOn[0].Def)
	assert.Equal(t, KindRef, main.Type.Fields[0].Type.Kind)
}

func TestSynthesize_IllegalPositions(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "nested array",
			doc: `{"lexicon": 1, "id": "app.test.bad", "defs": {
				"main": {"type": "object", "properties": {
					"grid": {"type": "array", "items": {"type": "array", "items": {"type": "string"}}}
				}}
			}}`,
		},
		{
			name: "inline object property",
			doc: `{"lexicon": 1, "id": "app.test.bad", "defs": {
				"main": {"type": "object", "properties": {
					"nested": {"type": "object", "properties": {"x": {"type": "string"}}}
				}}
			}}`,
		},
		{
			name: "token as property",
			doc: `{"lexicon": 1, "id": "app.test.bad", "defs": {
				"main": {"type": "object", "properties": {
					"tag": {"type": "token"}
				}}
			}}`,
		},
		{
			name: "record without object body",
			doc: `{"lexicon": 1, "id": "app.test.bad", "defs": {
				"main": {"type": "record"}
			}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustTable(t, tt.doc)
			_, err := Synthesize(table)
			require.Error(t, err)
			assert.True(t, errors.IsUnsupportedKind(err))
		})
	}
}

func TestSynthesize_NullableFields(t *testing.T) {
	table := mustTable(t, `{
		"lexicon": 1,
		"id": "app.test.profile",
		"defs": {
			"main": {
				"type": "object",
				"required": ["displayName"],
				"nullable": ["displayName"],
				"properties": {
					"displayName": {"type": "string"}
				}
			}
		}
	}`)

	units, err := Synthesize(table)
	require.NoError(t, err)

	field := units[0].Type.Fields[0]
	assert.True(t, field.Required)
	assert.True(t, field.Nullable)
}
