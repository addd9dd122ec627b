// Package lexicon models atproto lexicon documents: JSON schema files
// identified by NSIDs, each carrying one or more named defs describing
// records, queries, procedures, subscriptions and nested types.
package lexicon

import (
	"bytes"
	"encoding/json"

	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/teranos/lexgen/errors"
)

// Definition kinds. The set is closed: anything else is ErrUnsupportedKind,
// never a silently-handled default.
const (
	KindRecord       = "record"
	KindQuery        = "query"
	KindProcedure    = "procedure"
	KindSubscription = "subscription"
	KindParams       = "params"
	KindObject       = "object"
	KindArray        = "array"
	KindString       = "string"
	KindInteger      = "integer"
	KindBoolean      = "boolean"
	KindBytes        = "bytes"
	KindCIDLink      = "cid-link"
	KindBlob         = "blob"
	KindUnion        = "union"
	KindToken        = "token"
	KindUnknown      = "unknown"
	KindRef          = "ref"
)

// MainDef is the def name a bare-NSID ref resolves to.
const MainDef = "main"

// Document is one lexicon file: a version marker, an NSID, and an ordered
// set of named defs. Documents are immutable once loaded.
type Document struct {
	Lexicon     int                `json:"lexicon"`
	ID          string             `json:"id"`
	Revision    *int               `json:"revision,omitempty"`
	Description string             `json:"description,omitempty"`
	Defs        map[string]*Schema `json:"defs"`

	// DefOrder preserves def declaration order from the source file.
	DefOrder []string `json:"-"`

	// Path is the source file path relative to the load root, kept for
	// error context. Empty for embedded builtin documents.
	Path string `json:"-"`
}

// UnmarshalJSON decodes a document and records def declaration order,
// which JSON maps would otherwise lose.
func (d *Document) UnmarshalJSON(data []byte) error {
	type documentAlias Document
	var alias documentAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*d = Document(alias)

	order, err := objectKeyOrder(data, "defs")
	if err != nil {
		return err
	}
	d.DefOrder = order
	return nil
}

// Validate checks the top-level required fields: version marker, a
// syntactically valid NSID, and a non-empty def set.
func (d *Document) Validate() error {
	if d.Lexicon != 1 {
		return errors.Wrapf(errors.ErrMalformedDocument, "document %q: unsupported lexicon version %d", d.ID, d.Lexicon)
	}
	if d.ID == "" {
		return errors.Wrap(errors.ErrMalformedDocument, "document missing id")
	}
	if _, err := syntax.ParseNSID(d.ID); err != nil {
		return errors.Wrapf(errors.ErrMalformedDocument, "document id %q is not a valid NSID: %v", d.ID, err)
	}
	if len(d.Defs) == 0 {
		return errors.Wrapf(errors.ErrMalformedDocument, "document %q has no defs", d.ID)
	}
	for _, name := range d.DefOrder {
		if d.Defs[name] == nil || d.Defs[name].Type == "" {
			return errors.Wrapf(errors.ErrMalformedDocument, "document %q def %q has no type", d.ID, name)
		}
	}
	return nil
}

// Body is the input or output of a procedure or query.
type Body struct {
	Description string  `json:"description,omitempty"`
	Encoding    string  `json:"encoding,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// Message is the event schema of a subscription.
type Message struct {
	Description string  `json:"description,omitempty"`
	Schema      *Schema `json:"schema,omitempty"`
}

// Schema is one definition node. A single struct covers the closed kind
// variant set; which fields are meaningful depends on Type. Constraint
// fields use pointers so absent and zero are distinguishable.
type Schema struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`

	// record
	Key    string  `json:"key,omitempty"`
	Record *Schema `json:"record,omitempty"`

	// query / procedure / subscription
	Parameters *Schema  `json:"parameters,omitempty"`
	Input      *Body    `json:"input,omitempty"`
	Output     *Body    `json:"output,omitempty"`
	Message    *Message `json:"message,omitempty"`

	// object / params
	Properties map[string]*Schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
	Nullable   []string           `json:"nullable,omitempty"`

	// PropertyOrder preserves property declaration order; generated
	// field order must equal it.
	PropertyOrder []string `json:"-"`

	// array
	Items *Schema `json:"items,omitempty"`

	// string / array length bounds
	MinLength *int `json:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty"`

	// string
	Format       string   `json:"format,omitempty"`
	MinGraphemes *int     `json:"minGraphemes,omitempty"`
	MaxGraphemes *int     `json:"maxGraphemes,omitempty"`
	KnownValues  []string `json:"knownValues,omitempty"`
	Enum         []string `json:"enum,omitempty"`
	Const        *string  `json:"const,omitempty"`
	Default      *string  `json:"default,omitempty"`

	// integer
	Minimum *int64 `json:"minimum,omitempty"`
	Maximum *int64 `json:"maximum,omitempty"`

	// union
	Refs   []string `json:"refs,omitempty"`
	Closed *bool    `json:"closed,omitempty"`

	// ref
	Ref string `json:"ref,omitempty"`

	// blob
	Accept  []string `json:"accept,omitempty"`
	MaxSize *int64   `json:"maxSize,omitempty"`
}

// UnmarshalJSON decodes a schema node and records property declaration order.
func (s *Schema) UnmarshalJSON(data []byte) error {
	type schemaAlias Schema
	var alias schemaAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*s = Schema(alias)

	if len(s.Properties) > 0 {
		order, err := objectKeyOrder(data, "properties")
		if err != nil {
			return err
		}
		s.PropertyOrder = order
	}
	return nil
}

// IsRequired reports whether the named property is in the required set.
func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// IsNullable reports whether the named property is in the nullable set.
func (s *Schema) IsNullable(name string) bool {
	for _, n := range s.Nullable {
		if n == name {
			return true
		}
	}
	return false
}

// Walk visits s and every nested schema node in declaration order:
// record bodies, parameters, input/output/message schemas, properties,
// and array items. fn returning an error stops the walk.
func (s *Schema) Walk(fn func(*Schema) error) error {
	if s == nil {
		return nil
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := s.Record.Walk(fn); err != nil {
		return err
	}
	if err := s.Parameters.Walk(fn); err != nil {
		return err
	}
	if s.Input != nil {
		if err := s.Input.Schema.Walk(fn); err != nil {
			return err
		}
	}
	if s.Output != nil {
		if err := s.Output.Schema.Walk(fn); err != nil {
			return err
		}
	}
	if s.Message != nil {
		if err := s.Message.Schema.Walk(fn); err != nil {
			return err
		}
	}
	for _, name := range s.PropertyOrder {
		if err := s.Properties[name].Walk(fn); err != nil {
			return err
		}
	}
	return s.Items.Walk(fn)
}

// objectKeyOrder scans raw JSON object bytes and returns the declaration
// order of the keys inside the named top-level object field. encoding/json
// maps drop ordering, so this is recovered by token scanning.
func objectKeyOrder(data []byte, field string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.Newf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, errors.Newf("expected object key, got %v", keyTok)
		}

		if key != field {
			if err := skipValue(dec); err != nil {
				return nil, err
			}
			continue
		}

		openTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if delim, ok := openTok.(json.Delim); !ok || delim != '{' {
			return nil, errors.Newf("field %q is not an object", field)
		}

		var order []string
		for dec.More() {
			nameTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			name, ok := nameTok.(string)
			if !ok {
				return nil, errors.Newf("expected key in %q, got %v", field, nameTok)
			}
			order = append(order, name)
			if err := skipValue(dec); err != nil {
				return nil, err
			}
		}
		return order, nil
	}
	return nil, nil
}

// skipValue consumes one complete JSON value from the decoder.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
