// Package typescript renders TypeScript interface declarations from
// synthesized lexicon units.
package typescript

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teranos/lexgen/typegen"
)

func init() {
	typegen.RegisterGenerator(NewGenerator())
}

// Generator implements typegen.Generator for TypeScript.
type Generator struct{}

// NewGenerator creates a new TypeScript generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Language returns "typescript".
func (g *Generator) Language() string {
	return "typescript"
}

// FileExtension returns "ts".
func (g *Generator) FileExtension() string {
	return "ts"
}

// GenerateFile renders one TypeScript module. Type-only imports sit at
// the top; `import type` never executes at runtime, so reference cycles
// between modules are harmless.
func (g *Generator) GenerateFile(f *typegen.File) (string, error) {
	r := &renderer{file: f}

	var body strings.Builder
	for _, unit := range f.Units {
		rendered, err := r.unit(unit)
		if err != nil {
			return "", err
		}
		body.WriteString(rendered)
		body.WriteString("\n\n")
	}

	var sb strings.Builder
	sb.WriteString("// Code generated by lexgen from atproto lexicon schemas. DO NOT EDIT.\n")
	sb.WriteString(fmt.Sprintf("// Source lexicon: %s\n\n", f.NSID))

	for _, line := range groupImports(f.Imports) {
		sb.WriteString(line + "\n")
	}
	if len(f.Imports) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString(strings.TrimRight(body.String(), "\n"))
	sb.WriteString("\n")
	return sb.String(), nil
}

// groupImports renders one `import type` line per referenced module.
func groupImports(imports []typegen.Import) []string {
	byModule := make(map[string][]string)
	var modules []string
	for _, imp := range imports {
		if _, seen := byModule[imp.Module]; !seen {
			modules = append(modules, imp.Module)
		}
		byModule[imp.Module] = append(byModule[imp.Module], imp.Name)
	}
	sort.Strings(modules)

	lines := make([]string, 0, len(modules))
	for _, module := range modules {
		names := byModule[module]
		sort.Strings(names)
		lines = append(lines, fmt.Sprintf("import type { %s } from \"./%s\";",
			strings.Join(names, ", "), module))
	}
	return lines
}

type renderer struct {
	file *typegen.File
}

// unit renders one exported declaration.
func (r *renderer) unit(u *typegen.Unit) (string, error) {
	switch u.Type.Kind {
	case typegen.KindStruct:
		return r.iface(u), nil
	case typegen.KindEnum:
		return r.alias(u), nil
	case typegen.KindToken:
		return fmt.Sprintf("export const %s = %q;\nexport type %s = typeof %s;",
			u.Name, u.Type.TokenID, u.Name, u.Name), nil
	default:
		return r.alias(u), nil
	}
}

func (r *renderer) alias(u *typegen.Unit) string {
	var sb strings.Builder
	if u.Description != "" {
		sb.WriteString(docComment(u.Description, ""))
	}
	sb.WriteString(fmt.Sprintf("export type %s = %s;", u.Name, r.annotate(u.Type)))
	return sb.String()
}

// iface renders a struct unit as an interface, property order following
// the source document's declared order.
func (r *renderer) iface(u *typegen.Unit) string {
	var sb strings.Builder
	if u.Description != "" {
		sb.WriteString(docComment(u.Description, ""))
	}
	sb.WriteString(fmt.Sprintf("export interface %s {\n", u.Name))
	for _, field := range u.Type.Fields {
		if field.Description != "" {
			sb.WriteString(docComment(field.Description, "  "))
		}
		name := field.Name
		if !field.Required {
			name += "?"
		}
		annotation := r.annotate(field.Type)
		if field.Nullable {
			annotation = parenthesize(annotation) + " | null"
		}
		sb.WriteString(fmt.Sprintf("  %s: %s;\n", name, annotation))
	}
	sb.WriteString("}")
	return sb.String()
}

func docComment(text, indent string) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "*/", "*\\/"))
	return fmt.Sprintf("%s/** %s */\n", indent, text)
}

// annotate renders a type expression.
func (r *renderer) annotate(t *typegen.Type) string {
	switch t.Kind {
	case typegen.KindString, typegen.KindCIDLink:
		if t.Constraints != nil && t.Constraints.Const != nil {
			return fmt.Sprintf("%q", *t.Constraints.Const)
		}
		return "string"
	case typegen.KindInteger:
		return "number"
	case typegen.KindBoolean:
		return "boolean"
	case typegen.KindBytes:
		return "Uint8Array"
	case typegen.KindBlob:
		return "{ $type: \"blob\"; ref: unknown; mimeType: string; size: number }"
	case typegen.KindUnknown:
		return "unknown"
	case typegen.KindEnum:
		quoted := make([]string, 0, len(t.EnumValues))
		for _, v := range t.EnumValues {
			quoted = append(quoted, fmt.Sprintf("%q", v))
		}
		return strings.Join(quoted, " | ")
	case typegen.KindList:
		return parenthesize(r.annotate(t.Elem)) + "[]"
	case typegen.KindRef:
		return r.file.Names[t.Target]
	case typegen.KindOpaque:
		// The target sits outside the generation set; the field keeps
		// a permissive shape rather than being dropped.
		return "unknown"
	case typegen.KindUnion:
		return r.unionAnnotation(t)
	default:
		return "unknown"
	}
}

// unionAnnotation renders a union variant set. Variants carry a $type
// discriminator on the wire; open unions additionally accept shapes the
// schema does not list.
func (r *renderer) unionAnnotation(t *typegen.Type) string {
	var arms []string
	for _, variant := range t.Variants {
		if r.file.Opaque[variant] {
			arms = append(arms, "unknown")
			continue
		}
		arms = append(arms, r.file.Names[variant])
	}
	if !t.Closed {
		arms = append(arms, fmt.Sprintf("{ %s: string }", keyLiteral(t.Discriminator)))
	}
	if len(arms) == 0 {
		return "unknown"
	}
	return strings.Join(arms, " | ")
}

func keyLiteral(key string) string {
	if key == "" {
		key = "$type"
	}
	return fmt.Sprintf("%q", key)
}

// parenthesize wraps composite expressions so suffix operators bind
// correctly.
func parenthesize(expr string) string {
	if strings.Contains(expr, "|") && !strings.HasPrefix(expr, "(") {
		return "(" + expr + ")"
	}
	return expr
}
