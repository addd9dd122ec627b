// Package python renders pydantic models from synthesized lexicon units.
package python

import (
	"fmt"
	"sort"
	"strings"

	"github.com/teranos/lexgen/resolver"
	"github.com/teranos/lexgen/typegen"
)

func init() {
	typegen.RegisterGenerator(NewGenerator())
}

// Generator implements typegen.Generator for Python.
type Generator struct{}

// NewGenerator creates a new Python generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Language returns "python".
func (g *Generator) Language() string {
	return "python"
}

// FileExtension returns "py".
func (g *Generator) FileExtension() string {
	return "py"
}

// pythonKeywords are reserved words that take an underscore suffix plus a
// serialization alias when they appear as field names.
var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// renderer carries per-file state: which names are already defined at the
// current point (decides forward-reference quoting in eager positions) and
// which framework imports the file ends up needing.
type renderer struct {
	file    *typegen.File
	defined map[string]bool

	needsAny     bool
	needsLiteral bool
	needsUnion   bool
	needsEnum    bool
	needsModel   bool
	needsField   bool
}

// GenerateFile renders one Python module: framework imports at the top,
// unit definitions in emission order, then cross-module imports and
// model_rebuild calls at the bottom so reference cycles import cleanly.
func (g *Generator) GenerateFile(f *typegen.File) (string, error) {
	r := &renderer{file: f, defined: make(map[string]bool)}

	var body strings.Builder
	for _, unit := range f.Units {
		rendered, err := r.unit(unit)
		if err != nil {
			return "", err
		}
		body.WriteString(rendered)
		body.WriteString("\n\n\n")
		r.defined[unit.Name] = true
	}

	var sb strings.Builder
	sb.WriteString("# Code generated by lexgen from atproto lexicon schemas. DO NOT EDIT.\n")
	sb.WriteString(fmt.Sprintf("# Source lexicon: %s\n\n", f.NSID))

	if f.Description != "" {
		sb.WriteString(fmt.Sprintf("\"\"\"%s\"\"\"\n\n", sanitizeDoc(f.Description)))
	} else {
		sb.WriteString(fmt.Sprintf("\"\"\"Models for %s.\"\"\"\n\n", f.NSID))
	}

	sb.WriteString("from __future__ import annotations\n\n")

	if r.needsEnum {
		sb.WriteString("from enum import Enum\n")
	}
	if line := r.typingImport(); line != "" {
		sb.WriteString(line + "\n")
	}
	if line := r.pydanticImport(); line != "" {
		sb.WriteString(line + "\n")
	}
	sb.WriteString("\n")

	sb.WriteString(body.String())

	// Cross-module imports come after the class definitions: by the time
	// a sibling module imports this one mid-cycle, every class here is
	// already defined. Rebuilds then resolve the deferred annotations.
	rebuild := len(f.Imports) > 0 || hasForwardRefs(f)
	if len(f.Imports) > 0 {
		for _, line := range groupImports(f.Imports) {
			sb.WriteString(line + "\n")
		}
		sb.WriteString("\n")
	}
	if rebuild {
		wrote := false
		for _, unit := range f.Units {
			if unit.Type.Kind == typegen.KindStruct {
				sb.WriteString(fmt.Sprintf("%s.model_rebuild()\n", unit.Name))
				wrote = true
			}
		}
		if wrote {
			sb.WriteString("\n")
		}
	}

	sb.WriteString(allExport(f.Units))
	return sb.String(), nil
}

// typingImport assembles the typing import line, if any name is needed.
func (r *renderer) typingImport() string {
	var names []string
	if r.needsAny {
		names = append(names, "Any")
	}
	if r.needsLiteral {
		names = append(names, "Literal")
	}
	if r.needsUnion {
		names = append(names, "Union")
	}
	if len(names) == 0 {
		return ""
	}
	return "from typing import " + strings.Join(names, ", ")
}

func (r *renderer) pydanticImport() string {
	var names []string
	if r.needsModel {
		names = append(names, "BaseModel")
	}
	if r.needsField {
		names = append(names, "Field")
	}
	if len(names) == 0 {
		return ""
	}
	return "from pydantic import " + strings.Join(names, ", ")
}

// hasForwardRefs reports whether any unit was emitted before one of its
// same-file dependencies, which happens only when a cycle was broken.
func hasForwardRefs(f *typegen.File) bool {
	idx := f.UnitIndex()
	for i, u := range f.Units {
		for _, dep := range u.DependsOn {
			if j, ok := idx[dep]; ok && j > i {
				return true
			}
		}
	}
	return false
}

// groupImports renders cross-module imports, one line per module.
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
		lines = append(lines, fmt.Sprintf("from .%s import %s  # noqa: E402",
			module, strings.Join(names, ", ")))
	}
	return lines
}

// allExport renders the module's __all__ list, sorted.
func allExport(units []*typegen.Unit) string {
	names := make([]string, 0, len(units))
	for _, u := range units {
		names = append(names, u.Name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("__all__ = [\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("    %q,\n", name))
	}
	sb.WriteString("]\n")
	return sb.String()
}

// unit renders one named type.
func (r *renderer) unit(u *typegen.Unit) (string, error) {
	switch u.Type.Kind {
	case typegen.KindStruct:
		return r.model(u)
	case typegen.KindEnum:
		r.needsEnum = true
		return r.enum(u), nil
	case typegen.KindToken:
		r.needsLiteral = true
		return fmt.Sprintf("%s = Literal[%q]", u.Name, u.Type.TokenID), nil
	default:
		// Scalar, array, union and ref defs become aliases. Alias right
		// sides evaluate eagerly, so references are quoted unless the
		// target is already defined above in this module.
		return fmt.Sprintf("%s = %s", u.Name, r.annotate(u.Type, false)), nil
	}
}

// model renders a struct unit as a pydantic BaseModel class. Field order
// equals the source document's declared property order.
func (r *renderer) model(u *typegen.Unit) (string, error) {
	r.needsModel = true

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("class %s(BaseModel):\n", u.Name))
	if u.Description != "" {
		sb.WriteString(fmt.Sprintf("    \"\"\"%s\"\"\"\n", sanitizeDoc(u.Description)))
	}

	if len(u.Type.Fields) == 0 {
		if u.Description == "" {
			sb.WriteString("    pass")
		} else {
			sb.WriteString("\n    pass")
		}
		return sb.String(), nil
	}
	if u.Description != "" {
		sb.WriteString("\n")
	}

	for _, field := range u.Type.Fields {
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf("    # %s\n", sanitizeDoc(field.Description)))
		}
		sb.WriteString("    " + r.fieldLine(field) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// fieldLine renders one field declaration with its optionality and
// validation constraints. Optional and nullable fields widen to None;
// optional fields additionally default to None.
func (r *renderer) fieldLine(f typegen.Field) string {
	annotation := r.annotate(f.Type, true)

	optional := !f.Required
	if (optional || f.Nullable) && !strings.HasSuffix(annotation, "| None") {
		annotation += " | None"
	}

	name := f.Name
	var kwargs []string
	if pythonKeywords[name] {
		name = name + "_"
		kwargs = append(kwargs, fmt.Sprintf("alias=%q", f.Name))
	}
	kwargs = append(kwargs, constraintKwargs(f.Type)...)

	switch {
	case len(kwargs) == 0 && !optional:
		return fmt.Sprintf("%s: %s", name, annotation)
	case len(kwargs) == 0:
		return fmt.Sprintf("%s: %s = None", name, annotation)
	default:
		r.needsField = true
		if optional {
			kwargs = append([]string{"default=None"}, kwargs...)
		}
		return fmt.Sprintf("%s: %s = Field(%s)", name, annotation, strings.Join(kwargs, ", "))
	}
}

// constraintKwargs maps lexicon scalar bounds onto pydantic Field kwargs.
// Grapheme counts have no pydantic equivalent and are not enforced.
func constraintKwargs(t *typegen.Type) []string {
	c := t.Constraints
	if c.Empty() {
		return nil
	}

	var kwargs []string
	if c.Minimum != nil {
		kwargs = append(kwargs, fmt.Sprintf("ge=%d", *c.Minimum))
	}
	if c.Maximum != nil {
		kwargs = append(kwargs, fmt.Sprintf("le=%d", *c.Maximum))
	}
	if t.Kind == typegen.KindString || t.Kind == typegen.KindList {
		if c.MinLength != nil {
			kwargs = append(kwargs, fmt.Sprintf("min_length=%d", *c.MinLength))
		}
		if c.MaxLength != nil {
			kwargs = append(kwargs, fmt.Sprintf("max_length=%d", *c.MaxLength))
		}
	}
	return kwargs
}

// enum renders a closed string value set as a (str, Enum) class, member
// order following the declared value order.
func (r *renderer) enum(u *typegen.Unit) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("class %s(str, Enum):\n", u.Name))
	if u.Description != "" {
		sb.WriteString(fmt.Sprintf("    \"\"\"%s\"\"\"\n\n", sanitizeDoc(u.Description)))
	}
	for _, v := range u.Type.EnumValues {
		sb.WriteString(fmt.Sprintf("    %s = %q\n", enumMember(v), v))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// enumMember derives a SCREAMING_SNAKE_CASE member name from an enum value.
func enumMember(v string) string {
	cleaned := strings.NewReplacer("-", "_", ".", "_", "#", "_", " ", "_").Replace(v)
	member := strings.ToUpper(typegen.ToSnakeCase(cleaned))
	if member == "" || (member[0] >= '0' && member[0] <= '9') {
		member = "V_" + member
	}
	return member
}

// annotate renders a type annotation. In lazy position (class field
// annotations, deferred by the __future__ import) names appear bare and
// unions use |. In eager position (alias right sides) not-yet-defined
// names are quoted forward references and unions use typing.Union, which
// accepts them.
func (r *renderer) annotate(t *typegen.Type, lazy bool) string {
	switch t.Kind {
	case typegen.KindString, typegen.KindCIDLink:
		if t.Constraints != nil && t.Constraints.Const != nil {
			r.needsLiteral = true
			return fmt.Sprintf("Literal[%q]", *t.Constraints.Const)
		}
		return "str"
	case typegen.KindInteger:
		return "int"
	case typegen.KindBoolean:
		return "bool"
	case typegen.KindBytes:
		return "bytes"
	case typegen.KindBlob:
		r.needsAny = true
		return "dict[str, Any]"
	case typegen.KindUnknown:
		r.needsAny = true
		return "Any"
	case typegen.KindEnum:
		r.needsLiteral = true
		quoted := make([]string, 0, len(t.EnumValues))
		for _, v := range t.EnumValues {
			quoted = append(quoted, fmt.Sprintf("%q", v))
		}
		return fmt.Sprintf("Literal[%s]", strings.Join(quoted, ", "))
	case typegen.KindList:
		return fmt.Sprintf("list[%s]", r.annotate(t.Elem, lazy))
	case typegen.KindRef:
		return r.refName(t.Target, lazy)
	case typegen.KindOpaque:
		// The target exists in the symbol table but sits outside the
		// generation set; the field keeps a permissive shape rather
		// than being dropped.
		r.needsAny = true
		return "Any"
	case typegen.KindUnion:
		return r.unionAnnotation(t, lazy)
	default:
		r.needsAny = true
		return "Any"
	}
}

// refName renders a reference to another generated type, quoting it in
// eager position when the target is not yet defined in this module.
func (r *renderer) refName(target resolver.SymbolKey, lazy bool) string {
	name := r.file.Names[target]
	if lazy || r.defined[name] {
		return name
	}
	return fmt.Sprintf("%q", name)
}

// unionAnnotation renders a union variant set. Open unions accept
// variants the schema does not list, so they carry a permissive arm.
func (r *renderer) unionAnnotation(t *typegen.Type, lazy bool) string {
	var arms []string
	for _, variant := range t.Variants {
		if r.file.Opaque[variant] {
			r.needsAny = true
			arms = append(arms, "Any")
			continue
		}
		arms = append(arms, r.refName(variant, lazy))
	}
	if !t.Closed {
		r.needsAny = true
		arms = append(arms, "dict[str, Any]")
	}
	if len(arms) == 0 {
		r.needsAny = true
		return "Any"
	}
	if len(arms) == 1 {
		return arms[0]
	}
	if lazy {
		return strings.Join(arms, " | ")
	}
	r.needsUnion = true
	return fmt.Sprintf("Union[%s]", strings.Join(arms, ", "))
}

// sanitizeDoc flattens a description to one docstring-safe line.
func sanitizeDoc(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, `"""`, "'''")
	return strings.TrimSpace(s)
}
