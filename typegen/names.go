package typegen

import (
	"strings"
	"unicode"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/resolver"
)

// ToPascalCase converts snake_case, kebab-case or camelCase to PascalCase.
func ToPascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			runes := []rune(part)
			result.WriteRune(unicode.ToUpper(runes[0]))
			result.WriteString(string(runes[1:]))
		}
	}

	return result.String()
}

// ToSnakeCase converts PascalCase or camelCase to snake_case.
// Handles acronyms properly (e.g., "HTTPSConnection" -> "https_connection")
func ToSnakeCase(s string) string {
	var result strings.Builder
	runes := []rune(s)

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if i > 0 && r >= 'A' && r <= 'Z' {
			// No underscore inside an acronym run unless the run ends.
			prevUpper := runes[i-1] >= 'A' && runes[i-1] <= 'Z'
			nextLower := i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z'

			if !prevUpper || nextLower {
				result.WriteRune('_')
			}
		}

		result.WriteRune(r)
	}

	return strings.ToLower(result.String())
}

// ClassName derives the output identifier for a symbol: every NSID segment
// PascalCased and concatenated, with the def name appended unless it is
// main. "app.test.thing" + "main" -> "AppTestThing";
// "com.atproto.label.defs" + "selfLabel" -> "ComAtprotoLabelDefsSelfLabel".
func ClassName(key resolver.SymbolKey) string {
	var b strings.Builder
	for _, segment := range strings.Split(key.NSID, ".") {
		b.WriteString(ToPascalCase(segment))
	}
	if key.Def != "main" {
		b.WriteString(ToPascalCase(key.Def))
	}
	return b.String()
}

// ModuleName derives the output file base name for a document NSID.
func ModuleName(nsid string) string {
	return strings.ReplaceAll(nsid, ".", "_")
}

// Allocate fills in every unit's output name and verifies global
// uniqueness. Two distinct symbols allocating identical text is a fatal
// ErrNameCollision, never a silent overwrite.
func Allocate(units []*Unit) error {
	type owner struct {
		key    resolver.SymbolKey
		suffix string
	}
	seen := make(map[string]owner, len(units))

	for _, unit := range units {
		name := ClassName(unit.Key) + unit.Suffix
		if prev, taken := seen[name]; taken {
			first, second := prev.key.String()+prev.suffix, unit.Key.String()+unit.Suffix
			if second < first {
				first, second = second, first
			}
			return errors.Wrapf(errors.ErrNameCollision,
				"name %q allocated by both %s and %s", name, first, second)
		}
		seen[name] = owner{key: unit.Key, suffix: unit.Suffix}
		unit.Name = name
	}
	return nil
}
