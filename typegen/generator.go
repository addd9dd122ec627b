package typegen

import (
	"sort"
	"sync"

	"github.com/teranos/lexgen/errors"
)

// Generator renders one output file for a target object-modeling
// convention. Implementations must be deterministic: identical File input
// yields byte-identical output.
type Generator interface {
	// Language returns the target name used for selection ("python").
	Language() string

	// FileExtension returns the output extension without the dot ("py").
	FileExtension() string

	// GenerateFile renders a complete source file.
	GenerateFile(f *File) (string, error)
}

var (
	generatorsMu sync.RWMutex
	generators   = make(map[string]Generator)
)

// RegisterGenerator makes a backend available for selection by name.
// Backends register themselves from init, database/sql driver style.
func RegisterGenerator(g Generator) {
	generatorsMu.Lock()
	defer generatorsMu.Unlock()
	generators[g.Language()] = g
}

// LookupGenerator returns the backend registered under name.
func LookupGenerator(name string) (Generator, error) {
	generatorsMu.RLock()
	defer generatorsMu.RUnlock()

	if g, ok := generators[name]; ok {
		return g, nil
	}

	known := make([]string, 0, len(generators))
	for lang := range generators {
		known = append(known, lang)
	}
	sort.Strings(known)
	return nil, errors.Newf("unknown target %q (registered: %v)", name, known)
}
