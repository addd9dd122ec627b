package typegen

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/logger"
	"github.com/teranos/lexgen/resolver"
)

// Emit groups units into one file per document, orders each file
// topologically, renders it through the generator, and writes it
// atomically. Identical input always yields byte-identical files in the
// same order.
func Emit(units []*Unit, outputDir string, gen Generator) ([]string, error) {
	if len(units) == 0 {
		return nil, nil
	}

	files := buildFiles(units)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", outputDir)
	}

	var written []string
	for _, file := range files {
		content, err := gen.GenerateFile(file)
		if err != nil {
			return nil, errors.Wrapf(err, "rendering %s", file.NSID)
		}

		path := filepath.Join(outputDir, file.Module+"."+gen.FileExtension())
		if err := writeFileAtomic(path, []byte(content)); err != nil {
			return nil, err
		}
		written = append(written, path)
		logger.Debugw("emitted file",
			logger.FieldFile, path,
			logger.FieldNSID, file.NSID,
			logger.FieldCount, len(file.Units))
	}
	return written, nil
}

// buildFiles groups units by owning document, resolves the global name
// table, orders units inside each file, and computes cross-file imports.
// Files come back sorted by module name.
func buildFiles(units []*Unit) []*File {
	// Global lookup tables. A dependency edge always points at the
	// primary (suffix-less) unit of its target def.
	primary := make(map[resolver.SymbolKey]*Unit)
	names := make(map[resolver.SymbolKey]string)
	opaque := make(map[resolver.SymbolKey]bool)
	for _, u := range units {
		if u.Suffix == "" {
			primary[u.Key] = u
			names[u.Key] = u.Name
		}
	}
	for _, u := range units {
		collectOpaque(u.Type, names, opaque)
	}

	byDoc := make(map[string][]*Unit)
	var modules []string
	for _, u := range units {
		if _, seen := byDoc[u.Doc.ID]; !seen {
			modules = append(modules, u.Doc.ID)
		}
		byDoc[u.Doc.ID] = append(byDoc[u.Doc.ID], u)
	}
	sort.Strings(modules)

	var files []*File
	for _, nsid := range modules {
		docUnits := byDoc[nsid]
		doc := docUnits[0].Doc

		file := &File{
			Module:      ModuleName(nsid),
			NSID:        nsid,
			Description: doc.Description,
			Units:       orderUnits(nsid, docUnits, primary),
			Names:       names,
			Opaque:      opaque,
		}
		file.Imports = collectImports(nsid, docUnits, primary, names)
		files = append(files, file)
	}
	return files
}

// collectOpaque finds every opaque (non-generated) reference in a type
// tree and assigns it a derived name, since no unit carries one.
func collectOpaque(t *Type, names map[resolver.SymbolKey]string, opaque map[resolver.SymbolKey]bool) {
	if t == nil {
		return
	}
	switch t.Kind {
	case KindOpaque:
		if _, ok := names[t.Target]; !ok {
			names[t.Target] = ClassName(t.Target)
			opaque[t.Target] = true
		}
	case KindUnion:
		for _, v := range t.Variants {
			if _, ok := names[v]; !ok {
				names[v] = ClassName(v)
				opaque[v] = true
			}
		}
	case KindList:
		collectOpaque(t.Elem, names, opaque)
	case KindStruct:
		for _, f := range t.Fields {
			collectOpaque(f.Type, names, opaque)
		}
	}
}

// orderUnits produces the deterministic emission order for one file:
// Kahn's algorithm over intra-file dependency edges with an
// alphabetical-by-name tie-break. When only cyclic units remain, the
// smallest-named one is emitted anyway; its not-yet-emitted dependencies
// become forward references the backend must break.
func orderUnits(nsid string, docUnits []*Unit, primary map[resolver.SymbolKey]*Unit) []*Unit {
	indeg := make(map[*Unit]int, len(docUnits))
	out := make(map[*Unit][]*Unit, len(docUnits))
	for _, u := range docUnits {
		indeg[u] = 0
	}
	for _, u := range docUnits {
		for _, dep := range u.DependsOn {
			target, ok := primary[dep]
			if !ok || target.Doc.ID != nsid || target == u {
				continue
			}
			out[target] = append(out[target], u)
			indeg[u]++
		}
	}

	remaining := make(map[*Unit]bool, len(docUnits))
	for _, u := range docUnits {
		remaining[u] = true
	}

	pickSmallest := func(ready bool) *Unit {
		var best *Unit
		for u := range remaining {
			if ready && indeg[u] > 0 {
				continue
			}
			if best == nil || u.Name < best.Name {
				best = u
			}
		}
		return best
	}

	ordered := make([]*Unit, 0, len(docUnits))
	for len(remaining) > 0 {
		next := pickSmallest(true)
		if next == nil {
			// Cycle: break it at the alphabetically smallest unit.
			next = pickSmallest(false)
		}
		delete(remaining, next)
		ordered = append(ordered, next)
		for _, dependent := range out[next] {
			if remaining[dependent] {
				indeg[dependent]--
			}
		}
	}
	return ordered
}

// collectImports lists the cross-file dependencies of a document's units,
// sorted by module then name, deduplicated.
func collectImports(nsid string, docUnits []*Unit, primary map[resolver.SymbolKey]*Unit, names map[resolver.SymbolKey]string) []Import {
	seen := make(map[Import]bool)
	var imports []Import
	for _, u := range docUnits {
		for _, dep := range u.DependsOn {
			target, ok := primary[dep]
			if !ok || target.Doc.ID == nsid {
				continue
			}
			imp := Import{Module: ModuleName(target.Doc.ID), Name: names[dep]}
			if !seen[imp] {
				seen[imp] = true
				imports = append(imports, imp)
			}
		}
	}
	sort.Slice(imports, func(i, j int) bool {
		if imports[i].Module != imports[j].Module {
			return imports[i].Module < imports[j].Module
		}
		return imports[i].Name < imports[j].Name
	})
	return imports
}

// writeFileAtomic writes content to a temp file in the destination
// directory and renames it into place, so a crash never exposes a
// half-written file.
func writeFileAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrapf(err, "creating temp file in %s", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "closing temp file for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.Wrapf(err, "renaming into %s", path)
	}
	return nil
}
