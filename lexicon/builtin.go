package lexicon

import (
	"embed"
	"encoding/json"
	"io/fs"
	"sort"
	"sync"
)

// Bundled com.atproto.* lexicons. Input trees routinely reference these
// (strongRef, labels) without shipping copies, so they are embedded as
// resolution targets. They are never code-generated themselves.
//
//go:embed lexicons
var builtinFS embed.FS

var loadBuiltins = sync.OnceValue(func() []*Document {
	var docs []*Document

	err := fs.WalkDir(builtinFS, "lexicons", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := builtinFS.ReadFile(path)
		if err != nil {
			return err
		}
		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return err
		}
		docs = append(docs, &doc)
		return nil
	})
	if err != nil {
		// Embedded files are part of the binary; failure to parse them
		// is a build defect, not a runtime condition.
		panic("lexicon: parsing embedded builtin lexicons: " + err.Error())
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
})

// Builtins returns the embedded com.atproto.* lexicon documents, sorted by
// NSID. Callers must not mutate the returned documents.
func Builtins() []*Document {
	return loadBuiltins()
}
