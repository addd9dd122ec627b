package lexicon

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/logger"
)

// Set is the loaded document set for one invocation, keyed by NSID.
type Set struct {
	docs map[string]*Document
}

// Documents returns every document sorted by NSID, so downstream stages
// never see filesystem traversal order.
func (s *Set) Documents() []*Document {
	out := make([]*Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, doc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the document with the given NSID.
func (s *Set) Get(nsid string) (*Document, bool) {
	doc, ok := s.docs[nsid]
	return doc, ok
}

// Len returns the number of loaded documents.
func (s *Set) Len() int {
	return len(s.docs)
}

// Load recursively discovers and parses every lexicon file under rootDir.
// File reads are independent and run in parallel; accumulation into the set
// is mutex-guarded. JSON files that do not carry the lexicon version marker
// are skipped (they are not lexicons); files that claim to be lexicons but
// are structurally invalid fail with ErrMalformedDocument; two documents
// sharing an NSID fail with ErrDuplicateDocument.
func Load(ctx context.Context, rootDir string) (*Set, error) {
	info, err := os.Stat(rootDir)
	if err != nil {
		return nil, errors.Wrapf(err, "lexicon directory %s", rootDir)
	}
	if !info.IsDir() {
		return nil, errors.Newf("not a directory: %s", rootDir)
	}

	var paths []string
	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "walking %s", rootDir)
	}

	set := &Set{docs: make(map[string]*Document, len(paths))}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			rel, err := filepath.Rel(rootDir, path)
			if err != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			doc, ok, err := parseFile(path, rel)
			if err != nil {
				return err
			}
			if !ok {
				logger.Debugw("skipping non-lexicon JSON file", logger.FieldFile, rel)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if existing, dup := set.docs[doc.ID]; dup {
				first, second := existing.Path, doc.Path
				if second < first {
					first, second = second, first
				}
				return errors.Wrapf(errors.ErrDuplicateDocument,
					"nsid %q declared by both %s and %s", doc.ID, first, second)
			}
			set.docs[doc.ID] = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Debugw("loaded lexicon documents",
		logger.FieldDir, rootDir,
		logger.FieldCount, set.Len())
	return set, nil
}

// parseFile reads one candidate file. The second return is false when the
// file is valid JSON but not a lexicon document.
func parseFile(path, rel string) (*Document, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading %s", rel)
	}

	// Probe for the version marker before committing to a full parse.
	// A tree may contain unrelated JSON (package manifests, fixtures).
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// Valid JSON, but not an object. Not a lexicon.
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(errors.ErrMalformedDocument, "file %s: %v", rel, err)
	}
	if _, hasMarker := probe["lexicon"]; !hasMarker {
		return nil, false, nil
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, false, errors.Wrapf(errors.ErrMalformedDocument, "file %s: %v", rel, err)
	}
	doc.Path = rel

	if err := doc.Validate(); err != nil {
		return nil, false, errors.Wrapf(err, "file %s", rel)
	}
	return &doc, true, nil
}
