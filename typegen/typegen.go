package typegen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/lexicon"
	"github.com/teranos/lexgen/logger"
	"github.com/teranos/lexgen/resolver"
	"github.com/teranos/lexgen/version"
)

// DefaultTarget is the backend used when Options.Target is empty.
const DefaultTarget = "python"

// Options configures one compiler invocation.
type Options struct {
	// InputDir is the lexicon tree root.
	InputDir string

	// OutputDir receives the generated files.
	OutputDir string

	// Prefix optionally restricts generation to documents inside a
	// namespace prefix. Non-matching documents remain available as
	// resolution targets.
	Prefix string

	// Target selects the registered Generator backend.
	Target string

	// NoBuiltins disables the embedded com.atproto.* resolution targets.
	NoBuiltins bool
}

// Generate runs the full pipeline: load, resolve, synthesize, allocate,
// emit. It returns the written file paths. A prefix that matches zero
// documents is success with empty output. Every failure mode is one of the
// errors package sentinels; the first error aborts with nothing written.
func Generate(ctx context.Context, opts Options) ([]string, error) {
	start := time.Now()

	target := opts.Target
	if target == "" {
		target = DefaultTarget
	}
	gen, err := LookupGenerator(target)
	if err != nil {
		return nil, err
	}

	set, err := lexicon.Load(ctx, opts.InputDir)
	if err != nil {
		return nil, err
	}

	var extra []*lexicon.Document
	if !opts.NoBuiltins {
		extra = lexicon.Builtins()
	}

	table, err := resolver.Resolve(set.Documents(), extra, opts.Prefix)
	if err != nil {
		return nil, err
	}
	if len(table.GeneratedDocuments()) == 0 {
		logger.Warnw("no documents matched, nothing to generate",
			logger.FieldPrefix, opts.Prefix)
		return nil, nil
	}

	units, err := Synthesize(table)
	if err != nil {
		return nil, err
	}
	if err := Allocate(units); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	paths, err := Emit(units, opts.OutputDir, gen)
	if err != nil {
		return nil, err
	}

	logger.Infow("generation complete",
		logger.FieldTarget, target,
		logger.FieldCount, len(paths),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return paths, nil
}

// DigestBytes is the truncated digest length; hex-encoded it yields a
// 16-character cache key.
const DigestBytes = 8

// HashLexicons computes the deterministic fingerprint of a lexicon tree:
// sha256 over the compiler version, the prefix filter (if any), and the
// sorted (slash-relative path, raw bytes) pair of every .json file under
// inputDir. Identical inputs yield identical digests; any byte, version or
// filter change yields a different one. This digest is the sole
// content-addressed cache key.
func HashLexicons(inputDir, prefix string) (string, error) {
	hasher := sha256.New()

	// Version participates so upgrades invalidate the cache.
	hasher.Write([]byte(version.Version))
	if prefix != "" {
		hasher.Write([]byte(prefix))
	}

	type entry struct {
		rel  string
		path string
	}
	var entries []entry
	err := filepath.WalkDir(inputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}
		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		entries = append(entries, entry{rel: filepath.ToSlash(rel), path: path})
		return nil
	})
	if err != nil {
		return "", errors.Wrapf(err, "walking %s", inputDir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	for _, e := range entries {
		content, err := os.ReadFile(e.path)
		if err != nil {
			return "", errors.Wrapf(err, "reading %s", e.rel)
		}
		hasher.Write([]byte(e.rel))
		hasher.Write(content)
	}

	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:DigestBytes]), nil
}
