// Package cache keys generated output on a digest of the inputs so
// unchanged lexicons skip regeneration entirely.
package cache

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/teranos/lexgen/errors"
	"github.com/teranos/lexgen/logger"
	"github.com/teranos/lexgen/typegen"
)

// Gate is a content-addressed store of generated output. Entries live at
// <root>/<digest>/<target>/ and are immutable once published: the digest
// covers every input that influences generation, so an existing entry is
// always current.
type Gate struct {
	root string
}

// DefaultRoot returns the per-user cache directory.
func DefaultRoot() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", errors.Wrap(err, "resolving user cache directory")
	}
	return filepath.Join(base, "lexgen"), nil
}

// New creates a gate rooted at root, or at DefaultRoot when root is empty.
func New(root string) (*Gate, error) {
	if root == "" {
		var err error
		root, err = DefaultRoot()
		if err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache root %s", root)
	}
	return &Gate{root: root}, nil
}

// Root returns the gate's root directory.
func (g *Gate) Root() string {
	return g.root
}

// Dir returns the entry directory for a digest and target.
func (g *Gate) Dir(digest, target string) string {
	return filepath.Join(g.root, digest, target)
}

// Hit reports whether a published entry exists for the digest and target.
func (g *Gate) Hit(digest, target string) bool {
	entries, err := os.ReadDir(g.Dir(digest, target))
	return err == nil && len(entries) > 0
}

// Restore copies a cached entry's files into outputDir and returns the
// restored paths, sorted.
func (g *Gate) Restore(digest, target, outputDir string) ([]string, error) {
	dir := g.Dir(digest, target)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cache entry %s", dir)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating output directory %s", outputDir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		dst := filepath.Join(outputDir, entry.Name())
		if err := copyFile(filepath.Join(dir, entry.Name()), dst); err != nil {
			return nil, err
		}
		paths = append(paths, dst)
	}
	sort.Strings(paths)
	return paths, nil
}

// Store publishes generated files under the digest and target. The entry
// is staged in a temporary directory and renamed into place, so readers
// never observe a partial entry. A concurrent publisher winning the
// rename is fine: both wrote identical content.
func (g *Gate) Store(digest, target string, paths []string) error {
	staging, err := os.MkdirTemp(g.root, "stage-")
	if err != nil {
		return errors.Wrap(err, "creating cache staging directory")
	}
	defer os.RemoveAll(staging)

	for _, path := range paths {
		dst := filepath.Join(staging, filepath.Base(path))
		if err := copyFile(path, dst); err != nil {
			return err
		}
	}

	final := g.Dir(digest, target)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return errors.Wrapf(err, "creating cache entry parent for %s", digest)
	}
	if err := os.Rename(staging, final); err != nil {
		if g.Hit(digest, target) {
			return nil
		}
		return errors.Wrapf(err, "publishing cache entry %s", final)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "opening %s", src)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return errors.Wrapf(err, "staging copy of %s", src)
	}
	tmp := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "copying %s", src)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "flushing copy of %s", src)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "placing %s", dst)
	}
	return nil
}

// Generate runs typegen.Generate behind the gate. On a digest hit the
// cached entry is restored into opts.OutputDir without loading a single
// lexicon; on a miss the pipeline runs and its output is published.
func Generate(ctx context.Context, opts typegen.Options, gate *Gate) ([]string, bool, error) {
	target := opts.Target
	if target == "" {
		target = typegen.DefaultTarget
	}

	digest, err := typegen.HashLexicons(opts.InputDir, opts.Prefix)
	if err != nil {
		return nil, false, err
	}

	if gate.Hit(digest, target) {
		logger.Debugw("cache hit",
			logger.FieldDigest, digest,
			logger.FieldTarget, target,
		)
		paths, err := gate.Restore(digest, target, opts.OutputDir)
		if err != nil {
			return nil, false, err
		}
		return paths, true, nil
	}

	logger.Debugw("cache miss",
		logger.FieldDigest, digest,
		logger.FieldTarget, target,
	)
	paths, err := typegen.Generate(ctx, opts)
	if err != nil {
		return nil, false, err
	}
	if len(paths) > 0 {
		if err := gate.Store(digest, target, paths); err != nil {
			// Generation succeeded; a failed publish only costs the
			// next run a regeneration.
			logger.Warnw("failed to publish cache entry",
				logger.FieldDigest, digest,
				logger.FieldError, err,
			)
		}
	}
	return paths, false, nil
}
