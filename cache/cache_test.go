package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/lexgen/typegen"

	_ "github.com/teranos/lexgen/typegen/python"
)

func TestGate_StoreHitRestore(t *testing.T) {
	gate, err := New(t.TempDir())
	require.NoError(t, err)

	work := t.TempDir()
	src := filepath.Join(work, "model.py")
	require.NoError(t, os.WriteFile(src, []byte("class Thing: pass\n"), 0o644))

	const digest = "abcdef0123456789"

	assert.False(t, gate.Hit(digest, "python"))
	require.NoError(t, gate.Store(digest, "python", []string{src}))
	assert.True(t, gate.Hit(digest, "python"))
	// Other targets of the same digest are separate entries.
	assert.False(t, gate.Hit(digest, "typescript"))

	out := t.TempDir()
	paths, err := gate.Restore(digest, "python", out)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "class Thing: pass\n", string(content))
}

func TestGate_StoreIsIdempotent(t *testing.T) {
	gate, err := New(t.TempDir())
	require.NoError(t, err)

	work := t.TempDir()
	src := filepath.Join(work, "model.py")
	require.NoError(t, os.WriteFile(src, []byte("x\n"), 0o644))

	const digest = "feedfacefeedface"
	require.NoError(t, gate.Store(digest, "python", []string{src}))
	// Publishing the same entry again is a no-op, not an error.
	require.NoError(t, gate.Store(digest, "python", []string{src}))
	assert.True(t, gate.Hit(digest, "python"))
}

const cacheTestLexicon = `{
	"lexicon": 1,
	"id": "app.test.thing",
	"defs": {
		"main": {
			"type": "record",
			"record": {
				"type": "object",
				"required": ["title"],
				"properties": {
					"title": {"type": "string"}
				}
			}
		}
	}
}`

func TestGenerate_MissThenHit(t *testing.T) {
	gate, err := New(t.TempDir())
	require.NoError(t, err)

	input := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(input, "thing.json"), []byte(cacheTestLexicon), 0o644))

	opts := typegen.Options{
		InputDir:  input,
		OutputDir: t.TempDir(),
		Target:    "python",
	}

	paths, hit, err := Generate(context.Background(), opts, gate)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, paths, 1)
	first, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	// Second run restores from cache into a fresh output directory.
	opts.OutputDir = t.TempDir()
	paths, hit, err = Generate(context.Background(), opts, gate)
	require.NoError(t, err)
	assert.True(t, hit)
	require.Len(t, paths, 1)

	second, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestGenerate_InputChangeInvalidates(t *testing.T) {
	gate, err := New(t.TempDir())
	require.NoError(t, err)

	input := t.TempDir()
	lexPath := filepath.Join(input, "thing.json")
	require.NoError(t, os.WriteFile(lexPath, []byte(cacheTestLexicon), 0o644))

	opts := typegen.Options{InputDir: input, OutputDir: t.TempDir(), Target: "python"}

	_, hit, err := Generate(context.Background(), opts, gate)
	require.NoError(t, err)
	assert.False(t, hit)

	// Any input byte change misses the cache.
	changed := strings.Replace(cacheTestLexicon, `"type": "string"`, `"type": "string", "maxLength": 50`, 1)
	require.NoError(t, os.WriteFile(lexPath, []byte(changed), 0o644))

	opts.OutputDir = t.TempDir()
	_, hit, err = Generate(context.Background(), opts, gate)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestGenerate_ZeroMatchNotCached(t *testing.T) {
	gate, err := New(t.TempDir())
	require.NoError(t, err)

	input := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(input, "thing.json"), []byte(cacheTestLexicon), 0o644))

	opts := typegen.Options{
		InputDir:  input,
		OutputDir: t.TempDir(),
		Prefix:    "net.unmatched",
		Target:    "python",
	}

	paths, hit, err := Generate(context.Background(), opts, gate)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, paths)

	// Empty results are never published, so the next run is still a miss.
	paths, hit, err = Generate(context.Background(), opts, gate)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Empty(t, paths)
}

func TestDefaultRoot(t *testing.T) {
	root, err := DefaultRoot()
	require.NoError(t, err)
	assert.Equal(t, "lexgen", filepath.Base(root))
}
