package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrapf(ErrUnresolvedReference, "lexicon app.test.thing def main: ref %q", "app.missing#x")
	require.Error(t, err)

	assert.True(t, Is(err, ErrUnresolvedReference))
	assert.Contains(t, err.Error(), "app.test.thing")
	assert.Contains(t, err.Error(), "app.missing#x")
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrMalformedDocument,
		ErrDuplicateDocument,
		ErrUnresolvedReference,
		ErrNameCollision,
		ErrUnsupportedKind,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func TestTaxonomyHelpers(t *testing.T) {
	tests := []struct {
		name    string
		helper  func(error) bool
		matches error
	}{
		{"malformed", IsMalformedDocument, ErrMalformedDocument},
		{"duplicate", IsDuplicateDocument, ErrDuplicateDocument},
		{"unresolved", IsUnresolvedReference, ErrUnresolvedReference},
		{"collision", IsNameCollision, ErrNameCollision},
		{"unsupported", IsUnsupportedKind, ErrUnsupportedKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.helper(Wrap(tt.matches, "context")))
			assert.False(t, tt.helper(nil))
			assert.False(t, tt.helper(New("unrelated")))
		})
	}
}
