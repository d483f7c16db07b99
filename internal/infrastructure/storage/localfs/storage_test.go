package localfs

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/cardsnap/internal/core/domain"
)

func TestSaveThenOpenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "card-1.jpg", strings.NewReader("jpeg")))

	rc, err := s.Open(ctx, "card-1.jpg")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(body))
	assert.True(t, strings.HasPrefix(s.URI("card-1.jpg"), "file://"))
	assert.True(t, strings.HasSuffix(s.URI("card-1.jpg"), "/card-1.jpg"))
}

func TestOpenMissingImageIsNotFound(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "nope.jpg")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrCardNotFound))
}

func TestSaveRejectsPathTraversal(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"", "..", "../etc/passwd", `a\b`} {
		err := s.Save(context.Background(), key, strings.NewReader("x"))
		assert.True(t, domain.IsKind(err, domain.ErrInvalidInput), "key %q", key)
	}
}
