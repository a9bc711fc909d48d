package docsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSourceLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statement.txt")
	text := "APPLE CARD\nStatement Period\nline3\fpage two"
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	source := NewLocalSource()
	doc, err := source.Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "statement.txt", doc.Filename)
	assert.Equal(t, text, doc.Text)
	assert.Equal(t, int64(len(text)), doc.FileSizeBytes)
	assert.Equal(t, 2, doc.Pages)
	assert.Equal(t, "APPLE CARD", doc.HeaderLines[0])
	assert.NotEmpty(t, doc.DocID)

	// Loading the same file again yields the same DocID.
	again, err := source.Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, doc.DocID, again.DocID)
}

func TestLocalSourceLoadMissingFile(t *testing.T) {
	source := NewLocalSource()
	_, err := source.Load(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestDeriveDocIDStable(t *testing.T) {
	a := DeriveDocID("gs://bucket/statements/jan.txt")
	b := DeriveDocID("gs://bucket/statements/jan.txt")
	c := DeriveDocID("gs://bucket/statements/feb.txt")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestSplitDocumentShortText(t *testing.T) {
	headerLines, pages := splitDocument("only line")
	assert.Equal(t, []string{"only line"}, headerLines)
	assert.Equal(t, 1, pages)
}
