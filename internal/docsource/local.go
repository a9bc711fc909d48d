package docsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// LocalSource loads statement text files from the filesystem.
type LocalSource struct{}

// NewLocalSource creates a LocalSource.
func NewLocalSource() *LocalSource {
	return &LocalSource{}
}

// Load reads the file at ref. The document identifier is derived from the
// file path so re-loading the same file yields the same DocID and the
// idempotency gate holds across process restarts.
func (s *LocalSource) Load(_ context.Context, ref string) (Document, error) {
	info, err := os.Stat(ref)
	if err != nil {
		return Document{}, fmt.Errorf("stat %q: %w", ref, err)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return Document{}, fmt.Errorf("read %q: %w", ref, err)
	}

	text := string(data)
	headerLines, pages := splitDocument(text)

	abs, err := filepath.Abs(ref)
	if err != nil {
		abs = ref
	}

	return Document{
		DocID:         DeriveDocID(abs),
		Filename:      filepath.Base(ref),
		Pages:         pages,
		FileSizeBytes: info.Size(),
		HeaderLines:   headerLines,
		Text:          text,
	}, nil
}

// DeriveDocID maps a document reference to a stable identifier.
func DeriveDocID(ref string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(ref)).String()
}
