// Package docsource loads statement documents as text, from the local
// filesystem or from a GCS bucket. Extraction operates on text; rendering
// binary statement formats to text happens upstream of this package.
package docsource

import (
	"context"
	"strings"
)

// headerLineCount is how many leading lines feed statement-type detection.
const headerLineCount = 10

// Document is a loaded statement ready for extraction.
type Document struct {
	DocID         string
	Filename      string
	Pages         int
	FileSizeBytes int64
	HeaderLines   []string
	Text          string
}

// Source loads documents by reference: a filesystem path for the local
// source, a gs:// URI or object name for the GCS source.
type Source interface {
	Load(ctx context.Context, ref string) (Document, error)
}

func splitDocument(text string) (headerLines []string, pages int) {
	lines := strings.Split(text, "\n")
	n := headerLineCount
	if len(lines) < n {
		n = len(lines)
	}
	headerLines = lines[:n]

	// Page breaks survive as form feeds in most text renderings.
	pages = strings.Count(text, "\f") + 1
	return headerLines, pages
}
