package docsource

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSSource loads statement text objects from a Google Cloud Storage
// bucket. It assumes Application Default Credentials are configured.
type GCSSource struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSource creates a GCSSource for the given bucket. The caller owns
// the client lifecycle via Close.
func NewGCSSource(ctx context.Context, bucket, prefix string) (*GCSSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSSource{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *GCSSource) Close() error { return s.client.Close() }

// Load reads the object named by ref, which may be a bare object name or
// a full gs://bucket/object URI. The DocID derives from the full URI.
func (s *GCSSource) Load(ctx context.Context, ref string) (Document, error) {
	bucket, object := s.resolve(ref)

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read GCS object: %w", err)
	}

	text := string(data)
	headerLines, pages := splitDocument(text)

	uri := fmt.Sprintf("gs://%s/%s", bucket, object)
	return Document{
		DocID:         DeriveDocID(uri),
		Filename:      path.Base(object),
		Pages:         pages,
		FileSizeBytes: r.Attrs.Size,
		HeaderLines:   headerLines,
		Text:          text,
	}, nil
}

func (s *GCSSource) resolve(ref string) (bucket, object string) {
	if rest, ok := strings.CutPrefix(ref, "gs://"); ok {
		if b, o, found := strings.Cut(rest, "/"); found {
			return b, o
		}
		return rest, ""
	}
	object = ref
	if s.prefix != "" {
		object = path.Join(s.prefix, ref)
	}
	return s.bucket, object
}
