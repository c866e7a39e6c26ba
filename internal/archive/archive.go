// Package archive keeps the raw payload of every import in Google Cloud
// Storage so a run can be replayed or audited later.
package archive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/statement-import/internal/logger"
	"github.com/google/uuid"
)

const uploadTimeout = 2 * time.Minute

// GCSArchiver writes payloads under imports/<source>/yyyy/mm/dd/<uuid>.json.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewGCSArchiver creates an archiver with its own storage client.
// It assumes Application Default Credentials are configured.
func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArchiver: creating storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket, now: time.Now}, nil
}

// Close closes the storage client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

// Archive uploads payload and returns its gs:// URI.
func (a *GCSArchiver) Archive(ctx context.Context, source string, payload []byte) (string, error) {
	object := ObjectName(source, a.now(), uuid.NewString())

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("Archive: writing object %s: %w", object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Archive: finalizing upload %s: %w", object, err)
	}

	uri := URI(a.bucket, object)
	log := logger.FromContext(ctx)
	log.Debug().
		Str("archive_uri", uri).
		Int("bytes", len(payload)).
		Msg("archived import payload")
	return uri, nil
}

// Fetch downloads the object behind a gs:// URI.
func Fetch(ctx context.Context, client *storage.Client, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// ParseURI splits gs://bucket/path/to/object into bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// URI builds the gs:// URI of an object.
func URI(bucket, object string) string {
	return "gs://" + bucket + "/" + object
}

// ObjectName lays archives out by source and UTC day.
func ObjectName(source string, at time.Time, id string) string {
	return path.Join("imports", source, at.UTC().Format("2006/01/02"), id+".json")
}
