// Package gcsexport writes expense snapshots to Google Cloud Storage as JSON
// lines.
package gcsexport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/rs/zerolog"
)

const (
	contentType   = "application/x-ndjson"
	uploadTimeout = 2 * time.Minute
)

// WriterFunc opens a writer for bucket/object. Closing it finalizes the upload.
type WriterFunc func(ctx context.Context, bucket, object string) io.WriteCloser

// Exporter uploads expenses to one bucket.
type Exporter struct {
	bucket    string
	newWriter WriterFunc
	close     func() error
	now       func() time.Time
	log       zerolog.Logger
}

// NewExporter creates an Exporter backed by a storage client. It assumes
// Application Default Credentials are configured.
func NewExporter(ctx context.Context, bucket string, log zerolog.Logger) (*Exporter, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewExporter: empty bucket name")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: create storage client: %w", err)
	}

	e := NewExporterWithWriter(bucket, func(ctx context.Context, bucket, object string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = contentType
		return w
	}, log)
	e.close = client.Close
	return e, nil
}

// NewExporterWithWriter creates an Exporter that writes through newWriter.
func NewExporterWithWriter(bucket string, newWriter WriterFunc, log zerolog.Logger) *Exporter {
	return &Exporter{
		bucket:    bucket,
		newWriter: newWriter,
		close:     func() error { return nil },
		now:       time.Now,
		log:       log.With().Str("component", "gcsexport").Logger(),
	}
}

// Close releases the storage client.
func (e *Exporter) Close() error {
	return e.close()
}

// ObjectName returns the object path used for an export taken at t.
func ObjectName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("exports/%s/expenses-%s.jsonl", t.Format("2006-01-02"), t.Format("20060102T150405Z"))
}

// Export writes one JSON object per expense and returns the gs:// URI.
func (e *Exporter) Export(ctx context.Context, expenses []*models.Expense) (string, error) {
	object := ObjectName(e.now())

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := e.newWriter(ctx, e.bucket, object)
	enc := json.NewEncoder(w)
	for _, exp := range expenses {
		if err := enc.Encode(exp); err != nil {
			_ = w.Close()
			return "", fmt.Errorf("Export: encode expense %d: %w", exp.ID, err)
		}
	}

	if err := w.Close(); err != nil {
		return "", fmt.Errorf("Export: finalize upload: %w", err)
	}

	uri := fmt.Sprintf("gs://%s/%s", e.bucket, object)
	e.log.Info().Str("uri", uri).Int("count", len(expenses)).Msg("Exported expenses")
	return uri, nil
}
