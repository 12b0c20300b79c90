// Package publish uploads run artifacts (the output table and the ledger
// logs) to a blob bucket after a walk completes.
package publish

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// Publisher copies local files into a bucket identified by URL.
type Publisher struct {
	bucketURL string
	prefix    string
	log       *slog.Logger
}

// New creates a publisher for the given bucket URL (file://, gs://, s3://).
func New(bucketURL, prefix string, logger *slog.Logger) *Publisher {
	return &Publisher{
		bucketURL: bucketURL,
		prefix:    prefix,
		log:       logger,
	}
}

// Publish uploads each named local file under the configured prefix, keyed by
// its base name. Files that do not exist locally are skipped with a log line;
// any upload error aborts the rest.
func (p *Publisher) Publish(ctx context.Context, paths []string) error {
	bucket, err := blob.OpenBucket(ctx, p.bucketURL)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", p.bucketURL, err)
	}
	defer bucket.Close()

	for _, local := range paths {
		if _, err := os.Stat(local); os.IsNotExist(err) {
			p.log.Info("skipping absent artifact", "path", local)
			continue
		}

		key := path.Join(p.prefix, filepath.Base(local))
		if err := p.upload(ctx, bucket, local, key); err != nil {
			return err
		}
		p.log.Info("published artifact", "path", local, "key", key)
	}
	return nil
}

func (p *Publisher) upload(ctx context.Context, bucket *blob.Bucket, local, key string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("open %s: %w", local, err)
	}
	defer f.Close()

	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", key, err)
	}

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", key, err)
	}
	return nil
}
