package changeset

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"tablesync/core/storage"
)

// Writer exports changeset files: one CSV per sync run listing every record
// the run inserted, updated or deleted. Files land under <Dir>/changesets
// and are optionally archived to object storage.
type Writer struct {
	cfg     Config
	store   storage.Client
	bucket  string
	log     *zap.Logger
	nowFunc func() time.Time
}

// New creates a Writer. store may be nil, in which case files stay local.
func New(cfg Config, store storage.Client, bucket string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		cfg:     cfg,
		store:   store,
		bucket:  bucket,
		log:     log,
		nowFunc: time.Now,
	}
}

func (w *Writer) dir() string {
	return filepath.Join(w.cfg.Dir, "changesets")
}

// Write persists one changeset as CSV and returns the local path. The rows
// already carry their operation column; Write only formats and stores them.
func (w *Writer) Write(ctx context.Context, targetName string, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(w.dir(), 0o755); err != nil {
		return "", fmt.Errorf("failed to create changeset directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.csv", w.nowFunc().UTC().Format("20060102T150405"), sanitize(targetName))
	path := filepath.Join(w.dir(), name)

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return "", err
	}
	if err := cw.WriteAll(rows); err != nil {
		return "", err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write changeset %s: %w", path, err)
	}

	if w.store != nil {
		if err := w.archive(ctx, name, buf.Bytes()); err != nil {
			// Archival is best effort; the local file is the record.
			w.log.Warn("Failed to archive changeset", zap.String("object", name), zap.Error(err))
		}
	}

	return path, nil
}

func (w *Writer) archive(ctx context.Context, name string, data []byte) error {
	exists, err := w.store.BucketExists(ctx, w.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := w.store.MakeBucket(ctx, w.bucket, minio.MakeBucketOptions{}); err != nil {
			return err
		}
	}

	_, err = w.store.PutObject(ctx, w.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/csv"})
	return err
}

// Prune removes changeset files older than the retention window, locally
// and, when archival is configured, from object storage.
func (w *Writer) Prune(ctx context.Context) error {
	cutoff := w.nowFunc().Add(-time.Duration(w.cfg.RetentionDays) * 24 * time.Hour)

	entries, err := os.ReadDir(w.dir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(w.dir(), entry.Name())); err != nil {
			w.log.Warn("Failed to remove old changeset", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		removed++
	}

	if w.store != nil {
		removed += w.pruneArchive(ctx, cutoff)
	}

	if removed > 0 {
		w.log.Info("Pruned old changesets", zap.Int("removed", removed))
	}
	return nil
}

func (w *Writer) pruneArchive(ctx context.Context, cutoff time.Time) int {
	exists, err := w.store.BucketExists(ctx, w.bucket)
	if err != nil || !exists {
		return 0
	}

	removed := 0
	for obj := range w.store.ListObjects(ctx, w.bucket, minio.ListObjectsOptions{}) {
		if obj.Err != nil {
			w.log.Warn("Failed to list archived changesets", zap.Error(obj.Err))
			break
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := w.store.RemoveObject(ctx, w.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			w.log.Warn("Failed to remove archived changeset", zap.String("object", obj.Key), zap.Error(err))
			continue
		}
		removed++
	}
	return removed
}

// sanitize keeps file names portable across filesystems.
func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
