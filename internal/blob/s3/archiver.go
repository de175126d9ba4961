package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// multipartThreshold switches uploads to the multipart manager for large
// backfills.
const multipartThreshold = 64 * 1024 * 1024

// Archiver implements domain.Archiver. It exports audit entries older than
// a cutoff to JSONL in the archive bucket, verifies the object landed, and
// only then prunes the exported rows from the primary store. If the upload
// or the verification fails nothing is deleted.
type Archiver struct {
	writer *Writer
	reader *Reader
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver over the given blob client and audit
// store.
func NewArchiver(c *Client, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: NewWriter(c),
		reader: NewReader(c),
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Archive exports all audit entries created before the cutoff and returns
// the number of rows pruned from the primary store.
func (a *Archiver) Archive(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath(before, time.Now().UTC())
	if int64(len(buf)) >= multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	ok, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive verify: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("s3blob: archive verify: object %s missing after upload", path)
	}

	pruned, err := a.audit.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.InfoContext(ctx, "audit entries archived",
		slog.String("path", path),
		slog.Int("exported", len(entries)),
		slog.Int64("pruned", pruned),
		slog.Time("before", before),
	)

	return pruned, nil
}

// archivePath builds the S3 key for one archive run. The cutoff date groups
// runs, the run timestamp keeps each key unique: a rerun on the same day
// must never overwrite an object whose rows were already pruned.
//
//	archive/audit/2026-08-30/20260830T110000Z.jsonl
func archivePath(before, runAt time.Time) string {
	return fmt.Sprintf("archive/audit/%s/%s.jsonl",
		before.UTC().Format("2006-01-02"),
		runAt.UTC().Format("20060102T150405Z"),
	)
}

// marshalJSONL serialises entries as newline-delimited JSON.
func marshalJSONL(entries []domain.AuditEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, e := range entries {
		if err := enc.Encode(e); err != nil {
			return nil, fmt.Errorf("jsonl encode entry %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
