package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// archivePrefix is where the archiver stores exported audit files.
const archivePrefix = "archive/audit/"

// AuditHandler serves read access to the signature audit log and its S3
// archives.
type AuditHandler struct {
	store  domain.AuditStore
	blobs  domain.BlobReader // nil when archival is disabled
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler. blobs may be nil.
func NewAuditHandler(store domain.AuditStore, blobs domain.BlobReader, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{store: store, blobs: blobs, logger: logger}
}

// List returns audit entries matching the query filters.
// GET /api/audit?kind=&user_id=&outcome=&since=&until=&limit=&offset=
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := domain.AuditFilter{
		Kind:    domain.SignKind(q.Get("kind")),
		UserID:  int64(queryInt(r, "user_id", 0)),
		Outcome: domain.Outcome(q.Get("outcome")),
		Limit:   queryInt(r, "limit", 100),
		Offset:  queryInt(r, "offset", 0),
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}

	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = &ts
	}
	if v := q.Get("until"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "until must be RFC3339")
			return
		}
		filter.Until = &ts
	}

	entries, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit list failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetByID returns a single audit entry.
// GET /api/audit/{id}
func (h *AuditHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be numeric")
		return
	}

	entry, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "audit entry not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "audit get failed",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "audit query failed")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// ListArchives returns metadata for exported audit archive files.
// GET /api/audit/archives
func (h *AuditHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil {
		writeError(w, http.StatusNotFound, "archival is not configured")
		return
	}

	infos, err := h.blobs.List(r.Context(), archivePrefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "archive list failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "archive listing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"archives": infos,
		"count":    len(infos),
	})
}
