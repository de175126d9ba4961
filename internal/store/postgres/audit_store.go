package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL. The table is
// append-only: no UPDATE or DELETE statement exists here apart from
// retention pruning of already-archived rows.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

const auditSelectCols = `id, signature_type, user_id, wallet_address, target_activity_id,
	signature, outcome, reason, detail, ip_address, service_name, token_ref,
	amount_usdc, created_at`

// Append inserts one audit entry and returns the assigned id.
func (s *AuditStore) Append(ctx context.Context, e domain.AuditEntry) (int64, error) {
	const query = `
		INSERT INTO signature_audit_log (
			signature_type, user_id, wallet_address, target_activity_id,
			signature, outcome, reason, detail, ip_address, service_name,
			token_ref, amount_usdc
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10,
			$11, $12
		) RETURNING id`

	var id int64
	err := s.pool.QueryRow(ctx, query,
		string(e.Kind), e.UserID, e.WalletAddress, e.TargetActivityID,
		nullIfEmpty(e.Signature), string(e.Outcome), nullIfEmpty(string(e.Reason)),
		nullIfEmpty(e.Detail), nullIfEmpty(e.IPAddress), nullIfEmpty(e.ServiceName),
		nullIfEmpty(e.TokenRef), e.AmountUSDC,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: append audit entry: %w", err)
	}
	return id, nil
}

// GetByID returns a single audit entry.
func (s *AuditStore) GetByID(ctx context.Context, id int64) (domain.AuditEntry, error) {
	query := `SELECT ` + auditSelectCols + ` FROM signature_audit_log WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	e, err := scanAuditRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AuditEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.AuditEntry{}, fmt.Errorf("postgres: get audit entry %d: %w", id, err)
	}
	return e, nil
}

// List returns audit entries matching the filter, newest first.
func (s *AuditStore) List(ctx context.Context, f domain.AuditFilter) ([]domain.AuditEntry, error) {
	query := `SELECT ` + auditSelectCols + ` FROM signature_audit_log WHERE 1=1`
	args := []any{}
	argIdx := 1

	if f.Kind != "" {
		query += fmt.Sprintf(" AND signature_type = $%d", argIdx)
		args = append(args, string(f.Kind))
		argIdx++
	}
	if f.UserID > 0 {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, f.UserID)
		argIdx++
	}
	if f.Outcome != "" {
		query += fmt.Sprintf(" AND outcome = $%d", argIdx)
		args = append(args, string(f.Outcome))
		argIdx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *f.Since)
		argIdx++
	}
	if f.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *f.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)
	argIdx++

	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// ListBefore returns all entries created strictly before the cutoff, oldest
// first, for archival.
func (s *AuditStore) ListBefore(ctx context.Context, before time.Time) ([]domain.AuditEntry, error) {
	query := `SELECT ` + auditSelectCols + ` FROM signature_audit_log WHERE created_at < $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries before: %w", err)
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

// DeleteBefore prunes entries created before the cutoff. It is only called
// after the same range has been archived. Returns the number deleted.
func (s *AuditStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM signature_audit_log WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete audit entries before: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuditRow(row rowScanner) (domain.AuditEntry, error) {
	var (
		e         domain.AuditEntry
		kind      string
		signature *string
		outcome   string
		reason    *string
		detail    *string
		ip        *string
		service   *string
		tokenRef  *string
	)
	err := row.Scan(
		&e.ID, &kind, &e.UserID, &e.WalletAddress, &e.TargetActivityID,
		&signature, &outcome, &reason, &detail, &ip, &service, &tokenRef,
		&e.AmountUSDC, &e.CreatedAt,
	)
	if err != nil {
		return domain.AuditEntry{}, err
	}

	e.Kind = domain.SignKind(kind)
	e.Outcome = domain.Outcome(outcome)
	e.Signature = deref(signature)
	e.Reason = domain.Reason(deref(reason))
	e.Detail = deref(detail)
	e.IPAddress = deref(ip)
	e.ServiceName = deref(service)
	e.TokenRef = deref(tokenRef)
	return e, nil
}

func scanAuditRows(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	for rows.Next() {
		e, err := scanAuditRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: audit entry rows: %w", err)
	}
	return entries, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time interface check.
var _ domain.AuditStore = (*AuditStore)(nil)
