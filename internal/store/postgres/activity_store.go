package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// ActivityStore implements domain.ActivityLedger against the external
// copytrading database. It reads user_activities rows and performs exactly
// one kind of write: the conditional replay-flag flip.
type ActivityStore struct {
	pool *pgxpool.Pool
}

// NewActivityStore creates a new ActivityStore backed by the given
// connection pool.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

// GetActivity returns the target activity with the given id. It returns
// domain.ErrActivityNotFound when no row exists; any other failure is
// wrapped as a ledger-unavailable condition so callers can distinguish
// "absent" from "unreachable".
func (s *ActivityStore) GetActivity(ctx context.Context, id int64) (domain.TargetActivity, error) {
	const query = `
		SELECT id, user_id, wallet_address, token_id, side,
			COALESCE(usdc_amount, 0), is_order_signed, is_commission_signed, created_at
		FROM user_activities
		WHERE id = $1`

	var a domain.TargetActivity
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.UserID, &a.WalletAddress, &a.TokenID, &a.Side,
		&a.NotionalUSDC, &a.OrderSigned, &a.CommissionSigned, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.TargetActivity{}, domain.ErrActivityNotFound
	}
	if err != nil {
		return domain.TargetActivity{}, fmt.Errorf("postgres: get activity %d: %w: %w", id, domain.ErrLedgerUnavailable, err)
	}
	return a, nil
}

// flagColumn maps a flag kind to its column. Only these two columns are
// ever written by this service.
func flagColumn(kind domain.FlagKind) (string, error) {
	switch kind {
	case domain.FlagOrder:
		return "is_order_signed", nil
	case domain.FlagCommission:
		return "is_commission_signed", nil
	default:
		return "", fmt.Errorf("postgres: unknown flag kind %q", kind)
	}
}

// ReserveFlag flips the replay-protection flag of the given kind in a single
// conditional UPDATE. The WHERE clause only matches while the flag is still
// false, so under concurrent calls for the same activity exactly one caller
// observes a row change; everyone else gets domain.ErrAlreadySigned. Callers
// must have resolved the activity first: a zero row count on an id that was
// just read means the flag race was lost, not that the row vanished.
func (s *ActivityStore) ReserveFlag(ctx context.Context, id int64, kind domain.FlagKind) error {
	col, err := flagColumn(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE user_activities SET %s = TRUE, updated_at = NOW() WHERE id = $1 AND %s = FALSE`,
		col, col,
	)

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: reserve %s flag for activity %d: %w: %w", kind, id, domain.ErrLedgerUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadySigned
	}
	return nil
}

// Compile-time interface check.
var _ domain.ActivityLedger = (*ActivityStore)(nil)
