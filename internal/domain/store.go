package domain

import "context"

// ActivityLedger is the read-plus-flag view of the external copytrading
// database. GetActivity returns ErrActivityNotFound for unknown ids; any
// other error means the ledger is unreachable.
type ActivityLedger interface {
	GetActivity(ctx context.Context, id int64) (TargetActivity, error)

	// ReserveFlag atomically checks and sets the replay-protection flag of
	// the given kind. It returns nil when this call won the reservation and
	// ErrAlreadySigned when the flag was already true. The check and the
	// flip are a single conditional write at the storage layer; two
	// concurrent callers for the same activity can never both succeed, even
	// across processes.
	ReserveFlag(ctx context.Context, id int64, kind FlagKind) error
}
