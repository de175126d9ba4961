package domain

import "time"

// FlagKind selects which replay-protection flag on a target activity a
// reservation applies to.
type FlagKind string

const (
	// FlagOrder guards order signatures (one per activity).
	FlagOrder FlagKind = "order"
	// FlagCommission guards commission transfer signatures (one per activity).
	FlagCommission FlagKind = "commission"
)

// TargetActivity is a recorded copy-trade in the external activity ledger.
// Rows are owned by the copytrading service; this service only reads them
// and flips the two replay-protection flags, which are monotonic
// (false -> true, never reset here).
type TargetActivity struct {
	ID               int64
	UserID           int64
	WalletAddress    string
	TokenID          string
	Side             string // "BUY" or "SELL"
	NotionalUSDC     float64
	OrderSigned      bool
	CommissionSigned bool
	CreatedAt        time.Time
}
