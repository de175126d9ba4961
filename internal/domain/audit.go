package domain

import (
	"context"
	"time"
)

// Outcome classifies the terminal result of one signing attempt.
type Outcome string

const (
	// OutcomeSuccess means a signature was produced and audited.
	OutcomeSuccess Outcome = "success"
	// OutcomeRejected means the request was refused for a permanent,
	// client-correctable reason. Retrying with the same parameters will
	// never succeed.
	OutcomeRejected Outcome = "rejected"
	// OutcomeError means an infrastructure failure occurred. The caller may
	// retry with backoff.
	OutcomeError Outcome = "error"
)

// Reason is the machine-readable failure code attached to rejected and
// error outcomes. Empty on success.
type Reason string

const (
	ReasonNone Reason = ""

	// Rejected class.
	ReasonMalformedRequest   Reason = "malformed_request"
	ReasonActivityNotFound   Reason = "activity_not_found"
	ReasonActivityMismatch   Reason = "activity_mismatch"
	ReasonReplayDetected     Reason = "replay_detected"
	ReasonCommissionMismatch Reason = "commission_mismatch"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonVolumeLimited      Reason = "volume_limited"

	// Error class.
	ReasonLedgerUnreachable      Reason = "ledger_unreachable"
	ReasonSigningProviderFailure Reason = "signing_provider_failure"
	ReasonAuditWriteFailed       Reason = "audit_write_failed"
)

// AuditEntry is one immutable row of the signature audit log. Exactly one
// entry is appended per request attempt, regardless of outcome; entries are
// never updated or deleted.
type AuditEntry struct {
	ID               int64     `json:"id"`
	Kind             SignKind  `json:"kind"`
	UserID           int64     `json:"user_id"`
	WalletAddress    string    `json:"wallet_address"`
	TargetActivityID *int64    `json:"target_activity_id,omitempty"` // nil for allowance requests
	Signature        string    `json:"signature,omitempty"`          // empty on failure
	Outcome          Outcome   `json:"outcome"`
	Reason           Reason    `json:"reason,omitempty"`
	Detail           string    `json:"detail,omitempty"` // free-form failure detail, operator facing
	IPAddress        string    `json:"ip_address,omitempty"`
	ServiceName      string    `json:"service_name,omitempty"`
	TokenRef         string    `json:"token_ref,omitempty"` // token id (orders) or token address (allowance/transfer)
	AmountUSDC       float64   `json:"amount_usdc"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditFilter narrows audit queries.
type AuditFilter struct {
	Kind    SignKind
	UserID  int64
	Outcome Outcome
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// AuditStore persists the append-only signature audit log.
type AuditStore interface {
	// Append inserts an entry and returns the assigned audit id.
	Append(ctx context.Context, e AuditEntry) (int64, error)
	GetByID(ctx context.Context, id int64) (AuditEntry, error)
	List(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
	// ListBefore returns entries created strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
	// DeleteBefore prunes archived entries. Returns the number removed.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
