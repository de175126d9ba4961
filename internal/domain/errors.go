package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrActivityNotFound  = errors.New("target activity not found")
	ErrAlreadySigned     = errors.New("already signed")
	ErrLedgerUnavailable = errors.New("activity ledger unavailable")
	ErrRateLimited       = errors.New("rate limited")
	ErrVolumeLimited     = errors.New("daily volume limit exceeded")
	ErrInvalidRequest    = errors.New("invalid signing request")
	ErrSigningFailed     = errors.New("signing provider failure")
	ErrAuditWriteFailed  = errors.New("audit write failed")
	ErrUnauthorized      = errors.New("unauthorized")
)
