package domain

import "time"

// SignResult is returned to the caller for every signing attempt.
type SignResult struct {
	Success   bool      `json:"success"`
	Signature string    `json:"signature,omitempty"`
	AuditID   int64     `json:"audit_id"`
	Outcome   Outcome   `json:"outcome"`
	Reason    Reason    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Retryable reports whether the caller may retry the request with backoff.
// Only error-class outcomes are retryable; rejections are final.
func (r SignResult) Retryable() bool {
	return r.Outcome == OutcomeError
}
