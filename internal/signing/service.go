// Package signing orchestrates signature requests: it validates their shape
// against the whitelists, enforces per-user limits, cross-checks and reserves
// the target activity in the ledger, delegates to the custodial signing
// provider, and audits every attempt. It holds no key material.
package signing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// Alert event types, matched against the notifier's configured event list.
const (
	EventValidationFailed = "validation_failed"
	EventVolumeLimited    = "volume_limited"
	EventAuditWriteFailed = "audit_write_failed"
)

// Alerter delivers operator alerts for security-relevant events. A nil
// Alerter disables alerting.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// RequestMeta carries caller attribution captured by the transport layer.
type RequestMeta struct {
	IPAddress   string
	ServiceName string
}

// Service is the signing orchestrator.
type Service struct {
	ledger     domain.ActivityLedger
	audit      domain.AuditStore
	signer     domain.Signer
	security   *SecurityManager
	alerter    Alerter
	wl         *Whitelist
	commission CommissionPolicy
	logger     *slog.Logger
}

// NewService creates a Service. alerter may be nil.
func NewService(
	ledger domain.ActivityLedger,
	audit domain.AuditStore,
	signer domain.Signer,
	security *SecurityManager,
	alerter Alerter,
	wl *Whitelist,
	commission CommissionPolicy,
	logger *slog.Logger,
) *Service {
	return &Service{
		ledger:     ledger,
		audit:      audit,
		signer:     signer,
		security:   security,
		alerter:    alerter,
		wl:         wl,
		commission: commission,
		logger:     logger.With(slog.String("component", "signing")),
	}
}

// SignOrder processes an order signature request. The target activity's
// order flag is reserved before the provider is called; once reserved it is
// never rolled back, so a later failure still consumes the activity's single
// signing slot.
func (s *Service) SignOrder(ctx context.Context, req domain.OrderRequest, meta RequestMeta) domain.SignResult {
	log := s.requestLogger(domain.KindOrder, req.UserID)

	entry := newEntry(domain.KindOrder, req.RequestBase, meta)
	entry.TokenRef = req.TokenID
	entry.AmountUSDC = req.USDCAmount()
	if req.TargetActivityID > 0 {
		entry.TargetActivityID = &req.TargetActivityID
	}

	if err := s.validateOrder(req); err != nil {
		return s.reject(ctx, log, entry, domain.ReasonMalformedRequest, err)
	}
	if res, ok := s.checkLimits(ctx, log, entry, req.UserID, entry.AmountUSDC); !ok {
		return res
	}

	activity, err := s.ledger.GetActivity(ctx, req.TargetActivityID)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			s.alertValidation(ctx, entry, "unknown target activity")
			return s.reject(ctx, log, entry, domain.ReasonActivityNotFound, err)
		}
		return s.fail(ctx, log, entry, domain.ReasonLedgerUnreachable, err)
	}
	if err := matchOrderActivity(req, activity); err != nil {
		s.alertValidation(ctx, entry, err.Error())
		return s.reject(ctx, log, entry, domain.ReasonActivityMismatch, err)
	}

	if err := s.ledger.ReserveFlag(ctx, req.TargetActivityID, domain.FlagOrder); err != nil {
		if errors.Is(err, domain.ErrAlreadySigned) {
			s.alertValidation(ctx, entry, "order already signed for this activity")
			return s.reject(ctx, log, entry, domain.ReasonReplayDetected, err)
		}
		return s.fail(ctx, log, entry, domain.ReasonLedgerUnreachable, err)
	}

	payload := BuildOrderTypedData(req)
	signature, err := s.signer.SignTypedData(ctx, req.WalletRef, payload)
	if err != nil {
		// The reservation stands. The activity's order slot is spent.
		return s.fail(ctx, log, entry, domain.ReasonSigningProviderFailure,
			fmt.Errorf("%w: %w", domain.ErrSigningFailed, err))
	}

	return s.succeed(ctx, log, entry, signature)
}

// SignAllowance processes an ERC-20 allowance signature request. Allowances
// are not linked to activities, so there is no ledger round trip and no
// replay flag; the whitelist pins token and spender instead.
func (s *Service) SignAllowance(ctx context.Context, req domain.AllowanceRequest, meta RequestMeta) domain.SignResult {
	log := s.requestLogger(domain.KindAllowance, req.UserID)

	entry := newEntry(domain.KindAllowance, req.RequestBase, meta)
	entry.TokenRef = req.TokenAddress
	entry.AmountUSDC = req.USDCAmount()

	if err := s.validateAllowance(req); err != nil {
		return s.reject(ctx, log, entry, domain.ReasonMalformedRequest, err)
	}
	if err := s.security.CheckRateLimit(ctx, req.UserID); err != nil {
		return s.reject(ctx, log, entry, domain.ReasonRateLimited, err)
	}

	payload := BuildAllowanceTypedData(req, time.Now())
	signature, err := s.signer.SignTypedData(ctx, req.WalletRef, payload)
	if err != nil {
		return s.fail(ctx, log, entry, domain.ReasonSigningProviderFailure,
			fmt.Errorf("%w: %w", domain.ErrSigningFailed, err))
	}

	return s.succeed(ctx, log, entry, signature)
}

// SignTransfer processes a commission transfer signature request. The
// activity's commission flag is reserved before the amount is checked
// against the commission policy, so a rejected amount still consumes the
// activity's single commission slot. That is deliberate: callers probing for
// an acceptable amount get one attempt, not a search.
func (s *Service) SignTransfer(ctx context.Context, req domain.TransferRequest, meta RequestMeta) domain.SignResult {
	log := s.requestLogger(domain.KindTransfer, req.UserID)

	entry := newEntry(domain.KindTransfer, req.RequestBase, meta)
	entry.TokenRef = req.TokenAddress
	entry.AmountUSDC = req.USDCAmount()
	if req.TargetActivityID > 0 {
		entry.TargetActivityID = &req.TargetActivityID
	}

	if err := s.validateTransfer(req); err != nil {
		return s.reject(ctx, log, entry, domain.ReasonMalformedRequest, err)
	}
	if res, ok := s.checkLimits(ctx, log, entry, req.UserID, entry.AmountUSDC); !ok {
		return res
	}

	activity, err := s.ledger.GetActivity(ctx, req.TargetActivityID)
	if err != nil {
		if errors.Is(err, domain.ErrActivityNotFound) {
			s.alertValidation(ctx, entry, "unknown target activity")
			return s.reject(ctx, log, entry, domain.ReasonActivityNotFound, err)
		}
		return s.fail(ctx, log, entry, domain.ReasonLedgerUnreachable, err)
	}
	if err := matchTransferActivity(req, activity); err != nil {
		s.alertValidation(ctx, entry, err.Error())
		return s.reject(ctx, log, entry, domain.ReasonActivityMismatch, err)
	}

	if err := s.ledger.ReserveFlag(ctx, req.TargetActivityID, domain.FlagCommission); err != nil {
		if errors.Is(err, domain.ErrAlreadySigned) {
			s.alertValidation(ctx, entry, "commission already signed for this activity")
			return s.reject(ctx, log, entry, domain.ReasonReplayDetected, err)
		}
		return s.fail(ctx, log, entry, domain.ReasonLedgerUnreachable, err)
	}

	if !VerifyCommission(activity.NotionalUSDC, req.USDCAmount(), s.commission) {
		err := fmt.Errorf("commission %.6f USDC outside tolerance for notional %.6f",
			req.USDCAmount(), activity.NotionalUSDC)
		s.alertValidation(ctx, entry, err.Error())
		return s.reject(ctx, log, entry, domain.ReasonCommissionMismatch, err)
	}

	payload := BuildTransferTypedData(req, time.Now())
	signature, err := s.signer.SignTypedData(ctx, req.WalletRef, payload)
	if err != nil {
		return s.fail(ctx, log, entry, domain.ReasonSigningProviderFailure,
			fmt.Errorf("%w: %w", domain.ErrSigningFailed, err))
	}

	return s.succeed(ctx, log, entry, signature)
}

func (s *Service) requestLogger(kind domain.SignKind, userID int64) *slog.Logger {
	return s.logger.With(
		slog.String("request_id", uuid.NewString()),
		slog.String("kind", string(kind)),
		slog.Int64("user_id", userID),
	)
}

// checkLimits runs the rate and volume gates. Limit checks run before any
// ledger access so a throttled request never consumes a signing slot.
func (s *Service) checkLimits(ctx context.Context, log *slog.Logger, entry domain.AuditEntry, userID int64, amountUSDC float64) (domain.SignResult, bool) {
	if err := s.security.CheckRateLimit(ctx, userID); err != nil {
		return s.reject(ctx, log, entry, domain.ReasonRateLimited, err), false
	}
	if err := s.security.CheckVolume(ctx, userID, amountUSDC); err != nil {
		s.alert(ctx, EventVolumeLimited, "Daily volume limit reached",
			fmt.Sprintf("user %d blocked: %v", userID, err))
		return s.reject(ctx, log, entry, domain.ReasonVolumeLimited, err), false
	}
	return domain.SignResult{}, true
}

// succeed appends the success audit entry and builds the caller response.
// If the append fails the signature is withheld and the attempt is reported
// as audit_write_failed; an unaudited signature must never reach a caller.
func (s *Service) succeed(ctx context.Context, log *slog.Logger, entry domain.AuditEntry, signature string) domain.SignResult {
	entry.Outcome = domain.OutcomeSuccess
	entry.Reason = domain.ReasonNone
	entry.Signature = signature

	auditID, err := s.audit.Append(ctx, entry)
	if err != nil {
		log.ErrorContext(ctx, "audit append failed after signing",
			slog.String("error", err.Error()),
		)
		s.alert(ctx, EventAuditWriteFailed, "Audit write failed",
			fmt.Sprintf("signed %s for user %d but could not audit: %v", entry.Kind, entry.UserID, err))
		return domain.SignResult{
			Outcome:   domain.OutcomeError,
			Reason:    domain.ReasonAuditWriteFailed,
			Timestamp: time.Now().UTC(),
		}
	}

	// Approvals grant spending power but move nothing, so only orders and
	// transfers count toward the daily volume cap.
	if entry.Kind != domain.KindAllowance {
		s.security.RecordVolume(ctx, entry.UserID, entry.AmountUSDC)
	}

	log.InfoContext(ctx, "signature produced",
		slog.Int64("audit_id", auditID),
		slog.Float64("amount_usdc", entry.AmountUSDC),
	)

	return domain.SignResult{
		Success:   true,
		Signature: signature,
		AuditID:   auditID,
		Outcome:   domain.OutcomeSuccess,
		Timestamp: time.Now().UTC(),
	}
}

// reject records a permanent refusal.
func (s *Service) reject(ctx context.Context, log *slog.Logger, entry domain.AuditEntry, reason domain.Reason, cause error) domain.SignResult {
	return s.conclude(ctx, log, entry, domain.OutcomeRejected, reason, cause)
}

// fail records an infrastructure failure the caller may retry.
func (s *Service) fail(ctx context.Context, log *slog.Logger, entry domain.AuditEntry, reason domain.Reason, cause error) domain.SignResult {
	return s.conclude(ctx, log, entry, domain.OutcomeError, reason, cause)
}

func (s *Service) conclude(ctx context.Context, log *slog.Logger, entry domain.AuditEntry, outcome domain.Outcome, reason domain.Reason, cause error) domain.SignResult {
	entry.Outcome = outcome
	entry.Reason = reason
	if cause != nil {
		entry.Detail = cause.Error()
	}

	logAttrs := []any{
		slog.String("outcome", string(outcome)),
		slog.String("reason", string(reason)),
	}
	if cause != nil {
		logAttrs = append(logAttrs, slog.String("error", cause.Error()))
	}
	if outcome == domain.OutcomeError {
		log.ErrorContext(ctx, "signing attempt failed", logAttrs...)
	} else {
		log.WarnContext(ctx, "signing attempt rejected", logAttrs...)
	}

	auditID, err := s.audit.Append(ctx, entry)
	if err != nil {
		log.ErrorContext(ctx, "audit append failed",
			slog.String("error", err.Error()),
		)
		s.alert(ctx, EventAuditWriteFailed, "Audit write failed",
			fmt.Sprintf("could not audit %s attempt for user %d: %v", entry.Kind, entry.UserID, err))
		return domain.SignResult{
			Outcome:   domain.OutcomeError,
			Reason:    domain.ReasonAuditWriteFailed,
			Timestamp: time.Now().UTC(),
		}
	}

	return domain.SignResult{
		AuditID:   auditID,
		Outcome:   outcome,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

func (s *Service) alertValidation(ctx context.Context, entry domain.AuditEntry, detail string) {
	s.alert(ctx, EventValidationFailed, "Signing request refused",
		fmt.Sprintf("%s request from user %d: %s", entry.Kind, entry.UserID, detail))
}

func (s *Service) alert(ctx context.Context, event, title, message string) {
	if s.alerter == nil {
		return
	}
	if err := s.alerter.Notify(ctx, event, title, message); err != nil {
		s.logger.Warn("alert delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func newEntry(kind domain.SignKind, base domain.RequestBase, meta RequestMeta) domain.AuditEntry {
	return domain.AuditEntry{
		Kind:          kind,
		UserID:        base.UserID,
		WalletAddress: base.WalletAddress,
		IPAddress:     meta.IPAddress,
		ServiceName:   meta.ServiceName,
	}
}
