package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/signbroker/internal/domain"
	"github.com/alanyoungcy/signbroker/internal/server/middleware"
	"github.com/alanyoungcy/signbroker/internal/signing"
)

// SignHandler serves the three signing endpoints. Every request, valid or
// not, flows through the signing service so it lands in the audit log; the
// handler only decodes the body, attributes the caller, and maps the
// outcome to an HTTP status.
type SignHandler struct {
	svc    *signing.Service
	logger *slog.Logger
}

// NewSignHandler creates a SignHandler backed by the signing service.
func NewSignHandler(svc *signing.Service, logger *slog.Logger) *SignHandler {
	return &SignHandler{svc: svc, logger: logger}
}

// SignOrder requests an order signature.
// POST /api/sign/order
func (h *SignHandler) SignOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	result := h.svc.SignOrder(r.Context(), req, requestMeta(r))
	writeJSON(w, statusFor(result), result)
}

// SignAllowance requests an ERC-20 allowance signature.
// POST /api/sign/allowance
func (h *SignHandler) SignAllowance(w http.ResponseWriter, r *http.Request) {
	var req domain.AllowanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	result := h.svc.SignAllowance(r.Context(), req, requestMeta(r))
	writeJSON(w, statusFor(result), result)
}

// SignTransfer requests a commission transfer signature.
// POST /api/sign/transfer
func (h *SignHandler) SignTransfer(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}

	result := h.svc.SignTransfer(r.Context(), req, requestMeta(r))
	writeJSON(w, statusFor(result), result)
}

// requestMeta captures caller attribution for the audit trail.
func requestMeta(r *http.Request) signing.RequestMeta {
	return signing.RequestMeta{
		IPAddress:   middleware.ClientIP(r),
		ServiceName: r.Header.Get("X-Service-Name"),
	}
}

// statusFor maps a signing outcome to an HTTP status code. Rejections map
// to 4xx (the caller must change the request), infrastructure errors to
// 5xx (the caller may retry).
func statusFor(res domain.SignResult) int {
	if res.Success {
		return http.StatusOK
	}

	switch res.Reason {
	case domain.ReasonMalformedRequest:
		return http.StatusBadRequest
	case domain.ReasonActivityNotFound:
		return http.StatusNotFound
	case domain.ReasonActivityMismatch, domain.ReasonCommissionMismatch:
		return http.StatusUnprocessableEntity
	case domain.ReasonReplayDetected:
		return http.StatusConflict
	case domain.ReasonRateLimited, domain.ReasonVolumeLimited:
		return http.StatusTooManyRequests
	case domain.ReasonLedgerUnreachable, domain.ReasonSigningProviderFailure:
		return http.StatusBadGateway
	case domain.ReasonAuditWriteFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
