package signing

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// maxFeeRateBps caps the fee an order may declare (100% in basis points).
const maxFeeRateBps = 10000

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func (s *Service) validateBase(b domain.RequestBase) error {
	if b.UserID <= 0 {
		return invalidf("user_id must be positive")
	}
	if b.WalletRef == "" {
		return invalidf("wallet_ref is required")
	}
	if !common.IsHexAddress(b.WalletAddress) {
		return invalidf("wallet_address %q is not a valid address", b.WalletAddress)
	}
	if b.ChainID != s.wl.ChainID() {
		return invalidf("chain_id %d is not supported", b.ChainID)
	}
	return nil
}

func (s *Service) validateOrder(req domain.OrderRequest) error {
	if err := s.validateBase(req.RequestBase); err != nil {
		return err
	}
	if req.TokenID == "" {
		return invalidf("token_id is required")
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return invalidf("side %d is not valid", req.Side)
	}
	if req.MakerAmount == nil || req.MakerAmount.Sign() <= 0 {
		return invalidf("maker_amount must be positive")
	}
	if req.TakerAmount == nil || req.TakerAmount.Sign() <= 0 {
		return invalidf("taker_amount must be positive")
	}
	if req.FeeRateBps < 0 || req.FeeRateBps > maxFeeRateBps {
		return invalidf("fee_rate_bps %d out of range", req.FeeRateBps)
	}
	if req.Nonce < 0 {
		return invalidf("nonce must not be negative")
	}
	if req.Expiration < 0 {
		return invalidf("expiration must not be negative")
	}
	if !common.IsHexAddress(req.VerifyingContract) {
		return invalidf("verifying_contract %q is not a valid address", req.VerifyingContract)
	}
	if !s.wl.AllowsContract(req.VerifyingContract) {
		return invalidf("verifying_contract %s is not whitelisted", req.VerifyingContract)
	}
	if req.TargetActivityID <= 0 {
		return invalidf("target_activity_id must be positive")
	}
	return nil
}

func (s *Service) validateAllowance(req domain.AllowanceRequest) error {
	if err := s.validateBase(req.RequestBase); err != nil {
		return err
	}
	if !common.IsHexAddress(req.TokenAddress) {
		return invalidf("token_address %q is not a valid address", req.TokenAddress)
	}
	if !s.wl.AllowsToken(req.TokenAddress) {
		return invalidf("token_address %s is not whitelisted", req.TokenAddress)
	}
	if !common.IsHexAddress(req.SpenderAddress) {
		return invalidf("spender_address %q is not a valid address", req.SpenderAddress)
	}
	if !s.wl.AllowsSpender(req.SpenderAddress) {
		return invalidf("spender_address %s is not whitelisted", req.SpenderAddress)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return invalidf("amount must be positive")
	}
	return nil
}

func (s *Service) validateTransfer(req domain.TransferRequest) error {
	if err := s.validateBase(req.RequestBase); err != nil {
		return err
	}
	if !common.IsHexAddress(req.TokenAddress) {
		return invalidf("token_address %q is not a valid address", req.TokenAddress)
	}
	if !s.wl.AllowsToken(req.TokenAddress) {
		return invalidf("token_address %s is not whitelisted", req.TokenAddress)
	}
	if !common.IsHexAddress(req.RecipientAddress) {
		return invalidf("recipient_address %q is not a valid address", req.RecipientAddress)
	}
	if !s.wl.AllowsRecipient(req.RecipientAddress) {
		return invalidf("recipient_address %s is not a team wallet", req.RecipientAddress)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return invalidf("amount must be positive")
	}
	if req.TargetActivityID <= 0 {
		return invalidf("target_activity_id must be positive")
	}
	return nil
}

// matchOrderActivity cross-checks the request against the recorded activity
// it claims to reproduce.
func matchOrderActivity(req domain.OrderRequest, a domain.TargetActivity) error {
	if a.UserID != req.UserID {
		return fmt.Errorf("activity %d belongs to user %d", a.ID, a.UserID)
	}
	if a.TokenID != req.TokenID {
		return fmt.Errorf("activity %d records token %s", a.ID, a.TokenID)
	}
	if a.Side != sideString(req.Side) {
		return fmt.Errorf("activity %d records side %s", a.ID, a.Side)
	}
	return nil
}

func matchTransferActivity(req domain.TransferRequest, a domain.TargetActivity) error {
	if a.UserID != req.UserID {
		return fmt.Errorf("activity %d belongs to user %d", a.ID, a.UserID)
	}
	return nil
}

func sideString(s domain.OrderSide) string {
	if s == domain.SideSell {
		return "SELL"
	}
	return "BUY"
}
