package signing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

func TestValidateOrder(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name   string
		mutate func(*domain.OrderRequest)
	}{
		{"zero user id", func(r *domain.OrderRequest) { r.UserID = 0 }},
		{"missing wallet ref", func(r *domain.OrderRequest) { r.WalletRef = "" }},
		{"bad wallet address", func(r *domain.OrderRequest) { r.WalletAddress = "0x123" }},
		{"wrong chain", func(r *domain.OrderRequest) { r.ChainID = 1 }},
		{"missing token id", func(r *domain.OrderRequest) { r.TokenID = "" }},
		{"invalid side", func(r *domain.OrderRequest) { r.Side = 3 }},
		{"nil maker amount", func(r *domain.OrderRequest) { r.MakerAmount = nil }},
		{"zero maker amount", func(r *domain.OrderRequest) { r.MakerAmount = big.NewInt(0) }},
		{"negative taker amount", func(r *domain.OrderRequest) { r.TakerAmount = big.NewInt(-1) }},
		{"fee rate over 100%", func(r *domain.OrderRequest) { r.FeeRateBps = 10001 }},
		{"negative nonce", func(r *domain.OrderRequest) { r.Nonce = -1 }},
		{"unwhitelisted contract", func(r *domain.OrderRequest) {
			r.VerifyingContract = "0x9999999999999999999999999999999999999999"
		}},
		{"zero activity id", func(r *domain.OrderRequest) { r.TargetActivityID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validOrderRequest()
			tt.mutate(&req)

			err := f.svc.validateOrder(req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	t.Run("valid request passes", func(t *testing.T) {
		assert.NoError(t, f.svc.validateOrder(validOrderRequest()))
	})
}

func TestValidateAllowance(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name   string
		mutate func(*domain.AllowanceRequest)
	}{
		{"unwhitelisted token", func(r *domain.AllowanceRequest) {
			r.TokenAddress = "0x9999999999999999999999999999999999999999"
		}},
		{"unwhitelisted spender", func(r *domain.AllowanceRequest) {
			r.SpenderAddress = "0x9999999999999999999999999999999999999999"
		}},
		{"nil amount", func(r *domain.AllowanceRequest) { r.Amount = nil }},
		{"zero amount", func(r *domain.AllowanceRequest) { r.Amount = big.NewInt(0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validAllowanceRequest()
			tt.mutate(&req)

			err := f.svc.validateAllowance(req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	t.Run("valid request passes", func(t *testing.T) {
		assert.NoError(t, f.svc.validateAllowance(validAllowanceRequest()))
	})
}

func TestValidateTransfer(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name   string
		mutate func(*domain.TransferRequest)
	}{
		{"unwhitelisted token", func(r *domain.TransferRequest) {
			r.TokenAddress = "0x9999999999999999999999999999999999999999"
		}},
		{"recipient not a team wallet", func(r *domain.TransferRequest) {
			r.RecipientAddress = "0x9999999999999999999999999999999999999999"
		}},
		{"zero amount", func(r *domain.TransferRequest) { r.Amount = big.NewInt(0) }},
		{"zero activity id", func(r *domain.TransferRequest) { r.TargetActivityID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validTransferRequest()
			tt.mutate(&req)

			err := f.svc.validateTransfer(req)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	t.Run("valid request passes", func(t *testing.T) {
		assert.NoError(t, f.svc.validateTransfer(validTransferRequest()))
	})
}

func TestWhitelistCaseInsensitive(t *testing.T) {
	wl := NewWhitelist(WhitelistConfig{
		ChainID:            137,
		VerifyingContracts: []string{"0x4BFB41D5B3570DEFD03C39A9A4D8DE6BD8B8982E"},
		TokenAddresses:     []string{testUSDC},
	})

	assert.True(t, wl.AllowsContract("0x4bfb41d5b3570defd03c39a9a4d8de6bd8b8982e"))
	assert.True(t, wl.AllowsContract(testExchange))
	assert.False(t, wl.AllowsContract("0x0000000000000000000000000000000000000001"))
}
