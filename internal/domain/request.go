package domain

import "math/big"

// SignKind identifies one of the three signing request shapes.
type SignKind string

const (
	KindOrder     SignKind = "order"
	KindAllowance SignKind = "allowance"
	KindTransfer  SignKind = "transfer"
)

// OrderSide is the direction of a CLOB order.
type OrderSide int

const (
	SideBuy  OrderSide = 0
	SideSell OrderSide = 1
)

// RequestBase carries the fields common to every signing request. WalletRef
// is the opaque custodial-provider wallet identifier; a raw private key
// never enters this service.
type RequestBase struct {
	UserID        int64  `json:"user_id"`
	WalletRef     string `json:"wallet_ref"`
	WalletAddress string `json:"wallet_address"`
	ChainID       int64  `json:"chain_id"`
}

// OrderRequest asks for an EIP-712 order signature. TargetActivityID links
// the request to the recorded copy-trade it reproduces.
type OrderRequest struct {
	RequestBase

	TokenID           string    `json:"token_id"`
	Side              OrderSide `json:"side"`
	MakerAmount       *big.Int  `json:"maker_amount"`
	TakerAmount       *big.Int  `json:"taker_amount"`
	FeeRateBps        int64     `json:"fee_rate_bps"`
	Nonce             int64     `json:"nonce"`
	Expiration        int64     `json:"expiration"`
	VerifyingContract string    `json:"verifying_contract"`
	TargetActivityID  int64     `json:"target_activity_id"`
}

// USDCAmount returns the order's USDC leg for limit checks and audit rows.
// For a BUY the maker pays USDC; for a SELL the taker does.
func (r OrderRequest) USDCAmount() float64 {
	wei := r.MakerAmount
	if r.Side == SideSell {
		wei = r.TakerAmount
	}
	return weiToUSDC(wei)
}

// AllowanceRequest asks for an ERC-20 approve signature. Allowances carry no
// activity linkage and skip ledger validation entirely.
type AllowanceRequest struct {
	RequestBase

	TokenAddress   string   `json:"token_address"`
	SpenderAddress string   `json:"spender_address"`
	Amount         *big.Int `json:"amount"`
}

// USDCAmount returns the allowance amount in USDC units.
func (r AllowanceRequest) USDCAmount() float64 {
	return weiToUSDC(r.Amount)
}

// TransferRequest asks for a platform-commission transfer signature. The
// amount must approximate the configured percentage of the linked
// activity's notional.
type TransferRequest struct {
	RequestBase

	TokenAddress     string   `json:"token_address"`
	RecipientAddress string   `json:"recipient_address"`
	Amount           *big.Int `json:"amount"`
	TargetActivityID int64    `json:"target_activity_id"`
}

// USDCAmount returns the transfer amount in USDC units.
func (r TransferRequest) USDCAmount() float64 {
	return weiToUSDC(r.Amount)
}

// usdcDecimals is the USDC token precision (6 decimal places).
const usdcDecimals = 1e6

func weiToUSDC(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(wei).Float64()
	return f / usdcDecimals
}
