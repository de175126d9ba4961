package signing

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/alanyoungcy/signbroker/internal/domain"
)

// Typed-data payload builders. The shapes follow the CTF Exchange order
// struct, EIP-2612 Permit, and EIP-3009 TransferWithAuthorization; uint256
// values are rendered as decimal strings so they survive JSON transport to
// the signing provider.

const (
	exchangeDomainName = "Polymarket CTF Exchange"
	exchangeVersion    = "1"
	usdcDomainName     = "USD Coin"
	usdcVersion        = "2"

	// signatureTypeEOA marks the order as signed by the wallet itself.
	signatureTypeEOA = 0

	// authorizationWindow bounds how long a permit or transfer
	// authorization stays valid once signed.
	authorizationWindow = time.Hour
)

var eip712DomainFields = []domain.TypedDataField{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// BuildOrderTypedData assembles the EIP-712 payload for a CLOB order. Each
// call draws a fresh salt so two otherwise-identical orders hash apart.
func BuildOrderTypedData(req domain.OrderRequest) domain.TypedData {
	return domain.TypedData{
		Domain: map[string]any{
			"name":              exchangeDomainName,
			"version":           exchangeVersion,
			"chainId":           req.ChainID,
			"verifyingContract": req.VerifyingContract,
		},
		Types: map[string][]domain.TypedDataField{
			"EIP712Domain": eip712DomainFields,
			"Order": {
				{Name: "salt", Type: "uint256"},
				{Name: "maker", Type: "address"},
				{Name: "signer", Type: "address"},
				{Name: "taker", Type: "address"},
				{Name: "tokenId", Type: "uint256"},
				{Name: "makerAmount", Type: "uint256"},
				{Name: "takerAmount", Type: "uint256"},
				{Name: "expiration", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "feeRateBps", Type: "uint256"},
				{Name: "side", Type: "uint8"},
				{Name: "signatureType", Type: "uint8"},
			},
		},
		PrimaryType: "Order",
		Message: map[string]any{
			"salt":          freshSalt().String(),
			"maker":         req.WalletAddress,
			"signer":        req.WalletAddress,
			"taker":         "0x0000000000000000000000000000000000000000",
			"tokenId":       req.TokenID,
			"makerAmount":   req.MakerAmount.String(),
			"takerAmount":   req.TakerAmount.String(),
			"expiration":    big.NewInt(req.Expiration).String(),
			"nonce":         big.NewInt(req.Nonce).String(),
			"feeRateBps":    big.NewInt(req.FeeRateBps).String(),
			"side":          int(req.Side),
			"signatureType": signatureTypeEOA,
		},
	}
}

// BuildAllowanceTypedData assembles an EIP-2612 Permit granting the spender
// an allowance on the token. The permit deadline is one hour out.
func BuildAllowanceTypedData(req domain.AllowanceRequest, now time.Time) domain.TypedData {
	deadline := now.Add(authorizationWindow).Unix()

	return domain.TypedData{
		Domain: map[string]any{
			"name":              usdcDomainName,
			"version":           usdcVersion,
			"chainId":           req.ChainID,
			"verifyingContract": req.TokenAddress,
		},
		Types: map[string][]domain.TypedDataField{
			"EIP712Domain": eip712DomainFields,
			"Permit": {
				{Name: "owner", Type: "address"},
				{Name: "spender", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "nonce", Type: "uint256"},
				{Name: "deadline", Type: "uint256"},
			},
		},
		PrimaryType: "Permit",
		Message: map[string]any{
			"owner":    req.WalletAddress,
			"spender":  req.SpenderAddress,
			"value":    req.Amount.String(),
			"nonce":    "0",
			"deadline": big.NewInt(deadline).String(),
		},
	}
}

// BuildTransferTypedData assembles an EIP-3009 TransferWithAuthorization
// moving the commission to the team wallet. The random authorization nonce
// keeps the token contract from accepting the same authorization twice.
func BuildTransferTypedData(req domain.TransferRequest, now time.Time) domain.TypedData {
	validBefore := now.Add(authorizationWindow).Unix()

	return domain.TypedData{
		Domain: map[string]any{
			"name":              usdcDomainName,
			"version":           usdcVersion,
			"chainId":           req.ChainID,
			"verifyingContract": req.TokenAddress,
		},
		Types: map[string][]domain.TypedDataField{
			"EIP712Domain": eip712DomainFields,
			"TransferWithAuthorization": {
				{Name: "from", Type: "address"},
				{Name: "to", Type: "address"},
				{Name: "value", Type: "uint256"},
				{Name: "validAfter", Type: "uint256"},
				{Name: "validBefore", Type: "uint256"},
				{Name: "nonce", Type: "bytes32"},
			},
		},
		PrimaryType: "TransferWithAuthorization",
		Message: map[string]any{
			"from":        req.WalletAddress,
			"to":          req.RecipientAddress,
			"value":       req.Amount.String(),
			"validAfter":  "0",
			"validBefore": big.NewInt(validBefore).String(),
			"nonce":       authorizationNonce(),
		},
	}
}

// freshSalt derives a 128-bit order salt from a random UUID.
func freshSalt() *big.Int {
	id := uuid.New()
	return new(big.Int).SetBytes(ethcrypto.Keccak256(id[:])[:16])
}

// authorizationNonce returns a random bytes32 value as a 0x-prefixed hex
// string.
func authorizationNonce() string {
	id := uuid.New()
	return hexutil.Encode(ethcrypto.Keccak256(id[:]))
}
