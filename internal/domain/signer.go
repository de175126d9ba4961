package domain

import "context"

// TypedDataField is one member of an EIP-712 struct type.
type TypedDataField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypedData is an EIP-712 payload in the shape the custodial provider's
// signing endpoint accepts.
type TypedData struct {
	Domain      map[string]any              `json:"domain"`
	Types       map[string][]TypedDataField `json:"types"`
	PrimaryType string                      `json:"primaryType"`
	Message     map[string]any              `json:"message"`
}

// Signer is the external custodial signing capability. Implementations hold
// no keys locally; walletRef identifies the wallet at the provider. Any
// returned error is treated as a provider failure.
type Signer interface {
	SignTypedData(ctx context.Context, walletRef string, payload TypedData) (string, error)
}
