package privy

import "github.com/alanyoungcy/signbroker/internal/domain"

// signMethod is the wallet RPC method for EIP-712 payloads.
const signMethod = "eth_signTypedData_v4"

type rpcRequest struct {
	Method string    `json:"method"`
	Params rpcParams `json:"params"`
}

type rpcParams struct {
	TypedData domain.TypedData `json:"typed_data"`
}

type rpcResponse struct {
	Method string  `json:"method"`
	Data   rpcData `json:"data"`
}

type rpcData struct {
	Signature string `json:"signature"`
	Encoding  string `json:"encoding"`
}

type apiError struct {
	Error string `json:"error"`
}
