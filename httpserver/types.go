package httpserver

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RegisterRequest is the body of POST /api/v1/register.
type RegisterRequest struct {
	Name string `json:"name"`
}

// EnableChainRequest is the body of PUT /api/v1/admin/chains/{selector}.
// GasLimit defaults to devnet.DefaultGasLimit when omitted.
type EnableChainRequest struct {
	Receiver common.Address `json:"receiver"`
	Strict   bool           `json:"strict"`
	GasLimit uint64         `json:"gasLimit,omitempty"`
}

// FundRequest carries a decimal amount in the smallest native unit.
type FundRequest struct {
	Amount string `json:"amount"`
}

type WithdrawRequest struct {
	Beneficiary common.Address `json:"beneficiary"`
}

type LookupResponse struct {
	Network string         `json:"network"`
	Name    string         `json:"name"`
	Owner   common.Address `json:"owner"`
}

type AmountResponse struct {
	Amount *big.Int `json:"amount"`
}

type BalanceResponse struct {
	Register common.Address `json:"register"`
	Balance  *big.Int       `json:"balance"`
}
