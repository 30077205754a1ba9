package register

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
)

// Fund moves amount from the from account into the treasury. Anyone may fund.
func (r *Register) Fund(ctx context.Context, from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: %v", interfaces.ErrInvalidAmount, amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ledger.Transfer(ctx, from, r.address, amount); err != nil {
		return fmt.Errorf("failed to fund register: %w", err)
	}

	r.log.Info("Treasury funded",
		slog.String("from", from.Hex()),
		slog.String("amount", amount.String()))
	return nil
}

// Withdraw sends the whole treasury balance to beneficiary. Only the owner may call it.
func (r *Register) Withdraw(ctx context.Context, caller, beneficiary common.Address) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return nil, fmt.Errorf("%w: %s is not the owner", interfaces.ErrUnauthorized, caller.Hex())
	}
	if beneficiary == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero beneficiary", interfaces.ErrInvalidAddress)
	}

	amount := r.ledger.BalanceOf(ctx, r.address)
	if err := r.ledger.Transfer(ctx, r.address, beneficiary, amount); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrTransferFailed, err)
	}

	r.log.Info("Treasury withdrawn",
		slog.String("beneficiary", beneficiary.Hex()),
		slog.String("amount", amount.String()))
	return amount, nil
}

// GetBalance returns the treasury balance.
func (r *Register) GetBalance(ctx context.Context) *big.Int {
	return r.ledger.BalanceOf(ctx, r.address)
}
