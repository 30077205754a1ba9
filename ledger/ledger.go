// Package ledger keeps the native currency balances of one simulated chain.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
)

// Ledger implements interfaces.Ledger with an in-memory balance table.
// Transfers are atomic: either both sides change or neither does.
type Ledger struct {
	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	nonPayable map[common.Address]bool
	log        *slog.Logger
}

// New creates an empty ledger.
func New(log *slog.Logger) *Ledger {
	if log == nil {
		log = slog.Default()
	}
	return &Ledger{
		balances:   make(map[common.Address]*big.Int),
		nonPayable: make(map[common.Address]bool),
		log:        log,
	}
}

// Mint credits account with amount out of thin air (genesis allocation, faucet).
func (l *Ledger) Mint(account common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: mint of %v", interfaces.ErrInvalidAmount, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.balances[account] = new(big.Int).Add(l.balanceLocked(account), amount)
	return nil
}

// RejectDeposits marks account as unable to receive native currency,
// like a contract without a payable fallback.
func (l *Ledger) RejectDeposits(account common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nonPayable[account] = true
}

// BalanceOf returns a copy of the balance of account.
func (l *Ledger) BalanceOf(_ context.Context, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(account))
}

// Transfer moves amount from one account to another. A zero amount is a no-op
// that still honours the non-payable check.
func (l *Ledger) Transfer(_ context.Context, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: transfer of %v", interfaces.ErrInvalidAmount, amount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.nonPayable[to] {
		return fmt.Errorf("%w: %s does not accept deposits", interfaces.ErrTransferFailed, to.Hex())
	}

	fromBalance := l.balanceLocked(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", interfaces.ErrInsufficientFunds, from.Hex(), fromBalance, amount)
	}

	if from == to || amount.Sign() == 0 {
		return nil
	}

	l.balances[from] = new(big.Int).Sub(fromBalance, amount)
	l.balances[to] = new(big.Int).Add(l.balanceLocked(to), amount)

	l.log.Debug("Native transfer",
		slog.String("from", from.Hex()),
		slog.String("to", to.Hex()),
		slog.String("amount", amount.String()))
	return nil
}

func (l *Ledger) balanceLocked(account common.Address) *big.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return new(big.Int)
}
