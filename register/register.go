// Package register implements the source-chain contract of the cross-chain
// name service: it validates and records names locally and propagates every
// registration to the enabled destination chains, paying bridge fees from
// its own native balance.
package register

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
)

// Config holds the deployment parameters of a Register.
type Config struct {
	Address common.Address
	Owner   common.Address
	// ChainSelector is the selector of the chain the Register lives on.
	ChainSelector interfaces.ChainSelector
	Bridge        interfaces.Bridge
	Lookup        interfaces.NameWriter
	Ledger        interfaces.Ledger
	// Suffix defaults to interfaces.DefaultNameSuffix.
	Suffix string
	Log    *slog.Logger
}

// Outcome is the dispatch result for one enabled chain.
type Outcome struct {
	ChainSelector interfaces.ChainSelector  `json:"chainSelector"`
	Receiver      common.Address            `json:"receiver"`
	Policy        interfaces.DeliveryPolicy `json:"policy"`
	MessageID     interfaces.MessageID      `json:"messageId"`
	Fee           *big.Int                  `json:"fee,omitempty"`
	Err           error                     `json:"-"`
	Error         string                    `json:"error,omitempty"`
}

// Sent reports whether the bridge accepted the message.
func (o Outcome) Sent() bool {
	return o.Err == nil
}

// Receipt describes a successful registration.
type Receipt struct {
	Name     string         `json:"name"`
	Owner    common.Address `json:"owner"`
	Outcomes []Outcome      `json:"outcomes"`
	TotalFee *big.Int       `json:"totalFee"`
}

// Register is the source-chain name service contract.
// Every state transition is serialized by mu.
type Register struct {
	mu       sync.Mutex
	address  common.Address
	owner    common.Address
	selector interfaces.ChainSelector
	bridge   interfaces.Bridge
	lookup   interfaces.NameWriter
	ledger   interfaces.Ledger
	suffix   string
	chains   *chainSet
	log      *slog.Logger
}

// NewRegister deploys a Register.
func NewRegister(cfg Config) (*Register, error) {
	if cfg.Bridge == nil || cfg.Lookup == nil || cfg.Ledger == nil {
		return nil, fmt.Errorf("register requires a bridge, a lookup and a ledger")
	}
	if cfg.Address == (common.Address{}) || cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("%w: register and owner addresses must be set", interfaces.ErrInvalidAddress)
	}
	if cfg.Suffix == "" {
		cfg.Suffix = interfaces.DefaultNameSuffix
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Register{
		address:  cfg.Address,
		owner:    cfg.Owner,
		selector: cfg.ChainSelector,
		bridge:   cfg.Bridge,
		lookup:   cfg.Lookup,
		ledger:   cfg.Ledger,
		suffix:   cfg.Suffix,
		chains:   newChainSet(),
		log:      cfg.Log.With(slog.String("register", cfg.Address.Hex())),
	}, nil
}

// Address returns the contract address, which is also the treasury account.
func (r *Register) Address() common.Address { return r.address }

// Owner returns the administrator.
func (r *Register) Owner() common.Address { return r.owner }

// ChainSelector returns the selector of the source chain.
func (r *Register) ChainSelector() interfaces.ChainSelector { return r.selector }

// plannedSend is a destination that passed fee preflight.
type plannedSend struct {
	idx int
	msg interfaces.OutboundMessage
	fee *big.Int
}

// stagedSend is a message the bridge holds until commit.
type stagedSend struct {
	idx  int
	dest interfaces.ChainSelector
	id   interfaces.MessageID
	fee  *big.Int
}

// Register records name for caller on the source chain and sends it to every
// enabled chain.
//
// All fees are quoted before anything changes. Messages are staged on the
// bridge and committed together once every strict chain has accepted its
// message. A strict chain that cannot be quoted, paid for or staged aborts the
// call with no effect: staged messages are discarded and their fees refunded.
// Best-effort chains that fail are reported in the receipt and skipped.
func (r *Register) Register(ctx context.Context, caller common.Address, name string) (*Receipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero caller", interfaces.ErrInvalidAddress)
	}
	if err := interfaces.ValidateName(name, r.suffix); err != nil {
		return nil, err
	}

	data, err := interfaces.EncodeNameRecord(interfaces.NameRecord{Name: name, Owner: caller})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}

	chains := r.chains.list()
	receipt := &Receipt{
		Name:     name,
		Owner:    caller,
		Outcomes: make([]Outcome, len(chains)),
		TotalFee: new(big.Int),
	}

	remaining := r.ledger.BalanceOf(ctx, r.address)
	plans := make([]plannedSend, 0, len(chains))
	for i, cfg := range chains {
		receipt.Outcomes[i] = Outcome{
			ChainSelector: cfg.ChainSelector,
			Receiver:      cfg.Receiver,
			Policy:        cfg.Policy,
		}

		msg := interfaces.OutboundMessage{
			Sender:   r.address,
			Receiver: cfg.Receiver,
			Data:     data,
			GasLimit: cfg.GasLimit,
		}
		fee, err := r.bridge.GetFee(ctx, cfg.ChainSelector, msg)
		if err == nil && fee.Cmp(remaining) > 0 {
			err = fmt.Errorf("%w: fee %s exceeds treasury balance %s", interfaces.ErrInsufficientFee, fee, remaining)
		}
		if err != nil {
			if cfg.Policy.IsStrict() {
				r.log.Warn("Registration aborted by strict chain",
					slog.String("name", name),
					slog.String("chain_selector", cfg.ChainSelector.String()),
					"err", err)
				return nil, fmt.Errorf("chain %s: %w", cfg.ChainSelector, err)
			}
			receipt.Outcomes[i].Err = err
			receipt.Outcomes[i].Error = err.Error()
			continue
		}

		remaining.Sub(remaining, fee)
		plans = append(plans, plannedSend{idx: i, msg: msg, fee: fee})
	}

	previous, err := r.lookup.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := r.lookup.Write(ctx, r.address, name, caller); err != nil {
		return nil, fmt.Errorf("failed to record %q locally: %w", name, err)
	}

	abort := func(staged []stagedSend, cause error) {
		r.unstage(ctx, staged)
		if err := r.lookup.Write(ctx, r.address, name, previous); err != nil {
			r.log.Error("Failed to restore lookup entry",
				slog.String("name", name),
				"err", err)
		}
		r.log.Error("Registration rolled back",
			slog.String("name", name),
			slog.Int("discarded", len(staged)),
			"err", cause)
	}

	staged := make([]stagedSend, 0, len(plans))
	for _, p := range plans {
		out := &receipt.Outcomes[p.idx]
		id, err := r.stage(ctx, out.ChainSelector, p.msg, p.fee)
		if err != nil {
			if out.Policy.IsStrict() {
				err = fmt.Errorf("%w: chain %s: %v", interfaces.ErrSendFailed, out.ChainSelector, err)
				abort(staged, err)
				return nil, err
			}

			r.log.Warn("Best-effort chain send failed",
				slog.String("name", name),
				slog.String("chain_selector", out.ChainSelector.String()),
				"err", err)
			out.Err = err
			out.Error = err.Error()
			continue
		}
		staged = append(staged, stagedSend{idx: p.idx, dest: out.ChainSelector, id: id, fee: p.fee})
	}

	if len(staged) > 0 {
		ids := make([]interfaces.MessageID, len(staged))
		for i, s := range staged {
			ids[i] = s.id
		}
		if err := r.bridge.Commit(ctx, ids); err != nil {
			err = fmt.Errorf("%w: commit: %v", interfaces.ErrSendFailed, err)
			abort(staged, err)
			return nil, err
		}
	}

	for _, s := range staged {
		out := &receipt.Outcomes[s.idx]
		out.MessageID = s.id
		out.Fee = s.fee
		receipt.TotalFee.Add(receipt.TotalFee, s.fee)
	}

	sent := 0
	for _, o := range receipt.Outcomes {
		if o.Sent() {
			sent++
		}
	}
	r.log.Info("Name registered",
		slog.String("name", name),
		slog.String("owner", caller.Hex()),
		slog.Int("chains", len(receipt.Outcomes)),
		slog.Int("sent", sent),
		slog.String("total_fee", receipt.TotalFee.String()))

	return receipt, nil
}

// stage pays fee to the bridge and submits msg. The fee is refunded if the bridge refuses the message.
func (r *Register) stage(ctx context.Context, dest interfaces.ChainSelector, msg interfaces.OutboundMessage, fee *big.Int) (interfaces.MessageID, error) {
	if err := r.ledger.Transfer(ctx, r.address, r.bridge.Address(), fee); err != nil {
		return interfaces.MessageID{}, fmt.Errorf("failed to pay fee: %w", err)
	}

	msg.Fee = fee
	id, err := r.bridge.Send(ctx, dest, msg)
	if err != nil {
		r.refund(ctx, dest, fee)
		return interfaces.MessageID{}, err
	}

	r.log.Debug("Message staged",
		slog.String("chain_selector", dest.String()),
		slog.String("message_id", id.String()),
		slog.String("fee", fee.String()))
	return id, nil
}

// unstage discards staged messages and reclaims their fees.
func (r *Register) unstage(ctx context.Context, staged []stagedSend) {
	if len(staged) == 0 {
		return
	}

	ids := make([]interfaces.MessageID, len(staged))
	for i, s := range staged {
		ids[i] = s.id
	}
	if err := r.bridge.Discard(ctx, ids); err != nil {
		r.log.Error("Failed to discard staged messages", slog.Int("count", len(ids)), "err", err)
	}

	for _, s := range staged {
		r.refund(ctx, s.dest, s.fee)
	}
}

func (r *Register) refund(ctx context.Context, dest interfaces.ChainSelector, fee *big.Int) {
	if err := r.ledger.Transfer(ctx, r.bridge.Address(), r.address, fee); err != nil {
		r.log.Error("Failed to refund bridge fee",
			slog.String("chain_selector", dest.String()),
			slog.String("fee", fee.String()),
			"err", err)
	}
}

// EnableChain adds or updates a destination chain. Only the owner may call it.
func (r *Register) EnableChain(ctx context.Context, caller common.Address, selector interfaces.ChainSelector, receiver common.Address, strict bool, gasLimit uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return fmt.Errorf("%w: %s is not the owner", interfaces.ErrUnauthorized, caller.Hex())
	}
	if receiver == (common.Address{}) {
		return fmt.Errorf("%w: zero receiver", interfaces.ErrInvalidAddress)
	}

	cfg := interfaces.NewChainConfig(selector, receiver, strict, gasLimit)
	updated := r.chains.upsert(cfg)

	r.log.Info("Chain enabled",
		slog.String("chain_selector", selector.String()),
		slog.String("receiver", receiver.Hex()),
		slog.String("policy", cfg.Policy.String()),
		slog.Uint64("gas_limit", gasLimit),
		slog.Bool("updated", updated))
	return nil
}

// DisableChain stops propagation to selector. Only the owner may call it.
func (r *Register) DisableChain(ctx context.Context, caller common.Address, selector interfaces.ChainSelector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return fmt.Errorf("%w: %s is not the owner", interfaces.ErrUnauthorized, caller.Hex())
	}
	if !r.chains.remove(selector) {
		return fmt.Errorf("%w: %s", interfaces.ErrChainNotEnabled, selector)
	}

	r.log.Info("Chain disabled", slog.String("chain_selector", selector.String()))
	return nil
}

// ChainConfig returns the configuration of an enabled chain.
func (r *Register) ChainConfig(selector interfaces.ChainSelector) (interfaces.ChainConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.chains.get(selector)
	if !ok {
		return interfaces.ChainConfig{}, fmt.Errorf("%w: %s", interfaces.ErrChainNotEnabled, selector)
	}
	return cfg, nil
}

// Chains returns the enabled chains in the order they were enabled.
func (r *Register) Chains() []interfaces.ChainConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chains.list()
}
