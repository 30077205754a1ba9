// Package receiver implements the destination-chain contract of the
// cross-chain name service. It accepts name records only from the trusted
// Register on the trusted source chain, delivered by the local bridge router,
// and writes them into the local Lookup.
package receiver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
	"go.uber.org/atomic"
)

// State is the processing state of the receiver. It is Verifying while a
// message is being handled and Idle otherwise. Applied and Rejected are the
// outcomes a message ends in.
type State int

const (
	Idle State = iota
	Verifying
	Applied
	Rejected
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Verifying:
		return "verifying"
	case Applied:
		return "applied"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the deployment parameters of a Receiver.
type Config struct {
	Address common.Address
	Owner   common.Address
	// Router is the only address allowed to deliver messages.
	Router              common.Address
	Lookup              interfaces.NameWriter
	SourceChainSelector interfaces.ChainSelector
	Log                 *slog.Logger
}

// Stats counts processed messages.
type Stats struct {
	Applied  uint64 `json:"applied"`
	Rejected uint64 `json:"rejected"`
}

// Receiver is the destination-chain name service contract.
type Receiver struct {
	mu             sync.Mutex
	address        common.Address
	owner          common.Address
	router         common.Address
	lookup         interfaces.NameWriter
	sourceSelector interfaces.ChainSelector
	trustedSender  common.Address
	lastOutcome    State
	log            *slog.Logger

	state    atomic.Int32
	applied  atomic.Uint64
	rejected atomic.Uint64
}

var _ interfaces.MessageReceiver = (*Receiver)(nil)

// NewReceiver deploys a Receiver.
func NewReceiver(cfg Config) (*Receiver, error) {
	if cfg.Lookup == nil {
		return nil, fmt.Errorf("receiver requires a lookup")
	}
	if cfg.Address == (common.Address{}) || cfg.Owner == (common.Address{}) || cfg.Router == (common.Address{}) {
		return nil, fmt.Errorf("%w: receiver, owner and router addresses must be set", interfaces.ErrInvalidAddress)
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Receiver{
		address:        cfg.Address,
		owner:          cfg.Owner,
		router:         cfg.Router,
		lookup:         cfg.Lookup,
		sourceSelector: cfg.SourceChainSelector,
		log:            cfg.Log.With(slog.String("receiver", cfg.Address.Hex())),
	}, nil
}

// Address returns the contract address.
func (r *Receiver) Address() common.Address { return r.address }

// SourceChainSelector returns the only chain messages are accepted from.
func (r *Receiver) SourceChainSelector() interfaces.ChainSelector { return r.sourceSelector }

// TrustedSender returns the Register address messages are accepted from, zero while unset.
func (r *Receiver) TrustedSender() common.Address {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trustedSender
}

// SetCrossChainNameServiceAddress binds the trusted source-chain Register. Only the owner may call it, once.
func (r *Receiver) SetCrossChainNameServiceAddress(ctx context.Context, caller, register common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if caller != r.owner {
		return fmt.Errorf("%w: %s is not the owner", interfaces.ErrUnauthorized, caller.Hex())
	}
	if r.trustedSender != (common.Address{}) {
		return fmt.Errorf("%w: trusted sender is %s", interfaces.ErrAlreadySet, r.trustedSender.Hex())
	}
	if register == (common.Address{}) {
		return fmt.Errorf("%w: zero register", interfaces.ErrInvalidAddress)
	}

	r.trustedSender = register
	r.log.Info("Trusted sender set", slog.String("register", register.Hex()))
	return nil
}

// ReceiveMessage verifies and applies one inbound name record.
// A rejected message leaves the Lookup untouched.
func (r *Receiver) ReceiveMessage(ctx context.Context, router common.Address, msg interfaces.InboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.Store(int32(Verifying))
	defer r.state.Store(int32(Idle))

	rec, err := r.verify(router, msg)
	if err == nil {
		err = r.lookup.Write(ctx, r.address, rec.Name, rec.Owner)
	}
	if err != nil {
		r.lastOutcome = Rejected
		r.rejected.Inc()
		r.log.Warn("Message rejected",
			slog.String("message_id", msg.MessageID.String()),
			slog.String("source", msg.SourceChainSelector.String()),
			slog.String("sender", msg.Sender.Hex()),
			"err", err)
		return err
	}

	r.lastOutcome = Applied
	r.applied.Inc()
	r.log.Info("Name record applied",
		slog.String("message_id", msg.MessageID.String()),
		slog.String("name", rec.Name),
		slog.String("owner", rec.Owner.Hex()))
	return nil
}

func (r *Receiver) verify(router common.Address, msg interfaces.InboundMessage) (interfaces.NameRecord, error) {
	if router != r.router {
		return interfaces.NameRecord{}, fmt.Errorf("%w: %s is not the router", interfaces.ErrUnauthorized, router.Hex())
	}
	if r.trustedSender == (common.Address{}) {
		return interfaces.NameRecord{}, interfaces.ErrSourceNotConfigured
	}
	if msg.SourceChainSelector != r.sourceSelector {
		return interfaces.NameRecord{}, fmt.Errorf("%w: %s", interfaces.ErrUntrustedSource, msg.SourceChainSelector)
	}
	if msg.Sender != r.trustedSender {
		return interfaces.NameRecord{}, fmt.Errorf("%w: %s", interfaces.ErrUntrustedSender, msg.Sender.Hex())
	}
	return interfaces.DecodeNameRecord(msg.Data)
}

// State returns Verifying while a message is being processed and Idle otherwise.
func (r *Receiver) State() State {
	return State(r.state.Load())
}

// LastOutcome returns Applied or Rejected for the most recent message, Idle before the first one.
func (r *Receiver) LastOutcome() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastOutcome
}

// Stats returns the applied and rejected message counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Applied:  r.applied.Load(),
		Rejected: r.rejected.Load(),
	}
}
