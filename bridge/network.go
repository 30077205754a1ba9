package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnknownChain is returned for a selector that was never added to the network.
	ErrUnknownChain = errors.New("unknown chain")
	// ErrChainExists is returned when a selector is added twice.
	ErrChainExists = errors.New("chain already added")
	// ErrUnknownMessage is returned for a message ID the network never accepted.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrNotStaged is returned when committing or discarding a message that is not staged on the router.
	ErrNotStaged = errors.New("message is not staged")
	// ErrNotFailed is returned when manually executing a message that is not in the Failure state.
	ErrNotFailed = errors.New("message is not in failure state")
	// ErrNoReceiver is returned when no receiver is attached at the destination address.
	ErrNoReceiver = errors.New("no receiver attached")
)

// FeeSchedule prices a message as BaseFee + GasLimit*GasPrice + len(Data)*ByteFee
// in the native currency of the source chain. Nil components count as zero.
type FeeSchedule struct {
	BaseFee  *big.Int
	GasPrice *big.Int
	ByteFee  *big.Int
}

// Quote computes the fee of msg.
func (f FeeSchedule) Quote(msg interfaces.OutboundMessage) *big.Int {
	fee := new(big.Int)
	if f.BaseFee != nil {
		fee.Add(fee, f.BaseFee)
	}
	if f.GasPrice != nil {
		fee.Add(fee, new(big.Int).Mul(new(big.Int).SetUint64(msg.GasLimit), f.GasPrice))
	}
	if f.ByteFee != nil {
		fee.Add(fee, new(big.Int).Mul(big.NewInt(int64(len(msg.Data))), f.ByteFee))
	}
	return fee
}

// Config configures a simulated network.
type Config struct {
	Fees FeeSchedule
	// MaxAttempts bounds delivery attempts of one message per relay pass. Defaults to 3.
	MaxAttempts uint
	// RetryDelay is the fixed delay between attempts.
	RetryDelay time.Duration
	// Unordered shuffles delivery order within a destination chain.
	Unordered bool
	Log       *slog.Logger
}

// RelayReport summarizes one relay pass.
type RelayReport struct {
	Delivered []interfaces.MessageID `json:"delivered"`
	Failed    []interfaces.MessageID `json:"failed"`
}

type endpoint struct {
	chain   interfaces.ChainSelector
	address common.Address
}

// Network holds the routers, attached receivers and in-flight messages of
// every simulated chain.
type Network struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	routers   map[interfaces.ChainSelector]*Router
	receivers map[endpoint]interfaces.MessageReceiver
	staged    map[interfaces.MessageID]*Message
	messages  map[interfaces.MessageID]*Message
	order     []interfaces.MessageID
	sequences map[[2]interfaces.ChainSelector]uint64

	// relayMu keeps relay passes and manual executions from delivering the same message twice.
	relayMu sync.Mutex
}

// NewNetwork creates an empty network.
func NewNetwork(cfg Config) *Network {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Network{
		cfg:       cfg,
		log:       cfg.Log,
		routers:   make(map[interfaces.ChainSelector]*Router),
		receivers: make(map[endpoint]interfaces.MessageReceiver),
		staged:    make(map[interfaces.MessageID]*Message),
		messages:  make(map[interfaces.MessageID]*Message),
		sequences: make(map[[2]interfaces.ChainSelector]uint64),
	}
}

// AddChain adds a chain whose router lives at routerAddress.
func (n *Network) AddChain(selector interfaces.ChainSelector, routerAddress common.Address) (*Router, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.routers[selector]; ok {
		return nil, fmt.Errorf("%w: %s", ErrChainExists, selector)
	}
	if routerAddress == (common.Address{}) {
		return nil, fmt.Errorf("%w: zero router address", interfaces.ErrInvalidAddress)
	}

	r := &Router{network: n, selector: selector, address: routerAddress}
	n.routers[selector] = r
	n.log.Info("Chain added to bridge network",
		slog.String("chain_selector", selector.String()),
		slog.String("router", routerAddress.Hex()))
	return r, nil
}

// Router returns the router of selector.
func (n *Network) Router(selector interfaces.ChainSelector) (*Router, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	r, ok := n.routers[selector]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, selector)
	}
	return r, nil
}

// Attach registers rcv as the contract at address on chain selector.
func (n *Network) Attach(selector interfaces.ChainSelector, address common.Address, rcv interfaces.MessageReceiver) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.routers[selector]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChain, selector)
	}
	n.receivers[endpoint{chain: selector, address: address}] = rcv
	return nil
}

func (n *Network) quote(source, dest interfaces.ChainSelector, msg interfaces.OutboundMessage) (*big.Int, error) {
	if msg.FeeToken != (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnsupportedFeeToken, msg.FeeToken.Hex())
	}

	n.mu.Lock()
	_, ok := n.routers[dest]
	n.mu.Unlock()
	if !ok || dest == source {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnsupportedDestination, dest)
	}

	return n.cfg.Fees.Quote(msg), nil
}

func (n *Network) send(ctx context.Context, source, dest interfaces.ChainSelector, msg interfaces.OutboundMessage) (interfaces.MessageID, error) {
	fee, err := n.quote(source, dest, msg)
	if err != nil {
		return interfaces.MessageID{}, err
	}
	if msg.Fee == nil || msg.Fee.Cmp(fee) < 0 {
		return interfaces.MessageID{}, fmt.Errorf("%w: paid %v, quoted %v", interfaces.ErrInsufficientFee, msg.Fee, fee)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	lane := [2]interfaces.ChainSelector{source, dest}
	n.sequences[lane]++
	seq := n.sequences[lane]

	id := messageID(source, dest, seq, msg.Sender, msg.Receiver, msg.Data)
	n.staged[id] = &Message{
		ID:                  id,
		SourceChainSelector: source,
		DestChainSelector:   dest,
		SequenceNumber:      seq,
		Sender:              msg.Sender,
		Receiver:            msg.Receiver,
		Data:                append([]byte(nil), msg.Data...),
		GasLimit:            msg.GasLimit,
		Fee:                 new(big.Int).Set(msg.Fee),
		State:               Untouched,
	}

	n.log.Debug("Message staged",
		slog.String("message_id", id.String()),
		slog.String("dest", dest.String()),
		slog.Uint64("sequence", seq))

	return id, nil
}

// stagedLocked returns the staged messages of ids, all sent from source.
func (n *Network) stagedLocked(source interfaces.ChainSelector, ids []interfaces.MessageID) ([]*Message, error) {
	batch := make([]*Message, 0, len(ids))
	for _, id := range ids {
		m, ok := n.staged[id]
		if !ok || m.SourceChainSelector != source {
			return nil, fmt.Errorf("%w: %s", ErrNotStaged, id)
		}
		batch = append(batch, m)
	}
	return batch, nil
}

// commit moves staged messages into the delivery queue. Nothing is committed if any id is not staged.
func (n *Network) commit(source interfaces.ChainSelector, ids []interfaces.MessageID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	batch, err := n.stagedLocked(source, ids)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, m := range batch {
		delete(n.staged, m.ID)
		m.SentAt = now
		n.messages[m.ID] = m
		n.order = append(n.order, m.ID)

		n.log.Info("Message accepted",
			slog.String("message_id", m.ID.String()),
			slog.String("source", source.String()),
			slog.String("dest", m.DestChainSelector.String()),
			slog.Uint64("sequence", m.SequenceNumber),
			slog.String("fee", m.Fee.String()))
	}
	return nil
}

// discard drops staged messages. Sequence numbers at the tip of their lane are released.
func (n *Network) discard(source interfaces.ChainSelector, ids []interfaces.MessageID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	batch, err := n.stagedLocked(source, ids)
	if err != nil {
		return err
	}

	for i := len(batch) - 1; i >= 0; i-- {
		m := batch[i]
		delete(n.staged, m.ID)
		lane := [2]interfaces.ChainSelector{m.SourceChainSelector, m.DestChainSelector}
		if n.sequences[lane] == m.SequenceNumber {
			n.sequences[lane]--
		}
		n.log.Debug("Message discarded", slog.String("message_id", m.ID.String()))
	}
	return nil
}

// Message returns a snapshot of message id.
func (n *Network) Message(id interfaces.MessageID) (Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	m, ok := n.messages[id]
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	return m.clone(), nil
}

// Messages returns snapshots of all messages in acceptance order.
func (n *Network) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Message, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.messages[id].clone())
	}
	return out
}

// Pending returns the number of messages not yet executed.
func (n *Network) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	count := 0
	for _, m := range n.messages {
		if m.State == Untouched {
			count++
		}
	}
	return count
}

// Relay delivers every Untouched message. Destination chains are processed
// concurrently, messages of one destination one at a time.
// Delivery failures end up in the report, the returned error is only set when ctx ends.
func (n *Network) Relay(ctx context.Context) (RelayReport, error) {
	n.relayMu.Lock()
	defer n.relayMu.Unlock()

	batches := n.claimPending()

	var (
		reportMu sync.Mutex
		report   RelayReport
	)

	eg, egCtx := errgroup.WithContext(ctx)
	for dest, batch := range batches {
		if n.cfg.Unordered {
			rand.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })
		}

		eg.Go(func() error {
			for i, m := range batch {
				if err := egCtx.Err(); err != nil {
					n.release(batch[i:])
					return err
				}

				err := n.deliverWithRetry(egCtx, m)
				if err != nil && egCtx.Err() != nil {
					n.release(batch[i:])
					return egCtx.Err()
				}
				reportMu.Lock()
				if err != nil {
					report.Failed = append(report.Failed, m.ID)
				} else {
					report.Delivered = append(report.Delivered, m.ID)
				}
				reportMu.Unlock()
			}
			n.log.Debug("Relayed destination batch",
				slog.String("dest", dest.String()),
				slog.Int("messages", len(batch)))
			return nil
		})
	}

	err := eg.Wait()
	if len(report.Delivered)+len(report.Failed) > 0 {
		n.log.Info("Relay pass finished",
			slog.Int("delivered", len(report.Delivered)),
			slog.Int("failed", len(report.Failed)))
	}
	return report, err
}

// ManualExecute delivers a Failure message once more.
func (n *Network) ManualExecute(ctx context.Context, id interfaces.MessageID) error {
	n.relayMu.Lock()
	defer n.relayMu.Unlock()

	n.mu.Lock()
	m, ok := n.messages[id]
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownMessage, id)
	}
	if m.State != Failure {
		state := m.State
		n.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrNotFailed, id, state)
	}
	m.State = InProgress
	snapshot := m.clone()
	n.mu.Unlock()

	err := n.deliver(ctx, &snapshot)
	n.finish(id, err)
	return err
}

// Run relays on every tick until ctx ends.
func (n *Network) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := n.Relay(ctx); err != nil && !errors.Is(err, context.Canceled) {
				n.log.Warn("Relay pass aborted", "err", err)
			}
		}
	}
}

// claimPending moves Untouched messages to InProgress and groups them per destination in acceptance order.
func (n *Network) claimPending() map[interfaces.ChainSelector][]Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	batches := make(map[interfaces.ChainSelector][]Message)
	for _, id := range n.order {
		m := n.messages[id]
		if m.State != Untouched {
			continue
		}
		m.State = InProgress
		batches[m.DestChainSelector] = append(batches[m.DestChainSelector], m.clone())
	}
	return batches
}

// release returns claimed messages to Untouched.
func (n *Network) release(batch []Message) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, m := range batch {
		if stored, ok := n.messages[m.ID]; ok && stored.State == InProgress {
			stored.State = Untouched
		}
	}
}

func (n *Network) deliverWithRetry(ctx context.Context, m Message) error {
	err := retry.Do(
		func() error {
			err := n.deliver(ctx, &m)
			if err != nil && isPermanent(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(n.cfg.MaxAttempts),
		retry.Delay(n.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil && ctx.Err() != nil {
		// interrupted, the caller puts the message back
		return err
	}
	n.finish(m.ID, err)
	return err
}

func (n *Network) deliver(ctx context.Context, m *Message) error {
	n.mu.Lock()
	stored := n.messages[m.ID]
	stored.Attempts++
	rcv, ok := n.receivers[endpoint{chain: m.DestChainSelector, address: m.Receiver}]
	router := n.routers[m.DestChainSelector]
	n.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s on chain %s", ErrNoReceiver, m.Receiver.Hex(), m.DestChainSelector)
	}

	return rcv.ReceiveMessage(ctx, router.Address(), m.inbound())
}

func (n *Network) finish(id interfaces.MessageID, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	m := n.messages[id]
	if err == nil {
		m.State = Success
		m.LastError = ""
		n.log.Info("Message executed",
			slog.String("message_id", id.String()),
			slog.Int("attempts", m.Attempts))
		return
	}

	m.State = Failure
	m.LastError = err.Error()
	n.log.Warn("Message execution failed",
		slog.String("message_id", id.String()),
		slog.String("dest", m.DestChainSelector.String()),
		slog.Int("attempts", m.Attempts),
		"err", err)
}

// permanentErrors are receiver rejections that another attempt cannot fix.
var permanentErrors = []error{
	ErrNoReceiver,
	interfaces.ErrUnauthorized,
	interfaces.ErrUntrustedSource,
	interfaces.ErrUntrustedSender,
	interfaces.ErrSourceNotConfigured,
	interfaces.ErrMalformedPayload,
}

func isPermanent(err error) bool {
	return slices.ContainsFunc(permanentErrors, func(target error) bool {
		return errors.Is(err, target)
	})
}
