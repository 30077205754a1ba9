package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sepolia interfaces.ChainSelector = 16015286601757825753
	fuji    interfaces.ChainSelector = 14767482510784806043
	amoy    interfaces.ChainSelector = 16281711391670634445
)

var (
	sepoliaRouter = common.HexToAddress("0x0BF3dE8c5D3e8A2B34D2BEeB17ABfCeBaf363A59")
	fujiRouter    = common.HexToAddress("0xF694E193200268f9a4868e4Aa017A0118C9a8177")
	amoyRouter    = common.HexToAddress("0x9C32fCB86BF0f4a1A8921a9Fe46de3198bb884B2")
	sender        = common.HexToAddress("0x5e00000000000000000000000000000000000001")
	receiverAddr  = common.HexToAddress("0x7e00000000000000000000000000000000000002")
)

// recordingReceiver records deliveries and fails while failures > 0.
type recordingReceiver struct {
	mu       sync.Mutex
	failures int
	failWith error
	got      []interfaces.InboundMessage
	routers  []common.Address
}

func (r *recordingReceiver) ReceiveMessage(_ context.Context, router common.Address, msg interfaces.InboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failures > 0 {
		r.failures--
		return r.failWith
	}
	r.got = append(r.got, msg)
	r.routers = append(r.routers, router)
	return nil
}

func (r *recordingReceiver) received() []interfaces.InboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interfaces.InboundMessage(nil), r.got...)
}

func newTestNetwork(t *testing.T, cfg Config) (*Network, *Router) {
	t.Helper()
	cfg.Log = slog.New(slog.NewTextHandler(io.Discard, nil))
	if cfg.Fees.BaseFee == nil {
		cfg.Fees = FeeSchedule{BaseFee: big.NewInt(10), GasPrice: big.NewInt(1), ByteFee: big.NewInt(2)}
	}
	n := NewNetwork(cfg)

	src, err := n.AddChain(sepolia, sepoliaRouter)
	require.NoError(t, err)
	_, err = n.AddChain(fuji, fujiRouter)
	require.NoError(t, err)
	_, err = n.AddChain(amoy, amoyRouter)
	require.NoError(t, err)
	return n, src
}

func outbound(data []byte, fee int64) interfaces.OutboundMessage {
	return interfaces.OutboundMessage{
		Sender:   sender,
		Receiver: receiverAddr,
		Data:     data,
		GasLimit: 100,
		Fee:      big.NewInt(fee),
	}
}

// send stages msg on src and commits it.
func send(t *testing.T, src *Router, dest interfaces.ChainSelector, msg interfaces.OutboundMessage) interfaces.MessageID {
	t.Helper()
	ctx := context.Background()
	id, err := src.Send(ctx, dest, msg)
	require.NoError(t, err)
	require.NoError(t, src.Commit(ctx, []interfaces.MessageID{id}))
	return id
}

func TestRouter_GetFee(t *testing.T) {
	ctx := context.Background()
	n, src := newTestNetwork(t, Config{})

	fee, err := src.GetFee(ctx, fuji, outbound([]byte("abcd"), 0))
	require.NoError(t, err)
	// 10 + 100*1 + 4*2
	assert.Equal(t, big.NewInt(118), fee)

	_, err = src.GetFee(ctx, interfaces.ChainSelector(42), outbound(nil, 0))
	assert.ErrorIs(t, err, interfaces.ErrUnsupportedDestination)

	_, err = src.GetFee(ctx, sepolia, outbound(nil, 0))
	assert.ErrorIs(t, err, interfaces.ErrUnsupportedDestination)

	msg := outbound(nil, 0)
	msg.FeeToken = common.HexToAddress("0x779877A7B0D9E8603169DdbD7836e478b4624789")
	_, err = src.GetFee(ctx, fuji, msg)
	assert.ErrorIs(t, err, interfaces.ErrUnsupportedFeeToken)

	_, err = n.AddChain(fuji, fujiRouter)
	assert.ErrorIs(t, err, ErrChainExists)
}

func TestRouter_Send(t *testing.T) {
	ctx := context.Background()
	n, src := newTestNetwork(t, Config{})

	_, err := src.Send(ctx, fuji, outbound([]byte("abcd"), 117))
	assert.ErrorIs(t, err, interfaces.ErrInsufficientFee)
	assert.Empty(t, n.Messages())

	id1, err := src.Send(ctx, fuji, outbound([]byte("abcd"), 118))
	require.NoError(t, err)
	id2, err := src.Send(ctx, fuji, outbound([]byte("abcd"), 500))
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2, "identical payloads get distinct sequence numbers")

	// staged messages are not visible to the relayer
	assert.Empty(t, n.Messages())
	assert.Equal(t, 0, n.Pending())
	_, err = n.Message(id1)
	assert.ErrorIs(t, err, ErrUnknownMessage)

	require.NoError(t, src.Commit(ctx, []interfaces.MessageID{id1, id2}))

	m, err := n.Message(id1)
	require.NoError(t, err)
	assert.Equal(t, Untouched, m.State)
	assert.Equal(t, uint64(1), m.SequenceNumber)
	assert.Equal(t, sepolia, m.SourceChainSelector)
	assert.Equal(t, fuji, m.DestChainSelector)
	assert.Equal(t, 2, n.Pending())

	_, err = n.Message(interfaces.MessageID{1})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestRouter_CommitAndDiscard(t *testing.T) {
	ctx := context.Background()
	n, src := newTestNetwork(t, Config{})
	rcv := &recordingReceiver{}
	require.NoError(t, n.Attach(fuji, receiverAddr, rcv))

	kept, err := src.Send(ctx, fuji, outbound([]byte("kept"), 1000))
	require.NoError(t, err)
	dropped, err := src.Send(ctx, fuji, outbound([]byte("dropped"), 1000))
	require.NoError(t, err)

	// commit is all or nothing
	err = src.Commit(ctx, []interfaces.MessageID{kept, {7}})
	assert.ErrorIs(t, err, ErrNotStaged)
	assert.Empty(t, n.Messages())

	// only the source router may release its messages
	fujiSrc, err := n.Router(fuji)
	require.NoError(t, err)
	assert.ErrorIs(t, fujiSrc.Commit(ctx, []interfaces.MessageID{kept}), ErrNotStaged)

	require.NoError(t, src.Discard(ctx, []interfaces.MessageID{dropped}))
	assert.ErrorIs(t, src.Commit(ctx, []interfaces.MessageID{dropped}), ErrNotStaged)
	require.NoError(t, src.Commit(ctx, []interfaces.MessageID{kept}))
	assert.ErrorIs(t, src.Discard(ctx, []interfaces.MessageID{kept}), ErrNotStaged)

	report, err := n.Relay(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.MessageID{kept}, report.Delivered)
	got := rcv.received()
	require.Len(t, got, 1)
	assert.Equal(t, []byte("kept"), got[0].Data)

	// the discarded sequence number is reused
	next := send(t, src, fuji, outbound([]byte("next"), 1000))
	m, err := n.Message(next)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), m.SequenceNumber)
}

func TestNetwork_Relay(t *testing.T) {
	ctx := context.Background()
	n, src := newTestNetwork(t, Config{})

	fujiRcv := &recordingReceiver{}
	amoyRcv := &recordingReceiver{}
	require.NoError(t, n.Attach(fuji, receiverAddr, fujiRcv))
	require.NoError(t, n.Attach(amoy, receiverAddr, amoyRcv))

	id1 := send(t, src, fuji, outbound([]byte("one"), 1000))
	id2 := send(t, src, amoy, outbound([]byte("two"), 1000))

	report, err := n.Relay(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []interfaces.MessageID{id1, id2}, report.Delivered)
	assert.Empty(t, report.Failed)

	got := fujiRcv.received()
	require.Len(t, got, 1)
	assert.Equal(t, id1, got[0].MessageID)
	assert.Equal(t, sepolia, got[0].SourceChainSelector)
	assert.Equal(t, sender, got[0].Sender)
	assert.Equal(t, []byte("one"), got[0].Data)
	assert.Equal(t, []common.Address{fujiRouter}, fujiRcv.routers)

	m, err := n.Message(id2)
	require.NoError(t, err)
	assert.Equal(t, Success, m.State)
	assert.Equal(t, 1, m.Attempts)

	// nothing left to deliver
	report, err = n.Relay(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Delivered)
	assert.Len(t, amoyRcv.received(), 1)
}

func TestNetwork_RelayRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	n, src := newTestNetwork(t, Config{MaxAttempts: 3})

	rcv := &recordingReceiver{failures: 2, failWith: errors.New("store timeout")}
	require.NoError(t, n.Attach(fuji, receiverAddr, rcv))

	id := send(t, src, fuji, outbound([]byte("x"), 1000))

	report, err := n.Relay(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.MessageID{id}, report.Delivered)

	m, err := n.Message(id)
	require.NoError(t, err)
	assert.Equal(t, Success, m.State)
	assert.Equal(t, 3, m.Attempts)
}

func TestNetwork_RelayFailures(t *testing.T) {
	ctx := context.Background()
	n, src := newTestNetwork(t, Config{MaxAttempts: 5})

	rejecting := &recordingReceiver{failures: 1, failWith: interfaces.ErrUntrustedSender}
	require.NoError(t, n.Attach(fuji, receiverAddr, rejecting))

	rejected := send(t, src, fuji, outbound([]byte("x"), 1000))
	orphan := send(t, src, amoy, outbound([]byte("y"), 1000))

	report, err := n.Relay(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []interfaces.MessageID{rejected, orphan}, report.Failed)

	m, err := n.Message(rejected)
	require.NoError(t, err)
	assert.Equal(t, Failure, m.State)
	assert.Equal(t, 1, m.Attempts, "rejections are not retried")
	assert.Contains(t, m.LastError, interfaces.ErrUntrustedSender.Error())

	m, err = n.Message(orphan)
	require.NoError(t, err)
	assert.Equal(t, Failure, m.State)
	assert.Contains(t, m.LastError, ErrNoReceiver.Error())

	// a later relay pass does not pick failed messages up again
	report, err = n.Relay(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Failed)

	require.NoError(t, n.ManualExecute(ctx, rejected))
	m, err = n.Message(rejected)
	require.NoError(t, err)
	assert.Equal(t, Success, m.State)
	assert.Empty(t, m.LastError)

	assert.ErrorIs(t, n.ManualExecute(ctx, rejected), ErrNotFailed)
	assert.ErrorIs(t, n.ManualExecute(ctx, interfaces.MessageID{9}), ErrUnknownMessage)
	assert.ErrorIs(t, n.ManualExecute(ctx, orphan), ErrNoReceiver)
}

func TestNetwork_RelayUnordered(t *testing.T) {
	ctx := context.Background()
	n, src := newTestNetwork(t, Config{Unordered: true})

	rcv := &recordingReceiver{}
	require.NoError(t, n.Attach(fuji, receiverAddr, rcv))

	var ids []interfaces.MessageID
	for i := 0; i < 20; i++ {
		id := send(t, src, fuji, outbound([]byte{byte(i)}, 1000))
		ids = append(ids, id)
	}

	report, err := n.Relay(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids, report.Delivered)
	assert.Len(t, rcv.received(), 20)
}

func TestNetwork_RelayCanceled(t *testing.T) {
	n, src := newTestNetwork(t, Config{})
	require.NoError(t, n.Attach(fuji, receiverAddr, &recordingReceiver{}))

	id := send(t, src, fuji, outbound([]byte("x"), 1000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Relay(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	m, err := n.Message(id)
	require.NoError(t, err)
	assert.Equal(t, Untouched, m.State)
}

func TestNetwork_Run(t *testing.T) {
	n, src := newTestNetwork(t, Config{})
	rcv := &recordingReceiver{}
	require.NoError(t, n.Attach(fuji, receiverAddr, rcv))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	send(t, src, fuji, outbound([]byte("x"), 1000))

	require.Eventually(t, func() bool {
		return len(rcv.received()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
