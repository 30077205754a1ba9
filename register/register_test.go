package register

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/bridge"
	"github.com/ruteri/ccns/interfaces"
	"github.com/ruteri/ccns/ledger"
	"github.com/ruteri/ccns/lookup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	sourceSelector interfaces.ChainSelector = 16015286601757825753
	chainA         interfaces.ChainSelector = 14767482510784806043
	chainB         interfaces.ChainSelector = 16281711391670634445
)

var (
	owner        = common.HexToAddress("0xd000000000000000000000000000000000000000")
	registerAddr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	lookupAddr   = common.HexToAddress("0x1000000000000000000000000000000000000001")
	bridgeAddr   = common.HexToAddress("0x0BF3dE8c5D3e8A2B34D2BEeB17ABfCeBaf363A59")
	receiverA    = common.HexToAddress("0x7a00000000000000000000000000000000000001")
	receiverB    = common.HexToAddress("0x7b00000000000000000000000000000000000002")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

type fixture struct {
	register *Register
	bridge   *bridge.MockBridge
	lookup   *lookup.Lookup
	ledger   *ledger.Ledger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := discardLogger()

	mb := &bridge.MockBridge{}
	mb.On("Address").Return(bridgeAddr).Maybe()

	l := lookup.NewLookup(lookupAddr, owner, nil, log)
	lg := ledger.New(log)

	r, err := NewRegister(Config{
		Address:       registerAddr,
		Owner:         owner,
		ChainSelector: sourceSelector,
		Bridge:        mb,
		Lookup:        l,
		Ledger:        lg,
		Log:           log,
	})
	require.NoError(t, err)
	require.NoError(t, l.SetAuthority(ctx, owner, registerAddr))

	return &fixture{register: r, bridge: mb, lookup: l, ledger: lg}
}

func (f *fixture) fund(t *testing.T, amount int64) {
	t.Helper()
	require.NoError(t, f.ledger.Mint(owner, big.NewInt(amount)))
	require.NoError(t, f.register.Fund(context.Background(), owner, big.NewInt(amount)))
}

func (f *fixture) owner(t *testing.T, name string) common.Address {
	t.Helper()
	addr, err := f.lookup.Lookup(context.Background(), name)
	require.NoError(t, err)
	return addr
}

func toChain(sel interfaces.ChainSelector) interface{} {
	return mock.MatchedBy(func(dest interfaces.ChainSelector) bool { return dest == sel })
}

func TestRegister_InvalidName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, true, 200_000))
	f.fund(t, 1000)

	for _, name := range []string{"", ".ccns", "alice", "alice.eth"} {
		_, err := f.register.Register(ctx, alice, name)
		assert.ErrorIs(t, err, interfaces.ErrInvalidName, name)
	}

	assert.Equal(t, big.NewInt(1000), f.register.GetBalance(ctx))
	f.bridge.AssertNotCalled(t, "GetFee", mock.Anything, mock.Anything, mock.Anything)
	f.bridge.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_ZeroCallerRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1000)

	_, err := f.register.Register(ctx, alice, "alice.ccns")
	require.NoError(t, err)

	_, err = f.register.Register(ctx, common.Address{}, "alice.ccns")
	assert.ErrorIs(t, err, interfaces.ErrInvalidAddress)
	assert.Equal(t, alice, f.owner(t, "alice.ccns"))

	_, err = f.register.Register(ctx, common.Address{}, "nobody.ccns")
	assert.ErrorIs(t, err, interfaces.ErrInvalidAddress)
	assert.Equal(t, common.Address{}, f.owner(t, "nobody.ccns"))
	assert.Equal(t, big.NewInt(1000), f.register.GetBalance(ctx))
}

func TestRegister_NoChains(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	receipt, err := f.register.Register(ctx, alice, "alice.ccns")
	require.NoError(t, err)
	assert.Empty(t, receipt.Outcomes)
	assert.Equal(t, 0, receipt.TotalFee.Sign())
	assert.Equal(t, alice, f.owner(t, "alice.ccns"))
}

func TestRegister_PropagatesToEnabledChains(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, true, 200_000))
	require.NoError(t, f.register.EnableChain(ctx, owner, chainB, receiverB, false, 300_000))
	f.fund(t, 1000)

	data, err := interfaces.EncodeNameRecord(interfaces.NameRecord{Name: "alice.ccns", Owner: alice})
	require.NoError(t, err)

	idA := interfaces.MessageID{0xa}
	idB := interfaces.MessageID{0xb}
	f.bridge.On("GetFee", mock.Anything, toChain(chainA), mock.Anything).Return(big.NewInt(100), nil)
	f.bridge.On("GetFee", mock.Anything, toChain(chainB), mock.Anything).Return(big.NewInt(250), nil)
	f.bridge.On("Send", mock.Anything, toChain(chainA), mock.MatchedBy(func(msg interfaces.OutboundMessage) bool {
		return msg.Receiver == receiverA && msg.Sender == registerAddr && msg.GasLimit == 200_000 &&
			msg.Fee.Cmp(big.NewInt(100)) == 0 && string(msg.Data) == string(data)
	})).Return(idA, nil).Once()
	f.bridge.On("Send", mock.Anything, toChain(chainB), mock.MatchedBy(func(msg interfaces.OutboundMessage) bool {
		return msg.Receiver == receiverB && msg.GasLimit == 300_000 && msg.Fee.Cmp(big.NewInt(250)) == 0
	})).Return(idB, nil).Once()
	f.bridge.On("Commit", mock.Anything, []interfaces.MessageID{idA, idB}).Return(nil).Once()

	receipt, err := f.register.Register(ctx, alice, "alice.ccns")
	require.NoError(t, err)

	assert.Equal(t, "alice.ccns", receipt.Name)
	assert.Equal(t, alice, receipt.Owner)
	require.Len(t, receipt.Outcomes, 2)
	assert.Equal(t, chainA, receipt.Outcomes[0].ChainSelector)
	assert.Equal(t, idA, receipt.Outcomes[0].MessageID)
	assert.True(t, receipt.Outcomes[0].Sent())
	assert.Equal(t, chainB, receipt.Outcomes[1].ChainSelector)
	assert.Equal(t, idB, receipt.Outcomes[1].MessageID)
	assert.Equal(t, big.NewInt(350), receipt.TotalFee)

	assert.Equal(t, alice, f.owner(t, "alice.ccns"))
	assert.Equal(t, big.NewInt(650), f.register.GetBalance(ctx))
	assert.Equal(t, big.NewInt(350), f.ledger.BalanceOf(ctx, bridgeAddr))
	f.bridge.AssertExpectations(t)
}

func TestRegister_StrictChainUnderfunded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, false, 200_000))
	require.NoError(t, f.register.EnableChain(ctx, owner, chainB, receiverB, true, 200_000))
	f.fund(t, 300)

	// A alone is affordable, A and B together are not.
	f.bridge.On("GetFee", mock.Anything, toChain(chainA), mock.Anything).Return(big.NewInt(200), nil)
	f.bridge.On("GetFee", mock.Anything, toChain(chainB), mock.Anything).Return(big.NewInt(200), nil)

	_, err := f.register.Register(ctx, alice, "alice.ccns")
	assert.ErrorIs(t, err, interfaces.ErrInsufficientFee)

	assert.Equal(t, common.Address{}, f.owner(t, "alice.ccns"))
	assert.Equal(t, big.NewInt(300), f.register.GetBalance(ctx))
	f.bridge.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegister_StrictQuoteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, true, 200_000))
	f.fund(t, 1000)

	f.bridge.On("GetFee", mock.Anything, toChain(chainA), mock.Anything).Return(nil, interfaces.ErrUnsupportedDestination)

	_, err := f.register.Register(ctx, alice, "alice.ccns")
	assert.ErrorIs(t, err, interfaces.ErrUnsupportedDestination)
	assert.Equal(t, common.Address{}, f.owner(t, "alice.ccns"))
}

func TestRegister_BestEffortFailuresAreSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, false, 200_000))
	require.NoError(t, f.register.EnableChain(ctx, owner, chainB, receiverB, false, 200_000))
	f.fund(t, 100)

	f.bridge.On("GetFee", mock.Anything, toChain(chainA), mock.Anything).Return(big.NewInt(500), nil)
	f.bridge.On("GetFee", mock.Anything, toChain(chainB), mock.Anything).Return(big.NewInt(60), nil)
	f.bridge.On("Send", mock.Anything, toChain(chainB), mock.Anything).Return(interfaces.MessageID{}, errors.New("router paused")).Once()

	receipt, err := f.register.Register(ctx, alice, "alice.ccns")
	require.NoError(t, err)

	require.Len(t, receipt.Outcomes, 2)
	assert.ErrorIs(t, receipt.Outcomes[0].Err, interfaces.ErrInsufficientFee)
	assert.False(t, receipt.Outcomes[0].Sent())
	assert.ErrorContains(t, receipt.Outcomes[1].Err, "router paused")
	assert.Equal(t, "router paused", receipt.Outcomes[1].Error)
	assert.Equal(t, 0, receipt.TotalFee.Sign())

	// the local registration stands and the failed send was refunded
	assert.Equal(t, alice, f.owner(t, "alice.ccns"))
	assert.Equal(t, big.NewInt(100), f.register.GetBalance(ctx))
	assert.Equal(t, 0, f.ledger.BalanceOf(ctx, bridgeAddr).Sign())
}

func TestRegister_StrictSendFailureRestoresLookup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, 1000)

	// bob owns the name before chains are enabled
	_, err := f.register.Register(ctx, bob, "alice.ccns")
	require.NoError(t, err)

	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, true, 200_000))
	f.bridge.On("GetFee", mock.Anything, toChain(chainA), mock.Anything).Return(big.NewInt(100), nil)
	f.bridge.On("Send", mock.Anything, toChain(chainA), mock.Anything).Return(interfaces.MessageID{}, interfaces.ErrInsufficientFee)

	_, err = f.register.Register(ctx, alice, "alice.ccns")
	assert.ErrorIs(t, err, interfaces.ErrSendFailed)

	assert.Equal(t, bob, f.owner(t, "alice.ccns"))
	assert.Equal(t, big.NewInt(1000), f.register.GetBalance(ctx))
}

func TestRegister_StrictSendFailureDiscardsStagedMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, true, 200_000))
	require.NoError(t, f.register.EnableChain(ctx, owner, chainB, receiverB, true, 200_000))
	f.fund(t, 1000)

	idA := interfaces.MessageID{0xa}
	f.bridge.On("GetFee", mock.Anything, toChain(chainA), mock.Anything).Return(big.NewInt(100), nil)
	f.bridge.On("GetFee", mock.Anything, toChain(chainB), mock.Anything).Return(big.NewInt(100), nil)
	f.bridge.On("Send", mock.Anything, toChain(chainA), mock.Anything).Return(idA, nil).Once()
	f.bridge.On("Send", mock.Anything, toChain(chainB), mock.Anything).Return(interfaces.MessageID{}, errors.New("router paused")).Once()
	f.bridge.On("Discard", mock.Anything, []interfaces.MessageID{idA}).Return(nil).Once()

	_, err := f.register.Register(ctx, alice, "alice.ccns")
	assert.ErrorIs(t, err, interfaces.ErrSendFailed)

	f.bridge.AssertExpectations(t)
	f.bridge.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything)
	assert.Equal(t, common.Address{}, f.owner(t, "alice.ccns"))
	assert.Equal(t, big.NewInt(1000), f.register.GetBalance(ctx))
	assert.Equal(t, 0, f.ledger.BalanceOf(ctx, bridgeAddr).Sign())
}

func TestRegister_CommitFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, false, 200_000))
	f.fund(t, 1000)

	idA := interfaces.MessageID{0xa}
	f.bridge.On("GetFee", mock.Anything, toChain(chainA), mock.Anything).Return(big.NewInt(100), nil)
	f.bridge.On("Send", mock.Anything, toChain(chainA), mock.Anything).Return(idA, nil).Once()
	f.bridge.On("Commit", mock.Anything, []interfaces.MessageID{idA}).Return(bridge.ErrNotStaged).Once()
	f.bridge.On("Discard", mock.Anything, []interfaces.MessageID{idA}).Return(bridge.ErrNotStaged).Once()

	_, err := f.register.Register(ctx, alice, "alice.ccns")
	assert.ErrorIs(t, err, interfaces.ErrSendFailed)

	f.bridge.AssertExpectations(t)
	assert.Equal(t, common.Address{}, f.owner(t, "alice.ccns"))
	assert.Equal(t, big.NewInt(1000), f.register.GetBalance(ctx))
}

func TestRegister_ReRegistrationOverwrites(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.register.Register(ctx, alice, "alice.ccns")
	require.NoError(t, err)
	_, err = f.register.Register(ctx, bob, "alice.ccns")
	require.NoError(t, err)

	assert.Equal(t, bob, f.owner(t, "alice.ccns"))
}

func TestRegister_ChainAdministration(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.register.EnableChain(ctx, alice, chainA, receiverA, true, 1), interfaces.ErrUnauthorized)
	assert.ErrorIs(t, f.register.EnableChain(ctx, owner, chainA, common.Address{}, true, 1), interfaces.ErrInvalidAddress)
	assert.Empty(t, f.register.Chains())

	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverA, true, 200_000))
	require.NoError(t, f.register.EnableChain(ctx, owner, chainB, receiverB, false, 200_000))

	// re-enabling updates in place
	require.NoError(t, f.register.EnableChain(ctx, owner, chainA, receiverB, false, 100_000))
	chains := f.register.Chains()
	require.Len(t, chains, 2)
	assert.Equal(t, interfaces.NewChainConfig(chainA, receiverB, false, 100_000), chains[0])
	assert.Equal(t, chainB, chains[1].ChainSelector)

	cfg, err := f.register.ChainConfig(chainB)
	require.NoError(t, err)
	assert.Equal(t, interfaces.BestEffort, cfg.Policy)

	assert.ErrorIs(t, f.register.DisableChain(ctx, alice, chainA), interfaces.ErrUnauthorized)
	require.NoError(t, f.register.DisableChain(ctx, owner, chainA))
	assert.ErrorIs(t, f.register.DisableChain(ctx, owner, chainA), interfaces.ErrChainNotEnabled)

	_, err = f.register.ChainConfig(chainA)
	assert.ErrorIs(t, err, interfaces.ErrChainNotEnabled)
	assert.Len(t, f.register.Chains(), 1)
}

func TestRegister_Treasury(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.register.Fund(ctx, alice, big.NewInt(0)), interfaces.ErrInvalidAmount)
	assert.ErrorIs(t, f.register.Fund(ctx, alice, big.NewInt(10)), interfaces.ErrInsufficientFunds)

	require.NoError(t, f.ledger.Mint(alice, big.NewInt(500)))
	require.NoError(t, f.register.Fund(ctx, alice, big.NewInt(200)))
	require.NoError(t, f.register.Fund(ctx, alice, big.NewInt(300)))
	assert.Equal(t, big.NewInt(500), f.register.GetBalance(ctx))

	_, err := f.register.Withdraw(ctx, alice, alice)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	nonPayable := common.HexToAddress("0xc0ffee")
	f.ledger.RejectDeposits(nonPayable)
	_, err = f.register.Withdraw(ctx, owner, nonPayable)
	assert.ErrorIs(t, err, interfaces.ErrTransferFailed)
	assert.Equal(t, big.NewInt(500), f.register.GetBalance(ctx))

	amount, err := f.register.Withdraw(ctx, owner, bob)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), amount)
	assert.Equal(t, 0, f.register.GetBalance(ctx).Sign())
	assert.Equal(t, big.NewInt(500), f.ledger.BalanceOf(ctx, bob))
}
