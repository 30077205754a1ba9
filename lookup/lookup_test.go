package lookup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
	"github.com/ruteri/ccns/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lookupAddr = common.HexToAddress("0x1000000000000000000000000000000000000001")
	deployer   = common.HexToAddress("0xd000000000000000000000000000000000000000")
	register   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	alice      = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob        = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

func newTestLookup(t *testing.T) *Lookup {
	t.Helper()
	return NewLookup(lookupAddr, deployer, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLookup_SetAuthority(t *testing.T) {
	ctx := context.Background()
	l := newTestLookup(t)

	assert.ErrorIs(t, l.SetAuthority(ctx, alice, register), interfaces.ErrUnauthorized)
	assert.ErrorIs(t, l.SetAuthority(ctx, deployer, common.Address{}), interfaces.ErrInvalidAddress)
	assert.Equal(t, common.Address{}, l.Authority())

	require.NoError(t, l.SetAuthority(ctx, deployer, register))
	assert.Equal(t, register, l.Authority())

	assert.ErrorIs(t, l.SetAuthority(ctx, deployer, alice), interfaces.ErrAlreadySet)
	assert.Equal(t, register, l.Authority())
}

func TestLookup_WriteRequiresAuthority(t *testing.T) {
	ctx := context.Background()
	l := newTestLookup(t)

	// Nothing can write before the authority is bound, not even the deployer.
	assert.ErrorIs(t, l.Write(ctx, deployer, "alice.ccns", alice), interfaces.ErrUnauthorized)
	assert.ErrorIs(t, l.Write(ctx, common.Address{}, "alice.ccns", alice), interfaces.ErrUnauthorized)

	require.NoError(t, l.SetAuthority(ctx, deployer, register))
	assert.ErrorIs(t, l.Write(ctx, alice, "alice.ccns", alice), interfaces.ErrUnauthorized)

	owner, err := l.Lookup(ctx, "alice.ccns")
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, owner)
}

func TestLookup_WriteAndLookup(t *testing.T) {
	ctx := context.Background()
	l := newTestLookup(t)
	require.NoError(t, l.SetAuthority(ctx, deployer, register))

	owner, err := l.Lookup(ctx, "alice.ccns")
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, owner)

	require.NoError(t, l.Write(ctx, register, "alice.ccns", alice))
	require.NoError(t, l.Write(ctx, register, "alice.ccns", alice))
	owner, err = l.Lookup(ctx, "alice.ccns")
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	// last writer wins
	require.NoError(t, l.Write(ctx, register, "alice.ccns", bob))
	owner, err = l.Lookup(ctx, "alice.ccns")
	require.NoError(t, err)
	assert.Equal(t, bob, owner)

	require.NoError(t, l.Write(ctx, register, "alice.ccns", common.Address{}))
	owner, err = l.Lookup(ctx, "alice.ccns")
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, owner)
}

type failingStore struct {
	*storage.MemoryBackend
}

func (failingStore) Fetch(context.Context, string) (interfaces.NameRecord, error) {
	return interfaces.NameRecord{}, interfaces.ErrBackendUnavailable
}

func (failingStore) Store(context.Context, interfaces.NameRecord) error {
	return errors.New("disk full")
}

func TestLookup_StoreFailures(t *testing.T) {
	ctx := context.Background()
	l := NewLookup(lookupAddr, deployer, failingStore{storage.NewMemoryBackend("x")}, nil)
	require.NoError(t, l.SetAuthority(ctx, deployer, register))

	assert.ErrorContains(t, l.Write(ctx, register, "alice.ccns", alice), "disk full")

	_, err := l.Lookup(ctx, "alice.ccns")
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestLookup_FileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewFileBackend(dir, log)
	require.NoError(t, err)
	l := NewLookup(lookupAddr, deployer, store, log)
	require.NoError(t, l.SetAuthority(ctx, deployer, register))
	require.NoError(t, l.Write(ctx, register, "alice.ccns", alice))

	// a fresh Lookup over the same directory sees the record
	reopened, err := storage.NewFileBackend(dir, log)
	require.NoError(t, err)
	owner, err := NewLookup(lookupAddr, deployer, reopened, log).Lookup(ctx, "alice.ccns")
	require.NoError(t, err)
	assert.Equal(t, alice, owner)
}
