// Package lookup implements the per-chain name table written by exactly one
// authorized cross-chain name service contract and readable by anyone.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
	"github.com/ruteri/ccns/storage"
)

// Lookup is the name table of one chain.
// Before SetAuthority is called nothing can write to it.
type Lookup struct {
	mu        sync.Mutex
	address   common.Address
	deployer  common.Address
	authority common.Address
	store     interfaces.RecordStore
	log       *slog.Logger
}

// NewLookup deploys a Lookup at address. A nil store selects an in-memory one.
func NewLookup(address, deployer common.Address, store interfaces.RecordStore, log *slog.Logger) *Lookup {
	if store == nil {
		store = storage.NewMemoryBackend(address.Hex())
	}
	if log == nil {
		log = slog.Default()
	}
	return &Lookup{
		address:  address,
		deployer: deployer,
		store:    store,
		log:      log.With(slog.String("lookup", address.Hex())),
	}
}

// Address returns the contract address.
func (l *Lookup) Address() common.Address {
	return l.address
}

// Authority returns the only address allowed to write, or the zero address while unset.
func (l *Lookup) Authority() common.Address {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.authority
}

// SetAuthority binds the writer of this table. Only the deployer may call it, once.
func (l *Lookup) SetAuthority(ctx context.Context, caller, authority common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.deployer {
		return fmt.Errorf("%w: %s is not the deployer", interfaces.ErrUnauthorized, caller.Hex())
	}
	if l.authority != (common.Address{}) {
		return fmt.Errorf("%w: authority is %s", interfaces.ErrAlreadySet, l.authority.Hex())
	}
	if authority == (common.Address{}) {
		return fmt.Errorf("%w: zero authority", interfaces.ErrInvalidAddress)
	}

	l.authority = authority
	l.log.Info("Lookup authority set", slog.String("authority", authority.Hex()))
	return nil
}

// Write maps name to owner. Writing the zero address clears the mapping.
func (l *Lookup) Write(ctx context.Context, caller common.Address, name string, owner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.authority == (common.Address{}) || caller != l.authority {
		return fmt.Errorf("%w: %s may not write", interfaces.ErrUnauthorized, caller.Hex())
	}

	var err error
	if owner == (common.Address{}) {
		err = l.store.Delete(ctx, name)
	} else {
		err = l.store.Store(ctx, interfaces.NameRecord{Name: name, Owner: owner})
	}
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", name, err)
	}

	l.log.Debug("Name written",
		slog.String("name", name),
		slog.String("owner", owner.Hex()))
	return nil
}

// Lookup returns the owner of name, or the zero address when name is unmapped.
func (l *Lookup) Lookup(ctx context.Context, name string) (common.Address, error) {
	rec, err := l.store.Fetch(ctx, name)
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		return common.Address{}, nil
	}
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to look up %q: %w", name, err)
	}
	return rec.Owner, nil
}

// Store returns the backing record store.
func (l *Lookup) Store() interfaces.RecordStore {
	return l.store
}
