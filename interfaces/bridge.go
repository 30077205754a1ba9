package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Bridge is the cross-chain messaging capability consumed on the source chain.
type Bridge interface {
	// Address returns the router address fees are paid to.
	Address() common.Address

	// GetFee quotes the native fee for delivering msg to dest.
	GetFee(ctx context.Context, dest ChainSelector, msg OutboundMessage) (*big.Int, error)

	// Send stages msg on the bridge. msg.Fee must cover the quote.
	// A staged message is not delivered until it is committed.
	Send(ctx context.Context, dest ChainSelector, msg OutboundMessage) (MessageID, error)

	// Commit releases staged messages for delivery. Either all ids are
	// committed or none is. Delivery is asynchronous and its outcome is
	// owned by the bridge.
	Commit(ctx context.Context, ids []MessageID) error

	// Discard drops staged messages. Fees paid for them are the sender's to reclaim.
	Discard(ctx context.Context, ids []MessageID) error
}

// MessageReceiver is the delivery callback the bridge invokes on the destination chain.
// router is the address of the bridge contract performing the call.
type MessageReceiver interface {
	ReceiveMessage(ctx context.Context, router common.Address, msg InboundMessage) error
}

// NameLookup resolves names on one chain.
type NameLookup interface {
	// Lookup returns the zero address for unmapped names.
	Lookup(ctx context.Context, name string) (common.Address, error)
}

// NameWriter is the authorized-writer side of a Lookup.
type NameWriter interface {
	NameLookup

	// Write upserts name for the authorized caller. The zero owner clears the mapping.
	Write(ctx context.Context, caller common.Address, name string, owner common.Address) error
}

// Ledger holds the native balances of one chain.
type Ledger interface {
	BalanceOf(ctx context.Context, account common.Address) *big.Int
	Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error
}
