package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
)

// Router is the on-chain entry point of the network for one chain.
type Router struct {
	network  *Network
	selector interfaces.ChainSelector
	address  common.Address
}

var _ interfaces.Bridge = (*Router)(nil)

// Address returns the router contract address. Fees are paid to it.
func (r *Router) Address() common.Address {
	return r.address
}

// ChainSelector returns the chain this router serves.
func (r *Router) ChainSelector() interfaces.ChainSelector {
	return r.selector
}

// GetFee quotes the native fee for sending msg to dest.
func (r *Router) GetFee(ctx context.Context, dest interfaces.ChainSelector, msg interfaces.OutboundMessage) (*big.Int, error) {
	return r.network.quote(r.selector, dest, msg)
}

// Send stages msg for delivery to dest. msg.Fee must cover the quote.
func (r *Router) Send(ctx context.Context, dest interfaces.ChainSelector, msg interfaces.OutboundMessage) (interfaces.MessageID, error) {
	return r.network.send(ctx, r.selector, dest, msg)
}

// Commit releases messages staged through this router.
func (r *Router) Commit(ctx context.Context, ids []interfaces.MessageID) error {
	return r.network.commit(r.selector, ids)
}

// Discard drops messages staged through this router.
func (r *Router) Discard(ctx context.Context, ids []interfaces.MessageID) error {
	return r.network.discard(r.selector, ids)
}
