package bridge

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/ccns/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockBridge mocks the interfaces.Bridge interface
type MockBridge struct {
	mock.Mock
}

var _ interfaces.Bridge = (*MockBridge)(nil)

// Address mocks the Address method
func (m *MockBridge) Address() common.Address {
	args := m.Called()
	return args.Get(0).(common.Address)
}

// GetFee mocks the GetFee method
func (m *MockBridge) GetFee(ctx context.Context, dest interfaces.ChainSelector, msg interfaces.OutboundMessage) (*big.Int, error) {
	args := m.Called(ctx, dest, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*big.Int), args.Error(1)
}

// Send mocks the Send method
func (m *MockBridge) Send(ctx context.Context, dest interfaces.ChainSelector, msg interfaces.OutboundMessage) (interfaces.MessageID, error) {
	args := m.Called(ctx, dest, msg)
	return args.Get(0).(interfaces.MessageID), args.Error(1)
}

// Commit mocks the Commit method
func (m *MockBridge) Commit(ctx context.Context, ids []interfaces.MessageID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}

// Discard mocks the Discard method
func (m *MockBridge) Discard(ctx context.Context, ids []interfaces.MessageID) error {
	args := m.Called(ctx, ids)
	return args.Error(0)
}
