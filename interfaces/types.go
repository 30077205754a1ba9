// Package interfaces defines the core interfaces and types for the cross-chain name service.
// It provides the contract between different components without implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ChainSelector is an opaque identifier distinguishing one blockchain from another.
type ChainSelector uint64

// ParseChainSelector parses a decimal chain selector.
func ParseChainSelector(s string) (ChainSelector, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chain selector %q: %w", s, err)
	}
	return ChainSelector(v), nil
}

// String returns the decimal representation of the selector.
func (s ChainSelector) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// MessageID uniquely identifies a cross-chain message. Assigned by the bridge.
type MessageID [32]byte

// NewMessageIDFromHex parses a 32-byte hex identifier, with or without 0x prefix.
func NewMessageIDFromHex(source string) (MessageID, error) {
	clean := strings.TrimPrefix(source, "0x")
	if len(clean) != 64 {
		return MessageID{}, errors.New("invalid message ID length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var id MessageID
	copy(id[:], raw)
	return id, nil
}

// String returns the 0x-prefixed hex representation.
func (id MessageID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler.
func (id MessageID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *MessageID) UnmarshalText(text []byte) error {
	parsed, err := NewMessageIDFromHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NameRecord is a single name to address mapping.
type NameRecord struct {
	Name  string         `json:"name"`
	Owner common.Address `json:"owner"`
}

// DeliveryPolicy is the per-chain reliability policy attached to a ChainConfig.
type DeliveryPolicy int

const (
	// BestEffort chains swallow their own delivery failures.
	BestEffort DeliveryPolicy = iota
	// Strict chains abort the whole registration on a delivery failure.
	Strict
)

// PolicyFromStrict maps the strict flag used by enableChain to a policy.
func PolicyFromStrict(strict bool) DeliveryPolicy {
	if strict {
		return Strict
	}
	return BestEffort
}

// IsStrict reports whether the policy is Strict.
func (p DeliveryPolicy) IsStrict() bool {
	return p == Strict
}

// String returns policy name.
func (p DeliveryPolicy) String() string {
	switch p {
	case Strict:
		return "strict"
	case BestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p DeliveryPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *DeliveryPolicy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "strict":
		*p = Strict
	case "best-effort":
		*p = BestEffort
	default:
		return fmt.Errorf("unknown delivery policy %q", text)
	}
	return nil
}

// ChainConfig is the delivery configuration of one enabled destination chain.
type ChainConfig struct {
	ChainSelector ChainSelector  `json:"chainSelector"`
	Receiver      common.Address `json:"receiver"`
	Policy        DeliveryPolicy `json:"policy"`
	GasLimit      uint64         `json:"gasLimit"`
}

// NewChainConfig builds a ChainConfig from the enableChain arguments.
func NewChainConfig(selector ChainSelector, receiver common.Address, strict bool, gasLimit uint64) ChainConfig {
	return ChainConfig{
		ChainSelector: selector,
		Receiver:      receiver,
		Policy:        PolicyFromStrict(strict),
		GasLimit:      gasLimit,
	}
}

// OutboundMessage is what a sender hands to the bridge for one destination chain.
// A zero FeeToken means the fee is paid in the native currency.
type OutboundMessage struct {
	Sender   common.Address
	Receiver common.Address
	Data     []byte
	GasLimit uint64
	FeeToken common.Address
	Fee      *big.Int
}

// InboundMessage is what the bridge delivers to a receiver on the destination chain.
// SourceChainSelector and Sender are authenticated by the bridge.
type InboundMessage struct {
	MessageID           MessageID      `json:"messageId"`
	SourceChainSelector ChainSelector  `json:"sourceChainSelector"`
	Sender              common.Address `json:"sender"`
	Data                []byte         `json:"data"`
}

// DeploymentRecord lists the addresses deployed on one network.
// Exactly one of CCNSRegister (source) and CCNSReceiver (destination) is set.
type DeploymentRecord struct {
	Network      string          `json:"network"`
	CCNSRegister *common.Address `json:"ccnsRegister,omitempty"`
	CCNSReceiver *common.Address `json:"ccnsReceiver,omitempty"`
	CCNSLookup   common.Address  `json:"ccnsLookup"`
}

// ParseAddress parses a hex account address, with or without 0x prefix.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a positive decimal amount in the smallest native unit.
func ParseAmount(s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return amount, nil
}
