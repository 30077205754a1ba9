package bridge

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/ccns/interfaces"
)

// MessageState is the execution state of a message on its destination chain.
type MessageState int

const (
	Untouched MessageState = iota
	InProgress
	Success
	Failure
)

func (s MessageState) String() string {
	switch s {
	case Untouched:
		return "untouched"
	case InProgress:
		return "in-progress"
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s MessageState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *MessageState) UnmarshalText(text []byte) error {
	for _, state := range []MessageState{Untouched, InProgress, Success, Failure} {
		if state.String() == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown message state %q", text)
}

// Message is a snapshot of one message accepted by a router.
type Message struct {
	ID                  interfaces.MessageID     `json:"id"`
	SourceChainSelector interfaces.ChainSelector `json:"sourceChainSelector"`
	DestChainSelector   interfaces.ChainSelector `json:"destChainSelector"`
	SequenceNumber      uint64                   `json:"sequenceNumber"`
	Sender              common.Address           `json:"sender"`
	Receiver            common.Address           `json:"receiver"`
	Data                []byte                   `json:"data"`
	GasLimit            uint64                   `json:"gasLimit"`
	Fee                 *big.Int                 `json:"fee"`
	State               MessageState             `json:"state"`
	Attempts            int                      `json:"attempts"`
	LastError           string                   `json:"lastError,omitempty"`
	SentAt              time.Time                `json:"sentAt"`
}

func (m *Message) clone() Message {
	c := *m
	c.Data = append([]byte(nil), m.Data...)
	if m.Fee != nil {
		c.Fee = new(big.Int).Set(m.Fee)
	}
	return c
}

func (m *Message) inbound() interfaces.InboundMessage {
	return interfaces.InboundMessage{
		MessageID:           m.ID,
		SourceChainSelector: m.SourceChainSelector,
		Sender:              m.Sender,
		Data:                append([]byte(nil), m.Data...),
	}
}

// messageID hashes the lane, sequence number and content of a message.
func messageID(source, dest interfaces.ChainSelector, seq uint64, sender, receiver common.Address, data []byte) interfaces.MessageID {
	var header [24]byte
	binary.BigEndian.PutUint64(header[0:8], uint64(source))
	binary.BigEndian.PutUint64(header[8:16], uint64(dest))
	binary.BigEndian.PutUint64(header[16:24], seq)
	return interfaces.MessageID(crypto.Keccak256Hash(header[:], sender.Bytes(), receiver.Bytes(), data))
}
