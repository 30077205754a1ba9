package interfaces

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// nameRecordArgs is the ABI layout of a propagated record: abi.encode(string name, address owner).
var nameRecordArgs abi.Arguments

func init() {
	stringTy, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	addressTy, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	nameRecordArgs = abi.Arguments{
		{Name: "name", Type: stringTy},
		{Name: "owner", Type: addressTy},
	}
}

// EncodeNameRecord returns the cross-chain payload for rec.
func EncodeNameRecord(rec NameRecord) ([]byte, error) {
	return nameRecordArgs.Pack(rec.Name, rec.Owner)
}

// DecodeNameRecord parses a payload produced by EncodeNameRecord.
// Every failure wraps ErrMalformedPayload.
func DecodeNameRecord(data []byte) (NameRecord, error) {
	values, err := nameRecordArgs.Unpack(data)
	if err != nil {
		return NameRecord{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(values) != 2 {
		return NameRecord{}, fmt.Errorf("%w: expected 2 values, got %d", ErrMalformedPayload, len(values))
	}

	name, ok := values[0].(string)
	if !ok {
		return NameRecord{}, fmt.Errorf("%w: name is %T", ErrMalformedPayload, values[0])
	}
	owner, ok := values[1].(common.Address)
	if !ok {
		return NameRecord{}, fmt.Errorf("%w: owner is %T", ErrMalformedPayload, values[1])
	}
	if name == "" {
		return NameRecord{}, fmt.Errorf("%w: empty name", ErrMalformedPayload)
	}

	return NameRecord{Name: name, Owner: owner}, nil
}
