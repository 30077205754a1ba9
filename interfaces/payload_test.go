package interfaces

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameRecordPayload(t *testing.T) {
	rec := NameRecord{
		Name:  "alice.ccns",
		Owner: common.HexToAddress("0x00000000000000000000000000000000000000a1"),
	}

	data, err := EncodeNameRecord(rec)
	require.NoError(t, err)
	// head (offset, address) + length word + one padded word of name bytes
	assert.Len(t, data, 4*32)
	assert.Equal(t, common.LeftPadBytes(rec.Owner.Bytes(), 32), data[32:64])

	decoded, err := DecodeNameRecord(data)
	require.NoError(t, err)
	assert.Equal(t, rec, decoded)
}

func TestDecodeNameRecord_Malformed(t *testing.T) {
	valid, err := EncodeNameRecord(NameRecord{Name: "bob.ccns", Owner: common.HexToAddress("0xb0")})
	require.NoError(t, err)

	emptyName, err := EncodeNameRecord(NameRecord{Name: "", Owner: common.HexToAddress("0xb0")})
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "garbage", data: []byte("not an abi payload")},
		{name: "truncated", data: valid[:40]},
		{name: "empty name", data: emptyName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNameRecord(tt.data)
			assert.ErrorIs(t, err, ErrMalformedPayload)
		})
	}
}
