package ethereum

import (
	"encoding/json"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/kurisync/internal/model"
)

func TestDecodeInt(t *testing.T) {
	huge, _ := new(big.Int).SetString("100000000000000000000000", 10)

	tests := []struct {
		name    string
		in      any
		want    int64
		wantErr error
	}{
		{name: "big int", in: big.NewInt(12), want: 12},
		{name: "big int value", in: *big.NewInt(13), want: 13},
		{name: "uint8", in: uint8(7), want: 7},
		{name: "int64", in: int64(-3), want: -3},
		{name: "uint64", in: uint64(99), want: 99},
		{name: "decimal string", in: " 42 ", want: 42},
		{name: "hex string", in: "0x1f", want: 31},
		{name: "json number", in: json.Number("8"), want: 8},
		{name: "integral float", in: float64(5), want: 5},
		{name: "nil big int", in: (*big.Int)(nil), wantErr: model.ErrUnexpectedResultType},
		{name: "bool", in: true, wantErr: model.ErrUnexpectedResultType},
		{name: "overflowing big int", in: huge, wantErr: model.ErrMalformedResult},
		{name: "overflowing uint64", in: uint64(math.MaxUint64), wantErr: model.ErrMalformedResult},
		{name: "fractional float", in: 1.5, wantErr: model.ErrMalformedResult},
		{name: "word", in: "seven", wantErr: model.ErrMalformedResult},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeInt("participantWonRound", tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeBool(t *testing.T) {
	got, err := decodeBool("hasPaidRound", true)
	require.NoError(t, err)
	assert.True(t, got)

	_, err = decodeBool("hasPaidRound", big.NewInt(1))
	assert.ErrorIs(t, err, model.ErrInvalidResultType)
	assert.Contains(t, err.Error(), "hasPaidRound")
}

func TestDecodeAddresses(t *testing.T) {
	got, err := decodeAddresses("getParticipants", []common.Address{common.HexToAddress(userAddr)})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x8617e340b3d01fa5f11f306f4090fd50e238070d"}, got)

	got, err = decodeAddresses("getParticipants", []string{userAddr})
	require.NoError(t, err)
	assert.Equal(t, []string{"0x8617e340b3d01fa5f11f306f4090fd50e238070d"}, got)

	_, err = decodeAddresses("getParticipants", []string{"bogus"})
	assert.ErrorIs(t, err, model.ErrMalformedResult)

	_, err = decodeAddresses("getParticipants", 5)
	assert.ErrorIs(t, err, model.ErrUnexpectedResultType)
}

func TestSingle(t *testing.T) {
	v, err := single("slots", []any{big.NewInt(1)})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), v)

	_, err = single("slots", nil)
	assert.ErrorIs(t, err, model.ErrMalformedResult)
}
