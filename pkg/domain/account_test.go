package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "receiptledger/pkg/domain-errors"
)

const sampleAddr = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestParseAccount(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseAccount("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects malformed address", func(t *testing.T) {
		_, err := ParseAccount("0x1234")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects zero address", func(t *testing.T) {
		_, err := ParseAccount("0x0000000000000000000000000000000000000000")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts mixed case and normalizes to checksum", func(t *testing.T) {
		a, err := ParseAccount("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
		require.NoError(t, err)
		assert.Equal(t, sampleAddr, a.Hex())
		assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", a.Key())
	})
}

func TestAccountJSON(t *testing.T) {
	type payload struct {
		Actor Account `json:"actor"`
		Other Account `json:"other"`
	}

	in := payload{Actor: MustAccount(sampleAddr)}
	raw, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"actor":"`+sampleAddr+`","other":""}`, string(raw))

	var out payload
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in, out)
	assert.True(t, out.Other.IsZero())
}

func TestParseReceiptID(t *testing.T) {
	for _, input := range []string{"", "0", "-1", "abc", "1.5"} {
		_, err := ParseReceiptID(input)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "input %q", input)
	}

	id, err := ParseReceiptID("42")
	require.NoError(t, err)
	assert.Equal(t, ReceiptID(42), id)
	assert.Equal(t, "42", id.String())
}
