package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactU16RoundTrip(t *testing.T) {
	for _, v := range []int{0, 1, 127, 128, 255, 300, 16383, 16384, 65535} {
		enc := encodeCompactU16(v)
		got, n, err := decodeCompactU16(enc)
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, v, got, "value %d", v)
		assert.Equal(t, len(enc), n, "value %d consumed length", v)
	}
}

func TestCompactU16Truncated(t *testing.T) {
	_, _, err := decodeCompactU16(nil)
	assert.ErrorIs(t, err, errTruncated)

	_, _, err = decodeCompactU16([]byte{0x80})
	assert.ErrorIs(t, err, errTruncated)
}

func TestCompactU16OutOfRange(t *testing.T) {
	// 0x7f | 0x7f<<7 | 0x7f<<14 = 2097151, beyond the u16 range.
	_, _, err := decodeCompactU16([]byte{0xff, 0xff, 0x7f})
	assert.Error(t, err)
}

func TestCompactU16TooLong(t *testing.T) {
	_, _, err := decodeCompactU16([]byte{0x80, 0x80, 0x80})
	assert.Error(t, err)
}

func unsignedTx(t *testing.T, slots int, message []byte) []byte {
	t.Helper()
	tx := encodeCompactU16(slots)
	tx = append(tx, make([]byte, slots*signatureLen)...)
	return append(tx, message...)
}

func TestSplitTransaction(t *testing.T) {
	message := []byte("compiled message bytes")
	tx := unsignedTx(t, 1, message)

	sigs, msg, err := SplitTransaction(tx)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, make([]byte, signatureLen), sigs[0])
	assert.Equal(t, message, msg)
}

func TestSplitTransactionTruncated(t *testing.T) {
	tx := unsignedTx(t, 1, []byte("msg"))
	_, _, err := SplitTransaction(tx[:40])
	assert.Error(t, err)
}

func TestSplitTransactionEmptyMessage(t *testing.T) {
	_, _, err := SplitTransaction(unsignedTx(t, 1, nil))
	assert.Error(t, err)
}

func TestSignTransaction(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	message := []byte("message to be signed by the fee payer")
	tx := unsignedTx(t, 1, message)

	signed, err := SignTransaction(tx, priv)
	require.NoError(t, err)
	require.Len(t, signed, len(tx))

	sigs, msg, err := SplitTransaction(signed)
	require.NoError(t, err)
	assert.Equal(t, message, msg)
	assert.True(t, ed25519.Verify(pub, msg, sigs[0]), "fee payer signature must verify against the message bytes")

	// Input untouched.
	assert.Equal(t, unsignedTx(t, 1, message), tx)
}

func TestSignTransactionLeavesOtherSlots(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tx := unsignedTx(t, 2, []byte("two signer message"))
	signed, err := SignTransaction(tx, priv)
	require.NoError(t, err)

	sigs, _, err := SplitTransaction(signed)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	assert.NotEqual(t, make([]byte, signatureLen), sigs[0], "slot 0 must carry the signature")
	assert.Equal(t, make([]byte, signatureLen), sigs[1], "slot 1 must stay zero-filled")
}

func TestSignTransactionNoSlots(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = SignTransaction(unsignedTx(t, 0, []byte("msg")), priv)
	assert.Error(t, err)
}

func TestSignTransactionRejectsGarbage(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = SignTransaction([]byte{0x80}, priv)
	assert.Error(t, err)
}
