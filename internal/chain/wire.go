package chain

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

const signatureLen = 64

var errTruncated = errors.New("transaction truncated")

// SplitTransaction separates a serialized transaction into its signature
// slots and the message bytes that follow them. The signature section is a
// compact-u16 count followed by count 64-byte slots; unsigned slots are
// zero-filled by the serializer.
func SplitTransaction(tx []byte) ([][]byte, []byte, error) {
	count, n, err := decodeCompactU16(tx)
	if err != nil {
		return nil, nil, fmt.Errorf("signature count: %w", err)
	}
	msgStart := n + count*signatureLen
	if len(tx) < msgStart {
		return nil, nil, errTruncated
	}
	sigs := make([][]byte, count)
	for i := 0; i < count; i++ {
		start := n + i*signatureLen
		sigs[i] = tx[start : start+signatureLen]
	}
	message := tx[msgStart:]
	if len(message) == 0 {
		return nil, nil, errors.New("transaction has no message")
	}
	return sigs, message, nil
}

// SignTransaction signs the message bytes of a serialized unsigned
// transaction and places the signature in the fee payer slot (slot 0),
// leaving any other signature slots untouched. Returns a fresh slice;
// the input is not modified.
func SignTransaction(tx []byte, priv ed25519.PrivateKey) ([]byte, error) {
	sigs, message, err := SplitTransaction(tx)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, errors.New("transaction allocates no signature slots")
	}
	sig := ed25519.Sign(priv, message)
	out := make([]byte, len(tx))
	copy(out, tx)
	sigStart := len(tx) - len(message) - len(sigs)*signatureLen
	copy(out[sigStart:sigStart+signatureLen], sig)
	return out, nil
}

// decodeCompactU16 reads the shortvec-encoded length prefix used by the
// transaction wire format: 7 value bits per byte, high bit marks
// continuation, at most 3 bytes.
func decodeCompactU16(b []byte) (int, int, error) {
	value := 0
	for i := 0; i < 3; i++ {
		if i >= len(b) {
			return 0, 0, errTruncated
		}
		elem := int(b[i])
		value |= (elem & 0x7f) << (7 * i)
		if elem&0x80 == 0 {
			if value > 0xffff {
				return 0, 0, errors.New("compact-u16 out of range")
			}
			return value, i + 1, nil
		}
	}
	return 0, 0, errors.New("compact-u16 too long")
}

// encodeCompactU16 is the inverse of decodeCompactU16.
func encodeCompactU16(value int) []byte {
	out := make([]byte, 0, 3)
	for {
		elem := byte(value & 0x7f)
		value >>= 7
		if value == 0 {
			return append(out, elem)
		}
		out = append(out, elem|0x80)
	}
}
