package chain

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/mr-tron/base58"
)

// Keypair is an ed25519 signing identity. The public key doubles as the
// on-chain address in its base58 form.
type Keypair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

func NewKeypair() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{Public: pub, Private: priv}, nil
}

// Pubkey returns the base58 address of the public key.
func (k *Keypair) Pubkey() string {
	return base58.Encode(k.Public)
}
