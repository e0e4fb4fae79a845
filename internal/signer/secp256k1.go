package signer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// Secp256k1Signer signs with a secp256k1 key, DER output, SHA-256
// hash-and-sign. Used against verifiers keyed to wallet-style identity.
type Secp256k1Signer struct {
	key *btcec.PrivateKey
}

// NewSecp256k1Signer wraps an existing key.
func NewSecp256k1Signer(key *btcec.PrivateKey) *Secp256k1Signer {
	return &Secp256k1Signer{key: key}
}

// Secp256k1FromHex parses a 32-byte hex-encoded private scalar.
func Secp256k1FromHex(hexKey string) (*Secp256k1Signer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("signer: decode secp256k1 key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("signer: secp256k1 key length %d, want 32", len(raw))
	}
	key, _ := btcec.PrivKeyFromBytes(raw)
	return &Secp256k1Signer{key: key}, nil
}

func (s *Secp256k1Signer) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig := btcecdsa.Sign(s.key, digest[:])
	return sig.Serialize(), nil
}

// Public returns the compressed public key bytes.
func (s *Secp256k1Signer) Public() []byte {
	return s.key.PubKey().SerializeCompressed()
}
