package record

import (
	"crypto/sha256"
	"fmt"
)

// Signer produces a signature over the bytes it is handed. The concrete
// backend (file key, secp256k1, remote service) lives outside this
// package; all the protocol needs is that repeated signing of the same
// bytes verifies against a stable public key.
type Signer interface {
	Sign(data []byte) ([]byte, error)
}

// DigestPolicy selects what is handed to the signer: the canonical
// concatenation itself, or its SHA-256 digest. The receiving verifier
// dictates which form it expects, so this is configuration, not a
// constant.
type DigestPolicy int

const (
	SignRaw DigestPolicy = iota
	SignDigest
)

// Envelope is the per-read authorization: the key fields plus an
// optional signature proving the caller's right to the record. A nil or
// empty signature means implicit authorization.
type Envelope struct {
	Key       Key
	Signature []byte
}

// Unsigned builds an envelope with a zero-length signature field for
// backends that authorize by possession rather than proof.
func Unsigned(key Key) Envelope {
	return Envelope{Key: key}
}

// Authorize signs the key's canonical bytes under the given policy and
// wraps the result in an envelope.
func Authorize(key Key, s Signer, policy DigestPolicy) (Envelope, error) {
	if err := key.Validate(); err != nil {
		return Envelope{}, err
	}
	data := key.AuthBytes()
	if policy == SignDigest {
		digest := sha256.Sum256(data)
		data = digest[:]
	}
	sig, err := s.Sign(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("record: authorize: %w", err)
	}
	return Envelope{Key: key, Signature: sig}, nil
}

// InitPayload encodes the envelope for a read INIT exchange:
// prefixed key fields followed by the length-prefixed signature. The
// signature prefix is present even when zero-length.
func (e Envelope) InitPayload() ([]byte, error) {
	if err := e.Key.Validate(); err != nil {
		return nil, err
	}
	if len(e.Signature) > 255 {
		return nil, ErrSignatureTooLong
	}
	out := e.Key.WireFields()
	out = appendPrefixed(out, e.Signature)
	return out, nil
}
