package signer

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var ErrNotECKey = errors.New("signer: PEM block does not hold an EC private key")

// FileSigner signs with an ECDSA private key loaded from a PEM file.
// Output is DER (ASN.1), SHA-256 hash-and-sign, which is what the
// record applet's ALG_ECDSA_SHA_256 verifier expects.
type FileSigner struct {
	key *ecdsa.PrivateKey
}

// LoadFileSigner reads a PKCS8 or SEC1 EC private key from path.
func LoadFileSigner(path string) (*FileSigner, error) {
	pemData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signer: read key file: %w", err)
	}
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("signer: no PEM block in %s", path)
	}
	key, err := parseECKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	return &FileSigner{key: key}, nil
}

// NewFileSigner wraps an already-loaded key, mainly for tests.
func NewFileSigner(key *ecdsa.PrivateKey) *FileSigner {
	return &FileSigner{key: key}
}

func parseECKey(der []byte) (*ecdsa.PrivateKey, error) {
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("signer: parse key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, ErrNotECKey
	}
	return key, nil
}

func (s *FileSigner) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, s.key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("signer: sign: %w", err)
	}
	return sig, nil
}

// Public returns the verifying key.
func (s *FileSigner) Public() *ecdsa.PublicKey {
	return &s.key.PublicKey
}
