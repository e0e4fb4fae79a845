package signer

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteSigner asks an external signing service for signatures. The
// service holds the key material; this is deliberately thin glue.
type RemoteSigner struct {
	url    string
	client *http.Client
}

func NewRemoteSigner(url string) *RemoteSigner {
	return &RemoteSigner{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type signRequest struct {
	Data string `json:"data"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

func (s *RemoteSigner) Sign(data []byte) ([]byte, error) {
	body, err := json.Marshal(signRequest{Data: hex.EncodeToString(data)})
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Post(s.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("signer: remote sign: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signer: remote sign: status %s", resp.Status)
	}
	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("signer: remote sign: decode: %w", err)
	}
	sig, err := hex.DecodeString(out.Signature)
	if err != nil {
		return nil, fmt.Errorf("signer: remote sign: bad signature hex: %w", err)
	}
	return sig, nil
}
