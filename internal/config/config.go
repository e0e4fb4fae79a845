// Package config loads the vault client configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/dkrall/sevault/internal/apdu"
	"github.com/dkrall/sevault/internal/logging"
	"github.com/dkrall/sevault/internal/record"
	"github.com/dkrall/sevault/internal/seclient"
)

// Default AID of the vault applet.
const DefaultAID = "A000000062030C0101"

type Config struct {
	// Reader is a substring of the card reader name; empty picks the
	// first available reader.
	Reader string `toml:"reader"`
	// AID is the hex-encoded applet identifier to select.
	AID string `toml:"aid"`
	// ChunkSize bounds store-side CONTINUE payloads.
	ChunkSize int `toml:"chunk_size"`
	// ReadHint is the per-exchange byte ceiling requested on read.
	ReadHint int `toml:"read_hint"`
	// LogLevel overrides the SEVAULT_LOG_LEVEL env; empty keeps it.
	LogLevel string `toml:"log_level"`

	Signer SignerConfig `toml:"signer"`
}

type SignerConfig struct {
	// Backend is file, secp256k1, or remote.
	Backend string `toml:"backend"`
	// KeyPath is the PEM key file (file backend) or hex scalar file
	// (secp256k1 backend).
	KeyPath string `toml:"key_path"`
	// URL of the remote signing service (remote backend).
	URL string `toml:"url"`
	// DigestPolicy is raw or sha256; the verifier on the card dictates
	// which form it expects.
	DigestPolicy string `toml:"digest_policy"`
}

// Load reads path, fills defaults, and validates.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.AID == "" {
		cfg.AID = DefaultAID
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = seclient.DefaultChunkSize
	}
	if cfg.ReadHint == 0 {
		cfg.ReadHint = seclient.DefaultReadHint
	}
	if cfg.Signer.Backend == "" {
		cfg.Signer.Backend = "file"
	}
	if cfg.Signer.DigestPolicy == "" {
		cfg.Signer.DigestPolicy = "raw"
	}
}

func Validate(cfg Config) error {
	if _, err := hex.DecodeString(cfg.AID); err != nil {
		return fmt.Errorf("config: aid is not valid hex: %w", err)
	}
	if cfg.ChunkSize < 1 || cfg.ChunkSize > apdu.MaxData {
		return fmt.Errorf("config: chunk_size %d outside 1..%d", cfg.ChunkSize, apdu.MaxData)
	}
	if cfg.ReadHint < 1 || cfg.ReadHint > apdu.MaxData {
		return fmt.Errorf("config: read_hint %d outside 1..%d", cfg.ReadHint, apdu.MaxData)
	}
	switch cfg.Signer.Backend {
	case "file", "secp256k1":
		if strings.TrimSpace(cfg.Signer.KeyPath) == "" {
			return fmt.Errorf("config: signer.key_path required for %s backend", cfg.Signer.Backend)
		}
	case "remote":
		if strings.TrimSpace(cfg.Signer.URL) == "" {
			return fmt.Errorf("config: signer.url required for remote backend")
		}
	default:
		return fmt.Errorf("config: unknown signer backend %q", cfg.Signer.Backend)
	}
	if _, err := ParseDigestPolicy(cfg.Signer.DigestPolicy); err != nil {
		return err
	}
	if cfg.LogLevel != "" {
		if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// AIDBytes decodes the configured applet identifier.
func (c Config) AIDBytes() []byte {
	raw, _ := hex.DecodeString(c.AID)
	return raw
}

// ParseDigestPolicy maps the config string to a record.DigestPolicy.
func ParseDigestPolicy(s string) (record.DigestPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "raw":
		return record.SignRaw, nil
	case "sha256", "digest":
		return record.SignDigest, nil
	default:
		return 0, fmt.Errorf("config: unknown digest_policy %q", s)
	}
}
