package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sevault.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
reader = "ACS"

[signer]
key_path = "/keys/ec_private_key.pem"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChunkSize != 200 {
		t.Fatalf("chunk_size default %d", cfg.ChunkSize)
	}
	if cfg.ReadHint != 240 {
		t.Fatalf("read_hint default %d", cfg.ReadHint)
	}
	if cfg.AID != DefaultAID {
		t.Fatalf("aid default %q", cfg.AID)
	}
	if cfg.Signer.Backend != "file" {
		t.Fatalf("backend default %q", cfg.Signer.Backend)
	}
	if len(cfg.AIDBytes()) == 0 {
		t.Fatalf("aid bytes empty")
	}
}

func TestLoadRejectsBadChunkSize(t *testing.T) {
	path := writeConfig(t, `
chunk_size = 300

[signer]
key_path = "/keys/k.pem"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for chunk_size over one byte")
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
[signer]
backend = "hsm"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestRemoteBackendNeedsURL(t *testing.T) {
	path := writeConfig(t, `
[signer]
backend = "remote"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for remote backend without url")
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	path := writeConfig(t, `
log_level = "verbose"

[signer]
key_path = "/keys/k.pem"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}

func TestParseDigestPolicy(t *testing.T) {
	if _, err := ParseDigestPolicy("raw"); err != nil {
		t.Fatalf("raw: %v", err)
	}
	if _, err := ParseDigestPolicy("sha256"); err != nil {
		t.Fatalf("sha256: %v", err)
	}
	if _, err := ParseDigestPolicy("md5"); err == nil {
		t.Fatalf("expected error for md5")
	}
}
