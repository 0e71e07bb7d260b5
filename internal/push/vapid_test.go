package push

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureVAPIDKeysGeneratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vapid.json")

	keys, err := EnsureVAPIDKeys(path)
	if err != nil {
		t.Fatalf("EnsureVAPIDKeys: %v", err)
	}
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		t.Fatalf("generated pair incomplete: %+v", keys)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("key file not written: %v", err)
	}

	// Second call must load the same pair, not regenerate.
	again, err := EnsureVAPIDKeys(path)
	if err != nil {
		t.Fatalf("EnsureVAPIDKeys reload: %v", err)
	}
	if again.PublicKey != keys.PublicKey || again.PrivateKey != keys.PrivateKey {
		t.Fatalf("key pair changed between runs")
	}
}

func TestEnsureVAPIDKeysRegeneratesCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vapid.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	keys, err := EnsureVAPIDKeys(path)
	if err != nil {
		t.Fatalf("EnsureVAPIDKeys: %v", err)
	}
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		t.Fatalf("corrupt file must trigger regeneration")
	}
}
