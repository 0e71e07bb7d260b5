package push

import (
	"encoding/json"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/garagedesk/internal/logger"
)

// VAPIDKeys is the Web Push key pair.
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

const defaultVAPIDKeysPath = "config/vapid.json"

// EnsureVAPIDKeys loads the key pair from path, generating and saving a
// fresh pair on first run. Path resolution: argument, then VAPID_KEYS_FILE
// env, then config/vapid.json relative to cwd.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	if path == "" {
		path = os.Getenv("VAPID_KEYS_FILE")
	}
	if path == "" {
		path = defaultVAPIDKeysPath
	}
	keys, err := loadVAPIDKeys(path)
	if err == nil && keys.PublicKey != "" && keys.PrivateKey != "" {
		return keys, nil
	}
	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, err
	}
	keys = &VAPIDKeys{PublicKey: pub, PrivateKey: priv}
	if err := saveVAPIDKeys(path, keys); err != nil {
		logger.Errorf("push: could not save VAPID keys to %s: %v (generated pair stays in memory)", path, err)
		return keys, nil
	}
	logger.Infof("push: VAPID keys generated and saved to %s", path)
	return keys, nil
}

func loadVAPIDKeys(path string) (*VAPIDKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys VAPIDKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	return &keys, nil
}

func saveVAPIDKeys(path string, keys *VAPIDKeys) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
