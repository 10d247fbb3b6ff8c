package push

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/chatify/internal/logger"
)

// VAPIDKeys - пара ключей для Web Push (VAPID).
type VAPIDKeys struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"`
}

const defaultVAPIDKeysPath = "config/vapid.json"

var errIncompleteKeys = errors.New("vapid: incomplete key pair")

// EnsureVAPIDKeys загружает ключи из файла; если файла нет или пара неполная - генерирует и сохраняет.
// Путь: аргумент, затем env VAPID_KEYS_FILE, затем config/vapid.json.
func EnsureVAPIDKeys(path string) (*VAPIDKeys, error) {
	if path == "" {
		path = os.Getenv("VAPID_KEYS_FILE")
	}
	if path == "" {
		path = defaultVAPIDKeysPath
	}
	if keys, err := readVAPIDKeys(path); err == nil {
		return keys, nil
	}
	pub, priv, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return nil, err
	}
	keys := &VAPIDKeys{PublicKey: pub, PrivateKey: priv}
	if err := writeVAPIDKeys(path, keys); err != nil {
		// ключи рабочие, просто не переживут перезапуск
		logger.Errorf("push: не удалось сохранить VAPID-ключи в %s: %v", path, err)
		return keys, nil
	}
	logger.Infof("push: VAPID-ключи сгенерированы и сохранены в %s", path)
	return keys, nil
}

func readVAPIDKeys(path string) (*VAPIDKeys, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys VAPIDKeys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, err
	}
	if keys.PublicKey == "" || keys.PrivateKey == "" {
		return nil, errIncompleteKeys
	}
	return &keys, nil
}

func writeVAPIDKeys(path string, keys *VAPIDKeys) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
