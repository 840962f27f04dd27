package config

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/and161185/logistics-keeper/internal/crypto"
)

const sessionKeyFile = "session.key"

// SessionSigningKey returns the configured key or a random key persisted in dataDir,
// created on first use. Sessions stay valid across invocations either way.
func (c Config) SessionSigningKey() ([]byte, error) {
	if c.SessionKey != "" {
		return []byte(c.SessionKey), nil
	}
	path := filepath.Join(c.DataDir, sessionKeyFile)
	if b, err := os.ReadFile(path); err == nil {
		if key, err := hex.DecodeString(string(b)); err == nil && len(key) == 32 {
			return key, nil
		}
	}
	key, err := crypto.RandBytes(32)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}
