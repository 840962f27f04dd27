package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, f := range fields {
		t.Setenv(f.env, "")
	}
	return filepath.Join(dir, "logistics")
}

func TestLoad_Defaults(t *testing.T) {
	base := withTmpConfig(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, base, cfg.DataDir)
	require.Equal(t, StoreFile, cfg.Store)
	require.Equal(t, 2*time.Second, cfg.Debounce)
	require.Equal(t, "documents", cfg.Collection)
	require.Equal(t, filepath.Join(base, "config.yaml"), DefaultPath())
}

func TestLoad_Layering(t *testing.T) {
	base := withTmpConfig(t)
	require.NoError(t, os.MkdirAll(base, 0o700))
	yml := "collection: gists\ndebounce: 5s\nlog_level: debug\npush_retries: 1\nstore: memory\n"
	require.NoError(t, os.WriteFile(DefaultPath(), []byte(yml), 0o600))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.Equal(t, "gists", cfg.Collection)
	require.Equal(t, 5*time.Second, cfg.Debounce)
	require.Equal(t, uint64(1), cfg.PushRetries)
	lvl, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, zapcore.DebugLevel, lvl)

	t.Setenv("LOGI_DEBOUNCE", "750ms")
	t.Setenv("LOGI_COLLECTION", "docs")
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-collection", "fromflag"}))

	cfg, err = Load("", fs)
	require.NoError(t, err)
	require.Equal(t, 750*time.Millisecond, cfg.Debounce, "env overrides file")
	require.Equal(t, "fromflag", cfg.Collection, "flag overrides env")
	require.Equal(t, StoreMemory, cfg.Store, "unset flags keep lower layers")
}

func TestLoad_Errors(t *testing.T) {
	base := withTmpConfig(t)

	_, err := Load(filepath.Join(base, "missing.yaml"), nil)
	require.Error(t, err, "explicit config file must exist")

	t.Setenv("LOGI_DEBOUNCE", "soon")
	_, err = Load("", nil)
	require.ErrorContains(t, err, "LOGI_DEBOUNCE")
	t.Setenv("LOGI_DEBOUNCE", "")

	t.Setenv("LOGI_STORE", "postgres")
	_, err = Load("", nil)
	require.ErrorContains(t, err, "dsn")

	t.Setenv("LOGI_STORE", "sqlite")
	_, err = Load("", nil)
	require.ErrorContains(t, err, "unknown store")
	t.Setenv("LOGI_STORE", "")

	t.Setenv("LOGI_LOG_LEVEL", "loud")
	_, err = Load("", nil)
	require.Error(t, err)
}

func TestSessionSigningKey(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{DataDir: dir}

	k1, err := cfg.SessionSigningKey()
	require.NoError(t, err)
	require.Len(t, k1, 32)
	k2, err := cfg.SessionSigningKey()
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	info, err := os.Stat(filepath.Join(dir, sessionKeyFile))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	cfg.SessionKey = "explicit"
	k3, err := cfg.SessionSigningKey()
	require.NoError(t, err)
	require.Equal(t, []byte("explicit"), k3)
}
