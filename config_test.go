package mayus

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientConfigDefaults(t *testing.T) {
	cfg := &ClientConfig{Remote: "127.0.0.1:8500"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultClientListen, cfg.Listen)
	assert.Zero(t, cfg.ReplyTimeout)
	assert.Equal(t, DefaultBackoffInitial, cfg.BackoffInitial)
	assert.Equal(t, DefaultBackoffMax, cfg.BackoffMax)
}

func TestClientConfigDurations(t *testing.T) {
	cfg := &ClientConfig{Remote: "x:1", ReplyTimeoutMs: 250, BackoffInitialMs: 900, BackoffMaxMs: 100}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 250*time.Millisecond, cfg.ReplyTimeout)
	assert.Equal(t, 900*time.Millisecond, cfg.BackoffInitial)
	// the ceiling never sits below the first delay
	assert.Equal(t, 900*time.Millisecond, cfg.BackoffMax)
}

func TestClientConfigInvalid(t *testing.T) {
	for name, cfg := range map[string]*ClientConfig{
		"no remote":   {},
		"retries":     {Remote: "x:1", MaxRetries: -1},
		"pace":        {Remote: "x:1", LinesPerSecond: -2},
		"dscp":        {Remote: "x:1", DSCP: 64},
		"neg timeout": {Remote: "x:1", ReplyTimeout: -time.Second},
	} {
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestServerConfigDefaults(t *testing.T) {
	cfg := new(ServerConfig)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultServerListen, cfg.Listen)
	assert.Equal(t, DefaultHistorySize, cfg.HistorySize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Zero(t, cfg.IdleTimeout)

	cfg = &ServerConfig{IdleTimeoutSec: 30, PeerRate: 10}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 1, cfg.PeerBurst)
}

func TestServerConfigInvalid(t *testing.T) {
	for name, cfg := range map[string]*ServerConfig{
		"sessions": {MaxSessions: -1},
		"rate":     {PeerRate: -1},
		"web port": {WebPort: 70000},
		"charset":  {Charset: "nope"},
		"lang":     {Lang: "!!"},
		"dscp":     {DSCP: -1},
	} {
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	spath := filepath.Join(dir, "server.json")
	require.NoError(t, os.WriteFile(spath, []byte(`{
		"listen": "127.0.0.1:9500",
		"lang": "tr",
		"charset": "latin1",
		"idle_timeout_sec": 5,
		"max_sessions": 8,
		"report_path": "/tmp/r.xlsx"
	}`), 0o644))
	scfg, err := LoadServerConfig(spath)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9500", scfg.Listen)
	assert.Equal(t, "tr", scfg.Lang)
	assert.Equal(t, 5*time.Second, scfg.IdleTimeout)
	assert.Equal(t, 8, scfg.MaxSessions)

	cpath := filepath.Join(dir, "client.json")
	require.NoError(t, os.WriteFile(cpath, []byte(`{"remote": "127.0.0.1:9500", "reply_timeout_ms": 300, "max_retries": 4}`), 0o644))
	ccfg, err := LoadClientConfig(cpath)
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, ccfg.ReplyTimeout)
	assert.Equal(t, 4, ccfg.MaxRetries)

	_, err = LoadServerConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadClientConfig(bad)
	assert.Error(t, err)
}
