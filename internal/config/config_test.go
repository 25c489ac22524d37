package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))

	req.NoError(err)
	req.Equal("release", cfg.Mode)
	req.Equal(8080, cfg.Port)
	req.Equal(54*time.Second, cfg.PingPeriod)
	req.Equal("lobby", cfg.Conversation)
	req.Equal([]string{"everyone"}, cfg.Groups)
	req.Equal(5, cfg.MessageLimit)
	req.Equal(zerolog.InfoLevel, cfg.Level())
}

func TestLoadFile_OverridesAndEnv(t *testing.T) {
	req := require.New(t)
	file := filepath.Join(t.TempDir(), "config.test.yaml")
	req.NoError(os.WriteFile(file, []byte(`
mode: debug
port: 9000
log_level: debug
conversation: standup
moderated: true
groups: [team, ops]
api_keys: [k1]
processor_delay: 150ms
`), 0o600))
	t.Setenv("VOICESTATE_PORT", "9100")

	cfg, err := LoadFile(file)

	req.NoError(err)
	req.Equal("debug", cfg.Mode)
	req.Equal(9100, cfg.Port)
	req.Equal("standup", cfg.Conversation)
	req.True(cfg.Moderated)
	req.Equal([]string{"team", "ops"}, cfg.Groups)
	req.Equal([]string{"k1"}, cfg.APIKeys)
	req.Equal(150*time.Millisecond, cfg.ProcessorDelay)
	req.Equal(zerolog.DebugLevel, cfg.Level())
}

func TestLoadFile_Invalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.bad.yaml")
	require.NoError(t, os.WriteFile(file, []byte("mode: loud\n"), 0o600))

	_, err := LoadFile(file)

	require.ErrorContains(t, err, "invalid config")
}
