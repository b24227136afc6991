package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"port too low", func(c *Config) { c.Port = 1023 }, true},
		{"port floor accepted", func(c *Config) { c.Port = 1024 }, false},
		{"port too high", func(c *Config) { c.Port = 65536 }, true},
		{"maxusers zero", func(c *Config) { c.MaxUsers = 0 }, true},
		{"maxusers over cap", func(c *Config) { c.MaxUsers = 10001 }, true},
		{"maxchannels negative", func(c *Config) { c.MaxChannels = -1 }, true},
		{"maxchannels zero allowed", func(c *Config) { c.MaxChannels = 0 }, false},
		{"empty servername", func(c *Config) { c.ServerName = "  " }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoadWithoutPathUsesDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadFromPropertiesFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/wirechat.properties"
	contents := "# sample config\n" +
		"port = 5050\n" +
		"maxusers = 50\n" +
		"maxchannels = 20\n" +
		"servername = Test Lounge\n" +
		"motd = welcome aboard\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, 5050, cfg.Port)
	require.Equal(t, 50, cfg.MaxUsers)
	require.Equal(t, 20, cfg.MaxChannels)
	require.Equal(t, "Test Lounge", cfg.ServerName)
	require.Equal(t, "welcome aboard", cfg.MOTD)
}

func TestLoadFromPropertiesFileMissingKeyIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/wirechat.properties"
	contents := "port = 5050\nmaxusers = 50\nmaxchannels = 20\nservername = Test\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := Load(nil, path)
	require.Error(t, err)
}

func TestLoadFromPropertiesFileUnparsableNumberIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/wirechat.properties"
	contents := "port = not-a-number\nmaxusers = 50\nmaxchannels = 20\nservername = Test\nmotd = hi\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	_, err := Load(nil, path)
	require.Error(t, err)
}
