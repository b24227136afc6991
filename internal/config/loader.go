package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const envPrefix = "WIRECHAT"

// requiredKeys are the five keys a config file must define in full —
// spec §4 treats "defaults" and "config file" as two complete,
// non-mixable construction paths, unlike the teacher's layered
// defaults/file/env precedence.
var requiredKeys = []string{"port", "maxusers", "maxchannels", "servername", "motd"}

// Load resolves a Config from built-in defaults, an optional
// `key = value` properties file at path, and a WIRECHAT_-prefixed
// environment overlay checked last. An empty path means "defaults
// only" (spec §4); any other error reading or validating the file is
// fatal, mirroring the reference ConfigReader, which never starts the
// server on a malformed config.
func Load(logger *zerolog.Logger, path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("properties")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("port", cfg.Port)
	v.SetDefault("maxusers", cfg.MaxUsers)
	v.SetDefault("maxchannels", cfg.MaxChannels)
	v.SetDefault("servername", cfg.ServerName)
	v.SetDefault("motd", cfg.MOTD)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		for _, key := range requiredKeys {
			if !v.InConfig(key) {
				return cfg, fmt.Errorf("config: missing required key %q in %s", key, path)
			}
		}
		if logger != nil {
			logger.Info().Str("path", path).Msg("loaded config file")
		}
	}

	port, err := parseIntKey(v, "port")
	if err != nil {
		return cfg, err
	}
	maxUsers, err := parseIntKey(v, "maxusers")
	if err != nil {
		return cfg, err
	}
	maxChannels, err := parseIntKey(v, "maxchannels")
	if err != nil {
		return cfg, err
	}

	cfg.Port = port
	cfg.MaxUsers = maxUsers
	cfg.MaxChannels = maxChannels
	cfg.ServerName = v.GetString("servername")
	cfg.MOTD = v.GetString("motd")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseIntKey parses key's string form with strconv rather than
// trusting viper's silent-zero-on-bad-cast GetInt, so an unparsable
// numeric value produces the fatal error spec §4 requires instead of
// a quietly-wrong 0.
func parseIntKey(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid integer", key, raw)
	}
	return n, nil
}
