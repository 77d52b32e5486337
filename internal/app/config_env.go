package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides forcefully overrides cfg fields with environment
// variables that are set. It lets env win over a config file while flags,
// applied afterwards, stay highest.
func ApplyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	override(&cfg.ListenAddr, "LISTEN_ADDR")
	override(&cfg.HostBridgeURL, "HOST_BRIDGE_URL")
	override(&cfg.UserAgent, "USER_AGENT")
	override(&cfg.CacheDir, "CACHE_DIR")
	override(&cfg.PlaceholderURL, "PLACEHOLDER_URL")

	for key, dst := range map[string]*time.Duration{
		"HOST_TIMEOUT":  &cfg.HostTimeout,
		"FETCH_TIMEOUT": &cfg.FetchTimeout,
		"CACHE_MAX_AGE": &cfg.CacheMaxAge,
	} {
		if d, ok := envDuration(key); ok {
			*dst = d
		}
	}
	if n, ok := envInt64("FETCH_MAX_BYTES"); ok {
		cfg.FetchMaxBytes = n
	}
	for key, dst := range map[string]*bool{
		"CACHE_CLEAR":        &cfg.CacheClear,
		"CACHE_STRICT_PERMS": &cfg.CacheStrictPerms,
		"DEV_PLACEHOLDER":    &cfg.DevPlaceholder,
		"VERBOSE":            &cfg.Verbose,
	} {
		if v, ok := envBool(key); ok {
			*dst = v
		}
	}
}

func envDuration(key string) (time.Duration, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false
	}
	return d, true
}

func envInt64(key string) (int64, bool) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// envBool understands 1/true/yes/on and 0/false/no/off.
func envBool(key string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
