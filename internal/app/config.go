package app

import "time"

// Config holds runtime configuration for the panel server and CLI.
type Config struct {
	// Panel
	ListenAddr string

	// Host bridge. Empty HostBridgeURL selects the in-memory development host.
	HostBridgeURL string
	HostTimeout   time.Duration

	// Suggestion fetching
	UserAgent     string
	FetchTimeout  time.Duration
	FetchMaxBytes int64

	// Page cache
	CacheDir         string
	CacheMaxAge      time.Duration
	CacheClear       bool
	CacheStrictPerms bool

	// Development
	DevPlaceholder bool
	PlaceholderURL string

	Verbose bool
}

// Defaults used by flags and by ApplyFileConfig to detect unset values.
const (
	DefaultListenAddr    = "127.0.0.1:8787"
	DefaultUserAgent     = "urlpreview/1.0 (+https://github.com/hyperifyio/urlpreview)"
	DefaultFetchTimeout  = 10 * time.Second
	DefaultHostTimeout   = 5 * time.Second
	DefaultFetchMaxBytes = 4 << 20
	DefaultCacheDir      = ".urlpreview-cache"
)

// DefaultConfig returns the configuration flags start from.
func DefaultConfig() Config {
	return Config{
		ListenAddr:    DefaultListenAddr,
		HostTimeout:   DefaultHostTimeout,
		UserAgent:     DefaultUserAgent,
		FetchTimeout:  DefaultFetchTimeout,
		FetchMaxBytes: DefaultFetchMaxBytes,
		CacheDir:      DefaultCacheDir,
	}
}
