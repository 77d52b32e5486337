package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig represents the single-file configuration schema.
type FileConfig struct {
	Listen string `yaml:"listen" json:"listen"`

	Host struct {
		Bridge  string   `yaml:"bridge" json:"bridge"`
		Timeout Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"host" json:"host"`

	Fetch struct {
		UserAgent string   `yaml:"userAgent" json:"userAgent"`
		Timeout   Duration `yaml:"timeout" json:"timeout"`
		MaxBytes  int64    `yaml:"maxBytes" json:"maxBytes"`
	} `yaml:"fetch" json:"fetch"`

	Cache struct {
		Dir         string   `yaml:"dir" json:"dir"`
		MaxAge      Duration `yaml:"maxAge" json:"maxAge"`
		Clear       bool     `yaml:"clear" json:"clear"`
		StrictPerms bool     `yaml:"strictPerms" json:"strictPerms"`
	} `yaml:"cache" json:"cache"`

	Dev struct {
		Placeholder    bool   `yaml:"placeholder" json:"placeholder"`
		PlaceholderURL string `yaml:"placeholderURL" json:"placeholderURL"`
	} `yaml:"dev" json:"dev"`

	Verbose bool `yaml:"verbose" json:"verbose"`
}

// Duration accepts "10s" style strings in YAML and JSON.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	if strings.TrimSpace(s) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// LoadConfigFile reads YAML or JSON into FileConfig.
func LoadConfigFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := filepath.Ext(path); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		// Try YAML then JSON
		if err := yaml.Unmarshal(b, &fc); err != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", err, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFileConfig overlays values from fc onto cfg wherever cfg still holds
// a zero or default value, so explicit flags survive.
func ApplyFileConfig(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if (cfg.ListenAddr == "" || cfg.ListenAddr == DefaultListenAddr) && fc.Listen != "" {
		cfg.ListenAddr = fc.Listen
	}
	if cfg.HostBridgeURL == "" && fc.Host.Bridge != "" {
		cfg.HostBridgeURL = fc.Host.Bridge
	}
	if (cfg.HostTimeout == 0 || cfg.HostTimeout == DefaultHostTimeout) && fc.Host.Timeout > 0 {
		cfg.HostTimeout = time.Duration(fc.Host.Timeout)
	}
	if (cfg.UserAgent == "" || cfg.UserAgent == DefaultUserAgent) && fc.Fetch.UserAgent != "" {
		cfg.UserAgent = fc.Fetch.UserAgent
	}
	if (cfg.FetchTimeout == 0 || cfg.FetchTimeout == DefaultFetchTimeout) && fc.Fetch.Timeout > 0 {
		cfg.FetchTimeout = time.Duration(fc.Fetch.Timeout)
	}
	if (cfg.FetchMaxBytes == 0 || cfg.FetchMaxBytes == DefaultFetchMaxBytes) && fc.Fetch.MaxBytes > 0 {
		cfg.FetchMaxBytes = fc.Fetch.MaxBytes
	}
	if (cfg.CacheDir == "" || cfg.CacheDir == DefaultCacheDir) && fc.Cache.Dir != "" {
		cfg.CacheDir = fc.Cache.Dir
	}
	if cfg.CacheMaxAge == 0 && fc.Cache.MaxAge > 0 {
		cfg.CacheMaxAge = time.Duration(fc.Cache.MaxAge)
	}
	if !cfg.CacheClear && fc.Cache.Clear {
		cfg.CacheClear = true
	}
	if !cfg.CacheStrictPerms && fc.Cache.StrictPerms {
		cfg.CacheStrictPerms = true
	}
	if !cfg.DevPlaceholder && fc.Dev.Placeholder {
		cfg.DevPlaceholder = true
	}
	if cfg.PlaceholderURL == "" && fc.Dev.PlaceholderURL != "" {
		cfg.PlaceholderURL = fc.Dev.PlaceholderURL
	}
	if !cfg.Verbose && fc.Verbose {
		cfg.Verbose = true
	}
}

// ValidateConfig performs minimal validation of required settings.
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return errors.New("config: listen address is required")
	}
	if cfg.HostBridgeURL != "" {
		u, err := url.Parse(cfg.HostBridgeURL)
		if err != nil || u.Host == "" {
			return fmt.Errorf("config: invalid host.bridge %q", cfg.HostBridgeURL)
		}
		switch u.Scheme {
		case "http", "https":
		default:
			return fmt.Errorf("config: host.bridge must be http or https, got %q", u.Scheme)
		}
	}
	if cfg.FetchTimeout < 0 || cfg.HostTimeout < 0 || cfg.CacheMaxAge < 0 || cfg.FetchMaxBytes < 0 {
		return errors.New("config: negative limits are not allowed")
	}
	return nil
}
