package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hyperifyio/urlpreview/internal/app"
)

const usage = `usage: urlpreview <command> [flags]

commands:
  serve          run the editor panel against the host bridge
  images <url>   print candidate preview images for a page
  version        print build information
`

var errUsage = errors.New("usage")

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		log.Error().Err(err).Msg("run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "serve":
		cfg, _, err := parseConfig("serve", args[1:])
		if err != nil {
			return err
		}
		return serve(ctx, cfg)
	case "images":
		cfg, rest, err := parseConfig("images", args[1:])
		if err != nil {
			return err
		}
		if len(rest) != 1 {
			return errUsage
		}
		return images(ctx, cfg, rest[0], stdout)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, app.VersionString())
		return nil
	default:
		return errUsage
	}
}

// parseConfig layers configuration with precedence flags > env > file >
// defaults and returns the remaining positional arguments.
func parseConfig(name string, args []string) (app.Config, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	flags := app.DefaultConfig()
	var (
		configPath string
		envFiles   string
	)
	fs.StringVar(&configPath, "config", os.Getenv("URLPREVIEW_CONFIG"), "Path to YAML or JSON config file")
	fs.StringVar(&envFiles, "env-file", ".env", "Comma-separated dotenv files loaded before reading env")
	fs.StringVar(&flags.ListenAddr, "listen", flags.ListenAddr, "Panel listen address")
	fs.StringVar(&flags.HostBridgeURL, "host.bridge", "", "Host bridge base URL; empty uses the in-memory host")
	fs.DurationVar(&flags.HostTimeout, "host.timeout", flags.HostTimeout, "Host bridge request timeout")
	fs.StringVar(&flags.UserAgent, "fetch.ua", flags.UserAgent, "User-Agent for page fetches")
	fs.DurationVar(&flags.FetchTimeout, "fetch.timeout", flags.FetchTimeout, "Page fetch timeout")
	fs.Int64Var(&flags.FetchMaxBytes, "fetch.maxBytes", flags.FetchMaxBytes, "Maximum page body size in bytes")
	fs.StringVar(&flags.CacheDir, "cache.dir", flags.CacheDir, "Page cache directory; empty disables caching")
	fs.DurationVar(&flags.CacheMaxAge, "cache.maxAge", 0, "Max age for cache entries before purge; 0 disables")
	fs.BoolVar(&flags.CacheClear, "cache.clear", false, "Clear cache directory before start")
	fs.BoolVar(&flags.CacheStrictPerms, "cache.strictPerms", false, "Restrict cache permissions (0700 dirs, 0600 files)")
	fs.BoolVar(&flags.DevPlaceholder, "dev.placeholder", false, "Synthesize a placeholder draft when nothing is selected")
	fs.StringVar(&flags.PlaceholderURL, "dev.placeholderURL", "", "URL used by the placeholder draft")
	fs.BoolVar(&flags.Verbose, "v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return app.Config{}, nil, errUsage
	}

	if err := app.LoadEnvFiles(splitList(envFiles)...); err != nil {
		return app.Config{}, nil, err
	}

	cfg := app.DefaultConfig()
	if strings.TrimSpace(configPath) != "" {
		fc, err := app.LoadConfigFile(configPath)
		if err != nil {
			return app.Config{}, nil, fmt.Errorf("load config: %w", err)
		}
		app.ApplyFileConfig(&cfg, fc)
	}
	app.ApplyEnvOverrides(&cfg)

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.ListenAddr = flags.ListenAddr
		case "host.bridge":
			cfg.HostBridgeURL = flags.HostBridgeURL
		case "host.timeout":
			cfg.HostTimeout = flags.HostTimeout
		case "fetch.ua":
			cfg.UserAgent = flags.UserAgent
		case "fetch.timeout":
			cfg.FetchTimeout = flags.FetchTimeout
		case "fetch.maxBytes":
			cfg.FetchMaxBytes = flags.FetchMaxBytes
		case "cache.dir":
			cfg.CacheDir = flags.CacheDir
		case "cache.maxAge":
			cfg.CacheMaxAge = flags.CacheMaxAge
		case "cache.clear":
			cfg.CacheClear = flags.CacheClear
		case "cache.strictPerms":
			cfg.CacheStrictPerms = flags.CacheStrictPerms
		case "dev.placeholder":
			cfg.DevPlaceholder = flags.DevPlaceholder
		case "dev.placeholderURL":
			cfg.PlaceholderURL = flags.PlaceholderURL
		case "v":
			cfg.Verbose = flags.Verbose
		}
	})

	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	return cfg, fs.Args(), nil
}

func serve(ctx context.Context, cfg app.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer a.Close()
	return a.Run(ctx)
}

func images(ctx context.Context, cfg app.Config, pageURL string, stdout io.Writer) error {
	s, err := app.NewSuggester(cfg, nil)
	if err != nil {
		return fmt.Errorf("init suggester: %w", err)
	}
	res := s.Suggest(ctx, pageURL)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		URL         string   `json:"url"`
		Title       string   `json:"title,omitempty"`
		Description string   `json:"description,omitempty"`
		Images      []string `json:"images"`
	}{res.URL, res.Title, res.Description, res.Images})
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
