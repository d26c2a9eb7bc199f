package config

import (
	"flag"
	"fmt"
	"os"
)

// Config holds the runtime configuration for the matching server, resolved
// from command-line flags with an environment-variable override for each,
// following the convention: flags win over environment, environment wins
// over the hardcoded defaults below.
type Config struct {
	ListenAddr     string
	MetricsAddr    string
	StreamPath     string
	DefaultSymbols []string
	LogLevel       string
}

// Each ambient concern (matching API, Prometheus scrape, websocket feed)
// gets its own independently overridable address.
const (
	defaultListenAddr  = ":8080"
	defaultMetricsAddr = ":9090"
	defaultStreamPath  = "/ws"
	defaultLogLevel    = "info"
)

// Load parses flags from args (pass os.Args[1:] in main) and layers in
// environment variables for anything left at its zero value, so the binary
// is equally easy to run ad hoc ("-listen :9000") or under a process
// manager that only sets env vars.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("matching-server", flag.ContinueOnError)

	cfg := &Config{}
	fs.StringVar(&cfg.ListenAddr, "listen", envOr("MATCHING_LISTEN_ADDR", defaultListenAddr), "address for the order API to listen on")
	fs.StringVar(&cfg.MetricsAddr, "metrics-listen", envOr("MATCHING_METRICS_ADDR", defaultMetricsAddr), "address for the Prometheus /metrics scrape endpoint")
	fs.StringVar(&cfg.StreamPath, "stream-path", envOr("MATCHING_STREAM_PATH", defaultStreamPath), "HTTP path the websocket trade/depth feed is served on")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("MATCHING_LOG_LEVEL", defaultLogLevel), "log level: debug, info, warn, error")

	var symbols string
	fs.StringVar(&symbols, "symbols", envOr("MATCHING_SYMBOLS", ""), "comma-separated list of symbols to pre-create books for at startup")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.DefaultSymbols = splitNonEmpty(symbols)

	if cfg.ListenAddr == "" {
		return nil, fmt.Errorf("config: listen address must not be empty")
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
