// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/musescore-mcp/internal/platform/cmd"
	"github.com/louisbranch/musescore-mcp/internal/platform/timeouts"
	"github.com/louisbranch/musescore-mcp/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	Host           string        `env:"HOST"            envDefault:"localhost"`
	Port           int           `env:"PORT"            envDefault:"8765"`
	Transport      string        `env:"TRANSPORT"       envDefault:"stdio"`
	HTTPAddr       string        `env:"HTTP_ADDR"       envDefault:"localhost:8081"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	StepTools      bool          `env:"STEP_TOOLS"      envDefault:"false"`
	AllowedHosts   []string      `env:"ALLOWED_HOSTS"   envSeparator:","`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	allowedHosts := strings.Join(cfg.AllowedHosts, ",")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "MuseScore plugin websocket host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "MuseScore plugin websocket port")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", cfg.RequestTimeout, "Timeout for one MuseScore round trip")
	fs.BoolVar(&cfg.StepTools, "step-tools", cfg.StepTools, "Expose each sequenceable action as its own tool")
	fs.StringVar(&allowedHosts, "allowed-hosts", allowedHosts, "Comma separated non-loopback hosts accepted by the HTTP transport")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	cfg.AllowedHosts = splitHosts(allowedHosts)
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = timeouts.HostRequest
	}
	return cfg, nil
}

func splitHosts(value string) []string {
	var hosts []string
	for _, entry := range strings.Split(value, ",") {
		if entry = strings.TrimSpace(entry); entry != "" {
			hosts = append(hosts, entry)
		}
	}
	return hosts
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, entrypoint.RunOptions{}, func(ctx context.Context) error {
		return service.Run(ctx, service.Config{
			Host:           cfg.Host,
			Port:           cfg.Port,
			RequestTimeout: cfg.RequestTimeout,
			Transport:      service.TransportKind(cfg.Transport),
			HTTPAddr:       cfg.HTTPAddr,
			AllowedHosts:   cfg.AllowedHosts,
			StepTools:      cfg.StepTools,
		})
	})
}
