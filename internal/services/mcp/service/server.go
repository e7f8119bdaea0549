package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/musescore-mcp/internal/platform/branding"
	"github.com/louisbranch/musescore-mcp/internal/services/mcp/domain"
	"github.com/louisbranch/musescore-mcp/internal/services/mcp/host"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
	// defaultHTTPAddr keeps the HTTP transport on loopback unless configured.
	defaultHTTPAddr = "localhost:8081"
)

// serverName identifies this MCP server to clients.
var serverName = branding.AppName

const serverInstructions = `Tools operate on the score open in MuseScore through the MuseScore MCP plugin.
Edits are cursor based: navigation moves the cursor and insertions happen at it.
Use processSequence to batch dependent steps such as goToMeasure then addNote;
the batch is applied in order in a single round trip. Read musescore://actions for
every action, its parameters and defaults. A result with an "error" and "kind"
field means MuseScore could not be reached; other errors come from MuseScore itself.`

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over streamable HTTP for remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	// Host and Port locate the MuseScore plugin websocket.
	Host string
	Port int
	// RequestTimeout bounds one host round trip.
	RequestTimeout time.Duration
	Transport      TransportKind
	HTTPAddr       string // HTTP server address (e.g., "localhost:8081"). Defaults to localhost:8081 for HTTP transport.
	AllowedHosts   []string
	// StepTools exposes each sequenceable action as its own tool.
	StepTools bool
}

// Options selects the tool surface of a server.
type Options struct {
	StepTools bool
}

// hostClient is the host channel owned by a Server.
type hostClient interface {
	domain.HostClient
	Connected() bool
	Close() error
}

// Server hosts the MCP server and the MuseScore channel behind it.
type Server struct {
	mcpServer *mcp.Server
	client    hostClient
}

// New creates a configured MCP server with its own MuseScore client. The
// websocket is opened lazily on the first tool call.
func New(cfg Config) (*Server, error) {
	client := host.NewClient(host.Options{
		Host:           cfg.Host,
		Port:           cfg.Port,
		RequestTimeout: cfg.RequestTimeout,
	})
	log.Printf("MuseScore endpoint: %s", client.URL())
	return newServer(client, Options{StepTools: cfg.StepTools})
}

// newServer binds tool and resource handlers to client once.
func newServer(client hostClient, opts Options) (*Server, error) {
	if client == nil {
		return nil, errors.New("musescore client is required")
	}
	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, &mcp.ServerOptions{
		Instructions: serverInstructions,
	})

	server := &Server{mcpServer: mcpServer, client: client}
	for _, module := range newMCPRegistrationModules(client, opts) {
		if err := module.register(mcpServerRegistrationAdapter{server: mcpServer}); err != nil {
			return nil, fmt.Errorf("register MCP module %q: %w", module.name, err)
		}
	}
	return server, nil
}

// Run is the service entrypoint for MCP and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		return runWithTransport(ctx, cfg, &mcp.StdioTransport{})
	case TransportHTTP:
		return runWithHTTPTransport(ctx, cfg)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// runWithTransport creates a server and serves it over the provided transport.
func runWithTransport(ctx context.Context, cfg Config, transport mcp.Transport) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.serveWithTransport(ctx, transport)
}

// runWithHTTPTransport creates a server and serves it over streamable HTTP.
// Every HTTP session shares the one MuseScore client.
func runWithHTTPTransport(ctx context.Context, cfg Config) error {
	httpAddr := cfg.HTTPAddr
	if httpAddr == "" {
		httpAddr = defaultHTTPAddr
	}

	server, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := server.Close(); err != nil {
			log.Printf("close MuseScore connection: %v", err)
		}
	}()

	return NewHTTPTransport(httpAddr, server, cfg.AllowedHosts).Start(ctx)
}

// Serve starts the MCP server on stdio and blocks until it stops or the context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// Close releases the MuseScore connection held by the server.
func (s *Server) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// serveWithTransport runs the MCP session and then closes the host channel so
// stdio and HTTP runs share one exit path.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	closeErr := s.Close()
	if closeErr != nil {
		if err == nil {
			return fmt.Errorf("close MuseScore connection: %w", closeErr)
		}
		return fmt.Errorf("serve MCP: %v; close MuseScore connection: %w", err, closeErr)
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
