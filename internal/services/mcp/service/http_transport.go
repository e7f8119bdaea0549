package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/louisbranch/musescore-mcp/internal/platform/timeouts"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var listenTCP = net.Listen

// HTTPTransport serves one MCP server over streamable HTTP at /mcp.
// Requests are limited to loopback hosts plus any configured allowed hosts.
type HTTPTransport struct {
	addr         string
	allowedHosts map[string]struct{}
	server       *Server
	httpServer   *http.Server
}

// NewHTTPTransport creates an HTTP transport for server. It defaults to
// localhost-only binding.
func NewHTTPTransport(addr string, server *Server, allowedHosts []string) *HTTPTransport {
	if addr == "" {
		addr = defaultHTTPAddr
	}
	return &HTTPTransport{
		addr:         addr,
		allowedHosts: parseAllowedHosts(allowedHosts),
		server:       server,
	}
}

// Handler returns the HTTP routes: the MCP endpoint and a health check.
func (t *HTTPTransport) Handler() http.Handler {
	mcpHandler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return t.server.mcpServer
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", t.localOnly(mcpHandler))
	mux.HandleFunc("/mcp/health", t.handleHealth)
	return mux
}

// Start serves HTTP until ctx ends, then shuts down gracefully.
func (t *HTTPTransport) Start(ctx context.Context) error {
	if t == nil || t.server == nil || t.server.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}

	listener, err := listenTCP("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", t.addr, err)
	}

	t.httpServer = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	log.Printf("Starting MCP HTTP server on %s", listener.Addr())

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

func (t *HTTPTransport) localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := t.validateLocalRequest(r); err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type healthResponse struct {
	Status             string `json:"status"`
	MuseScoreConnected bool   `json:"musescore_connected"`
}

// handleHealth reports liveness and whether the MuseScore channel is open.
// It never dials the host.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := t.validateLocalRequest(r); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := healthResponse{Status: "ok"}
	if t.server != nil && t.server.client != nil {
		response.MuseScoreConnected = t.server.client.Connected()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to write health response: %v", err)
	}
}

// validateLocalRequest checks Host and Origin headers against the allowed
// hosts to block DNS rebinding.
func (t *HTTPTransport) validateLocalRequest(r *http.Request) error {
	if r == nil {
		return fmt.Errorf("invalid request")
	}
	if !t.isAllowedHostHeader(r.Host) {
		return fmt.Errorf("invalid host")
	}

	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return nil
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid origin")
	}
	if !t.isAllowedHostHeader(parsed.Host) {
		return fmt.Errorf("invalid origin")
	}
	return nil
}

func (t *HTTPTransport) isAllowedHostHeader(hostHeader string) bool {
	hostname, ok := normalizeHost(hostHeader)
	if !ok {
		return false
	}
	if isLoopbackHost(hostname) {
		return true
	}
	_, ok = t.allowedHosts[strings.ToLower(hostname)]
	return ok
}

func isLoopbackHost(hostname string) bool {
	switch strings.ToLower(strings.TrimSpace(hostname)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}

// parseAllowedHosts parses allowed hosts from env-loaded values.
func parseAllowedHosts(hosts []string) map[string]struct{} {
	result := make(map[string]struct{}, len(hosts))
	for _, entry := range hosts {
		trimmed := strings.TrimSpace(entry)
		if trimmed == "" {
			continue
		}
		result[strings.ToLower(trimmed)] = struct{}{}
	}
	return result
}

// normalizeHost extracts the hostname portion from Host/Origin headers.
func normalizeHost(hostHeader string) (string, bool) {
	hostHeader = strings.TrimSpace(hostHeader)
	if hostHeader == "" {
		return "", false
	}
	if strings.HasPrefix(hostHeader, "[") {
		if hostname, _, err := net.SplitHostPort(hostHeader); err == nil {
			return hostname, true
		}
		if strings.HasSuffix(hostHeader, "]") {
			return strings.TrimSuffix(strings.TrimPrefix(hostHeader, "["), "]"), true
		}
		return "", false
	}
	if strings.Count(hostHeader, ":") > 1 {
		return hostHeader, true
	}
	if strings.Contains(hostHeader, ":") {
		hostname, _, err := net.SplitHostPort(hostHeader)
		if err != nil {
			return "", false
		}
		return hostname, true
	}
	return hostHeader, true
}
