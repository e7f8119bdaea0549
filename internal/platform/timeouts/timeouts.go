// Package timeouts defines shared timeout constants used across the adapter.
// Centralizing these values keeps the host and MCP boundaries in agreement.
package timeouts

import "time"

// HostDial caps the wait time when opening the websocket to MuseScore.
const HostDial = 2 * time.Second

// HostRequest is the default bound on one host round trip (send plus reply).
const HostRequest = 30 * time.Second

// ReadHeader limits how long the MCP HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the MCP HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
