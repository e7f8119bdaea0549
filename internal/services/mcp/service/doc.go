// Package service wires MCP transports to the MuseScore domain handlers.
//
// It is the transport adapter layer: the package knows how to run MCP over stdio
// or HTTP and delegates tool behavior to the domain package, which in turn owns
// the single host client.
package service
