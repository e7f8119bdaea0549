// Package domain maps MCP tool calls onto MuseScore plugin actions.
//
// The mapping is explicit and table driven:
// - the action catalog names every command the plugin understands,
// - each action owns a typed parameter variant validated before anything is sent,
// - handlers build one envelope per call and hand it to the host client.
//
// Replies from MuseScore are returned as-is. The package never inspects musical
// content; it only checks that requests have the right shape.
package domain
