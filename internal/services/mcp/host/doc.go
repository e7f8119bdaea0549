// Package host owns the websocket channel to a running MuseScore instance.
//
// The wire protocol is one UTF-8 JSON text frame per direction per round trip:
// the adapter sends an envelope {"action": ..., "params": {...}} and blocks for
// exactly one reply object. Replies carry no request identifier, so a Client
// allows a single command in flight and serializes callers behind a mutex.
//
// Transport faults never escape as panics. Send reports them as *Error values
// carrying a Kind; SendCommand folds them into a synthesized
// {"error": ..., "kind": ...} record for callers that want a reply either way.
// Host-reported failures are ordinary replies and pass through untouched.
package host
