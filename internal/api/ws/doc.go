// Package ws streams startup progress to the desktop shell.
//
// The shell opens a single WebSocket and renders the connection overlay from
// the events pushed here; GET /api/startup/status covers reconnect gaps.
//
// Message Types (Server → Client):
//   - phase: full startup status snapshot, sent on connect and on every transition
//   - ready: the robot is usable and the overlay can be dismissed
//
// Clients send nothing; the read side only watches for the close handshake.
package ws
