// Package bidiclient is the client half of the bidirectional
// WebSocket engine: a transport-abstracted connection with automatic
// reconnect, a pending-request registry for Call's request/response
// matching, and build-time configuration validation.
package bidiclient
