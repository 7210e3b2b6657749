// Package api assembles the ambient HTTP layer: server bootstrap with
// graceful shutdown, a request-body size guard, and the liveness and
// version routes mounted alongside a service's generated JSON-RPC,
// REST, and metrics handlers.
package api
