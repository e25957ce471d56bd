// Package transport defines the handler contract and the HTTP middleware
// chain for the identity gateway's HTTP transport.
//
// # Handler Interface
//
// IdentityHandler lists the nine identity flows. The gateway implements it;
// the transport/http adapter decodes requests, calls one flow, and encodes
// the result or the *api.APIError it returned. Request headers are passed
// through untouched so credential resolution happens inside the flow.
//
// # Middleware
//
// Middleware wraps an http.Handler with cross-cutting behavior. Built-in
// middleware provides panic recovery, request id assignment (X-Request-ID)
// and structured access logging via log/slog.
package transport
