// Package gateway implements the identity flows exposed by the HTTP
// transport.
//
// Each flow resolves the caller's credentials, has the mediator build the
// upstream request, dispatches it to the broker and maps the outcome.
// Unauthorized and invalid_request errors stop a flow before the broker is
// called. Broker faults are returned unchanged; a not_found on OIDC
// discovery stays distinguishable from other upstream faults.
package gateway
