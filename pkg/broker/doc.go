// Package broker defines the contract with the upstream identity broker and
// provides an HTTP/JSON client for it.
//
// The broker executes the identity operations (password checks, token
// issuance, session state) against the tenant IAM, the platform credential
// registry and the federated login provider. The gateway only builds the
// requests and maps the outcome.
//
// The client never retries. Timeouts and network errors become
// upstream_error faults; broker status codes are mapped by MapHTTPError.
package broker
