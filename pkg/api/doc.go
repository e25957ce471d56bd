// Package api defines the data types exchanged by the Veda identity gateway.
//
// It holds the resolved credential bundle ([CredentialClaim]), the caller
// input structs for each supported flow, the immutable upstream request
// variants built from them, the payloads returned by the identity broker,
// and the structured [APIError] taxonomy shared by every layer.
//
// The package performs no I/O and depends only on the standard library.
//
// Core types:
//   - [CredentialClaim]: tenant-scoped credential bundle resolved for one call
//   - [AuthenticateRequest], [SessionRequest], [TokenRequest], ...: upstream requests
//   - [AuthToken], [User], [Credentials], [OIDCConfiguration]: broker payloads
//   - [APIError]: structured error with type, param, message and HTTP status
package api
