// Package usertoken provides auth.UserTokenValidator implementations.
//
// Introspector asks the identity broker which session an opaque access
// token belongs to. JWTValidator verifies signed JWT access tokens locally
// against the issuer's JWKS. Both finish by loading the client the token was
// issued to, so the resulting claim carries that client's tenant
// credentials plus the end user's username.
package usertoken
