// Package auth resolves inbound credentials into a tenant-scoped
// api.CredentialClaim.
//
// Header credentials go through a chain-of-responsibility with three-outcome
// voting: each authenticator returns Yes (claim resolved), No (credentials
// invalid), or Abstain (can't handle). When all abstain the chain says No.
//
// End-user access tokens are checked by a UserTokenValidator (see the
// usertoken subpackage). Flows that act on behalf of an end user resolve the
// calling application first and the user token second, through Then.
//
// Every failure surfaces as the same unauthorized error so callers cannot
// tell an unknown client from a wrong secret.
package auth
