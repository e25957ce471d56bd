// Package mediator builds upstream broker requests from caller input and a
// resolved credential claim.
//
// Every function is pure: it validates the flow-specific input, then returns
// a newly constructed request value. Tenant ids, client ids and secrets in
// the result always come from the claim; the matching fields of the caller
// input are never read. Validation failures are *api.APIError values of
// type invalid_request that name the offending field.
package mediator
