// Package storage defines the lookup backends the gateway reads from: the
// platform client registry used during credential resolution and the group
// membership records kept for authorization policy elsewhere in the system.
//
// Implementations live in subpackages (memory, postgres) and may be wrapped
// by the rediscache decorator. This package holds only the interfaces,
// record types, sentinel errors and tenant context helpers they share.
package storage
