// Package types defines the entity types, collaborator interfaces and
// standard errors for the labledger reservation system.
//
// A Resource is a catalog entry (lab, instrument, equipment, ...) that at
// most one Account may hold at a time through a staked Reservation. The
// ledger in pkg/ledger owns every Resource; callers only see copies.
package types
