// Package ledger implements the reservation ledger: the authoritative state
// machine for staked, time-boxed reservations over a catalog of resources.
//
// Every mutation (CreateResource, Reserve, Release) runs under a single
// writer lock and is all-or-nothing: escrow transfers are compensated and
// the store commit is rolled back if any step fails, so an error always
// means the ledger state did not change. Expiry is lazy; nothing happens
// at a reservation's end time until the next Reserve on that resource
// clears it.
package ledger
