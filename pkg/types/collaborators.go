package types

import "context"

// Escrow moves stake value in and out of custody. The ledger records the
// accounting; the Escrow performs the transfer.
type Escrow interface {
	// Hold takes amount from the account into custody.
	Hold(ctx context.Context, account Account, amount Amount) error

	// Refund returns amount from custody to the account. A failed refund
	// aborts the ledger operation that requested it.
	Refund(ctx context.Context, account Account, amount Amount) error
}

// Authorizer decides which accounts may add catalog entries.
type Authorizer interface {
	IsAuthorizedManager(account Account) bool
}

// Sink receives events after each committed operation, in emission order.
type Sink interface {
	Notify(ctx context.Context, e Event)
}

// StaticManagers authorizes a fixed set of accounts.
type StaticManagers map[Account]bool

// NewStaticManagers builds a StaticManagers from a list, skipping blanks.
func NewStaticManagers(accounts ...Account) StaticManagers {
	m := make(StaticManagers, len(accounts))
	for _, a := range accounts {
		if a.Valid() {
			m[a] = true
		}
	}
	return m
}

func (m StaticManagers) IsAuthorizedManager(account Account) bool {
	return m[account]
}

// AllowAll authorizes every non-empty account.
type AllowAll struct{}

func (AllowAll) IsAuthorizedManager(account Account) bool {
	return account.Valid()
}
