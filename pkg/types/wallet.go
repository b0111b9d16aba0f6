package types

import "time"

// Transfer kinds recorded in a wallet journal.
const (
	TransferDeposit  = "deposit"
	TransferWithdraw = "withdraw"
	TransferHold     = "hold"
	TransferRefund   = "refund"
)

// Balance is an account's spendable and escrowed value.
type Balance struct {
	Account   Account `json:"account"`
	Available Amount  `json:"available"`
	Held      Amount  `json:"held"`
}

// Transfer is one journal line of a wallet.
type Transfer struct {
	TransferID string    `json:"transfer_id"`
	Account    Account   `json:"account"`
	Kind       string    `json:"kind"`
	Amount     Amount    `json:"amount"`
	At         time.Time `json:"at"`
}
