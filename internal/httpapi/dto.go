package httpapi

import (
	"time"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

// createResourceRequest is the body of POST /resources.
type createResourceRequest struct {
	Name      string `json:"name" binding:"required"`
	Category  string `json:"category" binding:"required"`
	Custodian string `json:"custodian"`
}

// reserveRequest is the body of POST /resources/:id/reserve. Duration is a
// Go duration string ("90m", "2h"); Stake is a decimal unit amount.
type reserveRequest struct {
	Duration string `json:"duration" binding:"required"`
	Stake    string `json:"stake"`
}

// statusResponse is the logical state of a resource at an instant.
type statusResponse struct {
	ID               types.ResourceID `json:"id"`
	Reserved         bool             `json:"reserved"`
	Reserver         types.Account    `json:"reserver,omitempty"`
	RemainingSeconds int64            `json:"remaining_seconds"`
	At               time.Time        `json:"at"`
}

// stakeResponse is an account's total stake in escrow.
type stakeResponse struct {
	Account types.Account `json:"account"`
	Staked  types.Amount  `json:"staked"`
	Units   string        `json:"units"`
}

// errorResponse carries a rejected request's message.
type errorResponse struct {
	Error  string        `json:"error"`
	Holder types.Account `json:"holder,omitempty"`
}
