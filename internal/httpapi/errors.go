package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/labledger/pkg/types"
)

var errNoAccount = errors.New("missing " + HeaderAccount + " header")

// statusRules maps ledger errors to HTTP status codes, first match wins.
var statusRules = []struct {
	target error
	status int
}{
	{types.ErrResourceNotFound, http.StatusNotFound},
	{types.ErrAlreadyReserved, http.StatusConflict},
	{types.ErrStaleState, http.StatusConflict},
	{types.ErrNotReserved, http.StatusConflict},
	{types.ErrNotReserver, http.StatusForbidden},
	{types.ErrNotManager, http.StatusForbidden},
	{types.ErrInsufficientFunds, http.StatusPaymentRequired},
	{types.ErrDurationTooLong, http.StatusBadRequest},
	{types.ErrInvalidDuration, http.StatusBadRequest},
	{types.ErrInsufficientStake, http.StatusBadRequest},
	{types.ErrStakeOverflow, http.StatusBadRequest},
	{types.ErrInvalidAccount, http.StatusBadRequest},
	{types.ErrNameEmpty, http.StatusBadRequest},
	{types.ErrInvalidCategory, http.StatusBadRequest},
	{types.ErrInvalidAmount, http.StatusBadRequest},
	{types.ErrAmountPrecision, http.StatusBadRequest},
	{errNoAccount, http.StatusUnauthorized},
}

// statusFor returns the HTTP status for a ledger error. An escrow failure
// the rules do not claim is the upstream wallet's fault.
func statusFor(err error) int {
	for _, r := range statusRules {
		if errors.Is(err, r.target) {
			return r.status
		}
	}
	if types.IsEscrowFailure(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body and aborts the request.
func (s *server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var held *types.AlreadyReservedError
	if errors.As(err, &held) {
		body.Holder = held.Holder
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		body.Error = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, body)
}

// badRequest rejects malformed input that never reached the ledger.
func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
