// Package httpapi serves the reservation ledger over HTTP with gin.
//
// The calling account travels in the X-Labledger-Account header. Instants
// are taken from the server clock; read endpoints accept an "at" query
// parameter in unix seconds to evaluate state at another instant.
package httpapi

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/labledger/pkg/ledger"
	"github.com/mesh-intelligence/labledger/pkg/types"
)

// HeaderAccount names the request header carrying the calling account.
const HeaderAccount = "X-Labledger-Account"

// defaultStake is used when a reserve request omits the stake.
const defaultStake = "0.1"

type server struct {
	ledger *ledger.Ledger
	now    func() time.Time
	logger *slog.Logger
}

// Option configures NewRouter.
type Option func(*server)

// WithClock sets the clock used for "now". Defaults to the UTC wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *server) {
		s.now = now
	}
}

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *server) {
		s.logger = logger
	}
}

// NewRouter returns a gin engine exposing l.
func NewRouter(l *ledger.Ledger, opts ...Option) *gin.Engine {
	s := &server{
		ledger: l,
		now:    func() time.Time { return time.Now().UTC() },
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	resources := router.Group("/resources")
	{
		resources.GET("", s.listResources)
		resources.POST("", s.createResource)
		resources.GET("/:id", s.getResource)
		resources.POST("/:id/reserve", s.reserve)
		resources.POST("/:id/release", s.release)
		resources.GET("/:id/status", s.status)
		resources.GET("/:id/history", s.history)
	}
	router.GET("/accounts/:account/stake", s.stake)
	router.GET("/expired", s.expired)

	return router
}

// requestLog logs each request at debug level after it completes.
func (s *server) requestLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("http request",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"elapsed", time.Since(start),
	)
}

func (s *server) listResources(c *gin.Context) {
	all := s.ledger.Resources()
	c.JSON(http.StatusOK, gin.H{"data": all, "count": len(all)})
}

func (s *server) createResource(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req createResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := types.ParseCategory(req.Category)
	if err != nil {
		s.fail(c, err)
		return
	}

	id, err := s.ledger.CreateResource(c.Request.Context(), caller, types.NewResource{
		Name:      req.Name,
		Category:  cat,
		Custodian: types.Account(req.Custodian),
	}, s.now())
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := s.ledger.Resource(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *server) getResource(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}
	r, err := s.ledger.Resource(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *server) reserve(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	var req reserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid duration %q", req.Duration))
		return
	}
	if req.Stake == "" {
		req.Stake = defaultStake
	}
	stake, err := types.ParseAmount(req.Stake)
	if err != nil {
		s.fail(c, err)
		return
	}

	receipt, err := s.ledger.Reserve(c.Request.Context(), id, caller, duration, stake, s.now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *server) release(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	receipt, err := s.ledger.Release(c.Request.Context(), id, caller)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (s *server) status(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}
	at, ok := s.instant(c)
	if !ok {
		return
	}
	reserver, reserved, err := s.ledger.CurrentReserver(id, at)
	if err != nil {
		s.fail(c, err)
		return
	}
	remaining, err := s.ledger.RemainingTime(id, at)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, statusResponse{
		ID:               id,
		Reserved:         reserved,
		Reserver:         reserver,
		RemainingSeconds: int64(remaining / time.Second),
		At:               at,
	})
}

func (s *server) history(c *gin.Context) {
	id, ok := resourceID(c)
	if !ok {
		return
	}
	entries, err := s.ledger.HistoryEntries(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

func (s *server) stake(c *gin.Context) {
	account := types.Account(c.Param("account"))
	total := s.ledger.TotalStaked(account)
	c.JSON(http.StatusOK, stakeResponse{Account: account, Staked: total, Units: total.String()})
}

func (s *server) expired(c *gin.Context) {
	at, ok := s.instant(c)
	if !ok {
		return
	}
	lapsed := s.ledger.Expired(at)
	c.JSON(http.StatusOK, gin.H{"data": lapsed, "count": len(lapsed), "at": at})
}

// caller reads the calling account from the request header.
func (s *server) caller(c *gin.Context) (types.Account, bool) {
	acct := types.Account(c.GetHeader(HeaderAccount))
	if !acct.Valid() {
		s.fail(c, errNoAccount)
		return "", false
	}
	return acct, true
}

// instant returns the "at" query parameter or the server clock.
func (s *server) instant(c *gin.Context) (time.Time, bool) {
	raw := c.Query("at")
	if raw == "" {
		return s.now(), true
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid at %q: want unix seconds", raw))
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

// resourceID parses the :id path parameter.
func resourceID(c *gin.Context) (types.ResourceID, bool) {
	raw := c.Param("id")
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, fmt.Errorf("invalid resource id %q", raw))
		return 0, false
	}
	return types.ResourceID(n), true
}
