package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/internal/notify"
	"github.com/mesh-intelligence/labledger/internal/paths"
	"github.com/mesh-intelligence/labledger/internal/postgres"
	"github.com/mesh-intelligence/labledger/internal/sqlite"
	"github.com/mesh-intelligence/labledger/pkg/ledger"
	"github.com/mesh-intelligence/labledger/pkg/types"
)

// session is an open ledger for the duration of one command.
type session struct {
	ledger *ledger.Ledger
	wallet *sqlite.Wallet // nil unless the backend is sqlite
	events *notify.FileSink
	logger *slog.Logger
}

// Close releases the ledger and its store.
func (s *session) Close() error {
	return s.ledger.Close()
}

// requireWallet returns the wallet or an error naming the backend.
func (s *session) requireWallet() (*sqlite.Wallet, error) {
	if s.wallet == nil {
		return nil, fmt.Errorf("wallet requires the %s backend", types.BackendSQLite)
	}
	return s.wallet, nil
}

// open builds the logger, the store, the escrow and the sinks from config
// and opens the ledger over them.
func (a *app) open(cmd *cobra.Command) (*session, error) {
	logger, err := newLogger(cmd.ErrOrStderr(), a.cfg.GetString(cfgKeyLogLevel), a.cfg.GetString(cfgKeyLogFormat))
	if err != nil {
		return nil, err
	}
	cfg, err := a.ledgerConfig()
	if err != nil {
		return nil, err
	}

	s := &session{logger: logger}
	sinks := notify.Multi{notify.NewLogSink(logger)}
	opts := []ledger.Option{
		ledger.WithAuthorizer(a.managers()),
		ledger.WithLogger(logger),
	}

	ctx := contextOf(cmd)
	var store types.Store
	switch cfg.Backend {
	case types.BackendSQLite:
		backend := sqlite.NewBackend()
		if err := backend.Attach(cfg); err != nil {
			return nil, system(fmt.Errorf("attach backend: %w", err))
		}
		s.wallet = backend.Wallet()
		store = backend
		opts = append(opts, ledger.WithEscrow(s.wallet))
	case types.BackendPostgres:
		pg, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, system(fmt.Errorf("open postgres store: %w", err))
		}
		store = pg
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			pg.Close()
			return nil, system(fmt.Errorf("create data dir: %w", err))
		}
	}

	if store != nil {
		opts = append(opts, ledger.WithStore(store))
		if name := a.cfg.GetString(cfgKeyEventsFile); name != "" {
			s.events = notify.NewFileSink(paths.ResolveDataFile(cfg.DataDir, name), logger)
			sinks = append(sinks, s.events)
		}
	}
	opts = append(opts, ledger.WithSink(sinks))

	l, err := ledger.Open(ctx, opts...)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, system(err)
	}
	s.ledger = l
	return s, nil
}

// withSession opens a session, runs fn and closes the session.
func (a *app) withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	s, err := a.open(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(contextOf(cmd), s)
}

// contextOf returns the command context, which is nil unless the command
// was run with ExecuteContext.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// newLogger builds a text or JSON slog handler at the configured level.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%s: invalid %s %q", configFileExt, cfgKeyLogLevel, level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("%s: invalid %s %q (valid: text, json)", configFileExt, cfgKeyLogFormat, format)
	}
}
