package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/labledger/internal/httpapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over HTTP",
		Long:  "Serve the ledger as a JSON HTTP API until interrupted. The calling account\nis read from the " + httpapi.HeaderAccount + " request header.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.GetString(cfgKeyListenAddr)
			}
			clock := func() time.Time { return time.Now().UTC() }
			if a.now != "" {
				fixed, err := a.clock()
				if err != nil {
					return err
				}
				clock = func() time.Time { return fixed }
			}

			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				gin.SetMode(gin.ReleaseMode)
				router := httpapi.NewRouter(s.ledger, httpapi.WithClock(clock), httpapi.WithLogger(s.logger))

				ln, err := net.Listen("tcp", addr)
				if err != nil {
					return system(fmt.Errorf("listen on %s: %w", addr, err))
				}
				srv := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				errc := make(chan error, 1)
				go func() { errc <- srv.Serve(ln) }()
				fmt.Fprintf(cmd.OutOrStdout(), "labledger listening on %s\n", ln.Addr())
				s.logger.Info("serving", "addr", ln.Addr().String())

				select {
				case err := <-errc:
					if !errors.Is(err, http.ErrServerClosed) {
						return system(fmt.Errorf("serve: %w", err))
					}
					return nil
				case <-ctx.Done():
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					return system(fmt.Errorf("shutdown: %w", err))
				}
				s.logger.Info("server stopped")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: listen_addr from config.yaml)")
	return cmd
}
