package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitbill/internal/companion"
)

// CompanionOptions holds flags for the companion command.
type CompanionOptions struct {
	*RootOptions
	Listen string
}

// NewCompanionCommand creates the companion command.
func NewCompanionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompanionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "companion",
		Short: "Run a read-only companion replica",
		Long: `Run a read-only replica that accepts ledger snapshots from a splitbill server and
serves the latest copy, with balances, at GET /v1/ledger.

Example:
  splitbill companion --listen 127.0.0.1:8081`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := opts.Listen
			if addr == "" {
				addr = opts.Config.Companion.ListenAddr
			}
			log := opts.Logger

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			replica := companion.NewReplica(log)
			srv := &http.Server{
				Addr:              addr,
				Handler:           loggingMiddleware(log, replica.Handler()),
				ReadHeaderTimeout: 10 * time.Second,
			}
			log.Info("Companion listening", "address", addr)
			if err := serve(ctx, srv, opts.Config.Server.ShutdownTimeout, log); err != nil {
				return WrapExitError(ExitFailure, "companion failed", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Listen, "listen", "l", "", "listen address, overrides config")

	return cmd
}
