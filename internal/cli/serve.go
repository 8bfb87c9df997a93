package cli

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port      int
	Companion string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ledger server",
		Long: `Run the Connect ledger server for the logged-in user.

On start the persisted session is restored, its ledger is loaded into memory and, when a
companion URL is configured, every change is replicated to the companion.

Example:
  splitbill serve --config splitbill.yaml
  splitbill serve --port 9090 --companion http://127.0.0.1:8081`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "listen port, overrides config")
	cmd.Flags().StringVar(&opts.Companion, "companion", "", "companion base URL, overrides config")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg := opts.Config
	if opts.Port != 0 {
		cfg.Server.Port = opts.Port
	}
	if opts.Companion != "" {
		cfg.Companion.URL = opts.Companion
	}
	log := opts.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("Failed to close cleanly", "error", err)
		}
	}()
	app.Start(ctx)

	// h2c serves HTTP/2 without TLS, which Connect clients expect.
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: h2c.NewHandler(app.Handler, &http2.Server{}),
	}
	log.Info("Connect server starting", "address", srv.Addr, "companion", cfg.Companion.URL)
	if err := serve(ctx, srv, cfg.Server.ShutdownTimeout, log); err != nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	return nil
}
