package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dbgateway/internal/config"
	"github.com/roach88/dbgateway/internal/gateway"
	"github.com/roach88/dbgateway/internal/httpapi"
	"github.com/roach88/dbgateway/internal/notify"
	"github.com/roach88/dbgateway/internal/store"
)

// ServeOptions holds flags for the serve command. Flags that are set
// override the config file.
type ServeOptions struct {
	*RootOptions
	Database    string
	Addr        string
	BusyTimeout time.Duration
	RedisURL    string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the gateway over HTTP",
		Long: `Open (or create) the marketplace database and serve the gateway API.

The database is opened in WAL mode with a bounded lock wait. Every write
endpoint runs as one immediate transaction that also records its event.

Example:
  dbgateway serve --db ./marketplace.db --addr :8080
  dbgateway serve --config ./dbgateway.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runServe(cmd, opts, cfg)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().DurationVar(&opts.BusyTimeout, "busy-timeout", 0, "bounded wait for the write lock (overrides config)")
	cmd.Flags().StringVar(&opts.RedisURL, "redis-url", "", "publish commit notices to this Redis (overrides config)")

	return cmd
}

func (o *ServeOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Database.Path = o.Database
	}
	if flags.Changed("addr") {
		cfg.HTTP.Addr = o.Addr
	}
	if flags.Changed("busy-timeout") {
		cfg.Database.BusyTimeoutMS = int(o.BusyTimeout / time.Millisecond)
	}
	if flags.Changed("redis-url") {
		cfg.Notify.RedisURL = o.RedisURL
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
}

// newLogger builds the process logger from the log config.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

func runServe(cmd *cobra.Command, opts *ServeOptions, cfg *config.Config) error {
	if cfg.Database.BusyTimeoutMS <= 0 {
		return NewExitError(ExitCommandError, "busy timeout must be positive")
	}

	log := newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(log)

	log.Info("opening database", "path", cfg.Database.Path, "busy_timeout", cfg.BusyTimeout())
	st, err := store.Open(cfg.Database.Path, store.Options{
		BusyTimeout: cfg.BusyTimeout(),
		Logger:      log,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	gwOpts := []gateway.Option{gateway.WithLogger(log)}
	if cfg.Notify.RedisURL != "" {
		pub, err := notify.Dial(cfg.Notify.RedisURL, cfg.Notify.Channel)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to configure notifications", err)
		}
		defer pub.Close()

		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		if err := pub.Ping(pingCtx); err != nil {
			log.Warn("redis unreachable, notices will be dropped until it recovers", "error", err)
		}
		pingCancel()

		gwOpts = append(gwOpts, gateway.WithNotifier(pub))
		log.Info("publishing commit notices", "channel", pub.Channel())
	}
	gw := gateway.New(st, gwOpts...)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := httpapi.NewServer(cfg.HTTP.Addr, httpapi.NewRouter(gw, log), log, cfg.ShutdownTimeout())
	fmt.Fprintf(cmd.OutOrStdout(), "Gateway serving %s on %s\n", cfg.Database.Path, cfg.HTTP.Addr)

	if err := srv.ListenAndServe(ctx); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}

	log.Info("gateway stopped gracefully")
	return nil
}
