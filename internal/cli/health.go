package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/dbgateway/internal/notify"
	"github.com/roach88/dbgateway/internal/store"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	keyColor  = color.New(color.FgCyan)
)

// HealthOptions holds flags for the health command.
type HealthOptions struct {
	*RootOptions
	Database string
}

// healthReport is the result of the health command.
type healthReport struct {
	Status            string `json:"status"`
	Path              string `json:"path"`
	DatabaseSizeBytes int64  `json:"database_size_bytes"`
	LatestEventID     int64  `json:"latest_event_id"`
	Redis             string `json:"redis,omitempty"`
}

func (r healthReport) renderText(w io.Writer) error {
	keyColor.Fprintf(w, "database ")
	fmt.Fprintf(w, "%s ", r.Path)
	okColor.Fprintln(w, r.Status)
	fmt.Fprintf(w, "  size_bytes: %d\n", r.DatabaseSizeBytes)
	fmt.Fprintf(w, "  latest_event_id: %d\n", r.LatestEventID)
	if r.Redis != "" {
		fmt.Fprintf(w, "  redis: ")
		if r.Redis == "ok" {
			okColor.Fprintln(w, r.Redis)
		} else {
			warnColor.Fprintln(w, r.Redis)
		}
	}
	return nil
}

// NewHealthCommand creates the health command.
func NewHealthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HealthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report database size and latest event id",
		Long: `Inspect an existing marketplace database without serving it.

Reports the database file size and the highest event id. When notifications
are configured, Redis connectivity is checked as well.

Example:
  dbgateway health --db ./marketplace.db
  dbgateway health --config ./dbgateway.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	return cmd
}

func runHealth(cmd *cobra.Command, opts *HealthOptions) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db") {
		cfg.Database.Path = opts.Database
	}

	// Opening would create an empty database.
	if _, err := os.Stat(cfg.Database.Path); errors.Is(err, fs.ErrNotExist) {
		_ = formatter.Error("DATABASE_NOT_FOUND", "database not found", map[string]string{"path": cfg.Database.Path})
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(cfg.Database.Path, store.Options{BusyTimeout: cfg.BusyTimeout()})
	if err != nil {
		return formatter.Fail(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	formatter.VerboseLog("opened %s", cfg.Database.Path)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		return formatter.Fail(ExitFailure, "failed to read database stats", err)
	}

	report := healthReport{
		Status:            "ok",
		Path:              cfg.Database.Path,
		DatabaseSizeBytes: stats.DatabaseSizeBytes,
		LatestEventID:     stats.LatestEventID,
	}

	if cfg.Notify.RedisURL != "" {
		report.Redis = checkRedis(ctx, cfg.Notify.RedisURL, cfg.Notify.Channel)
	}

	return formatter.Success(report)
}

// checkRedis returns "ok" or the reason Redis cannot be used.
func checkRedis(ctx context.Context, url, channel string) string {
	pub, err := notify.Dial(url, channel)
	if err != nil {
		return err.Error()
	}
	defer pub.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pub.Ping(pingCtx); err != nil {
		return "unreachable: " + err.Error()
	}
	return "ok"
}
