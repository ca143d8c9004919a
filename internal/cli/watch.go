package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/masterscarnivals/sidelinesync/internal/pipeline"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync on an interval until interrupted",
	Long: `Watch runs an immediate sync and then repeats on the configured
interval, with a little jitter so scheduled runs do not hit MySideline at
the exact same second every time. A run that is still in flight when the
next tick fires is not doubled up; the tick is skipped.

Example:
  sidelinesync watch
  sidelinesync watch --interval 1h`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("interval", 0, "time between syncs (default from config, 6h)")
	_ = viper.BindPFlag("mysideline.watch_interval", watchCmd.Flags().Lookup("interval"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	interval := cfg.MySideline.WatchInterval
	if interval <= 0 {
		return fmt.Errorf("watch interval must be positive, got %v", interval)
	}

	ctl, closeStore, err := buildController(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Watching, syncing every %v. Ctrl-C to stop.\n", interval)
	for {
		runOnce(ctx, ctl)
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "Stopped.")
			return nil
		case <-time.After(jittered(interval)):
		}
	}
}

func runOnce(ctx context.Context, ctl *pipeline.Controller) {
	summary, err := ctl.Sync(ctx)
	switch {
	case errors.Is(err, pipeline.ErrSyncBusy):
		fmt.Fprintln(os.Stderr, "Previous sync still running, skipping this tick")
	case err != nil:
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
	default:
		printSummary(summary)
	}
}

// jittered spreads ticks by up to +-10% of the interval
func jittered(interval time.Duration) time.Duration {
	spread := int64(interval) / 10
	if spread <= 0 {
		return interval
	}
	return interval + time.Duration(rand.Int63n(2*spread)-spread)
}
