package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/masterscarnivals/sidelinesync/internal/audit"
	"github.com/masterscarnivals/sidelinesync/internal/model"
	"github.com/masterscarnivals/sidelinesync/internal/pipeline"
	"github.com/masterscarnivals/sidelinesync/internal/store"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one MySideline ingestion pass",
	Long: `Sync scrapes the MySideline club search once and reconciles every
carnival card into the store:
- New carnivals are inserted
- Unclaimed imports are refreshed in full
- Claimed carnivals only receive fields their owner has not edited
- Manually entered carnivals are never touched

Example:
  sidelinesync sync
  sidelinesync sync --url "https://profile.mysideline.com.au/register/clubsearch?criteria=masters"
  sidelinesync sync --mock`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().String("url", "", "search URL to scrape")
	syncCmd.Flags().Bool("mock", false, "use the embedded fixture instead of a browser")
	syncCmd.Flags().Bool("no-headless", false, "show the browser window")
	syncCmd.Flags().String("data-dir", "", "directory holding the carnival database")
	syncCmd.Flags().String("artifact-dir", "", "directory for debug artifacts")

	_ = viper.BindPFlag("mysideline.url", syncCmd.Flags().Lookup("url"))
	_ = viper.BindPFlag("mysideline.use_mock", syncCmd.Flags().Lookup("mock"))
	_ = viper.BindPFlag("store.data_dir", syncCmd.Flags().Lookup("data-dir"))
	_ = viper.BindPFlag("output.artifact_dir", syncCmd.Flags().Lookup("artifact-dir"))
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if noHeadless, _ := cmd.Flags().GetBool("no-headless"); noHeadless {
		cfg.MySideline.Headless = false
	}

	ctl, closeStore, err := buildController(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	summary, err := ctl.Sync(cmd.Context())
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	printSummary(summary)
	return nil
}

// buildController wires the store, logger and audit sink into a pipeline
// controller. The returned func closes the store.
func buildController(cfg *model.Config) (*pipeline.Controller, func(), error) {
	log := newLogger(cfg.Output.Verbose)

	dataDir := expandHome(cfg.Store.DataDir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := store.OpenSQLite(filepath.Join(dataDir, "carnivals.db"))
	if err != nil {
		return nil, nil, err
	}

	ctl := pipeline.NewController(pipeline.Deps{
		Config: cfg,
		Store:  db,
		Audit:  audit.NewLogger(log),
		Log:    log,
	})
	return ctl, func() { _ = db.Close() }, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printSummary(s *model.SyncSummary) {
	fmt.Printf("Sync %s\n", s.CorrelationID)
	if s.Mock {
		fmt.Println("  mode:      mock")
	}
	if s.Partial {
		fmt.Println("  partial:   yes (soft deadline or cancel)")
	}
	fmt.Printf("  processed: %d\n", s.CarnivalsProcessed)
	fmt.Printf("  created:   %d\n", s.CarnivalsCreated)
	fmt.Printf("  updated:   %d\n", s.CarnivalsUpdated)
	fmt.Printf("  skipped:   %d\n", s.Skipped)
	fmt.Printf("  duration:  %dms\n", s.DurationMs)
}
