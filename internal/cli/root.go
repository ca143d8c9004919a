package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/masterscarnivals/sidelinesync/internal/model"
)

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sidelinesync",
	Short: "sidelinesync - MySideline carnival ingestion pipeline",
	Long: `sidelinesync keeps the Masters Carnivals database in step with
MySideline's club search. It drives a headless browser over the search
results, extracts each carnival card, and merges the records into the
carnival store without ever clobbering manually entered or user-claimed
data.

Run 'sidelinesync sync' for a one-off run, or 'sidelinesync watch' to
sync on an interval.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("sidelinesync v0.3.2")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.sidelinesync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// envBindings maps config keys to the MYSIDELINE_* environment variables.
// The *_MS keys carry integer milliseconds and are converted in loadConfig.
var envBindings = map[string]string{
	"mysideline.url":                "MYSIDELINE_URL",
	"mysideline.event_url":          "MYSIDELINE_EVENT_URL",
	"mysideline.request_timeout_ms": "MYSIDELINE_REQUEST_TIMEOUT_MS",
	"mysideline.retry_attempts":     "MYSIDELINE_RETRY_ATTEMPTS",
	"mysideline.request_delay_ms":   "MYSIDELINE_REQUEST_DELAY_MS",
	"mysideline.enable_scraping":    "MYSIDELINE_ENABLE_SCRAPING",
	"mysideline.use_mock":           "MYSIDELINE_USE_MOCK",
	"mysideline.headless":           "MYSIDELINE_HEADLESS",
	"mysideline.soft_deadline_ms":   "MYSIDELINE_SOFT_DEADLINE_MS",
	"mysideline.user_agent":         "MYSIDELINE_USER_AGENT",
	"mysideline.watch_interval":     "MYSIDELINE_WATCH_INTERVAL",
	"store.data_dir":                "MYSIDELINE_DATA_DIR",
	"output.artifact_dir":           "MYSIDELINE_ARTIFACT_DIR",
}

// initConfig reads in config file and MYSIDELINE_* environment variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".sidelinesync"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	for key, env := range envBindings {
		_ = viper.BindEnv(key, env)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers flags > environment > config file > defaults into one
// validated Config snapshot.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()

	ms := &cfg.MySideline
	setString(&ms.SearchURL, "mysideline.url")
	setString(&ms.EventURLPrefix, "mysideline.event_url")
	setString(&ms.UserAgent, "mysideline.user_agent")
	setInt(&ms.RetryAttempts, "mysideline.retry_attempts")
	setBool(&ms.EnableScraping, "mysideline.enable_scraping")
	setBool(&ms.UseMock, "mysideline.use_mock")
	setBool(&ms.Headless, "mysideline.headless")
	setDuration(&ms.WatchInterval, "mysideline.watch_interval")
	setDuration(&ms.RequestTimeout, "mysideline.request_timeout")
	setDuration(&ms.RequestDelay, "mysideline.request_delay")
	setDuration(&ms.SoftDeadline, "mysideline.soft_deadline")
	setMillis(&ms.RequestTimeout, "mysideline.request_timeout_ms")
	setMillis(&ms.RequestDelay, "mysideline.request_delay_ms")
	setMillis(&ms.SoftDeadline, "mysideline.soft_deadline_ms")

	setString(&cfg.Store.DataDir, "store.data_dir")
	setString(&cfg.Output.ArtifactDir, "output.artifact_dir")
	setBool(&cfg.Output.Verbose, "output.verbose")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func setInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func setBool(dst *bool, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetBool(key)
	}
}

func setDuration(dst *time.Duration, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}

func setMillis(dst *time.Duration, key string) {
	if viper.IsSet(key) {
		*dst = time.Duration(viper.GetInt64(key)) * time.Millisecond
	}
}

// expandHome resolves a leading ~ in configured paths
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
