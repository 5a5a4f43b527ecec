package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/svclaunch/internal/config"
	"github.com/psantana5/svclaunch/pkg/logging"
	"github.com/psantana5/svclaunch/pkg/store"
	"github.com/psantana5/svclaunch/pkg/tracing"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=..."
var Version = "dev"

var (
	cfgFile      string
	outputFormat string

	cfg    *config.Config
	logger *logging.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "svclaunch",
	Short: "Launcher for containerised service processes",
	Long: `svclaunch starts a service's server process detached from the launcher,
records its PID, sends its output to a log file and follows that log so the
launcher can stay in the foreground as a container entrypoint.

Services that generate sources before starting can instead be exec'd, which
replaces the launcher with the server process.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./svclaunch.yaml, then $HOME/.svclaunch/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default info)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit launcher logs as JSON lines")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_json", rootCmd.PersistentFlags().Lookup("log-json"))
}

// initConfig reads the config file and environment, then sets up logging
func initConfig(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if err := config.Init(v, cfgFile); err != nil {
		return err
	}

	c, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = c

	logger = logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON).WithComponent("svclaunch")
	if cfg.File != "" {
		logger.Debug("Using config file", logging.Fields{"file": cfg.File})
	}
	return nil
}

// IsJSONOutput returns true if JSON output is requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

func printJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func serviceArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// openHistory returns the launch history store, in memory when history is disabled
func openHistory() (store.Store, error) {
	if !cfg.History.Enabled {
		return store.NewMemoryStore(), nil
	}
	s, err := store.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", cfg.History.Path, err)
	}
	return s, nil
}

func newTracer(ctx context.Context) (*tracing.Provider, error) {
	return tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "svclaunch",
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.Endpoint,
		Enabled:        cfg.Tracing.Enabled,
	})
}
