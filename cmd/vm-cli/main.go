package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/govm-net/vmhost/api"
	"github.com/govm-net/vmhost/ledger"
	"github.com/govm-net/vmhost/logging"
	"github.com/govm-net/vmhost/vm"
)

var (
	configFile string
	backend    string
	dbPath     string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "vm-cli",
	Short: "Contract host command line tool",
	Long: `Contract host command line tool for uploading, deploying and invoking
WebAssembly smart contracts against a local ledger.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	pf.StringVar(&backend, "backend", string(ledger.SQLiteBackend), "ledger backend (memory, sqlite, leveldb)")
	pf.StringVar(&dbPath, "db", "vmhost.db", "ledger database path")
	pf.StringVar(&logLevel, "log-level", "", "log level override")

	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(inspectCmd)
}

// loadConfig reads --config when given. Ledger flags apply without a config
// file or when set explicitly.
func loadConfig(cmd *cobra.Command) (api.Config, error) {
	cfg := api.DefaultConfig()
	cfg.Log.Level = "warn"
	if configFile != "" {
		var err error
		if cfg, err = api.LoadConfig(configFile); err != nil {
			return cfg, err
		}
	}
	flags := cmd.Flags()
	if configFile == "" || flags.Changed("backend") {
		cfg.Ledger.Backend = ledger.BackendType(backend)
	}
	if configFile == "" || flags.Changed("db") {
		cfg.Ledger.Path = dbPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, cfg.Validate()
}

// withEngine runs fn with an engine built from the command configuration.
func withEngine(cmd *cobra.Command, fn func(ctx context.Context, e *vm.Engine) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx := cmd.Context()
	engine, err := vm.New(ctx, cfg, vm.Options{Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	defer func() {
		if err := engine.Close(ctx); err != nil {
			logger.Warn("close engine", zap.Error(err))
		}
	}()
	return fn(ctx, engine)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
