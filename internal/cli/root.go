// Package cli defines the Cobra commands of the triage binary.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waitroom-triage/internal/config"
	"waitroom-triage/internal/core"
	"waitroom-triage/internal/db"
	"waitroom-triage/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Deterministic hospital triage chat assistant",
	Long: `triage runs the waiting-room triage assistant: a rule-based state
machine that greets patients, walks a structured intake, applies clinical
escalation rules and hands high-risk cases to a clinician.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(sessionCmd)
}

// app is everything a command needs once configuration is resolved.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    db.Store
	notifier *db.Notifier
	rules    *core.RuleSet
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setup loads config, builds the logger, opens the store and loads the
// clinical rules. A rule file problem is fatal.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	rules, err := core.LoadRules(cfg.Rules.Path)
	if err != nil {
		return nil, fmt.Errorf("load clinical rules: %w", err)
	}
	store, notifier, err := db.Open(ctx, db.Options{
		Driver:        cfg.Store.Driver,
		DSN:           cfg.Store.DSN,
		EncryptionKey: cfg.Store.EncryptionKey,
		NotifyChannel: cfg.Store.NotifyChannel,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	logger.Debug("store ready",
		zap.String("driver", cfg.Store.Driver),
		zap.Int("rules", rules.Len()))
	return &app{cfg: cfg, logger: logger, store: store, notifier: notifier, rules: rules}, nil
}

func (a *app) orchestrator(opts ...core.Option) *core.Orchestrator {
	opts = append([]core.Option{core.WithLogger(a.logger)}, opts...)
	return core.NewOrchestrator(a.store, a.rules, opts...)
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}
