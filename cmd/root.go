package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/magi/internal/llm"
	"github.com/joescharf/magi/internal/metrics"
	"github.com/joescharf/magi/internal/output"
	"github.com/joescharf/magi/internal/review"
	"github.com/joescharf/magi/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "magi",
	Short: "MAGI code review - three agents, one majority decision",
	Long: `magi submits code to three reviewing agents through a WebSocket gateway,
collects their streamed verdicts and decides by majority vote.

Run 'magi review' for a one-off review, 'magi mcp' to expose the
code_review tool to MCP clients, or 'magi serve' for the HTTP API.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	err := rootCmd.Execute()
	closeStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/magi/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "magi"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Gateway secrets usually live in a local .env; it is optional.
	_ = godotenv.Load()

	viper.SetEnvPrefix("MAGI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	setDefaults(filepath.Join(home, ".config", "magi"))

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every config key's default.
func setDefaults(configDir string) {
	viper.SetDefault("state_dir", configDir)
	viper.SetDefault("db_path", filepath.Join(configDir, "magi.db"))
	viper.SetDefault("log_level", "info")

	viper.SetDefault("gateway.url", "ws://127.0.0.1:8000/ws")
	viper.SetDefault("gateway.app_id", "")
	viper.SetDefault("gateway.app_secret", "")
	viper.SetDefault("gateway.handshake_timeout", 10)

	viper.SetDefault("review.timeout", 300)
	viper.SetDefault("review.positive_marker", "POSITIVE")

	viper.SetDefault("history.enabled", true)

	viper.SetDefault("serve.port", 8080)
	viper.SetDefault("mcp.addr", ":8000")
	viper.SetDefault("mcp.base_url", "")

	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", llm.DefaultModel)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := viper.GetString("log_level")
	if verbose {
		level = "debug"
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(level)})))

	// Initialize store lazily; only history-aware commands open it.
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx := rootCmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// historyStore returns the store when history is enabled. A store that
// cannot be opened disables history with a warning rather than failing.
func historyStore() store.Store {
	if !viper.GetBool("history.enabled") {
		return nil
	}
	s, err := getStore()
	if err != nil {
		ui.Warning("Review history disabled: %v", err)
		return nil
	}
	return s
}

func closeStore() {
	if dataStore != nil {
		_ = dataStore.Close()
		dataStore = nil
	}
}

// newService wires the gateway orchestrator to history and metrics.
func newService(m *metrics.Metrics) *review.Service {
	cfg := review.DefaultConfig()
	if cfg.Credentials.AppID == "" || cfg.Credentials.AppSecret == "" {
		ui.Warning("gateway.app_id or gateway.app_secret is empty; set MAGI_GATEWAY_APP_ID and MAGI_GATEWAY_APP_SECRET")
	}
	slog.Debug("review_config", "gateway", cfg.GatewayURL, "agents", len(cfg.Agents), "timeout", cfg.Timeout)

	orch := review.NewOrchestrator(cfg, review.WithMetrics(m))
	return review.NewService(orch, historyStore(), m)
}
