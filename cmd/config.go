package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "magi"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage magi configuration.

Running bare 'magi config' is the same as 'magi config show'.
Every key can also be set through a MAGI_ environment variable
(for example MAGI_GATEWAY_APP_SECRET) or a .env file in the
working directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# magi configuration
# See: magi config show (for effective values and sources)

# State/data directory (default: ~/.config/magi)
# state_dir: {{ .StateDir }}

# SQLite review history path (default: ~/.config/magi/magi.db)
# db_path: {{ .DBPath }}

# Log level: debug, info, warn, error
log_level: "{{ .LogLevel }}"

# Agent gateway
gateway:
  # WebSocket endpoint; appid and token are appended per connection
  url: "{{ .GatewayURL }}"
  # Application id; the secret is best kept in MAGI_GATEWAY_APP_SECRET
  app_id: "{{ .AppID }}"
  # app_secret: ""
  # Seconds to wait for the WebSocket handshake
  handshake_timeout: {{ .HandshakeTimeout }}

# Reviews
review:
  # Seconds to wait for every agent to answer
  timeout: {{ .ReviewTimeout }}
  # An agent votes positive when its answer contains this marker
  positive_marker: "{{ .PositiveMarker }}"
  # Reviewer roster (default: melchior, balthasar, casper)
  # agents:
  #   - name: melchior
  #     id: d37c1cc8-bcc4-4b73-9f49-a93a30971f2c

# Keep a history of every review in db_path
history:
  enabled: {{ .HistoryEnabled }}

# HTTP API (magi serve)
serve:
  port: {{ .ServePort }}

# MCP server (magi mcp --transport sse)
mcp:
  addr: "{{ .MCPAddr }}"

# Review summaries (magi review --summarize); ANTHROPIC_API_KEY also works
anthropic:
  model: "{{ .AnthropicModel }}"
`

type configTemplateData struct {
	StateDir         string
	DBPath           string
	LogLevel         string
	GatewayURL       string
	AppID            string
	HandshakeTimeout float64
	ReviewTimeout    float64
	PositiveMarker   string
	HistoryEnabled   bool
	ServePort        int
	MCPAddr          string
	AnthropicModel   string
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:         viper.GetString("state_dir"),
		DBPath:           viper.GetString("db_path"),
		LogLevel:         viper.GetString("log_level"),
		GatewayURL:       viper.GetString("gateway.url"),
		AppID:            viper.GetString("gateway.app_id"),
		HandshakeTimeout: viper.GetFloat64("gateway.handshake_timeout"),
		ReviewTimeout:    viper.GetFloat64("review.timeout"),
		PositiveMarker:   viper.GetString("review.positive_marker"),
		HistoryEnabled:   viper.GetBool("history.enabled"),
		ServePort:        viper.GetInt("serve.port"),
		MCPAddr:          viper.GetString("mcp.addr"),
		AnthropicModel:   viper.GetString("anthropic.model"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
	Secret bool
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "MAGI_STATE_DIR"},
	{Key: "db_path", EnvVar: "MAGI_DB_PATH"},
	{Key: "log_level", EnvVar: "MAGI_LOG_LEVEL"},
	{Key: "gateway.url", EnvVar: "MAGI_GATEWAY_URL"},
	{Key: "gateway.app_id", EnvVar: "MAGI_GATEWAY_APP_ID"},
	{Key: "gateway.app_secret", EnvVar: "MAGI_GATEWAY_APP_SECRET", Secret: true},
	{Key: "gateway.handshake_timeout", EnvVar: "MAGI_GATEWAY_HANDSHAKE_TIMEOUT"},
	{Key: "review.timeout", EnvVar: "MAGI_REVIEW_TIMEOUT"},
	{Key: "review.positive_marker", EnvVar: "MAGI_REVIEW_POSITIVE_MARKER"},
	{Key: "history.enabled", EnvVar: "MAGI_HISTORY_ENABLED"},
	{Key: "serve.port", EnvVar: "MAGI_SERVE_PORT"},
	{Key: "mcp.addr", EnvVar: "MAGI_MCP_ADDR"},
	{Key: "mcp.base_url", EnvVar: "MAGI_MCP_BASE_URL"},
	{Key: "anthropic.api_key", EnvVar: "MAGI_ANTHROPIC_API_KEY", Secret: true},
	{Key: "anthropic.model", EnvVar: "MAGI_ANTHROPIC_MODEL"},
}

// maskSecret hides all but the last four characters.
func maskSecret(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		if k.Secret {
			val = maskSecret(viper.GetString(k.Key))
		}
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-27s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'magi config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
