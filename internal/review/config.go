package review

import (
	"log/slog"
	"time"

	"github.com/spf13/viper"

	"github.com/joescharf/magi/internal/auth"
	"github.com/joescharf/magi/internal/models"
)

const (
	defaultTimeout          = 300 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultPositiveMarker   = "POSITIVE"
)

// Config holds gateway and review settings.
type Config struct {
	GatewayURL       string
	Credentials      auth.Credentials
	HandshakeTimeout time.Duration
	Timeout          time.Duration
	Agents           []models.Agent
	PositiveMarker   string
}

// DefaultConfig returns the review config, reading from viper when available.
func DefaultConfig() Config {
	cfg := Config{
		GatewayURL: viper.GetString("gateway.url"),
		Credentials: auth.Credentials{
			AppID:     viper.GetString("gateway.app_id"),
			AppSecret: viper.GetString("gateway.app_secret"),
		},
		HandshakeTimeout: seconds(viper.GetFloat64("gateway.handshake_timeout"), defaultHandshakeTimeout),
		Timeout:          seconds(viper.GetFloat64("review.timeout"), defaultTimeout),
		PositiveMarker:   viper.GetString("review.positive_marker"),
	}
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = "ws://127.0.0.1:8000/ws"
	}
	if cfg.PositiveMarker == "" {
		cfg.PositiveMarker = defaultPositiveMarker
	}

	var agents []models.Agent
	if err := viper.UnmarshalKey("review.agents", &agents); err != nil {
		slog.Warn("invalid review.agents, using defaults", "error", err)
	}
	if len(agents) == 0 {
		agents = models.DefaultAgents()
	} else if err := ValidateRoster(agents); err != nil {
		slog.Warn("invalid review.agents, using defaults", "error", err)
		agents = models.DefaultAgents()
	}
	cfg.Agents = agents

	return cfg
}

// seconds converts a config value in seconds, falling back when unset.
func seconds(v float64, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v * float64(time.Second))
}
