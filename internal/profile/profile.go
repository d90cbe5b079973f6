// Package profile holds the runtime configuration resolved from flags,
// environment, and an optional .env file.
package profile

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Profile is the resolved server configuration.
type Profile struct {
	// Addr is the address the HTTP server binds to.
	Addr string
	// Port is the port the HTTP server listens on.
	Port int
	// Data is the directory for local state (vector index, session logs).
	Data string
	// Driver is the relational backend, "postgres" or "sqlite".
	Driver string
	// DSN is the database connection string. For sqlite it is a file path.
	DSN string

	// OpenRouterAPIKey authenticates against the model gateway.
	OpenRouterAPIKey string
	// AgentModel is the chat model driving the agent loop.
	AgentModel string
	// EmbedModel is the embedding model for the vector index.
	EmbedModel string

	// MaxIterations caps agent reasoning cycles per user message.
	MaxIterations int
	// ToolTimeout bounds each individual tool invocation.
	ToolTimeout time.Duration
	// SessionIdleTimeout is how long an untouched session stays resident
	// before the janitor finalizes it.
	SessionIdleTimeout time.Duration
}

func (p *Profile) Validate() error {
	switch p.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", p.Driver)
	}
	if p.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	return nil
}

// Load resolves the profile. Environment variables use the PARTDESK_
// prefix; a .env file in the working directory is read when present.
func Load() (*Profile, error) {
	// Best effort. Absence of .env is not an error.
	_ = godotenv.Load()

	viper.SetEnvPrefix("partdesk")
	viper.AutomaticEnv()

	viper.SetDefault("addr", "")
	viper.SetDefault("port", 8081)
	viper.SetDefault("data", "./data")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("dsn", "./data/partdesk.db")
	viper.SetDefault("agent_model", "openai/gpt-4o-mini")
	viper.SetDefault("embed_model", "openai/text-embedding-3-small")
	viper.SetDefault("max_iterations", 10)
	viper.SetDefault("tool_timeout", "30s")
	viper.SetDefault("session_idle_timeout", "30m")

	p := &Profile{
		Addr:               viper.GetString("addr"),
		Port:               viper.GetInt("port"),
		Data:               viper.GetString("data"),
		Driver:             viper.GetString("driver"),
		DSN:                viper.GetString("dsn"),
		OpenRouterAPIKey:   viper.GetString("openrouter_api_key"),
		AgentModel:         viper.GetString("agent_model"),
		EmbedModel:         viper.GetString("embed_model"),
		MaxIterations:      viper.GetInt("max_iterations"),
		ToolTimeout:        viper.GetDuration("tool_timeout"),
		SessionIdleTimeout: viper.GetDuration("session_idle_timeout"),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
