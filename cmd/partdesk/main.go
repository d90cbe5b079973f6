// Package main is the partdesk entry point: an HTTP support agent for an
// appliance parts catalog, plus an indexing command for its document corpus.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/partdesk/partdesk/agent"
	agenttools "github.com/partdesk/partdesk/agent/tools"
	"github.com/partdesk/partdesk/internal/profile"
	"github.com/partdesk/partdesk/plugin/auditlog"
	"github.com/partdesk/partdesk/plugin/vectorstore"
	"github.com/partdesk/partdesk/server"
	"github.com/partdesk/partdesk/store"
	"github.com/partdesk/partdesk/store/db"
)

const openRouterBaseURL = "https://openrouter.ai/api/v1"

var rootCmd = &cobra.Command{
	Use:   "partdesk",
	Short: "Appliance parts support agent",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServer(cmd.Context())
	},
}

var indexCmd = &cobra.Command{
	Use:   "index <corpus.json>",
	Short: "Build the semantic search index from a document corpus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd.Context(), args[0])
	},
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.AddCommand(indexCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("addr", "", "address to bind the HTTP server to")
	flags.Int("port", 8081, "port to listen on")
	flags.String("data", "./data", "directory for local state")
	flags.String("driver", "sqlite", "relational backend (postgres|sqlite)")
	flags.String("dsn", "./data/partdesk.db", "database connection string")

	// Flags override the PARTDESK_* environment.
	for _, name := range []string{"addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}

func runServer(ctx context.Context) error {
	p, err := profile.Load()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p.Data, 0o755); err != nil {
		return err
	}

	driver, err := db.NewDriver(p)
	if err != nil {
		return err
	}
	st := store.New(driver)
	defer st.Close()
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	// The index loads on first search so a missing corpus does not block
	// startup. Load failures surface through the vector tool as
	// VectorStoreError observations.
	handle := vectorstore.NewHandle(func(context.Context) (*vectorstore.Index, error) {
		return vectorstore.Open(p.Data, embeddingFunc(p))
	})

	registry := agenttools.NewRegistry(
		agenttools.NewSQLSearchTool(st),
		agenttools.NewVectorSearchTool(handle),
	)
	provider := agent.NewOpenRouterProvider(p.OpenRouterAPIKey, p.AgentModel)
	ag := agent.New(provider, registry, agent.Config{
		MaxIterations: p.MaxIterations,
		ToolTimeout:   p.ToolTimeout,
	})

	audit, err := auditlog.NewLogger(p.Data)
	if err != nil {
		return err
	}

	srv := server.NewServer(p, st, ag, audit)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("[SERVER] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runIndex(ctx context.Context, corpusPath string) error {
	p, err := profile.Load()
	if err != nil {
		return err
	}
	if p.OpenRouterAPIKey == "" {
		return fmt.Errorf("PARTDESK_OPENROUTER_API_KEY is required to build the index")
	}
	if err := os.MkdirAll(p.Data, 0o755); err != nil {
		return err
	}

	ix, err := vectorstore.Open(p.Data, embeddingFunc(p))
	if err != nil {
		return err
	}
	count, err := vectorstore.BuildIndex(ctx, ix, corpusPath)
	if err != nil {
		return err
	}
	slog.Info("[INDEX] corpus indexed", "chunks", count, "path", corpusPath)
	return nil
}

func embeddingFunc(p *profile.Profile) chromem.EmbeddingFunc {
	normalized := true
	return chromem.NewEmbeddingFuncOpenAICompat(openRouterBaseURL, p.OpenRouterAPIKey, p.EmbedModel, &normalized)
}
