// Package main implements the docqa CLI: an HTTP server plus manual
// operations against the local document store.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docqa/internal/answer"
	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/docstore"
	openaiembed "docqa/internal/embedding/openai"
	"docqa/internal/loader"
	"docqa/internal/logging"
	"docqa/internal/server"
	"docqa/internal/tui"
)

var (
	cfgPath string
	topK    int
	version = "dev"
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "docqa",
	Short:   "Document QA over a chunked vector index",
	Long:    "docqa indexes text documents for semantic retrieval and answers questions grounded on the retrieved passages.",
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config file (default: ./config.yaml, then ~/.config/docqa/config.yaml)")
	queryCmd.Flags().IntVar(&topK, "top-k", 5, "number of chunks to retrieve")
	askCmd.Flags().IntVar(&topK, "top-k", 5, "number of chunks to retrieve")
	rootCmd.AddCommand(serveCmd, ingestCmd, queryCmd, askCmd, listCmd, deleteCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		gen, err := answer.New(answer.Config{APIKeyEnv: app.cfg.OpenAI.APIKeyEnv, Model: app.cfg.OpenAI.ChatModel})
		if err != nil {
			return err
		}
		srv, err := server.New(app.store, gen, app.logger, server.Config{
			Host: app.cfg.Server.Host,
			Port: app.cfg.Server.Port,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Start(ctx)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file> [file ...]",
	Short: "Ingest files from disk",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			content, err := loader.Extract(path, data)
			if err != nil {
				return err
			}
			doc, err := app.store.Ingest(cmd.Context(), "", filepath.Base(path), content)
			if err != nil {
				return err
			}
			fmt.Printf("%s: id=%s chunks=%d\n", path, doc.ID, doc.Chunks())
		}
		return nil
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		gen, err := answer.New(answer.Config{APIKeyEnv: app.cfg.OpenAI.APIKeyEnv, Model: app.cfg.OpenAI.ChatModel})
		if err != nil {
			return err
		}

		results, err := app.store.Query(cmd.Context(), args[0], topK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No relevant documents found.")
			return nil
		}
		chunks := make([]string, len(results))
		for i, r := range results {
			chunks[i] = r.Chunk.Text
		}
		ans, err := gen.Generate(cmd.Context(), args[0], chunks)
		if err != nil {
			return err
		}
		fmt.Println(ans)
		fmt.Println("\nSources:")
		for _, r := range results {
			fmt.Printf("  %s (score %.3f)\n", r.Chunk.Key(), r.Score)
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Interactive question console",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		gen, err := answer.New(answer.Config{APIKeyEnv: app.cfg.OpenAI.APIKeyEnv, Model: app.cfg.OpenAI.ChatModel})
		if err != nil {
			return err
		}
		_, err = tea.NewProgram(tui.New(app.store, gen, topK), tea.WithAltScreen()).Run()
		return err
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		docs := app.store.List()
		if len(docs) == 0 {
			fmt.Println("No documents indexed.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%s\t%q\t%d chunks\n", d.ID, d.Title, d.Chunks)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Delete a document and its vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp()
		if err != nil {
			return err
		}
		defer app.close()

		if err := app.store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

type app struct {
	cfg    *config.AppConfig
	logger *zap.Logger
	store  *docstore.Store
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func buildApp() (*app, error) {
	var cfg *config.AppConfig
	var err error
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	ch, err := chunker.NewWindowChunker(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}
	emb, err := openaiembed.New(openaiembed.Config{
		APIKeyEnv: cfg.OpenAI.APIKeyEnv,
		Model:     cfg.OpenAI.EmbeddingModel,
		Dimension: cfg.OpenAI.Dimension,
	})
	if err != nil {
		return nil, err
	}

	store, err := docstore.New(cfg.Store.DataDir, ch, emb, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: store}, nil
}
