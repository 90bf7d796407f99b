package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"corpus"
	"corpus/chunker"
	"corpus/embedder"
	"corpus/internal/config"
	"corpus/store"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "corpusctl",
	Short: "Manage corpus collections and run retrieval queries",
	Long: `corpusctl administers a corpus retrieval engine: create and inspect
collections, ingest documents, and run search or context-assembly queries
against them.

The engine is configured through a YAML file selecting the embedding
provider, vector store backend, and chunking parameters.`,
	Version: corpus.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (defaults apply if omitted)")

	rootCmd.AddCommand(
		collectionRootCmd(),
		ingestCmd(),
		searchCmd(),
		assembleCmd(),
		cacheRootCmd(),
	)
}

// loadConfig reads the config file, or falls back to defaults when no file
// was given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.Load(cfgFile)
}

// buildEngine wires an Engine from the loaded configuration.
func buildEngine(ctx context.Context) (*corpus.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	b := corpus.NewBuilder().
		WithCacheCapacity(cfg.Cache.Capacity).
		WithCachePath(cfg.Cache.Path)

	switch cfg.Chunker.Kind {
	case config.ChunkerWindow:
		win, err := chunker.NewWindow(cfg.Chunker.MaxSize, cfg.Chunker.Overlap)
		if err != nil {
			return nil, err
		}
		b.WithChunker(win)
	case config.ChunkerTokens:
		tok, err := chunker.NewTokenWindow(cfg.Chunker.MaxSize, cfg.Chunker.Overlap)
		if err != nil {
			return nil, err
		}
		b.WithChunker(tok)
	}

	switch cfg.Provider.Kind {
	case config.ProviderDeterministic:
		b.WithProvider(embedder.NewDeterministic(cfg.Provider.Dimensions))
	case config.ProviderOpenAI:
		p := embedder.NewOpenAI(cfg.Provider.APIKey, cfg.Provider.Model, cfg.Provider.Dimensions)
		if cfg.Provider.BaseURL != "" {
			p.WithBaseURL(cfg.Provider.BaseURL)
		}
		b.WithProvider(p)
	case config.ProviderOllama:
		b.WithProvider(embedder.NewOllama(cfg.Provider.BaseURL, cfg.Provider.Model, cfg.Provider.Dimensions))
	}

	switch cfg.Store.Kind {
	case config.StoreMemory:
	case config.StoreSQLite:
		s, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		b.WithStore(s)
	case config.StorePostgres:
		s, err := store.NewPostgres(ctx, cfg.Store.DSN, cfg.Store.Dimensions)
		if err != nil {
			return nil, err
		}
		b.WithStore(s)
	}

	return b.Build(ctx)
}

// withEngine runs fn against a configured engine and closes it afterwards.
func withEngine(fn func(ctx context.Context, e *corpus.Engine) error) error {
	ctx := context.Background()
	e, err := buildEngine(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

func main() {
	// Optional .env for OPENAI_API_KEY and friends.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("corpusctl: load .env: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
