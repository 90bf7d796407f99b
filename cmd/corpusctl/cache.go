package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"corpus"
)

// cacheRootCmd creates the embedding cache command tree
func cacheRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the embedding cache",
	}

	cmd.AddCommand(cacheStatsCmd(), cacheClearCmd())
	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show embedding cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				stats := e.CacheStats()
				fmt.Printf("Memory entries: %d / %d\n", stats.MemoryEntries, stats.Capacity)
				fmt.Printf("Durable entries: %d\n", stats.DurableEntries)
				fmt.Printf("Hits: %d  Misses: %d  Evictions: %d\n", stats.Hits, stats.Misses, stats.Evictions)
				return nil
			})
		},
	}
}

func cacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop all cached embeddings from both tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				if err := e.ClearEmbeddingCache(); err != nil {
					return err
				}
				fmt.Println("Embedding cache cleared")
				return nil
			})
		},
	}
}
