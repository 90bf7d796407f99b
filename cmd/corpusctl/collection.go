package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"corpus"
	"corpus/registry"
)

// collectionRootCmd creates the collection management command tree
func collectionRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collection",
		Short: "Manage collections",
	}

	cmd.AddCommand(
		collectionCreateCmd(),
		collectionListCmd(),
		collectionStatsCmd(),
		collectionDeleteCmd(),
	)

	return cmd
}

func collectionCreateCmd() *cobra.Command {
	var (
		id          string
		description string
	)

	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a new collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				created, err := e.CreateCollection(ctx, registry.Spec{
					ID:          id,
					Name:        args[0],
					Description: description,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Created collection %s\n", created)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "explicit collection id (generated if omitted)")
	cmd.Flags().StringVar(&description, "description", "", "collection description")

	return cmd
}

func collectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				summaries := e.ListCollections(ctx)
				sort.Slice(summaries, func(i, j int) bool {
					return summaries[i].ID < summaries[j].ID
				})

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCREATED\tDESCRIPTION")
				for _, s := range summaries {
					created := ""
					if !s.CreatedAt.IsZero() {
						created = s.CreatedAt.Format("2006-01-02")
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.Name, created, s.Description)
				}
				return w.Flush()
			})
		},
	}
}

func collectionStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats COLLECTION_ID",
		Short: "Show collection statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				stats, err := e.CollectionStats(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Printf("Chunks: %d\n", stats.ChunkCount)
				fmt.Printf("Source documents: %d\n", stats.SourceDocumentCount)
				fmt.Printf("Average chunk length: %.1f\n", stats.AvgChunkLength)
				return nil
			})
		},
	}
}

func collectionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete COLLECTION_ID",
		Short: "Delete a collection and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				if err := e.DeleteCollection(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted collection %s\n", args[0])
				return nil
			})
		},
	}
}
