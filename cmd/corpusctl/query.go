package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"corpus"
	"corpus/assembler"
)

func searchCmd() *cobra.Command {
	var (
		collections []string
		topK        int
	)

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search collections and print raw ranked results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				results, failed, err := e.Search(ctx, args[0], collections, topK)
				if err != nil {
					return err
				}
				for _, f := range failed {
					fmt.Fprintf(os.Stderr, "collection %s: %v\n", f.CollectionID, f.Err)
				}

				ids := make([]string, 0, len(results))
				for id := range results {
					ids = append(ids, id)
				}
				sort.Strings(ids)

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "COLLECTION\tCHUNK\tDISTANCE\tTEXT")
				for _, id := range ids {
					for _, r := range results[id] {
						fmt.Fprintf(w, "%s\t%s\t%.4f\t%s\n", id, r.ChunkID, r.Distance, snippet(r.Text, 60))
					}
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringSliceVarP(&collections, "collection", "c", nil, "collection ids to search (all if omitted)")
	cmd.Flags().IntVarP(&topK, "top", "k", 10, "results per collection")

	return cmd
}

func assembleCmd() *cobra.Command {
	var (
		collections []string
		budget      int
		topK        int
	)

	cmd := &cobra.Command{
		Use:   "assemble QUERY",
		Short: "Assemble a context bundle within a size budget",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				bundle, err := e.Assemble(ctx, args[0], assembler.Options{
					CollectionIDs: collections,
					BudgetChars:   budget,
					TopK:          topK,
				})
				if err != nil {
					return err
				}
				for _, f := range bundle.Failed {
					fmt.Fprintf(os.Stderr, "collection %s: %v\n", f.CollectionID, f.Err)
				}

				fmt.Printf("Items: %d  Total length: %d / %d\n\n", bundle.ItemsUsed, bundle.TotalLength, budget)
				for i, item := range bundle.Items {
					fmt.Printf("[%d] %s (%s, score %.4f)\n%s\n\n",
						i+1, item.Source, item.CollectionID, item.RelevanceScore, item.Text)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&collections, "collection", "c", nil, "collection ids to search (all if omitted)")
	cmd.Flags().IntVarP(&budget, "budget", "b", 4000, "context budget in bytes")
	cmd.Flags().IntVarP(&topK, "top", "k", 0, "per-collection fan-out (default 20)")

	return cmd
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
