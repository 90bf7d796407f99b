package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"corpus"
	"corpus/registry"
)

// ingestFile is the on-disk document batch format: a JSON array of
// {id, text, metadata} objects.
type ingestFile []struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest COLLECTION_ID DOCUMENTS_FILE",
		Short: "Ingest documents from a JSON file",
		Long: `Ingest documents into a collection. DOCUMENTS_FILE is a JSON array of
objects with "id", "text", and optional "metadata" fields. Re-ingesting a
document id replaces its previous chunks.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var batch ingestFile
			if err := json.Unmarshal(data, &batch); err != nil {
				return fmt.Errorf("parse %s: %w", args[1], err)
			}

			docs := make([]registry.Document, len(batch))
			for i, d := range batch {
				docs[i] = registry.Document{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
			}

			return withEngine(func(ctx context.Context, e *corpus.Engine) error {
				report, err := e.Ingest(ctx, args[0], docs)
				if report != nil {
					for _, o := range report.Outcomes {
						if o.Err != nil {
							fmt.Fprintf(os.Stderr, "FAILED %s: %v\n", o.DocumentID, o.Err)
						} else {
							fmt.Printf("ok %s (%d chunks)\n", o.DocumentID, o.Chunks)
						}
					}
				}
				if errors.Is(err, corpus.ErrPartialBatch) {
					fmt.Fprintf(os.Stderr, "%d of %d documents failed; re-run with just those ids\n",
						report.Failed(), len(report.Outcomes))
				}
				return err
			})
		},
	}
	return cmd
}
