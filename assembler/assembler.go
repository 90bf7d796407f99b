// Package assembler turns a query into a budget-bounded context bundle:
// embed the query, fan out across collections, merge and rank the results,
// then greedily pack them into the caller's size budget.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"corpus/cache"
	"corpus/registry"
	"corpus/store"
)

// defaultTopK is the per-collection fan-out width.
const defaultTopK = 20

// Options tunes a single Assemble call. Nil CollectionIDs targets every
// registered collection. BudgetChars is measured in bytes of UTF-8 text.
type Options struct {
	CollectionIDs []string
	BudgetChars   int
	Filter        Filter
	TopK          int
}

// ContextItem is one chunk selected into a bundle. RelevanceScore is
// 1-distance, so higher is better.
type ContextItem struct {
	Text           string
	Source         string
	CollectionID   string
	RelevanceScore float64
}

// CollectionFailure records a collection that contributed no results.
type CollectionFailure struct {
	CollectionID string
	Err          error
}

// Bundle is the assembled context. TotalLength never exceeds the requested
// budget.
type Bundle struct {
	Query       string
	Items       []ContextItem
	TotalLength int
	ItemsUsed   int
	Failed      []CollectionFailure
}

// Assembler orchestrates the read path over a shared embedder, store, and
// registry.
type Assembler struct {
	embedder *cache.Embedder
	store    store.VectorStore
	registry *registry.Registry
}

// New builds an Assembler.
func New(e *cache.Embedder, s store.VectorStore, r *registry.Registry) *Assembler {
	return &Assembler{embedder: e, store: s, registry: r}
}

// Assemble embeds the query, searches the target collections, filters and
// ranks the merged results, and packs them greedily into the budget: an item
// that does not fit is skipped, not a stopping point, since a later shorter
// item may still fit.
//
// An unknown collection id degrades to zero results for that collection and
// is reported in Bundle.Failed. Only when every target collection fails does
// Assemble return an error alongside the empty bundle.
func (a *Assembler) Assemble(ctx context.Context, query string, opts Options) (*Bundle, error) {
	if err := opts.Filter.validate(); err != nil {
		return nil, err
	}

	bundle := &Bundle{Query: query}

	queryVec, err := a.embedQuery(ctx, query)
	if err != nil {
		return bundle, fmt.Errorf("assembler: embed query: %w", err)
	}

	targets := a.targets(ctx, opts.CollectionIDs)
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	var candidates []store.SearchResult
	for _, id := range targets {
		results, err := a.store.Search(ctx, id, queryVec, topK)
		if err != nil {
			bundle.Failed = append(bundle.Failed, CollectionFailure{CollectionID: id, Err: err})
			continue
		}
		candidates = append(candidates, results...)
	}
	if len(targets) > 0 && len(bundle.Failed) == len(targets) {
		return bundle, fmt.Errorf("assembler: all collections failed: %w", bundle.Failed[0].Err)
	}

	if opts.Filter != nil {
		kept := candidates[:0]
		for _, r := range candidates {
			if opts.Filter.allow(r.Metadata) {
				kept = append(kept, r)
			}
		}
		candidates = kept
	}

	// Stable sort keeps per-collection insertion order across ties.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	for _, r := range candidates {
		if bundle.TotalLength+len(r.Text) > opts.BudgetChars {
			continue
		}
		bundle.Items = append(bundle.Items, ContextItem{
			Text:           r.Text,
			Source:         r.ChunkID,
			CollectionID:   r.CollectionID,
			RelevanceScore: 1 - r.Distance,
		})
		bundle.TotalLength += len(r.Text)
	}
	bundle.ItemsUsed = len(bundle.Items)
	return bundle, nil
}

// Search is the raw query surface: per-collection results, unmerged, for
// callers that rank or post-process on their own. Failed collections appear
// in the failure list with an empty result slice.
func (a *Assembler) Search(ctx context.Context, query string, collectionIDs []string, topK int) (map[string][]store.SearchResult, []CollectionFailure, error) {
	queryVec, err := a.embedQuery(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("assembler: embed query: %w", err)
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	out := make(map[string][]store.SearchResult)
	var failed []CollectionFailure
	for _, id := range a.targets(ctx, collectionIDs) {
		results, err := a.store.Search(ctx, id, queryVec, topK)
		if err != nil {
			failed = append(failed, CollectionFailure{CollectionID: id, Err: err})
			out[id] = []store.SearchResult{}
			continue
		}
		out[id] = results
	}
	return out, failed, nil
}

func (a *Assembler) embedQuery(ctx context.Context, query string) ([]float32, error) {
	results, err := a.embedder.Results(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, errors.New("provider returned wrong result count for query")
	}
	return results[0].Vector, nil
}

// targets resolves the collections to search: the caller's explicit list in
// its given order, or every registered collection in sorted id order so the
// merge stays deterministic.
func (a *Assembler) targets(ctx context.Context, explicit []string) []string {
	if explicit != nil {
		return explicit
	}
	summaries := a.registry.List(ctx)
	ids := make([]string, 0, len(summaries))
	for _, sum := range summaries {
		ids = append(ids, sum.ID)
	}
	sort.Strings(ids)
	return ids
}
