package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
)

// unitVec returns a 2-dimensional unit vector at the given angle, so cosine
// distance against the reference query (1, 0) is exactly 1-cos(theta).
func unitVec(theta float64) []float32 {
	return []float32{float32(math.Cos(theta)), float32(math.Sin(theta))}
}

var queryVec = unitVec(0)

func mustCreate(t *testing.T, s VectorStore, id string) {
	t.Helper()
	if err := s.Create(context.Background(), id, map[string]any{"name": id}); err != nil {
		t.Fatalf("Create(%q): %v", id, err)
	}
}

func mustAdd(t *testing.T, s VectorStore, id string, chunks ...DocumentChunk) {
	t.Helper()
	if err := s.Add(context.Background(), id, chunks); err != nil {
		t.Fatalf("Add(%q): %v", id, err)
	}
}

func chunk(id string, vec []float32) DocumentChunk {
	return DocumentChunk{
		ID:               id,
		Text:             "text-" + id,
		Embedding:        vec,
		SourceDocumentID: "doc-" + id,
	}
}

// testOrdering verifies results come back in ascending distance order with
// ties broken by insertion order.
func testOrdering(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "order")

	// Inserted B before C, but C is closer to the query.
	mustAdd(t, s, "order",
		chunk("a", unitVec(0.1)),
		chunk("b", unitVec(0.9)),
		chunk("c", unitVec(0.4)),
	)

	results, err := s.Search(ctx, "order", queryVec, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"a", "c", "b"}
	if len(results) != len(want) {
		t.Fatalf("got %d results, want %d", len(results), len(want))
	}
	for i, w := range want {
		if results[i].ChunkID != w {
			t.Errorf("result[%d] = %q, want %q", i, results[i].ChunkID, w)
		}
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Errorf("distance not ascending at %d: %v < %v", i, results[i].Distance, results[i-1].Distance)
		}
	}
}

// testTieBreak verifies equidistant chunks keep insertion order.
func testTieBreak(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "ties")

	same := unitVec(0.5)
	mustAdd(t, s, "ties",
		chunk("first", same),
		chunk("second", same),
		chunk("third", same),
	)

	results, err := s.Search(ctx, "ties", queryVec, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if results[i].ChunkID != w {
			t.Errorf("result[%d] = %q, want %q", i, results[i].ChunkID, w)
		}
	}
}

// testOverwrite verifies that adding a chunk with an existing id replaces
// the old vector without duplicating the entry or disturbing its rank
// position relative to equally distant peers.
func testOverwrite(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "upsert")

	mustAdd(t, s, "upsert",
		chunk("x", unitVec(1.2)),
		chunk("y", unitVec(0.3)),
	)
	// Rewrite x with a near-zero angle; it should now rank first.
	updated := chunk("x", unitVec(0.01))
	updated.Text = "updated"
	mustAdd(t, s, "upsert", updated)

	results, err := s.Search(ctx, "upsert", queryVec, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results after overwrite, want 2", len(results))
	}
	if results[0].ChunkID != "x" || results[0].Text != "updated" {
		t.Errorf("result[0] = %q/%q, want x/updated", results[0].ChunkID, results[0].Text)
	}

	stats, err := s.Stats(ctx, "upsert")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d after overwrite, want 2", stats.ChunkCount)
	}
}

// testEmptyAndMissing covers searching empty collections and unknown ids.
func testEmptyAndMissing(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "empty")

	results, err := s.Search(ctx, "empty", queryVec, 5)
	if err != nil {
		t.Fatalf("Search on empty collection: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("empty collection search = %#v, want empty non-nil slice", results)
	}

	_, err = s.Search(ctx, "no-such-collection", queryVec, 5)
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Search on missing collection: err = %v, want ErrCollectionNotFound", err)
	}
	err = s.Add(ctx, "no-such-collection", []DocumentChunk{chunk("a", queryVec)})
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Add to missing collection: err = %v, want ErrCollectionNotFound", err)
	}
	_, err = s.Stats(ctx, "no-such-collection")
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("Stats on missing collection: err = %v, want ErrCollectionNotFound", err)
	}
}

// testTopK verifies truncation and the zero/negative topK edge.
func testTopK(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "topk")
	for i := 0; i < 5; i++ {
		mustAdd(t, s, "topk", chunk(fmt.Sprintf("c%d", i), unitVec(float64(i)*0.2)))
	}

	results, err := s.Search(ctx, "topk", queryVec, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("topK=2 returned %d results", len(results))
	}

	results, err = s.Search(ctx, "topk", queryVec, 0)
	if err != nil {
		t.Fatalf("Search topK=0: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("topK=0 returned %d results, want 0", len(results))
	}
}

// testRemoveDocument verifies per-source-document removal.
func testRemoveDocument(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "docs")

	a1 := chunk("a1", unitVec(0.1))
	a1.SourceDocumentID = "alpha"
	a2 := chunk("a2", unitVec(0.2))
	a2.SourceDocumentID = "alpha"
	b1 := chunk("b1", unitVec(0.3))
	b1.SourceDocumentID = "beta"
	mustAdd(t, s, "docs", a1, a2, b1)

	if err := s.RemoveDocument(ctx, "docs", "alpha"); err != nil {
		t.Fatalf("RemoveDocument: %v", err)
	}
	results, err := s.Search(ctx, "docs", queryVec, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ChunkID != "b1" {
		t.Errorf("after RemoveDocument got %v, want only b1", results)
	}

	stats, err := s.Stats(ctx, "docs")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.SourceDocumentCount != 1 {
		t.Errorf("SourceDocumentCount = %d, want 1", stats.SourceDocumentCount)
	}
}

// testDeleteAndList verifies collection lifecycle and enumeration.
func testDeleteAndList(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "keep")
	mustCreate(t, s, "drop")

	if err := s.Delete(ctx, "drop"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Deleting again, or deleting an unknown id, is a no-op.
	if err := s.Delete(ctx, "drop"); err != nil {
		t.Errorf("Delete twice: %v", err)
	}
	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Delete unknown: %v", err)
	}

	records, err := s.Collections(ctx)
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	seen := map[string]bool{}
	for _, rec := range records {
		seen[rec.ID] = true
	}
	if !seen["keep"] {
		t.Error("Collections missing surviving collection")
	}
	if seen["drop"] {
		t.Error("Collections still lists deleted collection")
	}
}

// testMetadataRoundTrip verifies chunk metadata survives storage.
func testMetadataRoundTrip(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "meta")

	c := chunk("m1", unitVec(0.1))
	c.Metadata = map[string]any{"lang": "en", "page": float64(7)}
	mustAdd(t, s, "meta", c)

	results, err := s.Search(ctx, "meta", queryVec, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Metadata["lang"] != "en" {
		t.Errorf("metadata lang = %v, want en", results[0].Metadata["lang"])
	}
	if results[0].Metadata["page"] != float64(7) {
		t.Errorf("metadata page = %v, want 7", results[0].Metadata["page"])
	}
}

// testConcurrentSearch runs searches in parallel with ongoing adds.
func testConcurrentSearch(t *testing.T, s VectorStore) {
	ctx := context.Background()
	mustCreate(t, s, "conc")
	mustAdd(t, s, "conc", chunk("seed", unitVec(0.2)))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				id := fmt.Sprintf("w%d-%d", n, j)
				if err := s.Add(ctx, "conc", []DocumentChunk{chunk(id, unitVec(0.5))}); err != nil {
					t.Errorf("concurrent Add: %v", err)
					return
				}
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := s.Search(ctx, "conc", queryVec, 5); err != nil {
					t.Errorf("concurrent Search: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

// runStoreSuite exercises the shared backend contract.
func runStoreSuite(t *testing.T, open func(t *testing.T) VectorStore) {
	cases := []struct {
		name string
		fn   func(*testing.T, VectorStore)
	}{
		{"Ordering", testOrdering},
		{"TieBreak", testTieBreak},
		{"Overwrite", testOverwrite},
		{"EmptyAndMissing", testEmptyAndMissing},
		{"TopK", testTopK},
		{"RemoveDocument", testRemoveDocument},
		{"DeleteAndList", testDeleteAndList},
		{"MetadataRoundTrip", testMetadataRoundTrip},
		{"ConcurrentSearch", testConcurrentSearch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			tc.fn(t, s)
		})
	}
}

func TestChunkID(t *testing.T) {
	if got := ChunkID("doc-1", 3); got != "doc-1#3" {
		t.Errorf("ChunkID = %q, want doc-1#3", got)
	}
}
