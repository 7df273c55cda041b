//nolint:testpackage // Testing unexported index internals requires same package access
package dedup

import (
	"math"
	"testing"
)

func TestSparseSimilarities_IdenticalTextScoresFull(t *testing.T) {
	texts := []string{
		"Huge pothole on Main Street. Deep pothole near the bus stop",
		"Streetlight flickering. The lamp outside house 12 keeps flickering",
	}

	sims := sparseSimilarities("Huge pothole on Main Street. Deep pothole near the bus stop", texts)

	if len(sims) != 2 {
		t.Fatalf("expected 2 similarities, got %d", len(sims))
	}
	if math.Abs(sims[0]-1.0) > 1e-9 {
		t.Errorf("expected similarity 1.0 for identical text, got %f", sims[0])
	}
	if sims[1] >= sims[0] {
		t.Errorf("expected unrelated text to score lower, got %f >= %f", sims[1], sims[0])
	}
}

func TestSparseSimilarities_NoSharedTokensIsZero(t *testing.T) {
	sims := sparseSimilarities("sewage overflow", []string{"broken bench plank"})

	if sims[0] != 0 {
		t.Errorf("expected similarity 0 for disjoint vocabularies, got %f", sims[0])
	}
}

func TestSparseSimilarities_EmptyInputs(t *testing.T) {
	if sims := sparseSimilarities("anything", nil); len(sims) != 0 {
		t.Errorf("expected no similarities for empty corpus, got %d", len(sims))
	}

	sims := sparseSimilarities("", []string{"pothole on road"})
	if sims[0] != 0 {
		t.Errorf("expected similarity 0 for empty query, got %f", sims[0])
	}
}

func TestSparseSimilarities_RareTokensWeighMore(t *testing.T) {
	// "pothole" appears in both docs, "sinkhole" only in the second. A query
	// containing both must land closer to the sinkhole doc.
	texts := []string{
		"pothole pothole on the road",
		"pothole sinkhole on the road",
	}

	sims := sparseSimilarities("sinkhole on the road", texts)

	if sims[1] <= sims[0] {
		t.Errorf("expected rare-token doc to score higher: got %f <= %f", sims[1], sims[0])
	}
}

func TestTokenize_SharesClassifierNormalization(t *testing.T) {
	tokens := tokenize("Énorme POTHOLE!!! (near café)")

	want := []string{"enorme", "pothole", "near", "cafe"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d: %v", len(want), len(tokens), tokens)
	}
	for i, tok := range want {
		if tokens[i] != tok {
			t.Errorf("token %d: expected %q, got %q", i, tok, tokens[i])
		}
	}
}

func TestDenseCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"dimension mismatch", []float64{1, 0}, []float64{1, 0, 0}, 0.0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0.0},
		{"empty", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := denseCosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}
