package dedup

import (
	"math"
	"strings"

	"github.com/civicgrid/triage/internal/classify"
)

// sparseVec maps token index to TF-IDF weight.
type sparseVec map[int]float64

// textIndex is a TF-IDF index over candidate report texts. It is the sparse
// fallback used when the embedding sidecar is unavailable: the corpus is tiny
// (the candidate set of one detection call), so the index is rebuilt per call.
type textIndex struct {
	vocab map[string]int
	idf   []float64
	docs  []sparseVec
}

// tokenize splits text into normalized tokens, sharing the classifier's
// normalization so "pothölé" and "pothole" land on the same token.
func tokenize(text string) []string {
	return strings.Fields(classify.NormalizeText(text))
}

// newTextIndex builds a TF-IDF index over texts.
func newTextIndex(texts []string) *textIndex {
	if len(texts) == 0 {
		return &textIndex{vocab: make(map[string]int)}
	}

	vocab := make(map[string]int)
	for _, text := range texts {
		for _, tok := range tokenize(text) {
			if _, ok := vocab[tok]; !ok {
				vocab[tok] = len(vocab)
			}
		}
	}

	df := make([]int, len(vocab))
	docs := make([]sparseVec, len(texts))
	n := float64(len(texts))

	for i, text := range texts {
		tf := make(map[int]int)
		for _, tok := range tokenize(text) {
			tf[vocab[tok]]++
		}
		vec := make(sparseVec, len(tf))
		for idx, count := range tf {
			vec[idx] = float64(count)
			df[idx]++
		}
		docs[i] = vec
	}

	idf := make([]float64, len(vocab))
	for i, d := range df {
		if d > 0 {
			idf[i] = math.Log(n/float64(d)) + 1.0
		}
	}

	for _, vec := range docs {
		for idx := range vec {
			vec[idx] *= idf[idx]
		}
	}

	return &textIndex{vocab: vocab, idf: idf, docs: docs}
}

// vectorize maps query text onto the index vocabulary. Tokens outside the
// vocabulary are dropped; they cannot contribute to any candidate's score.
func (ix *textIndex) vectorize(query string) sparseVec {
	tf := make(map[int]int)
	for _, tok := range tokenize(query) {
		if i, ok := ix.vocab[tok]; ok {
			tf[i]++
		}
	}
	vec := make(sparseVec, len(tf))
	for i, count := range tf {
		vec[i] = float64(count) * ix.idf[i]
	}
	return vec
}

// similarity returns the cosine similarity between a query vector and the
// indexed document doc.
func (ix *textIndex) similarity(query sparseVec, doc int) float64 {
	return sparseCosine(query, ix.docs[doc])
}

// sparseSimilarities scores query against every text using TF-IDF cosine.
func sparseSimilarities(query string, texts []string) []float64 {
	ix := newTextIndex(texts)
	qv := ix.vectorize(query)
	sims := make([]float64, len(texts))
	if len(qv) == 0 {
		return sims
	}
	for i := range texts {
		sims[i] = ix.similarity(qv, i)
	}
	return sims
}

func sparseCosine(a, b sparseVec) float64 {
	var dot, normA, normB float64
	for i, va := range a {
		if vb, ok := b[i]; ok {
			dot += va * vb
		}
		normA += va * va
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// denseCosine returns the cosine similarity between two dense vectors, or 0
// when the dimensions disagree.
func denseCosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
