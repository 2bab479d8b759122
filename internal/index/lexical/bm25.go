// Package lexical implements a BM25-ranked inverted index over a
// session's chunk texts. An index is built whole from the current chunk
// set and never mutated; uploads rebuild it.
package lexical

import (
	"math"
	"sort"
)

const (
	k1 = 1.5
	b  = 0.75
)

type Hit struct {
	ChunkIndex int
	Score      float64
}

type posting struct {
	chunk int
	tf    int
}

type Index struct {
	postings map[string][]posting
	lengths  []int
	avgLen   float64
	n        int
}

// Build indexes texts in order; the slice index is the chunk's position
// and is used for stable tie-breaking at search time.
func Build(texts []string) *Index {
	ix := &Index{
		postings: make(map[string][]posting),
		lengths:  make([]int, len(texts)),
		n:        len(texts),
	}

	total := 0
	for i, text := range texts {
		tokens := tokenize(text)
		ix.lengths[i] = len(tokens)
		total += len(tokens)

		tf := make(map[string]int, len(tokens))
		order := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if _, seen := tf[tok]; !seen {
				order = append(order, tok)
			}
			tf[tok]++
		}
		for _, term := range order {
			ix.postings[term] = append(ix.postings[term], posting{chunk: i, tf: tf[term]})
		}
	}

	if ix.n > 0 {
		ix.avgLen = float64(total) / float64(ix.n)
	}

	return ix
}

func (ix *Index) Len() int {
	return ix.n
}

// Search scores chunks against the query with BM25 and returns up to k
// hits by descending score, ties broken by chunk position. Repeated
// calls over the same index and query yield the identical ordering.
func (ix *Index) Search(query string, k int) []Hit {
	if ix.n == 0 || k <= 0 {
		return nil
	}

	terms := tokenize(query)
	seen := make(map[string]bool, len(terms))
	scores := make(map[int]float64)

	for _, term := range terms {
		if seen[term] {
			continue
		}
		seen[term] = true

		plist, ok := ix.postings[term]
		if !ok {
			continue
		}

		df := float64(len(plist))
		idf := math.Log(1 + (float64(ix.n)-df+0.5)/(df+0.5))

		for _, p := range plist {
			tf := float64(p.tf)
			norm := 1 - b + b*float64(ix.lengths[p.chunk])/ix.avgLen
			scores[p.chunk] += idf * tf * (k1 + 1) / (tf + k1*norm)
		}
	}

	hits := make([]Hit, 0, len(scores))
	for chunk, score := range scores {
		hits = append(hits, Hit{ChunkIndex: chunk, Score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkIndex < hits[j].ChunkIndex
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
