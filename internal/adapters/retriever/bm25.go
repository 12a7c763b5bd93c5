// Package retriever implements ports.Retriever with Okapi BM25 scoring over
// a chunk corpus. Grounded on original_source/backend/app/pipeline/
// retriever.py's BM25Retriever, which builds rank_bm25.BM25Okapi once per
// document and reuses it across every requirement and chat message.
//
// No BM25 library appears anywhere in the example pack, and the ranking
// formula, its k1/b parameters, and its ascending-index tie-break are
// invariants the rest of the system's tests assume bit-for-bit — pulling in
// an unfamiliar third-party scorer risks silently deviating from them. This
// is the one stage implemented directly against the standard library
// (math only); see DESIGN.md for the full justification. The idf formula
// and its negative-idf epsilon floor follow rank_bm25.BM25Okapi exactly,
// since original_source is the disambiguating reference for this detail.
package retriever

import (
	"math"
	"sort"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/util/normalize"
)

// k1 and b are the fixed Okapi BM25 parameters. They are not
// configurable: the retrieval behavior they produce is part of the
// specification, not a tuning knob.
const (
	k1      = 1.5
	b       = 0.75
	epsilon = 0.25
)

// DefaultTopK is the number of evidence chunks returned per query.
const DefaultTopK = 5

// BM25Retriever scores a chunk corpus against a query using Okapi BM25.
// Stateless: a new index is built from the supplied chunks on every call.
// The usecase layer is responsible for reusing one BM25Retriever's Retrieve
// calls across all five requirements and chat turns over the same corpus.
type BM25Retriever struct{}

// New builds a BM25Retriever.
func New() *BM25Retriever {
	return &BM25Retriever{}
}

// Retrieve implements ports.Retriever. query is tokenized identically to
// the corpus.
func (r *BM25Retriever) Retrieve(query string, chunks []entities.Chunk, topK int) ([]entities.EvidenceChunk, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	docs := make([][]string, len(chunks))
	for i, c := range chunks {
		docs[i] = normalize.Tokenize(c.NormalizedText)
	}

	idx := buildIndex(docs)

	queryTerms := normalize.Tokenize(normalize.Text(query))
	scores := idx.score(queryTerms)

	type scored struct {
		chunkIdx int
		score    float64
	}
	ranked := make([]scored, len(chunks))
	for i, s := range scores {
		ranked[i] = scored{chunkIdx: i, score: s}
	}

	// Stable sort by score descending; equal scores keep ascending chunk
	// index order because sort.SliceStable preserves the original
	// (already ascending) relative order of ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	top := ranked[:topK]

	maxScore := 0.0
	for _, s := range top {
		if s.score > maxScore {
			maxScore = s.score
		}
	}

	evidence := make([]entities.EvidenceChunk, len(top))
	for i, s := range top {
		relevance := 0.0
		if maxScore > 0 {
			relevance = s.score / maxScore
		}
		evidence[i] = entities.EvidenceChunk{
			Chunk:          chunks[s.chunkIdx],
			RelevanceScore: relevance,
		}
	}

	return evidence, nil
}

// bm25Index holds the precomputed per-corpus statistics — term frequencies,
// document lengths, average document length, and a full-vocabulary idf
// table — needed to score a query against a chunk set. Retrieve builds a
// fresh index on every call, so these statistics are recomputed per query.
type bm25Index struct {
	docTermFreqs []map[string]int
	docLengths   []int
	avgDocLen    float64
	idf          map[string]float64
	n            int
}

func buildIndex(docs [][]string) *bm25Index {
	idx := &bm25Index{
		docTermFreqs: make([]map[string]int, len(docs)),
		docLengths:   make([]int, len(docs)),
		n:            len(docs),
	}

	docFreq := make(map[string]int)
	totalLen := 0
	for i, tokens := range docs {
		freqs := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freqs[t]++
		}
		idx.docTermFreqs[i] = freqs
		idx.docLengths[i] = len(tokens)
		totalLen += len(tokens)

		for t := range freqs {
			docFreq[t]++
		}
	}
	if idx.n > 0 {
		idx.avgDocLen = float64(totalLen) / float64(idx.n)
	}

	idx.idf = computeIDF(idx.n, docFreq)
	return idx
}

// computeIDF builds the corpus-wide idf table. Terms with a negative raw
// idf (very common terms, appearing in more than half the corpus) are
// floored to epsilon * average-idf rather than left negative, matching
// rank_bm25.BM25Okapi._calc_idf.
func computeIDF(n int, docFreq map[string]int) map[string]float64 {
	idf := make(map[string]float64, len(docFreq))
	if len(docFreq) == 0 {
		return idf
	}

	var idfSum float64
	var negative []string
	for term, df := range docFreq {
		v := math.Log(float64(n)-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idf[term] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, term)
		}
	}

	avgIDF := idfSum / float64(len(idf))
	floor := epsilon * avgIDF
	for _, term := range negative {
		idf[term] = floor
	}
	return idf
}

// score computes the BM25 score of every document in the index against the
// given query terms. Query terms absent from the corpus vocabulary
// contribute zero, matching rank_bm25.get_scores' `self.idf.get(q) or 0`.
func (idx *bm25Index) score(queryTerms []string) []float64 {
	scores := make([]float64, idx.n)
	if idx.avgDocLen == 0 {
		return scores
	}

	for d := 0; d < idx.n; d++ {
		docLen := float64(idx.docLengths[d])
		var total float64
		for _, term := range queryTerms {
			termIDF, known := idx.idf[term]
			if !known {
				continue
			}
			f := float64(idx.docTermFreqs[d][term])
			numerator := f * (k1 + 1)
			denominator := f + k1*(1-b+b*docLen/idx.avgDocLen)
			total += termIDF * (numerator / denominator)
		}
		scores[d] = total
	}
	return scores
}
