// Package grounder implements ports.Grounder: deterministic verification
// that every quote an analyzer emitted is a verbatim excerpt of the
// evidence it was shown, plus the confidence-adjustment policy that
// penalizes results with hallucinated quotes. Grounded on original_source/
// backend/app/pipeline/quote_validator.py's QuoteValidator, adapted to an
// exact single-chunk/adjacent-pair/drop algorithm and confidence table that
// diverges deliberately from QuoteValidator's fall-back-to-first-chunk
// behavior: this implementation drops unmatched quotes outright rather than
// guessing a page range for them.
package grounder

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/util/normalize"
)

// minQuoteLength is the minimum normalized length a candidate quote must
// have to be considered for matching; shorter quotes are rejected as
// "empty".
const minQuoteLength = 10

// confidenceFloor is the lower bound applied when some (but not all)
// quotes are dropped during grounding.
const confidenceFloor = 20

// confidenceCeiling is the upper bound applied when every quote is
// dropped during grounding.
const confidenceCeiling = 30

// QuoteGrounder implements ports.Grounder.
type QuoteGrounder struct {
	log *zap.Logger
}

// New builds a QuoteGrounder. log may be nil, in which case a no-op logger
// is used.
func New(log *zap.Logger) *QuoteGrounder {
	if log == nil {
		log = zap.NewNop()
	}
	return &QuoteGrounder{log: log}
}

// Ground implements ports.Grounder. The input result is not mutated; a new
// ComplianceResult is returned with only validated quotes and an adjusted
// confidence (state is never changed by grounding).
func (g *QuoteGrounder) Ground(result *entities.ComplianceResult, evidence []entities.EvidenceChunk) *entities.ComplianceResult {
	out := *result
	if len(result.RelevantQuotes) == 0 {
		return &out
	}

	originalCount := len(result.RelevantQuotes)
	validated := make([]entities.Quote, 0, originalCount)

	for _, q := range result.RelevantQuotes {
		if v, ok := g.validateQuote(q, evidence); ok {
			validated = append(validated, v)
		} else {
			g.log.Warn("quote dropped during grounding", zap.String("prefix", truncate(q.Text, 30)))
		}
	}

	out.RelevantQuotes = validated
	out.Confidence, out.Rationale = adjustConfidence(result.Confidence, result.Rationale, originalCount, len(validated))
	return &out
}

// validateQuote implements the per-quote verification steps: reject quotes
// under the minimum length, then try a single-chunk substring match before
// falling back to an adjacent-page-pair match.
func (g *QuoteGrounder) validateQuote(q entities.Quote, evidence []entities.EvidenceChunk) (entities.Quote, bool) {
	normalizedQuote := normalize.Text(q.Text)
	if len(normalizedQuote) < minQuoteLength {
		return entities.Quote{}, false
	}

	// Step 2: single-chunk match, in retrieval order.
	for _, chunk := range evidence {
		if containsSubstring(chunk.NormalizedText, normalizedQuote) {
			pageStart, pageEnd := chunk.PageStart, chunk.PageEnd
			if chunk.PageStart == chunk.PageEnd {
				pageEnd = pageStart
			}
			return entities.Quote{Text: q.Text, PageStart: pageStart, PageEnd: pageEnd, Validated: true}, true
		}
	}

	// Step 3: adjacent-pair match — only pairs whose page ranges are
	// directly adjacent in the original document, not merely adjacent in
	// the evidence slice's retrieval order.
	for i := 0; i < len(evidence); i++ {
		for j := 0; j < len(evidence); j++ {
			if i == j {
				continue
			}
			a, bChunk := evidence[i], evidence[j]
			if a.PageEnd+1 != bChunk.PageStart {
				continue
			}
			combined := normalize.Text(a.Text) + " " + normalize.Text(bChunk.Text)
			if containsSubstring(combined, normalizedQuote) {
				return entities.Quote{Text: q.Text, PageStart: a.PageStart, PageEnd: bChunk.PageEnd, Validated: true}, true
			}
		}
	}

	// Step 4: unmatched, drop.
	return entities.Quote{}, false
}

func containsSubstring(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(haystack, needle)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// adjustConfidence applies the confidence-adjustment policy table.
// original and validated are the quote counts before and after grounding.
func adjustConfidence(confidence int, rationale string, original, validated int) (int, string) {
	removed := original - validated

	switch {
	case original == 0, removed == 0:
		return confidence, rationale
	case removed == original:
		c := confidence
		if c > confidenceCeiling {
			c = confidenceCeiling
		}
		return c, rationale + " No verifiable verbatim quotes found in retrieved evidence"
	default:
		penalty := removed * 10
		if penalty > confidenceFloor {
			penalty = confidenceFloor
		}
		c := confidence - penalty
		if c < confidenceFloor {
			c = confidenceFloor
		}
		return c, rationale + fmt.Sprintf(" [%d of %d quotes removed during validation]", removed, original)
	}
}
