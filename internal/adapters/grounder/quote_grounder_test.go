package grounder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/util/normalize"
)

func ev(id string, pageStart, pageEnd int, raw string) entities.EvidenceChunk {
	return entities.EvidenceChunk{
		Chunk: entities.Chunk{
			ID:             id,
			Text:           raw,
			NormalizedText: normalize.Text(raw),
			PageStart:      pageStart,
			PageEnd:        pageEnd,
		},
	}
}

func TestGround_NoQuotesIsNoOp(t *testing.T) {
	g := New(zap.NewNop())
	result := &entities.ComplianceResult{Confidence: 80, RelevantQuotes: nil}

	got := g.Ground(result, nil)
	assert.Equal(t, 80, got.Confidence)
	assert.Empty(t, got.RelevantQuotes)
}

func TestGround_SingleChunkMatchValidatesQuote(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 3, 3, "All passwords must be rotated every ninety days per policy."),
	}
	result := &entities.ComplianceResult{
		Confidence: 80,
		RelevantQuotes: []entities.Quote{
			{Text: "All passwords must be rotated every ninety days"},
		},
	}

	got := g.Ground(result, evidence)
	require.Len(t, got.RelevantQuotes, 1)
	assert.True(t, got.RelevantQuotes[0].Validated)
	assert.Equal(t, 3, got.RelevantQuotes[0].PageStart)
	assert.Equal(t, 3, got.RelevantQuotes[0].PageEnd)
	assert.Equal(t, 80, got.Confidence, "fully validated quotes leave confidence unchanged")
}

func TestGround_AdjacentPageMatchSpansTwoChunks(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 4, 4, "Encryption in transit shall use TLS version"),
		ev("doc:chunk_1", 5, 5, "1.2 or higher for all company data."),
	}
	result := &entities.ComplianceResult{
		Confidence: 70,
		RelevantQuotes: []entities.Quote{
			{Text: "TLS version 1.2 or higher for all company data"},
		},
	}

	got := g.Ground(result, evidence)
	require.Len(t, got.RelevantQuotes, 1)
	assert.True(t, got.RelevantQuotes[0].Validated)
	assert.Equal(t, 4, got.RelevantQuotes[0].PageStart)
	assert.Equal(t, 5, got.RelevantQuotes[0].PageEnd)
}

func TestGround_NonAdjacentPagesDoNotMatchAcrossChunks(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 2, 2, "Encryption in transit shall use TLS version"),
		ev("doc:chunk_1", 9, 9, "1.2 or higher for all company data."),
	}
	result := &entities.ComplianceResult{
		Confidence: 70,
		RelevantQuotes: []entities.Quote{
			{Text: "TLS version 1.2 or higher for all company data"},
		},
	}

	got := g.Ground(result, evidence)
	assert.Empty(t, got.RelevantQuotes)
}

func TestGround_HallucinatedQuoteIsDropped(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 1, 1, "Vendor shall maintain a password standard."),
	}
	result := &entities.ComplianceResult{
		Confidence: 90,
		RelevantQuotes: []entities.Quote{
			{Text: "Vendor guarantees unlimited liability for all damages"},
		},
	}

	got := g.Ground(result, evidence)
	assert.Empty(t, got.RelevantQuotes)
	assert.Equal(t, 30, got.Confidence)
	assert.Contains(t, got.Rationale, "No verifiable verbatim quotes found in retrieved evidence")
}

func TestGround_ShortQuoteRejectedAsEmpty(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 1, 1, "ok yes sure fine"),
	}
	result := &entities.ComplianceResult{
		Confidence: 50,
		RelevantQuotes: []entities.Quote{
			{Text: "ok yes"}, // normalizes to 6 chars, below the 10-char floor
		},
	}

	got := g.Ground(result, evidence)
	assert.Empty(t, got.RelevantQuotes)
}

func TestGround_PartialRemovalAppliesProportionalPenalty(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 1, 1, "Multi-factor authentication is required for all privileged access."),
	}
	result := &entities.ComplianceResult{
		Confidence: 90,
		Rationale:  "Strong evidence of compliance.",
		RelevantQuotes: []entities.Quote{
			{Text: "Multi-factor authentication is required for all privileged access"},
			{Text: "Vendor guarantees zero downtime for the service"},
		},
	}

	got := g.Ground(result, evidence)
	require.Len(t, got.RelevantQuotes, 1)
	// removed=1, penalty = min(20, 10*1) = 10 -> max(20, 90-10) = 80
	assert.Equal(t, 80, got.Confidence)
	assert.Contains(t, got.Rationale, "[1 of 2 quotes removed during validation]")
}

func TestGround_PartialRemovalFloorsAtTwenty(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 1, 1, "Passwords must meet minimum length requirements."),
	}
	result := &entities.ComplianceResult{
		Confidence: 25,
		RelevantQuotes: []entities.Quote{
			{Text: "Passwords must meet minimum length requirements"},
			{Text: "fabricated quote number one that does not exist"},
			{Text: "fabricated quote number two that does not exist"},
			{Text: "fabricated quote number three not present either"},
		},
	}

	got := g.Ground(result, evidence)
	require.Len(t, got.RelevantQuotes, 1)
	// removed=3, penalty = min(20, 30) = 20 -> max(20, 25-20) = 20
	assert.Equal(t, 20, got.Confidence)
}

func TestGround_ValidatedQuoteSoundness(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 1, 1, "The vendor shall encrypt all data in transit using TLS 1.2 or higher."),
	}
	result := &entities.ComplianceResult{
		Confidence: 60,
		RelevantQuotes: []entities.Quote{
			{Text: "encrypt all data in transit using TLS 1.2 or higher"},
		},
	}

	got := g.Ground(result, evidence)
	require.Len(t, got.RelevantQuotes, 1)
	q := got.RelevantQuotes[0]
	assert.True(t, q.Validated)
	// Soundness: normalized quote is a substring of the evidence chunk's
	// normalized text.
	assert.Contains(t, evidence[0].NormalizedText, normalize.Text(q.Text))
}

func TestGround_StateNeverChanged(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 1, 1, "unrelated text with nothing relevant at all here"),
	}
	result := &entities.ComplianceResult{
		ComplianceState: entities.FullyCompliant,
		Confidence:      90,
		RelevantQuotes: []entities.Quote{
			{Text: "this quote will not be found anywhere in evidence"},
		},
	}

	got := g.Ground(result, evidence)
	assert.Equal(t, entities.FullyCompliant, got.ComplianceState)
}

func TestGround_DoesNotMutateInputResult(t *testing.T) {
	g := New(zap.NewNop())
	evidence := []entities.EvidenceChunk{
		ev("doc:chunk_0", 1, 1, "passwords must be rotated every ninety days without fail"),
	}
	original := &entities.ComplianceResult{
		Confidence: 90,
		RelevantQuotes: []entities.Quote{
			{Text: "passwords must be rotated every ninety days"},
			{Text: "fabricated and not present in evidence at all"},
		},
	}
	originalQuoteCount := len(original.RelevantQuotes)

	_ = g.Ground(original, evidence)

	assert.Len(t, original.RelevantQuotes, originalQuoteCount, "Ground must not mutate the caller's result")
}
