package analyzer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/domain/pipelineerr"
	"github.com/veridoc-ai/compliance-rag/internal/domain/ports"
)

type scriptedLLM struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (m *scriptedLLM) Complete(_ context.Context, prompt string, _ ports.CompletionOptions) (string, error) {
	m.prompts = append(m.prompts, prompt)
	i := m.calls
	m.calls++
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if i < len(m.responses) {
		return m.responses[i], err
	}
	return "", err
}

var testReq = entities.Requirement{
	ID:                 "password_management",
	ComplianceQuestion: "Must the contract require password rotation?",
	Rubric:             "FULLY COMPLIANT if ...",
	BM25Query:          []string{"password"},
}

var testEvidence = []entities.EvidenceChunk{
	{Chunk: entities.Chunk{ID: "doc:chunk_0", Text: "passwords rotate every 90 days", PageStart: 1, PageEnd: 1}, RelevanceScore: 1.0},
}

func TestAnalyze_ParsesValidJSONOnFirstAttempt(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"compliance_state":"Fully Compliant","confidence":90,"relevant_quotes":[{"text":"passwords rotate every 90 days","page_start":1,"page_end":1}],"rationale":"clear requirement"}`,
	}}
	a := New(llm, zap.NewNop())

	result, err := a.Analyze(context.Background(), testReq, testEvidence)
	require.NoError(t, err)
	assert.Equal(t, entities.FullyCompliant, result.ComplianceState)
	assert.Equal(t, 90, result.Confidence)
	require.Len(t, result.RelevantQuotes, 1)
	assert.Equal(t, 1, llm.calls)
}

func TestAnalyze_StripsSurroundingProseAndCodeFences(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"```json\n" + `{"compliance_state":"Non-Compliant","confidence":20,"relevant_quotes":[],"rationale":"no mention found"}` + "\n```\nHope this helps!",
	}}
	a := New(llm, zap.NewNop())

	result, err := a.Analyze(context.Background(), testReq, testEvidence)
	require.NoError(t, err)
	assert.Equal(t, entities.NonCompliant, result.ComplianceState)
}

func TestAnalyze_RetriesOnceWithRepairPromptThenSucceeds(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"this is not json at all",
		`{"compliance_state":"Partially Compliant","confidence":55,"relevant_quotes":[],"rationale":"partial match"}`,
	}}
	a := New(llm, zap.NewNop())

	result, err := a.Analyze(context.Background(), testReq, testEvidence)
	require.NoError(t, err)
	assert.Equal(t, entities.PartiallyCompliant, result.ComplianceState)
	assert.Equal(t, 2, llm.calls)
}

func TestAnalyze_FallsBackAfterRepairRetryAlsoFails(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"garbage 1",
		"garbage 2",
	}}
	a := New(llm, zap.NewNop())

	result, err := a.Analyze(context.Background(), testReq, testEvidence)
	require.NoError(t, err)
	assert.Equal(t, entities.NonCompliant, result.ComplianceState)
	assert.Equal(t, 10, result.Confidence)
	assert.Empty(t, result.RelevantQuotes)
	assert.Equal(t, fallbackRationale, result.Rationale)
}

func TestAnalyze_UnrecognizedComplianceStateTreatedAsParseFailure(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"compliance_state":"Maybe Compliant","confidence":50,"relevant_quotes":[],"rationale":"ambiguous"}`,
		`{"compliance_state":"Maybe Compliant","confidence":50,"relevant_quotes":[],"rationale":"still ambiguous"}`,
	}}
	a := New(llm, zap.NewNop())

	result, err := a.Analyze(context.Background(), testReq, testEvidence)
	require.NoError(t, err)
	assert.Equal(t, entities.NonCompliant, result.ComplianceState)
	assert.Equal(t, fallbackRationale, result.Rationale)
}

func TestAnalyze_ClampsOutOfRangeConfidence(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"compliance_state":"Fully Compliant","confidence":150,"relevant_quotes":[],"rationale":"overclaimed"}`,
	}}
	a := New(llm, zap.NewNop())

	result, err := a.Analyze(context.Background(), testReq, testEvidence)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Confidence)
}

func TestAnalyze_EvidenceChunksUsedComesFromSuppliedEvidenceNotModel(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"compliance_state":"Fully Compliant","confidence":80,"relevant_quotes":[],"rationale":"ok","evidence_chunks_used":["bogus"]}`,
	}}
	a := New(llm, zap.NewNop())

	result, err := a.Analyze(context.Background(), testReq, testEvidence)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc:chunk_0"}, result.EvidenceChunksUsed)
}

func TestAnalyze_PropagatesLLMErrorAsAnalyzerError(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("upstream unavailable")}}
	a := New(llm, zap.NewNop())

	_, err := a.Analyze(context.Background(), testReq, testEvidence)
	require.Error(t, err)
	assert.True(t, pipelineerr.IsStage(err, "analyze"))
}

func TestAnalyze_NoEvidencePromptsExplicitly(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"compliance_state":"Non-Compliant","confidence":10,"relevant_quotes":[],"rationale":"nothing found"}`,
	}}
	a := New(llm, zap.NewNop())

	_, err := a.Analyze(context.Background(), testReq, nil)
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[0], "No relevant evidence found in contract")
}

func TestExtractJSON_HandlesNoBraces(t *testing.T) {
	assert.Equal(t, "", extractJSON("no json here"))
}

func TestExtractJSON_HandlesReversedBraces(t *testing.T) {
	assert.Equal(t, "", extractJSON("} this is backwards {"))
}
