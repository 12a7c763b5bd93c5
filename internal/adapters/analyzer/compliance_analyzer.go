// Package analyzer implements ports.Analyzer: it builds an evidence-only
// prompt for one compliance requirement, calls the LLM, and parses the
// response into a ComplianceResult. Grounded on original_source/backend/
// app/pipeline/compliance_analyzer.py's ComplianceAnalyzer (prompt
// structure, one-shot JSON repair retry, fallback result).
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/domain/pipelineerr"
	"github.com/veridoc-ai/compliance-rag/internal/domain/ports"
)

// analysisTemperature is the fixed sampling temperature for compliance
// judgments: low enough to keep output consistent across runs.
const analysisTemperature = 0.3

// repairTemperature is used for the single JSON-repair retry.
const repairTemperature = 0.1

// fallbackRationale is emitted when both the initial response and the
// repair retry fail to parse as valid JSON.
const fallbackRationale = "Model output could not be parsed"

// llmResponse mirrors the JSON schema the prompt instructs the model to
// emit.
type llmResponse struct {
	ComplianceState string       `json:"compliance_state"`
	Confidence      int          `json:"confidence"`
	RelevantQuotes  []quoteField `json:"relevant_quotes"`
	Rationale       string       `json:"rationale"`
}

type quoteField struct {
	Text      string `json:"text"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
}

// ComplianceAnalyzer implements ports.Analyzer.
type ComplianceAnalyzer struct {
	llm ports.LLMClient
	log *zap.Logger
}

// New builds a ComplianceAnalyzer. log may be nil, in which case a no-op
// logger is used.
func New(llm ports.LLMClient, log *zap.Logger) *ComplianceAnalyzer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ComplianceAnalyzer{llm: llm, log: log}
}

// Analyze implements ports.Analyzer.
func (a *ComplianceAnalyzer) Analyze(ctx context.Context, req entities.Requirement, evidence []entities.EvidenceChunk) (*entities.ComplianceResult, error) {
	prompt := buildPrompt(req, evidence)

	a.log.Info("analyzing requirement", zap.String("requirement_id", req.ID))

	raw, err := a.llm.Complete(ctx, prompt, ports.CompletionOptions{
		Temperature: analysisTemperature,
		JSONMode:    true,
	})
	if err != nil {
		return nil, pipelineerr.AnalyzerError(fmt.Errorf("requirement %s: %w", req.ID, err))
	}

	if parsed, ok := parseResponse(raw); ok {
		return finalize(req, evidence, parsed), nil
	}

	a.log.Warn("initial JSON parse failed, retrying with repair prompt", zap.String("requirement_id", req.ID))

	repaired, err := a.llm.Complete(ctx, repairPrompt(raw), ports.CompletionOptions{
		Temperature: repairTemperature,
		JSONMode:    true,
	})
	if err == nil {
		if parsed, ok := parseResponse(repaired); ok {
			return finalize(req, evidence, parsed), nil
		}
	} else {
		a.log.Warn("repair prompt call failed", zap.String("requirement_id", req.ID), zap.Error(err))
	}

	a.log.Error("JSON parsing failed after repair retry, returning fallback result", zap.String("requirement_id", req.ID))
	return fallbackResult(req), nil
}

// buildPrompt assembles the evidence-only analysis prompt.
func buildPrompt(req entities.Requirement, evidence []entities.EvidenceChunk) string {
	var b strings.Builder
	b.WriteString("You are a contract compliance analyst. Analyze the following contract evidence and determine compliance.\n\n")
	b.WriteString("REQUIREMENT:\n")
	b.WriteString(req.ComplianceQuestion)
	b.WriteString("\n\nRUBRIC:\n")
	b.WriteString(req.Rubric)
	b.WriteString("\n\nEVIDENCE (from contract):\n")
	b.WriteString(formatEvidence(evidence))
	b.WriteString("\n\nTASK:\nBased ONLY on the evidence provided above, determine the compliance state and provide your analysis.\n\n")
	b.WriteString("OUTPUT FORMAT (JSON only, no other text):\n")
	b.WriteString(jsonSchemaBlock())
	b.WriteString("\n\nIMPORTANT:\n")
	b.WriteString("- compliance_state must be EXACTLY one of: \"Fully Compliant\", \"Partially Compliant\", \"Non-Compliant\"\n")
	b.WriteString("- Include only verbatim quotes from the evidence above\n")
	b.WriteString("- Reference page numbers from evidence labels\n")
	b.WriteString("- Return ONLY valid JSON, no additional text\n\nJSON:")
	return b.String()
}

func jsonSchemaBlock() string {
	return `{
  "compliance_state": "Fully Compliant" | "Partially Compliant" | "Non-Compliant",
  "confidence": <integer 0-100>,
  "relevant_quotes": [
    {"text": "exact quote from evidence", "page_start": <page_num>, "page_end": <page_num>}
  ],
  "rationale": "Brief explanation of determination based on evidence"
}`
}

// formatEvidence prefixes each evidence chunk with a page-range label, as
// the analysis prompt instructs the model to cite.
func formatEvidence(evidence []entities.EvidenceChunk) string {
	if len(evidence) == 0 {
		return "[No relevant evidence found in contract]"
	}
	parts := make([]string, 0, len(evidence))
	for i, chunk := range evidence {
		pageRef := fmt.Sprintf("[Pages %d", chunk.PageStart)
		if chunk.PageEnd != chunk.PageStart {
			pageRef += fmt.Sprintf("-%d", chunk.PageEnd)
		}
		pageRef += "]"
		parts = append(parts, fmt.Sprintf("Evidence %d %s:\n%s", i+1, pageRef, chunk.Text))
	}
	return strings.Join(parts, "\n\n")
}

// repairPrompt builds the single JSON-repair retry prompt, quoting back a
// truncated copy of the offending output.
func repairPrompt(invalid string) string {
	truncated := invalid
	if len(truncated) > 500 {
		truncated = truncated[:500]
	}
	return fmt.Sprintf(`The previous response was not valid JSON. Please fix it.

REQUIRED FORMAT:
%s

PREVIOUS OUTPUT (invalid):
%s

Return ONLY valid JSON with the correct format:`, jsonSchemaBlock(), truncated)
}

// parseResponse extracts and decodes the model's JSON object, stripping
// code fences and any surrounding prose.
func parseResponse(response string) (llmResponse, bool) {
	var out llmResponse
	jsonStr := extractJSON(response)
	if jsonStr == "" {
		return out, false
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return out, false
	}
	if _, ok := entities.ParseComplianceState(out.ComplianceState); !ok {
		return out, false
	}
	return out, true
}

// extractJSON returns the substring spanning the first '{' and the last
// '}' in response, stripping any code-fence or prose wrapper the model
// added around the JSON object.
func extractJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return response[start : end+1]
}

// finalize converts a successfully parsed llmResponse into a
// ComplianceResult, coercing state, clamping confidence, and setting
// evidence_chunks_used from the supplied evidence rather than trusting the
// model to report it.
func finalize(req entities.Requirement, evidence []entities.EvidenceChunk, parsed llmResponse) *entities.ComplianceResult {
	state, _ := entities.ParseComplianceState(parsed.ComplianceState)

	quotes := make([]entities.Quote, 0, len(parsed.RelevantQuotes))
	for _, q := range parsed.RelevantQuotes {
		quotes = append(quotes, entities.Quote{
			Text:      q.Text,
			PageStart: q.PageStart,
			PageEnd:   q.PageEnd,
		})
	}

	used := make([]string, 0, len(evidence))
	for _, e := range evidence {
		used = append(used, e.ID)
	}

	result := &entities.ComplianceResult{
		ComplianceQuestion: req.ComplianceQuestion,
		ComplianceState:    state,
		Confidence:         parsed.Confidence,
		RelevantQuotes:     quotes,
		Rationale:          parsed.Rationale,
		EvidenceChunksUsed: used,
	}
	result.Clamp()
	return result
}

// fallbackResult synthesizes the result emitted when both the initial
// response and the repair retry fail to parse.
func fallbackResult(req entities.Requirement) *entities.ComplianceResult {
	return &entities.ComplianceResult{
		ComplianceQuestion: req.ComplianceQuestion,
		ComplianceState:    entities.NonCompliant,
		Confidence:         10,
		RelevantQuotes:     nil,
		Rationale:          fallbackRationale,
	}
}
