// Package entities contains the core business objects of the compliance
// pipeline. Clean Architecture: pure domain objects, no knowledge of PDF
// parsing, BM25, HTTP, or the LLM wire format.
package entities

import (
	"strings"
	"time"
)

// ComplianceState is the three-valued compliance verdict for a requirement.
type ComplianceState string

const (
	FullyCompliant    ComplianceState = "Fully Compliant"
	PartiallyCompliant ComplianceState = "Partially Compliant"
	NonCompliant      ComplianceState = "Non-Compliant"
)

// Valid reports whether s is one of the three recognized compliance states.
func (s ComplianceState) Valid() bool {
	switch s {
	case FullyCompliant, PartiallyCompliant, NonCompliant:
		return true
	}
	return false
}

// ParseComplianceState coerces a model-emitted string into a ComplianceState,
// matching case-insensitively with surrounding whitespace trimmed. The bool
// return is false when the input does not match any of the three states.
func ParseComplianceState(s string) (ComplianceState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fully compliant":
		return FullyCompliant, true
	case "partially compliant":
		return PartiallyCompliant, true
	case "non-compliant":
		return NonCompliant, true
	default:
		return NonCompliant, false
	}
}

// Document is the canonical parsed representation of an uploaded PDF.
// Immutable once parsed: the pipeline never mutates a Document's pages.
type Document struct {
	ID        string
	Filename  string
	PageCount int
	Pages     []Page
	// Metadata carries at least "parser_used", "needs_ocr", "avg_chars_per_page".
	Metadata  map[string]any
	CreatedAt time.Time
}

// FullText returns the raw text of all pages joined with "\n\n" for human
// reading. This is a display concatenation only: pages tile exactly in the
// CharOffsetStart/CharOffsetEnd coordinate space (no gap reserved for the
// separator), so FullText's length does not match CharOffsetEnd of the last
// page.
func (d *Document) FullText() string {
	var out []byte
	for i, p := range d.Pages {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, p.RawText...)
	}
	return string(out)
}

// Page is a single 1-indexed page of extracted text with provenance.
type Page struct {
	PageNumber      int
	RawText         string
	NormalizedText  string
	CharOffsetStart int // inclusive, within the concatenated-document space
	CharOffsetEnd   int // exclusive
	WordCount       int
}

// Chunk is a contiguous, page-attributed, addressable unit of document text.
type Chunk struct {
	ID             string // "<doc_id>:chunk_<n>"
	Text           string
	NormalizedText string
	PageStart      int
	PageEnd        int
	CharStart      int
	CharEnd        int
}

// EvidenceChunk is a Chunk retrieved for a specific requirement (or chat
// query) with its BM25 relevance score attached.
type EvidenceChunk struct {
	Chunk
	RelevanceScore float64
	RequirementID  string
}

// Quote is a verbatim supporting excerpt with page provenance.
type Quote struct {
	Text      string `json:"text"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
	Validated bool   `json:"validated"`
}

// ComplianceResult is the structured judgment produced for one requirement.
type ComplianceResult struct {
	ComplianceQuestion string          `json:"compliance_question"`
	ComplianceState    ComplianceState `json:"compliance_state"`
	Confidence         int             `json:"confidence"`
	RelevantQuotes     []Quote         `json:"relevant_quotes"`
	Rationale          string          `json:"rationale"`
	EvidenceChunksUsed []string        `json:"evidence_chunks_used"`
}

// Clamp brings Confidence into [0,100]. Called by the analyzer on the
// model-reported confidence.
func (r *ComplianceResult) Clamp() {
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 100 {
		r.Confidence = 100
	}
}

// fallbackConfidence and fallbackRationale are the fixed Non-Compliant
// judgment emitted whenever a requirement cannot be analyzed at all
// (malformed LLM output that survives a repair retry, or the analyzer/
// retriever stage erroring outright) — never escapes to the caller as an
// error, so the job still completes with a result for every requirement.
const (
	fallbackConfidence = 10
	fallbackRationale  = "Model output could not be parsed"
)

// FallbackComplianceResult synthesizes the result used in place of a
// requirement's judgment when that requirement could not be analyzed.
func FallbackComplianceResult(req Requirement) *ComplianceResult {
	return &ComplianceResult{
		ComplianceQuestion: req.ComplianceQuestion,
		ComplianceState:    NonCompliant,
		Confidence:         fallbackConfidence,
		Rationale:          fallbackRationale,
	}
}

// Requirement is one frozen entry of the five-requirement compliance
// catalog: its question, grading rubric, and curated BM25 query keywords.
type Requirement struct {
	ID               string
	ComplianceQuestion string
	Rubric           string
	BM25Query        []string
}

// JobStatus is the lifecycle state of an analysis job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job tracks one run_analysis invocation end to end: the parsed document,
// its chunks (reused by chat), the five results, and timing/telemetry.
// Supplements the distillation-dropped orchestration record from
// original_source/backend/app/core/schemas.py::Job.
type Job struct {
	ID           string
	Status       JobStatus
	Progress     int
	Stage        string
	Filename     string
	FileSizeBytes int64
	Document     *Document
	Chunks       []Chunk
	Results      []ComplianceResult
	TimingsMS    map[string]int64
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  time.Time
}

// UpdateProgress clamps progress to [0,100] and optionally updates the
// current stage label.
func (j *Job) UpdateProgress(progress int, stage string) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
	if stage != "" {
		j.Stage = stage
	}
	j.UpdatedAt = time.Now()
}

// MarkCompleted transitions the job to JobCompleted at 100% progress.
func (j *Job) MarkCompleted() {
	j.Status = JobCompleted
	j.Progress = 100
	j.UpdatedAt = time.Now()
	j.CompletedAt = time.Now()
}

// MarkFailed transitions the job to JobFailed with a safe, generic message.
func (j *Job) MarkFailed(msg string) {
	j.Status = JobFailed
	j.ErrorMessage = msg
	j.UpdatedAt = time.Now()
}

// ChatRole distinguishes user and assistant turns in a chat session.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is a single turn in a ChatSession's history.
type ChatMessage struct {
	Role      ChatRole
	Content   string
	CreatedAt time.Time
}

// ChatSession is a session-scoped, append-only message history bound to one
// completed document/job.
type ChatSession struct {
	ID         string
	DocumentID string
	Messages   []ChatMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Append adds a message to the session's history. Sessions are append-only;
// callers never rewrite or delete prior messages.
func (s *ChatSession) Append(role ChatRole, content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: role, Content: content, CreatedAt: time.Now()})
	s.UpdatedAt = time.Now()
}

// LastN returns (a copy of) the last n messages in the session, or fewer if
// the session is shorter. Used to bound the chat prompt's context window.
func (s *ChatSession) LastN(n int) []ChatMessage {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if n > len(s.Messages) {
		n = len(s.Messages)
	}
	out := make([]ChatMessage, n)
	copy(out, s.Messages[len(s.Messages)-n:])
	return out
}

// ChatAnswer is the result of answering one user message: a natural-language
// answer, its grounded supporting quotes, and a 0-100 confidence score.
type ChatAnswer struct {
	Answer         string
	RelevantQuotes []Quote
	Confidence     int
}
