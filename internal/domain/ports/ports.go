// Package ports defines the interfaces between the pipeline usecases and
// the adapters that implement each stage's contract. Clean Architecture:
// usecases depend on these abstractions, never on concrete adapters.
// Grounded on 0xcro3dile-localrag-go's internal/domain/ports/ports.go and on
// original_source/backend/app/pipeline/interfaces.py's IParser/IChunker/
// IRetriever/IComplianceAnalyzer/IQuoteValidator ABCs.
package ports

import (
	"context"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
)

// Parser extracts per-page text with provenance from PDF bytes.
type Parser interface {
	Parse(ctx context.Context, pdfBytes []byte, filename string) (*entities.Document, error)
}

// Chunker splits a parsed document into addressable, page-attributed chunks.
type Chunker interface {
	Chunk(doc *entities.Document) ([]entities.Chunk, error)
}

// Retriever scores a chunk corpus against a query and returns the top-K
// evidence chunks. The chunk corpus is passed on every call; the BM25
// implementation rebuilds its index from it each time rather than keeping
// one index per document.
type Retriever interface {
	Retrieve(query string, chunks []entities.Chunk, topK int) ([]entities.EvidenceChunk, error)
}

// Analyzer issues an LLM prompt over evidence only and returns a raw
// (not yet grounded) ComplianceResult.
type Analyzer interface {
	Analyze(ctx context.Context, req entities.Requirement, evidence []entities.EvidenceChunk) (*entities.ComplianceResult, error)
}

// Grounder verifies every quote in a ComplianceResult against the evidence
// it was generated from, dropping hallucinated quotes and adjusting
// confidence per a fixed policy table.
type Grounder interface {
	Ground(result *entities.ComplianceResult, evidence []entities.EvidenceChunk) *entities.ComplianceResult
}

// LLMClient is the single opaque capability the core consumes: it turns a
// prompt into a text response. Whether it dispatches to a cloud provider or
// a local server is transparent to the core.
type LLMClient interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// CompletionOptions configures one LLM call.
type CompletionOptions struct {
	Temperature float64
	JSONMode    bool
	Timeout     int64 // seconds; not read by the llmclient adapters, which use the timeout from their own config
}

// JobStore owns the lifecycle of analysis jobs. Non-durable by design
// (Non-goal: durable storage) — an in-memory implementation is sufficient
// and is the only one this repository ships.
type JobStore interface {
	Create(job *entities.Job) error
	Get(id string) (*entities.Job, bool)
	Update(job *entities.Job) error
}

// ChatStore owns chat sessions scoped to a completed job's document.
type ChatStore interface {
	CreateSession(documentID string) *entities.ChatSession
	GetSession(id string) (*entities.ChatSession, bool)
	SaveSession(session *entities.ChatSession) error
}
