// Package chunker implements ports.Chunker by grouping a document's pages
// into fixed-size, page-aligned chunks. Grounded on original_source/backend/
// app/pipeline/chunker.py's PageBasedChunker; the functional-options
// constructor follows custodia-labs-sercha-cli's internal/postprocessors/
// chunker/processor.go.
package chunker

import (
	"fmt"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/domain/pipelineerr"
)

// DefaultPagesPerChunk is the default chunk size: one page per chunk.
const DefaultPagesPerChunk = 1

// DefaultOverlapPages is the default overlap between consecutive chunks.
const DefaultOverlapPages = 0

// PageChunker splits a Document into page-aligned Chunks.
type PageChunker struct {
	pagesPerChunk int
	overlapPages  int
}

// Option configures a PageChunker.
type Option func(*PageChunker)

// WithPagesPerChunk sets how many pages each chunk spans.
func WithPagesPerChunk(n int) Option {
	return func(c *PageChunker) {
		if n > 0 {
			c.pagesPerChunk = n
		}
	}
}

// WithOverlapPages sets how many pages consecutive chunks overlap by.
func WithOverlapPages(n int) Option {
	return func(c *PageChunker) {
		if n >= 0 {
			c.overlapPages = n
		}
	}
}

// New builds a PageChunker. Returns an error if the resulting configuration
// is invalid (overlap_pages must be < pages_per_chunk).
func New(opts ...Option) (*PageChunker, error) {
	c := &PageChunker{
		pagesPerChunk: DefaultPagesPerChunk,
		overlapPages:  DefaultOverlapPages,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlapPages >= c.pagesPerChunk {
		return nil, fmt.Errorf("overlap_pages (%d) must be < pages_per_chunk (%d)", c.overlapPages, c.pagesPerChunk)
	}
	return c, nil
}

// Chunk implements ports.Chunker. With the default configuration (one page
// per chunk, zero overlap), each chunk corresponds to exactly one page.
func (c *PageChunker) Chunk(doc *entities.Document) ([]entities.Chunk, error) {
	if doc == nil {
		return nil, pipelineerr.ChunkerError(fmt.Errorf("document is nil"))
	}
	if len(doc.Pages) == 0 {
		return nil, nil
	}

	stride := c.pagesPerChunk - c.overlapPages
	if stride < 1 {
		stride = 1
	}

	var chunks []entities.Chunk
	chunkIdx := 0

	for i := 0; i < len(doc.Pages); i += stride {
		end := i + c.pagesPerChunk
		if end > len(doc.Pages) {
			end = len(doc.Pages)
		}
		pages := doc.Pages[i:end]

		chunks = append(chunks, entities.Chunk{
			ID:             fmt.Sprintf("%s:chunk_%d", doc.ID, chunkIdx),
			Text:           joinRaw(pages),
			NormalizedText: joinNormalized(pages),
			PageStart:      pages[0].PageNumber,
			PageEnd:        pages[len(pages)-1].PageNumber,
			CharStart:      pages[0].CharOffsetStart,
			CharEnd:        pages[len(pages)-1].CharOffsetEnd,
		})
		chunkIdx++
	}

	return chunks, nil
}

func joinRaw(pages []entities.Page) string {
	var out []byte
	for i, p := range pages {
		if i > 0 {
			out = append(out, '\n', '\n')
		}
		out = append(out, p.RawText...)
	}
	return string(out)
}

func joinNormalized(pages []entities.Page) string {
	var out []byte
	for i, p := range pages {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, p.NormalizedText...)
	}
	return string(out)
}
