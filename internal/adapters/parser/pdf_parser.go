// Package parser implements ports.Parser with native in-process PDF text
// extraction. Grounded on original_source/backend/app/pipeline/parse_pdf.py's
// PDFParser (page-by-page extraction, header/footer stripping, avg-chars-
// per-page OCR heuristic), but replaces its PyMuPDF dependency — and the
// teacher's own subprocess-based internal/adapters/parser/python_pdf.go,
// which shells out to a Python microservice — with the native
// github.com/ledongthuc/pdf library, as used in
// thc1006-nephoran-intent-operator's pkg/rag/document_loader.go, so the core
// pipeline has no out-of-process dependency other than the LLM call itself.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/domain/pipelineerr"
	"github.com/veridoc-ai/compliance-rag/internal/util/normalize"
)

// needsOCRThreshold is the avg_chars_per_page below which a document is
// flagged as image-dominated. The pipeline continues regardless;
// downstream confidence degrades naturally because retrieval finds little.
const needsOCRThreshold = 100

// headerFooterMinRepeats is the number of pages a line must repeat on
// (among its page's first/last three lines) to be treated as running
// header/footer boilerplate and stripped.
const headerFooterMinRepeats = 3

var blankLineRun = regexp.MustCompile(`\n{3,}`)
var spaceRun = regexp.MustCompile(`[ \t]+`)

// PDFParser extracts per-page text with character-offset provenance from
// PDF bytes using a pure-Go PDF reader. It performs no OCR; scanned or
// image-only pages are flagged via Document.Metadata["needs_ocr"].
type PDFParser struct {
	log *zap.Logger
}

// NewPDFParser builds a PDFParser. log may be nil, in which case a no-op
// logger is used.
func NewPDFParser(log *zap.Logger) *PDFParser {
	if log == nil {
		log = zap.NewNop()
	}
	return &PDFParser{log: log}
}

// Parse implements ports.Parser.
func (p *PDFParser) Parse(ctx context.Context, pdfBytes []byte, filename string) (*entities.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return nil, pipelineerr.ParserError(fmt.Errorf("opening PDF %q: %w", filename, err))
	}

	numPages := reader.NumPage()
	rawPages := make([]string, 0, numPages)
	var allLines [][]string

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			rawPages = append(rawPages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.log.Warn("failed to extract text from page", zap.String("filename", filename), zap.Int("page", i), zap.Error(err))
			rawPages = append(rawPages, "")
			continue
		}
		rawPages = append(rawPages, text)
		if strings.TrimSpace(text) != "" {
			allLines = append(allLines, splitNonEmptyLines(text))
		}
	}

	headersFooters := map[string]bool{}
	if len(allLines) > 2 {
		headersFooters = detectRepeatedLines(allLines)
	}

	pages, totalTextLength := buildPages(rawPages, headersFooters)

	avgCharsPerPage := 0.0
	if len(pages) > 0 {
		avgCharsPerPage = float64(totalTextLength) / float64(len(pages))
	}
	needsOCR := avgCharsPerPage < needsOCRThreshold

	if needsOCR {
		p.log.Warn("document has minimal extractable text, may need OCR",
			zap.String("filename", filename),
			zap.Float64("avg_chars_per_page", avgCharsPerPage),
		)
	}

	doc := &entities.Document{
		ID:        "doc_" + uuid.New().String(),
		Filename:  filename,
		PageCount: len(pages),
		Pages:     pages,
		Metadata: map[string]any{
			"parser_used":          "ledongthuc/pdf",
			"needs_ocr":            needsOCR,
			"avg_chars_per_page":   int(avgCharsPerPage),
			"headers_footers_removed": len(headersFooters) > 0,
		},
		CreatedAt: time.Now(),
	}

	p.log.Info("parsed PDF",
		zap.String("filename", filename),
		zap.Int("pages", doc.PageCount),
		zap.Int("total_chars", totalTextLength),
		zap.Bool("needs_ocr", needsOCR),
	)

	return doc, nil
}

// buildPages cleans and normalizes each page's raw text and assigns
// char-offset provenance in the concatenated-document coordinate space.
// Pages tile exactly: pages[i].CharOffsetEnd == pages[i+1].CharOffsetStart.
// The offsets do not count the "\n\n" separator Document.FullText inserts
// between pages.
func buildPages(rawPages []string, headersFooters map[string]bool) ([]entities.Page, int) {
	pages := make([]entities.Page, 0, len(rawPages))
	charOffset := 0
	totalTextLength := 0

	for i, raw := range rawPages {
		cleaned := cleanText(raw, headersFooters)
		normalized := normalize.Text(cleaned)

		charStart := charOffset
		charEnd := charOffset + len(cleaned)
		charOffset = charEnd

		pages = append(pages, entities.Page{
			PageNumber:      i + 1,
			RawText:         cleaned,
			NormalizedText:  normalized,
			CharOffsetStart: charStart,
			CharOffsetEnd:   charEnd,
			WordCount:       len(strings.Fields(cleaned)),
		})
		totalTextLength += len(strings.TrimSpace(cleaned))
	}

	return pages, totalTextLength
}

func splitNonEmptyLines(text string) []string {
	raw := strings.Split(text, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// detectRepeatedLines finds lines that recur among the first/last three
// lines of at least headerFooterMinRepeats pages — almost always running
// headers or footers rather than contract content.
func detectRepeatedLines(allPagesLines [][]string) map[string]bool {
	firstCounts := map[string]int{}
	lastCounts := map[string]int{}

	for _, lines := range allPagesLines {
		if len(lines) < 3 {
			continue
		}
		for _, l := range lines[:3] {
			firstCounts[l]++
		}
		for _, l := range lines[len(lines)-3:] {
			lastCounts[l]++
		}
	}

	repeated := map[string]bool{}
	for line, count := range firstCounts {
		if count >= headerFooterMinRepeats && len(line) < 100 {
			repeated[line] = true
		}
	}
	for line, count := range lastCounts {
		if count >= headerFooterMinRepeats && len(line) < 100 {
			repeated[line] = true
		}
	}
	return repeated
}

// cleanText strips recognized header/footer lines and collapses excess
// whitespace.
func cleanText(text string, headersFooters map[string]bool) string {
	if text == "" {
		return ""
	}

	lines := strings.Split(text, "\n")
	if len(headersFooters) > 0 {
		kept := lines[:0:0]
		for _, line := range lines {
			stripped := strings.TrimSpace(line)
			if stripped != "" && headersFooters[stripped] {
				continue
			}
			kept = append(kept, line)
		}
		lines = kept
	}

	cleaned := strings.Join(lines, "\n")
	cleaned = blankLineRun.ReplaceAllString(cleaned, "\n\n")
	cleaned = spaceRun.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
