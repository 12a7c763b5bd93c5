// Package usecases orchestrates the ports (parser, chunker, retriever,
// analyzer, grounder, LLM client) into the two operations the rest of the
// system calls: analyzing a contract against the requirement catalog, and
// answering ad hoc chat questions about an already-analyzed contract.
// Grounded on 0xcro3dile-localrag-go's internal/domain/usecases package
// (single-responsibility usecase structs built from injected ports) and
// original_source/backend/app/pipeline/job_processor.py's run_analysis,
// with one deliberate divergence: job_processor.py wraps its whole
// per-requirement loop in a single try/except, but this implementation
// isolates each requirement's Retrieve/Analyze/Ground failure so that only
// the parse and chunk stages can abort the job.
package usecases

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/domain/pipelineerr"
	"github.com/veridoc-ai/compliance-rag/internal/domain/ports"
	"github.com/veridoc-ai/compliance-rag/internal/domain/requirements"
)

// DefaultTopK is the number of evidence chunks retrieved per requirement
// (and per chat message) when a use case is not configured otherwise.
const DefaultTopK = 5

// AnalysisPipeline wires Parse -> Chunk -> (Retrieve -> Analyze -> Ground)
// per requirement into the end-to-end contract analysis run.
type AnalysisPipeline struct {
	parser    ports.Parser
	chunker   ports.Chunker
	retriever ports.Retriever
	analyzer  ports.Analyzer
	grounder  ports.Grounder
	jobs      ports.JobStore
	topK      int
	log       *zap.Logger
}

// NewAnalysisPipeline builds an AnalysisPipeline. log may be nil, in which
// case a no-op logger is used. topK<=0 falls back to DefaultTopK.
func NewAnalysisPipeline(
	parser ports.Parser,
	chunker ports.Chunker,
	retriever ports.Retriever,
	analyzer ports.Analyzer,
	grounder ports.Grounder,
	jobs ports.JobStore,
	topK int,
	log *zap.Logger,
) *AnalysisPipeline {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalysisPipeline{
		parser:    parser,
		chunker:   chunker,
		retriever: retriever,
		analyzer:  analyzer,
		grounder:  grounder,
		jobs:      jobs,
		topK:      topK,
		log:       log,
	}
}

// StartJob creates and registers a pending Job for pdfBytes, to be driven to
// completion by Run. Callers that want a fire-and-forget job should launch
// Run in a goroutine with the returned job's ID; callers that want to block
// can call Run directly.
func (p *AnalysisPipeline) StartJob(filename string, pdfBytes []byte) (*entities.Job, error) {
	job := &entities.Job{
		ID:            generateJobID(),
		Status:        entities.JobPending,
		Filename:      filename,
		FileSizeBytes: int64(len(pdfBytes)),
		TimingsMS:     make(map[string]int64),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := p.jobs.Create(job); err != nil {
		return nil, fmt.Errorf("registering job: %w", err)
	}
	return job, nil
}

// Run drives job through Parse -> Chunk -> per-requirement
// Retrieve -> Analyze -> Ground, persisting progress to the JobStore as it
// goes. Requirements are processed sequentially, one LLM call in flight at a
// time per job: this bounds per-job concurrency while still letting
// independent jobs run in parallel goroutines. Only a Parse or Chunk failure
// aborts the job; a Retrieve/Analyze/Ground failure for one requirement is
// replaced with that requirement's fallback result and the remaining
// requirements still run. If ctx is canceled mid-run, the job is marked
// failed and partial results are discarded.
func (p *AnalysisPipeline) Run(ctx context.Context, job *entities.Job, pdfBytes []byte) error {
	job.Status = entities.JobProcessing
	job.UpdateProgress(0, "parsing")
	p.saveJob(job)

	start := time.Now()
	doc, err := p.parser.Parse(ctx, pdfBytes, job.Filename)
	p.recordTiming(job, "parse_ms", start)
	if err != nil {
		return p.fail(job, pipelineerr.ParserError(err))
	}
	job.Document = doc
	job.UpdateProgress(10, "chunking")
	p.saveJob(job)

	start = time.Now()
	chunks, err := p.chunker.Chunk(doc)
	p.recordTiming(job, "chunk_ms", start)
	if err != nil {
		return p.fail(job, pipelineerr.ChunkerError(err))
	}
	job.Chunks = chunks
	job.UpdateProgress(20, "analyzing")
	p.saveJob(job)

	ids := requirements.OrderedIDs()
	results := make([]entities.ComplianceResult, 0, len(ids))

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return p.fail(job, fmt.Errorf("analysis canceled: %w", err))
		}

		req, ok := requirements.Get(id)
		if !ok {
			return p.fail(job, fmt.Errorf("unknown requirement %q", id))
		}

		result, err := p.analyzeOne(ctx, req, chunks)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return p.fail(job, fmt.Errorf("analysis canceled: %w", ctxErr))
			}
			p.log.Error("requirement analysis failed, substituting fallback result", zap.String("job_id", job.ID), zap.String("requirement_id", id), zap.Error(err))
			result = entities.FallbackComplianceResult(req)
		}
		results = append(results, *result)

		progress := 20 + (70*(i+1))/len(ids)
		job.UpdateProgress(progress, fmt.Sprintf("analyzed %s", id))
		p.saveJob(job)
	}

	job.Results = results
	job.MarkCompleted()
	p.saveJob(job)
	return nil
}

// analyzeOne runs Retrieve -> Analyze -> Ground for a single requirement.
func (p *AnalysisPipeline) analyzeOne(ctx context.Context, req entities.Requirement, chunks []entities.Chunk) (*entities.ComplianceResult, error) {
	query := joinQuery(req.BM25Query)
	evidence, err := p.retriever.Retrieve(query, chunks, p.topK)
	if err != nil {
		return nil, pipelineerr.RetrieverError(err)
	}

	for i := range evidence {
		evidence[i].RequirementID = req.ID
	}

	result, err := p.analyzer.Analyze(ctx, req, evidence)
	if err != nil {
		return nil, err // already wrapped as pipelineerr.AnalyzerError by the analyzer
	}

	grounded := p.grounder.Ground(result, evidence)
	return grounded, nil
}

func (p *AnalysisPipeline) fail(job *entities.Job, err error) error {
	job.MarkFailed(err.Error())
	p.saveJob(job)
	p.log.Error("analysis job failed", zap.String("job_id", job.ID), zap.Error(err))
	return err
}

func (p *AnalysisPipeline) saveJob(job *entities.Job) {
	if err := p.jobs.Update(job); err != nil {
		p.log.Error("failed to persist job state", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (p *AnalysisPipeline) recordTiming(job *entities.Job, key string, since time.Time) {
	if job.TimingsMS == nil {
		job.TimingsMS = make(map[string]int64)
	}
	job.TimingsMS[key] = time.Since(since).Milliseconds()
}

func joinQuery(terms []string) string {
	out := ""
	for i, t := range terms {
		if i > 0 {
			out += " "
		}
		out += t
	}
	return out
}
