package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/veridoc-ai/compliance-rag/internal/adapters/analyzer"
	"github.com/veridoc-ai/compliance-rag/internal/adapters/chunker"
	"github.com/veridoc-ai/compliance-rag/internal/adapters/grounder"
	"github.com/veridoc-ai/compliance-rag/internal/adapters/llmclient"
	"github.com/veridoc-ai/compliance-rag/internal/adapters/parser"
	"github.com/veridoc-ai/compliance-rag/internal/adapters/retriever"
	"github.com/veridoc-ai/compliance-rag/internal/config"
	"github.com/veridoc-ai/compliance-rag/internal/domain/ports"
	"github.com/veridoc-ai/compliance-rag/internal/domain/usecases"
	"github.com/veridoc-ai/compliance-rag/internal/logging"
	"github.com/veridoc-ai/compliance-rag/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.pdf>",
	Short: "Run the five-requirement compliance analysis over a contract PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	pdfBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	settings, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logging.New(settings.Debug)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	llm, err := buildLLMClient(settings, log)
	if err != nil {
		return fmt.Errorf("configuring LLM client: %w", err)
	}

	ch, err := chunker.New()
	if err != nil {
		return fmt.Errorf("configuring chunker: %w", err)
	}

	pipeline := usecases.NewAnalysisPipeline(
		parser.NewPDFParser(log),
		ch,
		retriever.New(),
		analyzer.New(llm, log),
		grounder.New(log),
		store.NewJobStore(),
		settings.RetrievalTopK,
		log,
	)

	job, err := pipeline.StartJob(path, pdfBytes)
	if err != nil {
		return fmt.Errorf("starting job: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), settings.JobTimeout)
	defer cancel()

	if err := pipeline.Run(ctx, job, pdfBytes); err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(job.Results)
}

// buildLLMClient wires the configured LLM provider behind the shared retry
// wrapper, keeping the orchestration layer unaware of which one is in use.
func buildLLMClient(settings config.Settings, log *zap.Logger) (ports.LLMClient, error) {
	var inner ports.LLMClient
	switch settings.LLMMode {
	case config.LLMModeExternal:
		client, err := llmclient.NewExternalClient(llmclient.ExternalConfig{
			APIKey:  settings.ExternalAPIKey,
			Model:   settings.ExternalModel,
			Timeout: settings.ExternalAPITimeout,
		})
		if err != nil {
			return nil, err
		}
		inner = client
	case config.LLMModeLocal:
		inner = llmclient.NewLocalClient(llmclient.LocalConfig{
			BaseURL: settings.LocalLLMBaseURL,
			Model:   settings.LocalModel,
			Timeout: settings.LocalAPITimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported llm mode %q", settings.LLMMode)
	}
	return llmclient.NewRetryingClient(inner, log), nil
}
