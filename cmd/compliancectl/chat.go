package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veridoc-ai/compliance-rag/internal/adapters/chunker"
	"github.com/veridoc-ai/compliance-rag/internal/adapters/grounder"
	"github.com/veridoc-ai/compliance-rag/internal/adapters/parser"
	"github.com/veridoc-ai/compliance-rag/internal/adapters/retriever"
	"github.com/veridoc-ai/compliance-rag/internal/config"
	"github.com/veridoc-ai/compliance-rag/internal/domain/usecases"
	"github.com/veridoc-ai/compliance-rag/internal/logging"
	"github.com/veridoc-ai/compliance-rag/internal/store"
)

const chatExitCommand = "exit"

var chatCmd = &cobra.Command{
	Use:   "chat <file.pdf>",
	Short: "Ask ad hoc questions about a contract PDF from an interactive prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
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

	ctx := cmd.Context()
	doc, err := parser.NewPDFParser(log).Parse(ctx, pdfBytes, path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	chunks, err := ch.Chunk(doc)
	if err != nil {
		return fmt.Errorf("chunking %s: %w", path, err)
	}

	chatUseCase := usecases.NewChatUseCase(
		retriever.New(),
		llm,
		grounder.New(log),
		store.NewChatStore(),
		settings.RetrievalTopK,
		log,
	)
	session := chatUseCase.StartSession(doc.ID)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chatting about %s (%d pages, %d chunks). Type '%s' to quit.\n", path, len(doc.Pages), len(chunks), chatExitCommand)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			continue
		}
		if strings.EqualFold(message, chatExitCommand) {
			break
		}

		answer, err := chatUseCase.Answer(ctx, session, chunks, message)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "%s\n", answer.Answer)
		if len(answer.RelevantQuotes) > 0 {
			fmt.Fprintln(out, "Quotes:")
			for _, q := range answer.RelevantQuotes {
				fmt.Fprintf(out, "  - (p.%d-%d) %q\n", q.PageStart, q.PageEnd, q.Text)
			}
		}
		fmt.Fprintf(out, "confidence: %d\n\n", answer.Confidence)
	}

	return scanner.Err()
}
