package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
	"github.com/veridoc-ai/compliance-rag/internal/domain/pipelineerr"
	"github.com/veridoc-ai/compliance-rag/internal/domain/ports"
	"github.com/veridoc-ai/compliance-rag/internal/util/normalize"
)

// chatHistoryWindow bounds how many prior messages are included in the chat
// prompt, keeping token usage flat regardless of session length.
const chatHistoryWindow = 4

// chatTemperature favors literal, evidence-bound answers over creativity,
// matching the analyzer's temperature for the same reason.
const chatTemperature = 0.3

const chatRepairTemperature = 0.1

const fallbackChatAnswer = "I cannot find that information in the contract."

var insufficientEvidencePhrases = []string{
	"cannot find",
	"can't find",
	"not found",
	"no information",
}

// ChatUseCase answers ad hoc questions about an already-analyzed contract,
// reusing the same retrieval and grounding machinery as compliance analysis
// but with its own confidence heuristic and honesty-first system prompt.
// Grounded on original_source/backend/app/services/chat_service.py's
// ChatService.answer flow.
type ChatUseCase struct {
	retriever ports.Retriever
	llm       ports.LLMClient
	grounder  ports.Grounder
	sessions  ports.ChatStore
	topK      int
	log       *zap.Logger
}

// NewChatUseCase builds a ChatUseCase. log may be nil, in which case a no-op
// logger is used. topK<=0 falls back to DefaultTopK.
func NewChatUseCase(
	retriever ports.Retriever,
	llm ports.LLMClient,
	grounder ports.Grounder,
	sessions ports.ChatStore,
	topK int,
	log *zap.Logger,
) *ChatUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatUseCase{
		retriever: retriever,
		llm:       llm,
		grounder:  grounder,
		sessions:  sessions,
		topK:      topK,
		log:       log,
	}
}

// StartSession opens a new chat session scoped to documentID.
func (c *ChatUseCase) StartSession(documentID string) *entities.ChatSession {
	return c.sessions.CreateSession(documentID)
}

type chatLLMResponse struct {
	Answer         string       `json:"answer"`
	RelevantQuotes []quoteField `json:"relevant_quotes"`
}

type quoteField struct {
	Text      string `json:"text"`
	PageStart int    `json:"page_start"`
	PageEnd   int    `json:"page_end"`
}

// Answer retrieves evidence for message, asks the LLM to answer strictly
// from that evidence, grounds the resulting quotes, and appends both turns
// to session's history.
func (c *ChatUseCase) Answer(ctx context.Context, session *entities.ChatSession, chunks []entities.Chunk, message string) (*entities.ChatAnswer, error) {
	evidence, err := c.retriever.Retrieve(message, chunks, c.topK)
	if err != nil {
		return nil, pipelineerr.RetrieverError(err)
	}

	history := session.LastN(chatHistoryWindow)
	prompt := buildChatPrompt(message, history, evidence)

	raw, err := c.llm.Complete(ctx, prompt, ports.CompletionOptions{Temperature: chatTemperature, JSONMode: true})
	if err != nil {
		return nil, pipelineerr.LLMError(err)
	}

	parsed, ok := parseChatResponse(raw)
	if !ok {
		c.log.Warn("chat response failed to parse, retrying with repair prompt")
		repaired, err := c.llm.Complete(ctx, chatRepairPrompt(raw), ports.CompletionOptions{Temperature: chatRepairTemperature, JSONMode: true})
		if err == nil {
			parsed, ok = parseChatResponse(repaired)
		}
	}

	var answer *entities.ChatAnswer
	if !ok {
		answer = &entities.ChatAnswer{Answer: fallbackChatAnswer, Confidence: 0}
	} else {
		answer = c.groundAndScore(parsed, evidence)
	}

	session.Append(entities.RoleUser, message)
	session.Append(entities.RoleAssistant, answer.Answer)
	if err := c.sessions.SaveSession(session); err != nil {
		c.log.Error("failed to persist chat session", zap.String("session_id", session.ID), zap.Error(err))
	}

	return answer, nil
}

// groundAndScore validates parsed's quotes against evidence and applies the
// chat confidence heuristic, deliberately NOT the compliance-result
// confidence-adjustment policy table the grounder also implements.
func (c *ChatUseCase) groundAndScore(parsed chatLLMResponse, evidence []entities.EvidenceChunk) *entities.ChatAnswer {
	quotes := make([]entities.Quote, 0, len(parsed.RelevantQuotes))
	for _, q := range parsed.RelevantQuotes {
		quotes = append(quotes, entities.Quote{Text: q.Text, PageStart: q.PageStart, PageEnd: q.PageEnd})
	}

	scratch := &entities.ComplianceResult{RelevantQuotes: quotes}
	grounded := c.grounder.Ground(scratch, evidence)
	validated := grounded.RelevantQuotes

	return &entities.ChatAnswer{
		Answer:         parsed.Answer,
		RelevantQuotes: validated,
		Confidence:     chatConfidence(parsed.Answer, evidence, validated),
	}
}

// chatConfidence implements the chat confidence heuristic: an honest "can't find this"
// answer is reported with zero confidence rather than penalized as a
// failure, evidence-free answers get a flat low score, and otherwise
// confidence scales with how many quotes actually survived grounding.
func chatConfidence(answer string, evidence []entities.EvidenceChunk, validated []entities.Quote) int {
	normalizedAnswer := normalize.Text(answer)
	for _, phrase := range insufficientEvidencePhrases {
		if strings.Contains(normalizedAnswer, phrase) {
			return 0
		}
	}
	if len(evidence) == 0 {
		return 30
	}
	confidence := 70 + 10*len(validated)
	if confidence > 100 {
		confidence = 100
	}
	return confidence
}

func buildChatPrompt(message string, history []entities.ChatMessage, evidence []entities.EvidenceChunk) string {
	var b strings.Builder
	b.WriteString("You are answering questions about a specific contract using ONLY the evidence provided below. ")
	b.WriteString("If the evidence does not contain the answer, your answer MUST begin with \"I cannot find\" — never guess or use outside knowledge.\n\n")

	if len(history) > 0 {
		b.WriteString("CONVERSATION SO FAR:\n")
		for _, m := range history {
			b.WriteString(fmt.Sprintf("%s: %s\n", m.Role, m.Content))
		}
		b.WriteString("\n")
	}

	b.WriteString("EVIDENCE (from contract):\n")
	b.WriteString(formatChatEvidence(evidence))
	b.WriteString("\n\nQUESTION:\n")
	b.WriteString(message)
	b.WriteString("\n\nOUTPUT FORMAT (JSON only, no other text):\n")
	b.WriteString(chatJSONSchemaBlock())
	b.WriteString("\n\nReturn ONLY valid JSON, no additional text:")
	return b.String()
}

func chatJSONSchemaBlock() string {
	return `{
  "answer": "natural-language answer grounded in the evidence above",
  "relevant_quotes": [
    {"text": "exact quote from evidence", "page_start": <page_num>, "page_end": <page_num>}
  ]
}`
}

func formatChatEvidence(evidence []entities.EvidenceChunk) string {
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

func chatRepairPrompt(invalid string) string {
	truncated := invalid
	if len(truncated) > 500 {
		truncated = truncated[:500]
	}
	return fmt.Sprintf(`The previous response was not valid JSON. Please fix it.

REQUIRED FORMAT:
%s

PREVIOUS OUTPUT (invalid):
%s

Return ONLY valid JSON with the correct format:`, chatJSONSchemaBlock(), truncated)
}

func parseChatResponse(response string) (chatLLMResponse, bool) {
	var out chatLLMResponse
	jsonStr := extractChatJSON(response)
	if jsonStr == "" {
		return out, false
	}
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		return out, false
	}
	if strings.TrimSpace(out.Answer) == "" {
		return out, false
	}
	return out, true
}

func extractChatJSON(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return ""
	}
	return response[start : end+1]
}
