package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// maxExtractedFacts caps the facts kept from one exchange.
const maxExtractedFacts = 3

// extractionHistory is how many prior messages are shown to the extractor.
const extractionHistory = 4

// FactExtractor derives durable facts from a completed exchange.
// It never returns an error: any failure means no facts.
type FactExtractor struct {
	llm     driven.LLMService
	prompts driven.PromptStore
	timeout time.Duration
}

// NewFactExtractor creates an extractor. A zero timeout uses the default.
func NewFactExtractor(llm driven.LLMService, prompts driven.PromptStore, timeout time.Duration) *FactExtractor {
	if timeout <= 0 {
		timeout = domain.DefaultExtractionTimeout
	}
	return &FactExtractor{
		llm:     llm,
		prompts: prompts,
		timeout: timeout,
	}
}

// Extract returns zero to three facts about the exchange.
func (e *FactExtractor) Extract(
	ctx context.Context, roleName string, history []domain.Message, userText, reply string,
) []string {
	if e.llm == nil {
		return nil
	}

	recent := history
	if len(recent) > extractionHistory {
		recent = recent[len(recent)-extractionHistory:]
	}

	prompt, err := renderTemplate(e.prompts, driven.PromptFactExtraction, struct {
		RoleName string
		History  []domain.Message
		UserText string
		Reply    string
	}{
		RoleName: roleName,
		History:  recent,
		UserText: userText,
		Reply:    reply,
	})
	if err != nil {
		logger.Warn("Fact extraction skipped: %v", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.llm.Chat(ctx, []driven.ChatMessage{
		{Role: domain.RoleUser, Content: prompt},
	}, driven.ChatOptions{Temperature: 0.2})
	if err != nil {
		logger.Warn("Fact extraction call failed: %v", err)
		return nil
	}

	facts := ParseFacts(raw)
	logger.Debug("Extracted %d facts", len(facts))
	return facts
}

// ParseFacts decodes a JSON array of facts from a model response.
// A surrounding markdown code fence is tolerated. Scalar items are
// stringified, while nested values and blank entries are dropped.
// At most three facts are returned. Malformed output yields nil.
func ParseFacts(raw string) []string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var items []any
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil
	}

	facts := make([]string, 0, maxExtractedFacts)
	for _, item := range items {
		s, err := cast.ToStringE(item)
		if err != nil {
			continue
		}
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		facts = append(facts, s)
		if len(facts) == maxExtractedFacts {
			break
		}
	}
	return facts
}
