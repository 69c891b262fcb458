package services

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// MemorySectionLabel introduces long-term facts inside the grounding context.
const MemorySectionLabel = "[Long-term memory]"

// defaultCharacterSystemPrompt renders a profile and its grounding context.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
const defaultCharacterSystemPrompt = `You are {{.Profile.Name}}{{with .Profile.BookTitle}} from "{{.}}"{{end}}. Stay strictly within the persona and world below and only ever speak as this character.
{{range .Sections}}
[{{.Title}}]
{{- range .Items}}
- {{.}}
{{- end}}
{{end}}
[Hidden story evidence (retrieved from the source text, never shown to the user)]
{{.Context}}

[Conversation rules]
1) Speak in the first person and never break character.
2) Ground your answer in the hidden evidence. When it is thin, extend with restraint and never contradict it.
3) Keep the language natural and concise. Brief inner thoughts may appear in parentheses.
4) Never quote the source text verbatim or reveal where the hidden evidence came from.
5) Actions and expressions may accompany your words to show what the character feels.`

// defaultFactExtractionPrompt asks for durable facts from one exchange.
//
//nolint:lll // Prompt content is intentionally long and should not be wrapped.
const defaultFactExtractionPrompt = `Extract 1-3 short, stable facts from the conversation below for long-term memory.
Requirements:
- Do not reuse the wording of the dialogue.
- Only keep declarative statements about relationships, identity, goals, commitments or stances.
- Each fact is 15-50 characters long.
- If there is nothing worth remembering, return an empty array.
{{if .History}}
[Earlier conversation]
{{- range .History}}
{{.Role}}: {{.Content}}
{{- end}}
{{end}}
[Character] {{.RoleName}}
[User said] {{.UserText}}
[Character replied] {{.Reply}}

Output a JSON array of strings only, for example: ["fact one","fact two"]`

// DefaultPrompts returns the built-in prompt templates by name.
func DefaultPrompts() map[string]string {
	return map[string]string{
		driven.PromptCharacterSystem: defaultCharacterSystemPrompt,
		driven.PromptFactExtraction:  defaultFactExtractionPrompt,
	}
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func loadPrompt(store driven.PromptStore, name string) string {
	fallback := DefaultPrompts()[name]
	if store == nil {
		return fallback
	}
	prompt, err := store.Load(name)
	if err != nil || strings.TrimSpace(prompt) == "" {
		return fallback
	}
	return prompt
}

// renderTemplate executes a named prompt template. A template that fails to
// parse or execute falls back to the built-in one.
func renderTemplate(store driven.PromptStore, name string, data any) (string, error) {
	text := loadPrompt(store, name)
	out, err := execute(name, text, data)
	if err == nil {
		return out, nil
	}

	logger.Warn("Prompt %q is invalid, using built-in default: %v", name, err)
	return execute(name, DefaultPrompts()[name], data)
}

func execute(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse prompt %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// PromptRenderer renders system instructions from character profiles.
type PromptRenderer struct {
	prompts driven.PromptStore
}

// NewPromptRenderer creates a renderer. A nil store uses the built-in templates.
func NewPromptRenderer(prompts driven.PromptStore) *PromptRenderer {
	return &PromptRenderer{prompts: prompts}
}

// RenderSystem renders the system instruction for a profile and grounding context.
func (r *PromptRenderer) RenderSystem(profile domain.Profile, groundingContext string) (string, error) {
	return renderTemplate(r.prompts, driven.PromptCharacterSystem, struct {
		Profile  domain.Profile
		Sections []domain.ProfileSection
		Context  string
	}{
		Profile:  profile,
		Sections: profile.Sections(),
		Context:  groundingContext,
	})
}

// WithMemory appends long-term facts under a labeled section of the context.
// The context is returned unchanged when there are no facts.
func WithMemory(groundingContext string, facts []string) string {
	if len(facts) == 0 {
		return groundingContext
	}
	return groundingContext + ContextSeparator + MemorySectionLabel + "\n" + strings.Join(facts, "\n")
}
