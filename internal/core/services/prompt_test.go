package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
)

func testProfile() domain.Profile {
	return domain.Profile{
		ID:          "captain",
		DisplayName: "Captain Reyes",
		BookTitle:   "The Salt Road",
		CorpusID:    "salt-road",
		Identity:    []string{"Captain of the Marigold"},
		Personality: []string{"Gruff", "Loyal"},
		SafetyRules: []string{"Never give medical advice"},
	}
}

func TestPromptRenderer_RenderSystem_Default(t *testing.T) {
	r := NewPromptRenderer(nil)

	out, err := r.RenderSystem(testProfile(), "The ship left at dawn.")
	require.NoError(t, err)

	assert.Contains(t, out, `You are Captain Reyes from "The Salt Road"`)
	assert.Contains(t, out, "[Identity]\n- Captain of the Marigold")
	assert.Contains(t, out, "[Personality]\n- Gruff\n- Loyal")
	assert.Contains(t, out, "[Safety rules]")
	assert.NotContains(t, out, "[Appearance]")
	assert.Contains(t, out, "The ship left at dawn.")
	assert.Contains(t, out, "[Conversation rules]")
}

func TestPromptRenderer_CustomTemplate(t *testing.T) {
	store := &mockPromptStore{prompts: map[string]string{
		driven.PromptCharacterSystem: "{{.Profile.Name}} | {{.Context}}",
	}}
	out, err := NewPromptRenderer(store).RenderSystem(testProfile(), "ctx")
	require.NoError(t, err)
	assert.Equal(t, "Captain Reyes | ctx", out)
}

func TestPromptRenderer_BrokenTemplateFallsBack(t *testing.T) {
	store := &mockPromptStore{prompts: map[string]string{
		driven.PromptCharacterSystem: "{{.Profile.Name",
	}}
	out, err := NewPromptRenderer(store).RenderSystem(testProfile(), "ctx")
	require.NoError(t, err)
	assert.Contains(t, out, "You are Captain Reyes")
}

func TestPromptRenderer_BlankTemplateUsesDefault(t *testing.T) {
	store := &mockPromptStore{prompts: map[string]string{driven.PromptCharacterSystem: "  "}}
	out, err := NewPromptRenderer(store).RenderSystem(testProfile(), "ctx")
	require.NoError(t, err)
	assert.Contains(t, out, "[Conversation rules]")
}

func TestWithMemory(t *testing.T) {
	assert.Equal(t, "ctx", WithMemory("ctx", nil))
	assert.Equal(t, "ctx\n\n[Long-term memory]\nfact a\nfact b", WithMemory("ctx", []string{"fact a", "fact b"}))
}

func TestDefaultPrompts(t *testing.T) {
	prompts := DefaultPrompts()
	assert.Contains(t, prompts, driven.PromptCharacterSystem)
	assert.Contains(t, prompts, driven.PromptFactExtraction)
}
