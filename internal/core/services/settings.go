package services

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"time"

	"github.com/spf13/cast"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	KeyDataDir           = "paths.data_dir"
	KeyTopK              = "retrieval.top_k"
	KeyCandidates        = "retrieval.candidates"
	KeyVectorOffset      = "retrieval.vector_offset"
	KeyLexicalOffset     = "retrieval.lexical_offset"
	KeyHistoryRounds     = "chat.history_rounds"
	KeyTemperature       = "chat.temperature"
	KeyMaxTokens         = "chat.max_tokens"
	KeyMemoryTopK        = "chat.memory_top_k"
	KeyQueryBudget       = "chat.query_budget"
	KeyExtractionTimeout = "chat.extraction_timeout_seconds"
	KeyChunkSize         = "index.chunk_size"
	KeyChunkOverlap      = "index.chunk_overlap"
	KeyBatchSize         = "index.batch_size"
	KeyRequestsPerSecond = "index.requests_per_second"
	KeyWorkers           = "index.workers"
	KeyMaxRetries        = "index.max_retries"
	KeyEmbedProvider     = "embedding.provider"
	KeyEmbedModel        = "embedding.model"
	KeyEmbedBaseURL      = "embedding.base_url"
	KeyEmbedAPIKey       = "embedding.api_key"
	KeyLLMProvider       = "llm.provider"
	KeyLLMModel          = "llm.model"
	KeyLLMBaseURL        = "llm.base_url"
	KeyLLMAPIKey         = "llm.api_key"
)

// keyKind is the value type stored under a settings key.
type keyKind int

const (
	kindString keyKind = iota
	kindInt
	kindFloat
	kindProvider
)

// settingKinds lists every key SetValue accepts.
var settingKinds = map[string]keyKind{
	KeyDataDir:           kindString,
	KeyTopK:              kindInt,
	KeyCandidates:        kindInt,
	KeyVectorOffset:      kindFloat,
	KeyLexicalOffset:     kindFloat,
	KeyHistoryRounds:     kindInt,
	KeyTemperature:       kindFloat,
	KeyMaxTokens:         kindInt,
	KeyMemoryTopK:        kindInt,
	KeyQueryBudget:       kindInt,
	KeyExtractionTimeout: kindInt,
	KeyChunkSize:         kindInt,
	KeyChunkOverlap:      kindInt,
	KeyBatchSize:         kindInt,
	KeyRequestsPerSecond: kindFloat,
	KeyWorkers:           kindInt,
	KeyMaxRetries:        kindInt,
	KeyEmbedProvider:     kindProvider,
	KeyEmbedModel:        kindString,
	KeyEmbedBaseURL:      kindString,
	KeyEmbedAPIKey:       kindString,
	KeyLLMProvider:       kindProvider,
	KeyLLMModel:          kindString,
	KeyLLMBaseURL:        kindString,
	KeyLLMAPIKey:         kindString,
}

// Keys returns the keys SetValue accepts, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(settingKinds))
	for k := range settingKinds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		DataDir: s.getString(KeyDataDir, DefaultDataDir()),
		Retrieval: domain.RetrievalSettings{
			TopK:          s.getInt(KeyTopK, defaults.Retrieval.TopK),
			Candidates:    s.getInt(KeyCandidates, defaults.Retrieval.Candidates),
			VectorOffset:  s.getFloat(KeyVectorOffset, defaults.Retrieval.VectorOffset),
			LexicalOffset: s.getFloat(KeyLexicalOffset, defaults.Retrieval.LexicalOffset),
		},
		Chat: domain.ChatSettings{
			HistoryRounds: s.getInt(KeyHistoryRounds, defaults.Chat.HistoryRounds),
			Temperature:   s.getFloat(KeyTemperature, defaults.Chat.Temperature),
			MaxTokens:     s.getInt(KeyMaxTokens, defaults.Chat.MaxTokens),
			MemoryTopK:    s.getInt(KeyMemoryTopK, defaults.Chat.MemoryTopK),
			QueryBudget:   s.getInt(KeyQueryBudget, defaults.Chat.QueryBudget),
			ExtractionTimeout: time.Duration(
				s.getInt(KeyExtractionTimeout, int(defaults.Chat.ExtractionTimeout/time.Second)),
			) * time.Second,
		},
		Index: domain.IndexSettings{
			ChunkSize:         s.getInt(KeyChunkSize, defaults.Index.ChunkSize),
			ChunkOverlap:      s.getInt(KeyChunkOverlap, defaults.Index.ChunkOverlap),
			BatchSize:         s.getInt(KeyBatchSize, defaults.Index.BatchSize),
			RequestsPerSecond: s.getFloat(KeyRequestsPerSecond, defaults.Index.RequestsPerSecond),
			Workers:           s.getInt(KeyWorkers, defaults.Index.Workers),
			MaxRetries:        s.getInt(KeyMaxRetries, defaults.Index.MaxRetries),
		},
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(KeyEmbedProvider, defaults.Embedding.Provider),
			Model:    s.getString(KeyEmbedModel, defaults.Embedding.Model),
			BaseURL:  s.configStore.GetString(KeyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(KeyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(KeyLLMProvider, defaults.LLM.Provider),
			Model:    s.getString(KeyLLMModel, defaults.LLM.Model),
			BaseURL:  s.configStore.GetString(KeyLLMBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(KeyLLMAPIKey),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{KeyTopK, settings.Retrieval.TopK},
		{KeyCandidates, settings.Retrieval.Candidates},
		{KeyVectorOffset, settings.Retrieval.VectorOffset},
		{KeyLexicalOffset, settings.Retrieval.LexicalOffset},
		{KeyHistoryRounds, settings.Chat.HistoryRounds},
		{KeyTemperature, settings.Chat.Temperature},
		{KeyMaxTokens, settings.Chat.MaxTokens},
		{KeyMemoryTopK, settings.Chat.MemoryTopK},
		{KeyQueryBudget, settings.Chat.QueryBudget},
		{KeyEmbedProvider, settings.Embedding.Provider.String()},
		{KeyEmbedModel, settings.Embedding.Model},
		{KeyEmbedBaseURL, settings.Embedding.BaseURL},
		{KeyLLMProvider, settings.LLM.Provider.String()},
		{KeyLLMModel, settings.LLM.Model},
		{KeyLLMBaseURL, settings.LLM.BaseURL},
	}
	if settings.DataDir != "" {
		values = append(values, struct {
			key   string
			value any
		}{KeyDataDir, settings.DataDir})
	}

	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(KeyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(KeyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// SetValue parses raw according to the key's type and stores it.
func (s *SettingsService) SetValue(key, raw string) error {
	kind, ok := settingKinds[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	var value any
	switch kind {
	case kindInt:
		n, err := cast.ToIntE(raw)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer: %w", domain.ErrInvalidInput, key, err)
		}
		if n < 0 {
			return fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidInput, key)
		}
		value = n
	case kindFloat:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return fmt.Errorf("%w: %s expects a number: %w", domain.ErrInvalidInput, key, err)
		}
		value = f
	case kindProvider:
		if !domain.AIProvider(raw).IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, raw)
		}
		value = raw
	default:
		value = raw
	}

	if err := s.configStore.Set(key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	previous := settings.Embedding.Provider
	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, previous, settings.Embedding.BaseURL)
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	previous := settings.LLM.Provider
	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, previous, settings.LLM.BaseURL)
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

func modelOrDefault(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

// baseURLFor keeps a configured endpoint while the provider stays the same,
// so OpenAI-compatible gateways survive a key rotation. Switching providers
// resets it; Ollama defaults to the local daemon.
func baseURLFor(provider, previous domain.AIProvider, current string) string {
	if provider == previous && current != "" {
		return current
	}
	if provider.IsLocal() {
		return "http://localhost:11434"
	}
	return ""
}

// Validate checks that the providers needed for chatting are configured.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider is not configured (set llm.provider or OPENAI_API_KEY)",
			domain.ErrLLMUnavailable)
	}
	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider is not configured (set embedding.provider)",
			domain.ErrEmbeddingUnavailable)
	}
	if settings.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrInvalidInput, KeyTopK)
	}
	if settings.Index.ChunkOverlap >= settings.Index.ChunkSize {
		return fmt.Errorf("%w: %s must be smaller than %s", domain.ErrInvalidInput, KeyChunkOverlap, KeyChunkSize)
	}

	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

// DefaultDataDir returns ~/.papersoul, or .papersoul when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".papersoul"
	}
	return filepath.Join(home, ".papersoul")
}
