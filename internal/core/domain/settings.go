package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (Ollama host or an OpenAI-compatible gateway).
	BaseURL string

	// APIKey is the API key (for OpenAI-compatible providers).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings configures the hybrid retriever.
type RetrievalSettings struct {
	// TopK is the number of fused chunks returned as grounding context.
	TopK int

	// Candidates is how many results each ranker is asked for before fusion.
	Candidates int

	// VectorOffset damps vector ranks in reciprocal rank fusion.
	VectorOffset float64

	// LexicalOffset damps lexical ranks in reciprocal rank fusion.
	LexicalOffset float64
}

// ChatSettings configures the chat orchestrator.
type ChatSettings struct {
	// HistoryRounds is how many user/agent round-trips are kept in the prompt.
	HistoryRounds int

	// Temperature is the generation temperature.
	Temperature float64

	// MaxTokens caps the reply length. Zero means provider default.
	MaxTokens int

	// MemoryTopK is how many long-term facts are added to the context.
	MemoryTopK int

	// QueryBudget caps the history-aware retrieval query, in characters.
	QueryBudget int

	// ExtractionTimeout bounds the fact extraction call.
	ExtractionTimeout time.Duration
}

// IndexSettings configures offline index builds.
type IndexSettings struct {
	// ChunkSize is the chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by adjacent chunks.
	ChunkOverlap int

	// BatchSize is the number of chunks per embedding request.
	BatchSize int

	// RequestsPerSecond throttles embedding requests.
	RequestsPerSecond float64

	// Workers is the number of concurrent embedding requests.
	Workers int

	// MaxRetries is the number of attempts per embedding batch.
	MaxRetries int
}

// AppSettings holds all application settings.
type AppSettings struct {
	// DataDir is the root of corpora, indexes, profiles, sessions and exports.
	DataDir string

	// Retrieval holds hybrid retriever settings.
	Retrieval RetrievalSettings

	// Chat holds orchestrator settings.
	Chat ChatSettings

	// Index holds index build settings.
	Index IndexSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings
}

// Default values for tunables.
const (
	DefaultTopK              = 5
	DefaultVectorOffset      = 50
	DefaultLexicalOffset     = 60
	DefaultHistoryRounds     = 8
	DefaultTemperature       = 0.8
	DefaultMemoryTopK        = 3
	DefaultQueryBudget       = 800
	DefaultChunkSize         = 600
	DefaultChunkOverlap      = 120
	DefaultExtractionTimeout = 30 * time.Second
)

// DefaultRetrievalSettings returns the retriever defaults.
func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		TopK:          DefaultTopK,
		Candidates:    DefaultTopK,
		VectorOffset:  DefaultVectorOffset,
		LexicalOffset: DefaultLexicalOffset,
	}
}

// DefaultChatSettings returns the orchestrator defaults.
func DefaultChatSettings() ChatSettings {
	return ChatSettings{
		HistoryRounds:     DefaultHistoryRounds,
		Temperature:       DefaultTemperature,
		MemoryTopK:        DefaultMemoryTopK,
		QueryBudget:       DefaultQueryBudget,
		ExtractionTimeout: DefaultExtractionTimeout,
	}
}

// DefaultIndexSettings returns the index build defaults.
func DefaultIndexSettings() IndexSettings {
	return IndexSettings{
		ChunkSize:         DefaultChunkSize,
		ChunkOverlap:      DefaultChunkOverlap,
		BatchSize:         32,
		RequestsPerSecond: 5,
		Workers:           4,
		MaxRetries:        5,
	}
}

// DefaultAppSettings returns settings with sensible defaults.
// AI providers are left unconfigured; users set them via config or environment.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Retrieval: DefaultRetrievalSettings(),
		Chat:      DefaultChatSettings(),
		Index:     DefaultIndexSettings(),
		Embedding: EmbeddingSettings{},
		LLM:       LLMSettings{},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support chat generation.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		"bge-m3":            1024,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
