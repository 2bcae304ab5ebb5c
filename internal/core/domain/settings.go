package domain

import "time"

// AIProvider names a hosted or local model backend.
type AIProvider string

const (
	AIProviderOllama    AIProvider = "ollama"
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
)

var providerLabels = map[AIProvider]string{
	AIProviderOllama:    "Ollama (local)",
	AIProviderOpenAI:    "OpenAI (cloud)",
	AIProviderAnthropic: "Anthropic (cloud)",
}

const unknownDescription = "Unknown"

func (p AIProvider) IsValid() bool {
	_, ok := providerLabels[p]
	return ok
}

// RequiresAPIKey is true for the cloud providers.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// SupportsEmbeddings reports whether the provider exposes an embeddings
// endpoint. Anthropic does not.
func (p AIProvider) SupportsEmbeddings() bool {
	return p == AIProviderOllama || p == AIProviderOpenAI
}

func (p AIProvider) String() string { return string(p) }

// Description is the label shown in "verity settings".
func (p AIProvider) Description() string {
	if label, ok := providerLabels[p]; ok {
		return label
	}
	return unknownDescription
}

// EmbeddingSettings selects the model that turns chunks into vectors.
// An empty BaseURL means the provider's public endpoint.
type EmbeddingSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

func (e EmbeddingSettings) IsConfigured() bool {
	return e.Provider.SupportsEmbeddings() && hasKey(e.Provider, e.APIKey)
}

// LLMSettings selects the model that writes answers.
type LLMSettings struct {
	Provider AIProvider
	Model    string
	BaseURL  string
	APIKey   string
}

func (l LLMSettings) IsConfigured() bool {
	return l.Provider.IsValid() && hasKey(l.Provider, l.APIKey)
}

func hasKey(p AIProvider, key string) bool {
	return !p.RequiresAPIKey() || key != ""
}

// PipelineSettings tunes chunking and the embedding worker.
type PipelineSettings struct {
	// ChunkSize is the target chunk size in bytes.
	ChunkSize int

	// ChunkOverlap is the number of trailing words carried into the next chunk.
	ChunkOverlap int

	// MinWords is the minimum word count worth embedding or retrieving.
	MinWords int

	// BatchSize is the number of chunks per embedding batch.
	BatchSize int

	// MaxRetries is the number of retries after a chunk's first failed
	// embedding attempt.
	MaxRetries int

	// BaseDelay is the first retry delay; it doubles each attempt.
	BaseDelay time.Duration

	// BatchDelay paces the start of consecutive batches.
	BatchDelay time.Duration

	// CallTimeout bounds every provider call.
	CallTimeout time.Duration

	// Concurrency is the number of batches processed in parallel.
	Concurrency int

	// ClaimTTL is how long a worker owns the chunks it claimed.
	ClaimTTL time.Duration
}

// RetrievalSettings tunes similarity search.
type RetrievalSettings struct {
	Threshold float64
	Limit     int
}

// StorageDriver selects the relational store.
type StorageDriver string

// Supported storage drivers.
const (
	StorageSQLite   StorageDriver = "sqlite"
	StoragePostgres StorageDriver = "postgres"
)

// StorageSettings selects and locates the relational store.
type StorageSettings struct {
	Driver StorageDriver
	DSN    string
}

// AppSettings holds all application settings.
type AppSettings struct {
	// UserID is the default owner for CLI operations.
	UserID string

	Embedding EmbeddingSettings
	LLM       LLMSettings
	Pipeline  PipelineSettings
	Retrieval RetrievalSettings
	Storage   StorageSettings

	// RedisAddr enables the Redis locker when set.
	RedisAddr string

	// ServerAddr is the HTTP listen address.
	ServerAddr string
}

// DefaultPipelineSettings returns the pipeline defaults.
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		ChunkSize:    250,
		ChunkOverlap: 20,
		MinWords:     30,
		BatchSize:    5,
		MaxRetries:   3,
		BaseDelay:    time.Second,
		BatchDelay:   500 * time.Millisecond,
		CallTimeout:  30 * time.Second,
		Concurrency:  1,
		ClaimTTL:     5 * time.Minute,
	}
}

// DefaultRetrievalSettings returns the retrieval defaults.
func DefaultRetrievalSettings() RetrievalSettings {
	return RetrievalSettings{
		Threshold: 0.3,
		Limit:     5,
	}
}

// DefaultAppSettings leaves both AI providers unconfigured.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Pipeline:   DefaultPipelineSettings(),
		Retrieval:  DefaultRetrievalSettings(),
		Storage:    StorageSettings{Driver: StorageSQLite},
		ServerAddr: "127.0.0.1:8080",
	}
}

// DefaultEmbeddingModels is used when a provider is chosen without a model.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions lists vector sizes for models we know. Adapters fall
// back to their own default for anything else.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
