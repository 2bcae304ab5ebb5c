package services

import (
	"fmt"
	"os"
	"time"

	"github.com/custodia-labs/verity/internal/core/domain"
	"github.com/custodia-labs/verity/internal/core/ports/driven"
	"github.com/custodia-labs/verity/internal/core/ports/driving"
)

var _ driving.SettingsService = (*SettingsService)(nil)

// Keys in config.toml.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyUserID          = "user.id"
	keyEmbedProvider   = "ai.embedding.provider"
	keyEmbedModel      = "ai.embedding.model"
	keyEmbedBaseURL    = "ai.embedding.base_url"
	keyEmbedAPIKey     = "ai.embedding.api_key"
	keyLLMProvider     = "ai.llm.provider"
	keyLLMModel        = "ai.llm.model"
	keyLLMBaseURL      = "ai.llm.base_url"
	keyLLMAPIKey       = "ai.llm.api_key"
	keyChunkSize       = "pipeline.chunk_size"
	keyChunkOverlap    = "pipeline.chunk_overlap"
	keyMinWords        = "pipeline.min_words"
	keyBatchSize       = "pipeline.batch_size"
	keyMaxRetries      = "pipeline.max_retries"
	keyBaseDelayMS     = "pipeline.base_delay_ms"
	keyBatchDelayMS    = "pipeline.batch_delay_ms"
	keyCallTimeoutS    = "pipeline.call_timeout_s"
	keyConcurrency     = "pipeline.concurrency"
	keyClaimTTLS       = "pipeline.claim_ttl_s"
	keyThreshold       = "retrieval.threshold"
	keyRetrievalLimit  = "retrieval.limit"
	keyStorageDriver   = "storage.driver"
	keyStorageDSN      = "storage.dsn"
	keyRedisAddr       = "lock.redis_addr"
	keyServerAddr      = "server.addr"
	keySchedEnabled    = "scheduler.enabled"
	keySchedIntervalS  = "scheduler.interval_s"
	keySchedIngestS    = "scheduler.ingest_interval_s"
	keySchedEmbeddingS = "scheduler.embedding_interval_s"
)

// Environment variables that override the config file.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvPostgresDSN  = "VERITY_POSTGRES_DSN"
	EnvRedisAddr    = "VERITY_REDIS_ADDR"
)

const defaultOllamaURL = "http://localhost:11434"

// SettingsService reads and writes AppSettings through a ConfigStore,
// filling gaps with defaults and letting environment variables win.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	lookupEnv   func(string) (string, bool)
}

// NewSettingsService accepts a nil aiValidator, which skips provider pings.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		lookupEnv:   os.LookupEnv,
	}
}

// Get assembles settings from the store, defaults and the environment.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	settings := s.fromConfig()
	s.applyEnv(settings)
	return settings, nil
}

func (s *SettingsService) fromConfig() *domain.AppSettings {
	defaults := domain.DefaultAppSettings()
	p := defaults.Pipeline

	return &domain.AppSettings{
		UserID: s.getString(keyUserID, defaultUserID(s.lookupEnv)),
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider),
			Model:    s.configStore.GetString(keyEmbedModel),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider),
			Model:    s.configStore.GetString(keyLLMModel),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Pipeline: domain.PipelineSettings{
			ChunkSize:    s.getInt(keyChunkSize, p.ChunkSize),
			ChunkOverlap: s.getInt(keyChunkOverlap, p.ChunkOverlap),
			MinWords:     s.getInt(keyMinWords, p.MinWords),
			BatchSize:    s.getInt(keyBatchSize, p.BatchSize),
			MaxRetries:   s.getInt(keyMaxRetries, p.MaxRetries),
			BaseDelay:    s.getDuration(keyBaseDelayMS, time.Millisecond, p.BaseDelay),
			BatchDelay:   s.getDuration(keyBatchDelayMS, time.Millisecond, p.BatchDelay),
			CallTimeout:  s.getDuration(keyCallTimeoutS, time.Second, p.CallTimeout),
			Concurrency:  s.getInt(keyConcurrency, p.Concurrency),
			ClaimTTL:     s.getDuration(keyClaimTTLS, time.Second, p.ClaimTTL),
		},
		Retrieval: domain.RetrievalSettings{
			Threshold: s.getFloat(keyThreshold, defaults.Retrieval.Threshold),
			Limit:     s.getInt(keyRetrievalLimit, defaults.Retrieval.Limit),
		},
		Storage: domain.StorageSettings{
			Driver: domain.StorageDriver(s.getString(keyStorageDriver, string(defaults.Storage.Driver))),
			DSN:    s.configStore.GetString(keyStorageDSN),
		},
		RedisAddr:  s.configStore.GetString(keyRedisAddr),
		ServerAddr: s.getString(keyServerAddr, defaults.ServerAddr),
	}
}

// applyEnv lets environment variables win over file values.
func (s *SettingsService) applyEnv(settings *domain.AppSettings) {
	if key, ok := s.env(EnvOpenAIKey); ok {
		if settings.Embedding.Provider == domain.AIProviderOpenAI {
			settings.Embedding.APIKey = key
		}
		if settings.LLM.Provider == domain.AIProviderOpenAI {
			settings.LLM.APIKey = key
		}
	}
	if key, ok := s.env(EnvAnthropicKey); ok && settings.LLM.Provider == domain.AIProviderAnthropic {
		settings.LLM.APIKey = key
	}
	if dsn, ok := s.env(EnvPostgresDSN); ok {
		settings.Storage.Driver = domain.StoragePostgres
		settings.Storage.DSN = dsn
	}
	if addr, ok := s.env(EnvRedisAddr); ok {
		settings.RedisAddr = addr
	}
}

func (s *SettingsService) env(name string) (string, bool) {
	v, ok := s.lookupEnv(name)
	return v, ok && v != ""
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyStorageDriver, string(settings.Storage.Driver)},
		{keyServerAddr, settings.ServerAddr},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	// Keys are only written when set so that env-supplied secrets stay out of the file.
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if provider != domain.AIProviderOpenAI && provider != domain.AIProviderOllama {
		return fmt.Errorf("provider %s does not support embeddings: %w", provider, domain.ErrInvalidInput)
	}

	if apiKey == "" && provider.RequiresAPIKey() {
		if _, ok := s.env(EnvOpenAIKey); !ok {
			return fmt.Errorf("API key required for %s: %w", provider, domain.ErrInvalidInput)
		}
	}

	settings := s.fromConfig()
	settings.Embedding.APIKey = apiKey
	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	settings.Embedding.BaseURL = baseURLFor(provider, settings.Embedding.BaseURL)

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider %q: %w", provider, domain.ErrInvalidInput)
	}

	if apiKey == "" && provider.RequiresAPIKey() {
		envName := EnvOpenAIKey
		if provider == domain.AIProviderAnthropic {
			envName = EnvAnthropicKey
		}
		if _, ok := s.env(envName); !ok {
			return fmt.Errorf("API key required for %s: %w", provider, domain.ErrInvalidInput)
		}
	}

	settings := s.fromConfig()
	settings.LLM.Provider = provider
	settings.LLM.APIKey = apiKey
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	settings.LLM.BaseURL = baseURLFor(provider, settings.LLM.BaseURL)

	return s.Save(settings)
}

// Scheduler returns the background job configuration.
// scheduler.interval_s sets both jobs; per-job keys take precedence.
func (s *SettingsService) Scheduler() domain.SchedulerConfig {
	cfg := domain.DefaultSchedulerConfig()
	if _, ok := s.configStore.Get(keySchedEnabled); ok {
		cfg.Enabled = s.configStore.GetBool(keySchedEnabled)
	}

	overrides := map[string]string{
		domain.JobIngestPending:  keySchedIngestS,
		domain.JobEmbeddingSweep: keySchedEmbeddingS,
	}
	for id, key := range overrides {
		task := cfg.Jobs[id]
		task.Interval = s.getDuration(keySchedIntervalS, time.Second, task.Interval)
		task.Interval = s.getDuration(key, time.Second, task.Interval)
		cfg.Jobs[id] = task
	}
	return cfg
}

// Validate checks if current settings can run the pipeline.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.Embedding.Provider != "" && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("embedding provider %s is missing an API key", settings.Embedding.Provider)
	}
	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("LLM provider %s is missing an API key", settings.LLM.Provider)
	}
	switch settings.Storage.Driver {
	case domain.StorageSQLite:
	case domain.StoragePostgres:
		if settings.Storage.DSN == "" {
			return fmt.Errorf("storage driver postgres requires storage.dsn or %s", EnvPostgresDSN)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", settings.Storage.Driver)
	}
	if settings.Pipeline.ChunkOverlap < 0 || settings.Pipeline.ChunkSize <= 0 {
		return fmt.Errorf("invalid chunk settings: size %d, overlap %d",
			settings.Pipeline.ChunkSize, settings.Pipeline.ChunkOverlap)
	}
	if settings.Retrieval.Threshold < -1 || settings.Retrieval.Threshold > 1 {
		return fmt.Errorf("retrieval threshold %.2f outside [-1, 1]", settings.Retrieval.Threshold)
	}

	return nil
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

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, unit, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetInt(key)
	if val <= 0 {
		return defaultVal
	}
	return time.Duration(val) * unit
}

func (s *SettingsService) getProvider(key string) domain.AIProvider {
	provider := domain.AIProvider(s.configStore.GetString(key))
	if !provider.IsValid() {
		return ""
	}
	return provider
}

func modelOrDefault(model, defaultModel string) string {
	if model != "" {
		return model
	}
	return defaultModel
}

// baseURLFor keeps a local provider's URL and clears it for cloud providers.
func baseURLFor(provider domain.AIProvider, current string) string {
	if provider != domain.AIProviderOllama {
		return ""
	}
	if current == "" {
		return defaultOllamaURL
	}
	return current
}

func defaultUserID(lookupEnv func(string) (string, bool)) string {
	if user, ok := lookupEnv("USER"); ok && user != "" {
		return user
	}
	return "local"
}
