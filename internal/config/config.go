package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the single explicit configuration struct for the service. All
// defaults are resolved once at load time and the struct is passed immutably
// into the pipeline; nothing re-merges options per call.
type Config struct {
	Port     int
	DBPath   string
	APIKey   string
	LogLevel string

	// Embedding
	EmbeddingProvider string // "ollama" or "openai"
	OllamaBaseURL     string
	OpenAIAPIKey      string
	EmbeddingModel    string
	EmbeddingDim      int

	// Stores
	QdrantURL        string
	QdrantCollection string
	GraphURL         string
	GraphDatabase    string
	GraphUser        string
	GraphPassword    string

	// Ingestion pipeline tuning
	ImportanceThreshold    float64
	MinSemanticScore       float64
	DedupeScore            float64
	RelatedTopK            int
	MaxMemoriesPerUpdate   int
	SensitiveFilterEnabled bool
	EmbedConcurrency       int
	UpdateTimeoutSeconds   int

	// Sensitive ruleset
	SensitiveRulesetVersion string
	SensitiveDenyRules      []string
	SensitiveAllowRules     []string
	SensitiveRulesFile      string

	// Transport
	RateLimitPerMinute int

	// Retrieval composition
	SemanticWeight float64
	RelationWeight float64
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:     envInt("PORT", 8742),
		DBPath:   envStr("MEMORY_DB_PATH", "/data/deepmemory.db"),
		APIKey:   envStr("API_KEY", ""),
		LogLevel: envStr("LOG_LEVEL", "info"),

		EmbeddingProvider: envStr("EMBEDDING_PROVIDER", "ollama"),
		OllamaBaseURL:     envStr("OLLAMA_BASE_URL", "http://localhost:11434"),
		OpenAIAPIKey:      envStr("OPENAI_API_KEY", ""),
		EmbeddingModel:    envStr("EMBEDDING_MODEL", "nomic-embed-text"),
		EmbeddingDim:      envInt("EMBEDDING_DIM", 768),

		QdrantURL:        envStr("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection: envStr("QDRANT_COLLECTION", "deep_memories"),
		GraphURL:         envStr("GRAPH_URL", "http://localhost:7474"),
		GraphDatabase:    envStr("GRAPH_DATABASE", "neo4j"),
		GraphUser:        envStr("GRAPH_USER", "neo4j"),
		GraphPassword:    envStr("GRAPH_PASSWORD", ""),

		ImportanceThreshold:    envFloat("IMPORTANCE_THRESHOLD", 0.3),
		MinSemanticScore:       envFloat("MIN_SEMANTIC_SCORE", 0.55),
		DedupeScore:            envFloat("DEDUPE_SCORE", 0.92),
		RelatedTopK:            envInt("RELATED_TOP_K", 3),
		MaxMemoriesPerUpdate:   envInt("MAX_MEMORIES_PER_UPDATE", 10),
		SensitiveFilterEnabled: envBool("SENSITIVE_FILTER_ENABLED", true),
		EmbedConcurrency:       envInt("EMBED_CONCURRENCY", 4),
		UpdateTimeoutSeconds:   envInt("UPDATE_TIMEOUT_SECONDS", 120),

		SensitiveRulesetVersion: envStr("SENSITIVE_RULESET_VERSION", "builtin-1"),
		SensitiveDenyRules:      envJSONStrings("SENSITIVE_DENY_RULES"),
		SensitiveAllowRules:     envJSONStrings("SENSITIVE_ALLOW_RULES"),
		SensitiveRulesFile:      envStr("SENSITIVE_RULES_FILE", ""),

		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 120),

		SemanticWeight: envFloat("SEMANTIC_WEIGHT", 0.7),
		RelationWeight: envFloat("RELATION_WEIGHT", 0.3),
	}

	if cfg.SensitiveRulesFile != "" {
		// A missing or malformed rules file degrades to the env/builtin
		// ruleset rather than failing startup.
		_ = cfg.loadRulesFile(cfg.SensitiveRulesFile)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("MEMORY_DB_PATH must not be empty")
	}
	if c.EmbeddingProvider != "ollama" && c.EmbeddingProvider != "openai" {
		return fmt.Errorf("EMBEDDING_PROVIDER must be ollama or openai, got %q", c.EmbeddingProvider)
	}
	if c.EmbeddingDim < 1 {
		return fmt.Errorf("EMBEDDING_DIM must be positive, got %d", c.EmbeddingDim)
	}
	if c.ImportanceThreshold < 0 || c.ImportanceThreshold > 1 {
		return fmt.Errorf("IMPORTANCE_THRESHOLD must be in [0,1], got %f", c.ImportanceThreshold)
	}
	if c.DedupeScore <= 0 || c.DedupeScore > 1 {
		return fmt.Errorf("DEDUPE_SCORE must be in (0,1], got %f", c.DedupeScore)
	}
	// Dedup checks run over matches already floored at the semantic minimum;
	// a dedup threshold below that floor would filter everything the search
	// returns.
	if c.DedupeScore < c.MinSemanticScore {
		return fmt.Errorf("DEDUPE_SCORE (%f) must be >= MIN_SEMANTIC_SCORE (%f)", c.DedupeScore, c.MinSemanticScore)
	}
	if c.MaxMemoriesPerUpdate < 1 {
		return fmt.Errorf("MAX_MEMORIES_PER_UPDATE must be positive, got %d", c.MaxMemoriesPerUpdate)
	}
	if c.EmbedConcurrency < 1 {
		return fmt.Errorf("EMBED_CONCURRENCY must be positive, got %d", c.EmbedConcurrency)
	}
	sum := c.SemanticWeight + c.RelationWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("SEMANTIC_WEIGHT + RELATION_WEIGHT must equal 1.0, got %f", sum)
	}
	return nil
}

// rulesFile is the YAML layout of an external sensitive ruleset.
type rulesFile struct {
	Version string   `yaml:"version"`
	Deny    []string `yaml:"deny"`
	Allow   []string `yaml:"allow"`
}

// loadRulesFile overrides the env-supplied ruleset with the file contents.
func (c *Config) loadRulesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("parse rules file: %w", err)
	}
	if rf.Version != "" {
		c.SensitiveRulesetVersion = rf.Version
	}
	if len(rf.Deny) > 0 {
		c.SensitiveDenyRules = rf.Deny
	}
	if len(rf.Allow) > 0 {
		c.SensitiveAllowRules = rf.Allow
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envJSONStrings parses a JSON array of strings from the environment. An
// invalid fragment is ignored rather than crashing the pipeline.
func envJSONStrings(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(v), &out); err != nil {
		return nil
	}
	return out
}
