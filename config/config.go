// Package config loads store settings from the environment. Every key has
// a default, so Load works with no configuration at all; overrides come
// from MEMORIZER_-prefixed variables (MEMORIZER_PRIMARY_WEIGHT,
// MEMORIZER_LLM_MODEL, ...).
package config

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/memorizer-ai/memorizer-go/memory"
)

const envPrefix = "MEMORIZER"

// Settings holds every tunable of the store and its collaborators.
type Settings struct {
	// Storage locations.
	DataDir   string `mapstructure:"data_dir"`
	ChromaDir string `mapstructure:"chroma_dir"`
	ModelsDir string `mapstructure:"models_dir"`
	Compress  bool   `mapstructure:"compress"`

	// Embedding channels.
	PrimaryModel        string `mapstructure:"primary_model"`
	SecondaryModel      string `mapstructure:"secondary_model"`
	PrimaryDimensions   int    `mapstructure:"primary_dimensions"`
	SecondaryDimensions int    `mapstructure:"secondary_dimensions"`
	DualMode            bool   `mapstructure:"dual_mode"`

	// Search scoring.
	PrimaryWeight       float64 `mapstructure:"primary_weight"`
	SecondaryWeight     float64 `mapstructure:"secondary_weight"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	FallbackThreshold   float64 `mapstructure:"fallback_threshold"`
	TagBoost            float64 `mapstructure:"tag_boost"`
	SearchLimit         int     `mapstructure:"search_limit"`
	SearchMaxLimit      int     `mapstructure:"search_max_limit"`
	StatsCap            int     `mapstructure:"stats_cap"`

	// Title generation. An empty LLMModel disables the pass.
	TitleBatchSize int     `mapstructure:"title_batch_size"`
	LLMModel       string  `mapstructure:"llm_model"`
	LLMMaxTokens   int     `mapstructure:"llm_max_tokens"`
	LLMTemperature float64 `mapstructure:"llm_temperature"`

	// OllamaHost overrides OLLAMA_HOST for embedders and generators.
	// Empty keeps the client's environment default.
	OllamaHost string `mapstructure:"ollama_host"`
}

// Load reads settings from the environment and validates them.
func Load() (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// setDefaults registers every key; AutomaticEnv only resolves keys viper
// knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("chroma_dir", "./data/chroma")
	v.SetDefault("models_dir", "./models")
	v.SetDefault("compress", false)

	v.SetDefault("primary_model", "all-MiniLM-L6-v2")
	v.SetDefault("secondary_model", "all-MiniLM-L12-v2")
	v.SetDefault("primary_dimensions", 384)
	v.SetDefault("secondary_dimensions", 384)
	v.SetDefault("dual_mode", true)

	v.SetDefault("primary_weight", 0.4)
	v.SetDefault("secondary_weight", 0.6)
	v.SetDefault("similarity_threshold", 0.7)
	v.SetDefault("fallback_threshold", 0.6)
	v.SetDefault("tag_boost", 0.05)
	v.SetDefault("search_limit", 10)
	v.SetDefault("search_max_limit", 100)
	v.SetDefault("stats_cap", 10000)

	v.SetDefault("title_batch_size", 10)
	v.SetDefault("llm_model", "")
	v.SetDefault("llm_max_tokens", 256)
	v.SetDefault("llm_temperature", 0.7)

	v.SetDefault("ollama_host", "")
}

// Validate rejects settings the store cannot run with.
func (s Settings) Validate() error {
	if math.Abs(s.PrimaryWeight+s.SecondaryWeight-1.0) > 1e-6 {
		return fmt.Errorf("config: channel weights must sum to 1.0, got %g + %g",
			s.PrimaryWeight, s.SecondaryWeight)
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("config: similarity_threshold %g outside [0, 1]", s.SimilarityThreshold)
	}
	if s.FallbackThreshold < 0 || s.FallbackThreshold > 1 {
		return fmt.Errorf("config: fallback_threshold %g outside [0, 1]", s.FallbackThreshold)
	}
	if s.TagBoost < 0 || s.TagBoost > 1 {
		return fmt.Errorf("config: tag_boost %g outside [0, 1]", s.TagBoost)
	}
	if s.PrimaryDimensions <= 0 || s.SecondaryDimensions <= 0 {
		return fmt.Errorf("config: embedding dimensions must be positive")
	}
	if s.SearchLimit < 1 {
		return fmt.Errorf("config: search_limit must be at least 1, got %d", s.SearchLimit)
	}
	if s.SearchMaxLimit < s.SearchLimit {
		return fmt.Errorf("config: search_max_limit %d below search_limit %d",
			s.SearchMaxLimit, s.SearchLimit)
	}
	if s.StatsCap < 1 {
		return fmt.Errorf("config: stats_cap must be at least 1, got %d", s.StatsCap)
	}
	if s.TitleBatchSize < 1 {
		return fmt.Errorf("config: title_batch_size must be at least 1, got %d", s.TitleBatchSize)
	}
	return nil
}

// MemoryConfig maps the scoring settings onto the store's config.
func (s Settings) MemoryConfig() memory.Config {
	return memory.Config{
		PrimaryWeight:       s.PrimaryWeight,
		SecondaryWeight:     s.SecondaryWeight,
		SimilarityThreshold: s.SimilarityThreshold,
		FallbackThreshold:   s.FallbackThreshold,
		TagBoost:            s.TagBoost,
		SearchLimit:         s.SearchLimit,
		SearchMaxLimit:      s.SearchMaxLimit,
		StatsCap:            s.StatsCap,
	}
}

// PrimaryIndexPath returns the primary channel's persistence directory.
// Channels must not share a directory.
func (s Settings) PrimaryIndexPath() string {
	return filepath.Join(s.ChromaDir, "primary")
}

// SecondaryIndexPath returns the secondary channel's persistence
// directory.
func (s Settings) SecondaryIndexPath() string {
	return filepath.Join(s.ChromaDir, "secondary")
}
