package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type LLMConfig struct {
	Provider    string  `toml:"provider"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	BaseURL     string  `toml:"base_url"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// Thresholds mirrors the pipeline's business constants. The defaults
// preserve the historical values; they are configuration, not derived
// domain truth.
type Thresholds struct {
	ExactTolerance  float64 `toml:"exact_tolerance"`
	PriceWarnRatio  float64 `toml:"price_warn_ratio"`
	ConfidenceFloor float64 `toml:"confidence_floor"`
	SemanticBatch   int     `toml:"semantic_batch"`
	SemanticWorkers int     `toml:"semantic_workers"`
}

type Config struct {
	DBPath     string     `toml:"db_path"`
	LLM        LLMConfig  `toml:"llm"`
	Thresholds Thresholds `toml:"thresholds"`
}

func Default() Config {
	return Config{
		DBPath: "tender-review.db",
		LLM: LLMConfig{
			MaxTokens:   2048,
			Temperature: 0,
		},
		Thresholds: Thresholds{
			ExactTolerance:  0.01,
			PriceWarnRatio:  0.005,
			ConfidenceFloor: 0.65,
			SemanticBatch:   15,
			SemanticWorkers: 6,
		},
	}
}

// Load reads the TOML config at path (missing file yields defaults)
// and applies environment overrides for secrets.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config file %q: %w", path, err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file %q: %w", path, err)
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TENDER_REVIEW_DB")); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_PROVIDER")); v != "" {
		cfg.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	if cfg.LLM.APIKey == "" {
		switch strings.ToLower(cfg.LLM.Provider) {
		case "anthropic", "claude":
			cfg.LLM.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
		case "openai":
			cfg.LLM.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
	}
}
