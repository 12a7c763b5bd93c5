// Package config loads application settings from environment variables,
// mirroring original_source/backend/app/config.py's pydantic-settings
// Settings object. viper is the closest ecosystem equivalent of
// pydantic-settings for Go — env-var binding with typed defaults — so it
// plays the same role here that pydantic-settings plays for config.py. No
// config file is read.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LLMMode selects which LLMClient implementation the application wires up.
type LLMMode string

const (
	LLMModeExternal LLMMode = "external"
	LLMModeLocal    LLMMode = "local"
)

// Settings is the fully resolved application configuration.
type Settings struct {
	AppName string
	Debug   bool

	MaxUploadSizeMB int

	LLMMode LLMMode

	ExternalAPIProvider string
	ExternalAPIKey      string
	ExternalModel       string
	ExternalAPITimeout  time.Duration
	ExternalMaxRetries  int

	LocalLLMBaseURL string
	LocalModel      string
	LocalAPITimeout time.Duration

	RetrievalTopK int
	ChunkSize     int
	ChunkOverlap  int

	MaxConcurrentJobs int
	JobTimeout        time.Duration
}

// MaxUploadSizeBytes converts MaxUploadSizeMB to bytes.
func (s Settings) MaxUploadSizeBytes() int64 {
	return int64(s.MaxUploadSizeMB) * 1024 * 1024
}

// Load reads settings from environment variables (prefixed COMPLIANCE_RAG_)
// with sane defaults, validating the LLM mode's required fields.
func Load() (Settings, error) {
	v := viper.New()
	v.SetEnvPrefix("compliance_rag")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_name", "Contract Compliance Analyzer")
	v.SetDefault("debug", false)
	v.SetDefault("max_upload_size_mb", 10)
	v.SetDefault("llm_mode", string(LLMModeExternal))
	v.SetDefault("external_api_provider", "openai")
	v.SetDefault("external_model", "gpt-4o-mini")
	v.SetDefault("external_api_timeout_seconds", 60)
	v.SetDefault("external_api_max_retries", 3)
	v.SetDefault("local_llm_base_url", "http://localhost:11434")
	v.SetDefault("local_model", "llama3.2")
	v.SetDefault("local_api_timeout_seconds", 120)
	v.SetDefault("retrieval_top_k", 5)
	v.SetDefault("chunk_size", 1)
	v.SetDefault("chunk_overlap", 0)
	v.SetDefault("max_concurrent_jobs", 5)
	v.SetDefault("job_timeout_seconds", 600)

	settings := Settings{
		AppName:             v.GetString("app_name"),
		Debug:               v.GetBool("debug"),
		MaxUploadSizeMB:     v.GetInt("max_upload_size_mb"),
		LLMMode:             LLMMode(v.GetString("llm_mode")),
		ExternalAPIProvider: v.GetString("external_api_provider"),
		ExternalAPIKey:      v.GetString("external_api_key"),
		ExternalModel:       v.GetString("external_model"),
		ExternalAPITimeout:  time.Duration(v.GetInt("external_api_timeout_seconds")) * time.Second,
		ExternalMaxRetries:  v.GetInt("external_api_max_retries"),
		LocalLLMBaseURL:     v.GetString("local_llm_base_url"),
		LocalModel:          v.GetString("local_model"),
		LocalAPITimeout:     time.Duration(v.GetInt("local_api_timeout_seconds")) * time.Second,
		RetrievalTopK:       v.GetInt("retrieval_top_k"),
		ChunkSize:           v.GetInt("chunk_size"),
		ChunkOverlap:        v.GetInt("chunk_overlap"),
		MaxConcurrentJobs:   v.GetInt("max_concurrent_jobs"),
		JobTimeout:          time.Duration(v.GetInt("job_timeout_seconds")) * time.Second,
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Validate checks that the fields required by the selected LLMMode are
// present.
func (s Settings) Validate() error {
	switch s.LLMMode {
	case LLMModeExternal:
		if s.ExternalAPIKey == "" {
			return fmt.Errorf("config: external_api_key is required when llm_mode is %q", LLMModeExternal)
		}
	case LLMModeLocal:
		if s.LocalLLMBaseURL == "" {
			return fmt.Errorf("config: local_llm_base_url is required when llm_mode is %q", LLMModeLocal)
		}
	default:
		return fmt.Errorf("config: invalid llm_mode %q, must be %q or %q", s.LLMMode, LLMModeExternal, LLMModeLocal)
	}
	return nil
}
