// Copyright 2026 Wikisoft
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the service configuration: YAML file, environment
// overrides (ROSTERCHECK_ prefix), and the documented defaults, in that
// order of precedence from highest to lowest.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the typed configuration tree.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Agent      Agent      `mapstructure:"agent"`
	Confidence Confidence `mapstructure:"confidence"`
	Retry      Retry      `mapstructure:"retry"`
	Layer2     Layer2     `mapstructure:"layer2"`
	Parser     Parser     `mapstructure:"parser"`
	LLM        LLM        `mapstructure:"llm"`
	Store      Store      `mapstructure:"store"`
	Events     Events     `mapstructure:"events"`
}

// Server configures the HTTP boundary.
type Server struct {
	Addr          string   `mapstructure:"addr"`
	CORSOrigins   []string `mapstructure:"cors_origins"`
	MaxUploadMB   int      `mapstructure:"max_upload_mb"`
	RequestLogger bool     `mapstructure:"request_logger"`
}

// Agent bounds one validation run.
type Agent struct {
	MaxIterations int `mapstructure:"max_iterations"`
}

// Confidence holds the grade thresholds.
type Confidence struct {
	AutoComplete float64 `mapstructure:"auto_complete"`
	AutoCorrect  float64 `mapstructure:"auto_correct"`
	NeedsReview  float64 `mapstructure:"needs_review"`
}

// Retry bounds the backoff strategy.
type Retry struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// Layer2 tunes the diagnostic reconciliation.
type Layer2 struct {
	TolerancePercent float64 `mapstructure:"tolerance_percent"`
}

// Parser tunes upload decoding.
type Parser struct {
	MaxRows int `mapstructure:"max_rows"`
}

// LLM selects and gates the model provider.
type LLM struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"` // anthropic, openai
	Model    string        `mapstructure:"model"`
	APIKey   string        `mapstructure:"api_key"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Store locates the persisted case memory and knowledge base. Empty Dir
// keeps both in memory.
type Store struct {
	Dir string `mapstructure:"dir"`
}

// Events configures outbound CloudEvents fan-out.
type Events struct {
	Sinks       []string `mapstructure:"sinks"`
	Environment string   `mapstructure:"environment"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.request_logger", true)
	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("confidence.auto_complete", 0.95)
	v.SetDefault("confidence.auto_correct", 0.80)
	v.SetDefault("confidence.needs_review", 0.50)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("layer2.tolerance_percent", 5.0)
	v.SetDefault("parser.max_rows", 5000)
	v.SetDefault("llm.enabled", true)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("events.environment", "production")
}

// Load reads the configuration. path may be empty; the file is then looked
// up as rostercheck.yaml in the working directory and /etc/rostercheck, and
// a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ROSTERCHECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("rostercheck")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/rostercheck")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Confidence.AutoComplete < c.Confidence.AutoCorrect ||
		c.Confidence.AutoCorrect < c.Confidence.NeedsReview {
		return fmt.Errorf("confidence thresholds must be ordered: auto_complete >= auto_correct >= needs_review")
	}
	if c.Parser.MaxRows <= 0 {
		return fmt.Errorf("parser.max_rows must be positive")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be positive")
	}
	return nil
}
