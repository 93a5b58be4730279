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

// Package factory constructs llm.Provider instances from configuration.
package factory

import (
	"fmt"
	"os"
	"time"

	"github.com/wikisoft/rostercheck/pkg/llm"
	"github.com/wikisoft/rostercheck/pkg/llm/anthropic"
	"github.com/wikisoft/rostercheck/pkg/llm/openai"
)

// Config selects and configures a provider.
type Config struct {
	// Provider is "anthropic", "openai", or "" for autodetect by available
	// credentials (anthropic first).
	Provider string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New builds a provider. Returns (nil, nil) when no credentials are
// available anywhere; callers treat a nil provider as "LLM disabled" and
// rely on the lexical fallback.
func New(config Config) (llm.Provider, error) {
	switch config.Provider {
	case "anthropic":
		return anthropic.NewClient(anthropic.Config{
			APIKey:  config.APIKey,
			Model:   config.Model,
			Timeout: config.Timeout,
		}), nil
	case "openai":
		return openai.NewClient(openai.Config{
			APIKey:  config.APIKey,
			Model:   config.Model,
			Timeout: config.Timeout,
		})
	case "":
		if os.Getenv("ANTHROPIC_API_KEY") != "" {
			return anthropic.NewClient(anthropic.Config{Model: config.Model, Timeout: config.Timeout}), nil
		}
		if os.Getenv("OPENAI_API_KEY") != "" {
			return openai.NewClient(openai.Config{Model: config.Model, Timeout: config.Timeout})
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
	}
}
