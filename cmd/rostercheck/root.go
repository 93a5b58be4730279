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
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/internal/log"
	"github.com/wikisoft/rostercheck/pkg/agent"
	"github.com/wikisoft/rostercheck/pkg/casestore"
	"github.com/wikisoft/rostercheck/pkg/config"
	"github.com/wikisoft/rostercheck/pkg/knowledge"
	"github.com/wikisoft/rostercheck/pkg/llm"
	"github.com/wikisoft/rostercheck/pkg/llm/factory"
	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/retry"
	"github.com/wikisoft/rostercheck/pkg/schema"
	"github.com/wikisoft/rostercheck/pkg/tools"
	"github.com/wikisoft/rostercheck/pkg/validation"
)

// version is stamped by the release build via -ldflags.
var version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "rostercheck",
	Short:   "퇴직급여 명부 검증 서비스",
	Long:    "Rostercheck validates Korean retirement-benefit rosters: it parses customer spreadsheets, matches vendor headers to the canonical schema, and runs the layered validation pipeline.",
	Version: version,
	PersistentPreRun: func(*cobra.Command, []string) {
		if verbose {
			log.Development()
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./rostercheck.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}

// pipeline is the assembled service core shared by serve and validate.
type pipeline struct {
	agent *agent.Agent
	cases *casestore.Store
}

func buildPipeline(cfg *config.Config) (*pipeline, error) {
	registry := schema.New()

	cases := casestore.NewMemory()
	kb := knowledge.NewMemory()
	if cfg.Store.Dir != "" {
		var err error
		if cases, err = casestore.Open(cfg.Store.Dir); err != nil {
			return nil, fmt.Errorf("open case store: %w", err)
		}
		if kb, err = knowledge.Open(cfg.Store.Dir); err != nil {
			return nil, fmt.Errorf("open knowledge base: %w", err)
		}
	}

	provider := buildProvider(cfg)
	deps := tools.Deps{
		Parser:    parser.New(registry),
		Matcher:   matcher.New(registry, cases, provider),
		Validator: validation.New(registry, provider),
		Cases:     cases,
		Knowledge: kb,
	}

	agentCfg := agent.Config{
		MaxIterations:    cfg.Agent.MaxIterations,
		AutoComplete:     cfg.Confidence.AutoComplete,
		AutoCorrect:      cfg.Confidence.AutoCorrect,
		NeedsReview:      cfg.Confidence.NeedsReview,
		EnableAI:         provider != nil,
		TolerancePercent: cfg.Layer2.TolerancePercent,
		MaxRows:          cfg.Parser.MaxRows,
		RetryPolicy: retry.Policy{
			MaxRetries:      cfg.Retry.MaxRetries,
			BaseDelay:       cfg.Retry.BaseDelay,
			MaxDelay:        cfg.Retry.MaxDelay,
			ExponentialBase: 2,
			Jitter:          true,
		},
	}
	return &pipeline{
		agent: agent.New(tools.NewRosterRegistry(deps), agentCfg),
		cases: cases,
	}, nil
}

// buildProvider resolves the model provider; nil means the lexical
// fallback carries matching and the AI layer is skipped.
func buildProvider(cfg *config.Config) llm.Provider {
	if !cfg.LLM.Enabled {
		return nil
	}
	provider, err := factory.New(factory.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	})
	if err != nil {
		log.Warn("llm provider unavailable, using lexical fallback", zap.Error(err))
		return nil
	}
	return provider
}
