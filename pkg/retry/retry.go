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

// Package retry decides how the agent retries a failed or low-confidence
// step with a different approach. Each failure reason carries an ordered
// chain of strategies; strategies adjust the next attempt's parameters
// instead of repeating the same call.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/parser"
)

// Reason classifies why a retry is being considered.
type Reason string

const (
	ReasonLowConfidence Reason = "LOW_CONFIDENCE"
	ReasonParseFailure  Reason = "PARSE_FAILURE"
	ReasonMatchFailure  Reason = "MATCH_FAILURE"
	ReasonAPIError      Reason = "API_ERROR"
	ReasonTimeout       Reason = "TIMEOUT"
	ReasonRateLimit     Reason = "RATE_LIMIT"
)

// Strategy is one alternative approach for a retry attempt.
type Strategy string

const (
	// StrictMatching raises the match confidence threshold to 0.90 and
	// forces the model call even for case-memory hits.
	StrictMatching Strategy = "STRICT_MATCHING"
	// LenientMatching lowers the lexical acceptance threshold to 0.50.
	LenientMatching Strategy = "LENIENT_MATCHING"
	// FallbackOnly disables the model and relies on the lexical matcher.
	FallbackOnly Strategy = "FALLBACK_ONLY"
	// AlternativeParser rotates the text decoding encoding.
	AlternativeParser Strategy = "ALTERNATIVE_PARSER"
	// ExponentialBackoff waits and repeats the same call.
	ExponentialBackoff Strategy = "EXPONENTIAL_BACKOFF"
	// AskHuman gives up on automation and escalates.
	AskHuman Strategy = "ASK_HUMAN"
)

// Threshold adjustments applied by the matching strategies.
const (
	StrictThreshold  = 0.90
	LenientThreshold = 0.50
)

// chains declares, per reason, the strategies to try in order.
var chains = map[Reason][]Strategy{
	ReasonLowConfidence: {StrictMatching, LenientMatching, AskHuman},
	ReasonParseFailure:  {AlternativeParser, AskHuman},
	ReasonMatchFailure:  {FallbackOnly, LenientMatching, AskHuman},
	ReasonAPIError:      {ExponentialBackoff, FallbackOnly},
	ReasonTimeout:       {ExponentialBackoff, FallbackOnly},
	ReasonRateLimit:     {ExponentialBackoff},
}

// Chain returns the strategy chain for a reason.
func Chain(reason Reason) []Strategy {
	chain, ok := chains[reason]
	if !ok {
		return nil
	}
	out := make([]Strategy, len(chain))
	copy(out, chain)
	return out
}

// Policy bounds retry behaviour.
type Policy struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	ExponentialBase float64
	Jitter          bool
}

// DefaultPolicy matches the service defaults (3 attempts, 1s..30s window).
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2,
		Jitter:          true,
	}
}

// Delay computes the backoff before attempt n (0-based; attempt 0 never
// waits). With jitter on, the delay is scaled by a factor in [0.5, 1.5).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	base := p.ExponentialBase
	if base <= 0 {
		base = 2
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(base, float64(attempt)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	return d
}

// Adjustments are the attempt parameters strategies mutate. The agent feeds
// them into the matcher and parser options of the next attempt.
type Adjustments struct {
	// ConfidenceThreshold is the match-set confidence required to proceed.
	ConfidenceThreshold float64
	// LexicalThreshold is the lexical matcher acceptance floor.
	LexicalThreshold float64
	// ForceLLM re-runs the model even over case-memory hits.
	ForceLLM bool
	// DisableLLM turns the model path off.
	DisableLLM bool
	// Encoding is the forced text encoding for reparsing.
	Encoding string

	encodingIdx int
}

// Apply mutates the adjustments according to the strategy.
func (a *Adjustments) Apply(strategy Strategy) {
	switch strategy {
	case StrictMatching:
		a.ConfidenceThreshold = StrictThreshold
		a.ForceLLM = true
		a.DisableLLM = false
	case LenientMatching:
		a.LexicalThreshold = LenientThreshold
		a.ConfidenceThreshold = LenientThreshold
	case FallbackOnly:
		a.DisableLLM = true
		a.ForceLLM = false
	case AlternativeParser:
		a.encodingIdx = (a.encodingIdx + 1) % len(parser.TextEncodings)
		a.Encoding = parser.TextEncodings[a.encodingIdx]
	case ExponentialBackoff, AskHuman:
		// No parameter changes; backoff waits, AskHuman escalates.
	}
}

// Outcome records how a retried operation ended, for observability.
type Outcome struct {
	Succeeded  bool          `json:"succeeded"`
	Reason     Reason        `json:"reason"`
	Strategy   Strategy      `json:"strategy"`
	Attempts   int           `json:"attempts"`
	TotalDelay time.Duration `json:"total_delay"`
	Err        error         `json:"-"`
}

// AttemptFn runs one attempt under a strategy with the accumulated
// adjustments. Returning nil ends the retry loop.
type AttemptFn func(ctx context.Context, strategy Strategy, adj *Adjustments) error

// Run walks the reason's strategy chain, applying each strategy to the
// adjustments and invoking fn, sleeping per the policy between attempts.
// AskHuman in the chain terminates immediately with Succeeded=false and
// Strategy=AskHuman so the caller can escalate.
func Run(ctx context.Context, policy Policy, reason Reason, fn AttemptFn) Outcome {
	outcome := Outcome{Reason: reason}
	adj := &Adjustments{}

	chain := Chain(reason)
	if len(chain) == 0 {
		outcome.Err = fmt.Errorf("retry: no strategy chain for reason %s", reason)
		return outcome
	}

	max := policy.MaxRetries
	if max <= 0 {
		max = len(chain)
	}

	for attempt := 0; attempt < max && attempt < len(chain); attempt++ {
		strategy := chain[attempt]
		outcome.Strategy = strategy
		outcome.Attempts = attempt + 1

		if strategy == AskHuman {
			outcome.Err = fmt.Errorf("retry: chain for %s exhausted automation", reason)
			return outcome
		}

		if delay := policy.Delay(attempt); delay > 0 {
			zap.L().Debug("retry backoff",
				zap.String("reason", string(reason)),
				zap.String("strategy", string(strategy)),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				outcome.Err = ctx.Err()
				return outcome
			case <-time.After(delay):
				outcome.TotalDelay += delay
			}
		}

		adj.Apply(strategy)
		if err := fn(ctx, strategy, adj); err != nil {
			outcome.Err = err
			if ctx.Err() != nil {
				return outcome
			}
			zap.L().Warn("retry attempt failed",
				zap.String("reason", string(reason)),
				zap.String("strategy", string(strategy)),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}
		outcome.Succeeded = true
		outcome.Err = nil
		return outcome
	}
	return outcome
}
