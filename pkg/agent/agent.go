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

// Package agent drives the validation pipeline with a Think-Act-Observe
// loop. The agent owns step ordering and escalation; it reaches the pipeline
// components only through the tool registry and keeps exactly three context
// slots: parsed, matches, validation.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/casestore"
	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/retry"
	"github.com/wikisoft/rostercheck/pkg/schema"
	"github.com/wikisoft/rostercheck/pkg/tools"
	"github.com/wikisoft/rostercheck/pkg/validation"
)

// Action is the agent's next move.
type Action string

const (
	ActionParse    Action = "PARSE"
	ActionMatch    Action = "MATCH"
	ActionValidate Action = "VALIDATE"
	ActionAskHuman Action = "ASK_HUMAN"
	ActionComplete Action = "COMPLETE"
	ActionFail     Action = "FAIL"
)

// Status of one agent run.
type Status string

const (
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusNeedsHuman Status = "needs_human"
)

// Grade classifies the result envelope.
type Grade string

const (
	GradeA Grade = "A" // auto_complete
	GradeB Grade = "B" // auto_correct_with_review
	GradeC Grade = "C" // manual_review
	GradeD Grade = "D" // full_manual_review
)

// Stable failure reasons.
const (
	ReasonCancelled     = "cancelled"
	ReasonMaxIterations = "max_iterations"
	ReasonLowMatchConf  = "low_match_confidence"
)

// Thought is the reasoning half of one loop step.
type Thought struct {
	Iteration int    `json:"iteration"`
	Action    Action `json:"action"`
	Reasoning string `json:"reasoning"`
	Retry     bool   `json:"retry,omitempty"`
}

// Observation is what the act produced.
type Observation struct {
	Success    bool    `json:"success"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
	Error      string  `json:"error,omitempty"`
}

// Step is one recorded (Thought, Observation) pair. Every step corresponds
// to exactly one Act call.
type Step struct {
	Thought     Thought     `json:"thought"`
	Observation Observation `json:"observation"`
}

// Slots is the agent's request-local context: exactly the three
// intermediate artefacts, never an open bag.
type Slots struct {
	Parsed     *parser.Result      `json:"parsed,omitempty"`
	Matches    *matcher.Set        `json:"matches,omitempty"`
	Validation *validation.Outcome `json:"validation,omitempty"`
}

// Request is one validation job.
type Request struct {
	Data      []byte
	Sheet     schema.Sheet
	Answers   schema.Answers
	SessionID string
}

// Envelope is the agent's result. Terminal statuses carry a grade; FAIL and
// ASK_HUMAN additionally carry the reason and whatever context was built so
// the caller can resume or escalate.
type Envelope struct {
	Status         Status  `json:"status"`
	Reason         string  `json:"reason,omitempty"`
	Grade          Grade   `json:"grade,omitempty"`
	Recommendation string  `json:"recommendation,omitempty"`
	Confidence     float64 `json:"confidence"`
	SessionID      string  `json:"session_id,omitempty"`
	Transcript     []Step  `json:"transcript"`
	Slots          Slots   `json:"context"`
	NeedsReview    bool    `json:"needs_human_review"`
}

// Config bounds one agent run. Zero values fall back to the defaults of the
// service configuration.
type Config struct {
	MaxIterations   int
	MatchRetryLimit int

	// Grade thresholds.
	AutoComplete float64 // >= : grade A
	AutoCorrect  float64 // >= : grade B
	NeedsReview  float64 // >= : grade C

	// MatchRetryThreshold triggers a re-match below it; EscalateThreshold
	// hands off to a human below it.
	MatchRetryThreshold float64
	EscalateThreshold   float64

	EnableAI         bool
	TolerancePercent float64
	MaxRows          int

	RetryPolicy retry.Policy
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       5,
		MatchRetryLimit:     2,
		AutoComplete:        0.95,
		AutoCorrect:         0.80,
		NeedsReview:         0.50,
		MatchRetryThreshold: 0.80,
		EscalateThreshold:   0.50,
		MaxRows:             parser.DefaultMaxRows,
		RetryPolicy:         retry.DefaultPolicy(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.MatchRetryLimit <= 0 {
		c.MatchRetryLimit = d.MatchRetryLimit
	}
	if c.AutoComplete <= 0 {
		c.AutoComplete = d.AutoComplete
	}
	if c.AutoCorrect <= 0 {
		c.AutoCorrect = d.AutoCorrect
	}
	if c.NeedsReview <= 0 {
		c.NeedsReview = d.NeedsReview
	}
	if c.MatchRetryThreshold <= 0 {
		c.MatchRetryThreshold = d.MatchRetryThreshold
	}
	if c.EscalateThreshold <= 0 {
		c.EscalateThreshold = d.EscalateThreshold
	}
	if c.MaxRows <= 0 {
		c.MaxRows = d.MaxRows
	}
	return c
}

// Agent is the sequential pipeline driver. One Agent may serve many
// requests; all run state lives in the per-run locals.
type Agent struct {
	registry *tools.Registry
	config   Config
}

// New creates an agent over a registry.
func New(registry *tools.Registry, config Config) *Agent {
	return &Agent{registry: registry, config: config.withDefaults()}
}

// run is the per-request state.
type run struct {
	slots        Slots
	steps        []Step
	matchRetries int
	adj          retry.Adjustments
}

// Run executes the loop until a terminal state or the iteration cap.
func (a *Agent) Run(ctx context.Context, req Request) *Envelope {
	if req.Sheet == "" {
		req.Sheet = schema.SheetActive
	}
	r := &run{}

	for iter := 1; iter <= a.config.MaxIterations; iter++ {
		if ctx.Err() != nil {
			return a.fail(r, req, ReasonCancelled, "요청이 취소되었습니다")
		}

		thought := a.think(r, iter)
		zap.L().Debug("agent thought",
			zap.Int("iteration", iter),
			zap.String("action", string(thought.Action)),
			zap.Bool("retry", thought.Retry),
		)

		switch thought.Action {
		case ActionParse:
			if env := a.actParse(ctx, r, req, thought); env != nil {
				return env
			}
		case ActionMatch:
			if env := a.actMatch(ctx, r, req, thought); env != nil {
				return env
			}
		case ActionValidate:
			if env := a.actValidate(ctx, r, req, thought); env != nil {
				return env
			}
			// Early termination: a near-perfect validation skips further
			// deliberation.
			if r.slots.Validation != nil && r.slots.Validation.Confidence.Score >= a.config.AutoComplete {
				return a.complete(ctx, r, req)
			}
		case ActionAskHuman:
			r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
				Success: true,
				Summary: "매칭 신뢰도가 낮아 담당자 확인으로 전환합니다",
			}})
			return a.askHuman(r, req, ReasonLowMatchConf)
		case ActionComplete:
			r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
				Success:    true,
				Summary:    "모든 단계가 끝났습니다",
				Confidence: a.overallConfidence(r),
			}})
			return a.complete(ctx, r, req)
		case ActionFail:
			return a.fail(r, req, thought.Reasoning, thought.Reasoning)
		}
	}

	// Iteration cap. A finished validation still completes; anything less is
	// a failure with partial context.
	if r.slots.Validation != nil {
		return a.complete(ctx, r, req)
	}
	return a.fail(r, req, ReasonMaxIterations, "반복 한도 내에 파이프라인을 끝내지 못했습니다")
}

// think chooses the next action from the slot state. The rules are fixed;
// given identical inputs the loop is deterministic.
func (a *Agent) think(r *run, iter int) Thought {
	t := Thought{Iteration: iter}
	switch {
	case r.slots.Parsed == nil:
		t.Action = ActionParse
		t.Reasoning = "파일이 아직 파싱되지 않았습니다"
	case r.slots.Matches == nil:
		t.Action = ActionMatch
		t.Reasoning = "헤더 매칭이 필요합니다"
	default:
		conf := r.slots.Matches.Confidence()
		switch {
		case conf < a.config.MatchRetryThreshold && r.matchRetries < a.config.MatchRetryLimit:
			t.Action = ActionMatch
			t.Retry = true
			t.Reasoning = fmt.Sprintf("매칭 신뢰도 %.2f < %.2f, 전략을 바꿔 재시도합니다", conf, a.config.MatchRetryThreshold)
		case conf < a.config.EscalateThreshold:
			t.Action = ActionAskHuman
			t.Reasoning = fmt.Sprintf("매칭 신뢰도 %.2f < %.2f", conf, a.config.EscalateThreshold)
		case r.slots.Validation == nil:
			t.Action = ActionValidate
			t.Reasoning = "검증 단계가 남아 있습니다"
		default:
			t.Action = ActionComplete
			t.Reasoning = "모든 컨텍스트 슬롯이 채워졌습니다"
		}
	}
	return t
}

func (a *Agent) actParse(ctx context.Context, r *run, req Request, thought Thought) *Envelope {
	opts := parser.Options{MaxRows: a.config.MaxRows, Encoding: r.adj.Encoding, Sheet: req.Sheet}
	result, err := a.registry.Dispatch(ctx, tools.ParseParams{Data: req.Data, Opts: opts})
	if err != nil {
		return a.observeFatal(r, req, thought, err)
	}

	if !result.Success && result.Error != nil && result.Error.Retryable {
		// Rotate the text encoding before giving up on the bytes.
		outcome := retry.Run(ctx, a.config.RetryPolicy, retry.ReasonParseFailure,
			func(ctx context.Context, _ retry.Strategy, adj *retry.Adjustments) error {
				opts.Encoding = adj.Encoding
				retried, derr := a.registry.Dispatch(ctx, tools.ParseParams{Data: req.Data, Opts: opts})
				if derr != nil {
					return derr
				}
				if !retried.Success {
					return retried.Error
				}
				result = retried
				return nil
			})
		if outcome.Succeeded {
			r.adj.Encoding = opts.Encoding
		}
	}

	if !result.Success {
		r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
			Success: false,
			Error:   result.Error.Message,
		}})
		return a.fail(r, req, result.Error.Code, result.Error.Message)
	}

	parsed := result.Data.(*parser.Result)
	r.slots.Parsed = parsed
	r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
		Success:    true,
		Summary:    fmt.Sprintf("%d개 열, %d개 행 파싱 (%s)", len(parsed.Headers), len(parsed.Rows), parsed.Meta.Kind),
		Confidence: result.Confidence,
	}})
	return nil
}

func (a *Agent) actMatch(ctx context.Context, r *run, req Request, thought Thought) *Envelope {
	if thought.Retry {
		// Walk the LOW_CONFIDENCE strategy chain one step per retry:
		// strict first, then lenient.
		chain := retry.Chain(retry.ReasonLowConfidence)
		if r.matchRetries < len(chain) && chain[r.matchRetries] != retry.AskHuman {
			r.adj.Apply(chain[r.matchRetries])
		}
		r.matchRetries++
	}

	opts := matcher.Options{
		Sheet:            req.Sheet,
		LexicalThreshold: r.adj.LexicalThreshold,
		DisableLLM:       r.adj.DisableLLM,
		ForceLLM:         r.adj.ForceLLM,
		Retry:            thought.Retry,
	}
	result, err := a.registry.Dispatch(ctx, tools.MatchParams{Headers: r.slots.Parsed.Headers, Opts: opts})
	if err != nil {
		return a.observeFatal(r, req, thought, err)
	}
	if !result.Success {
		r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
			Success: false,
			Error:   result.Error.Message,
		}})
		if result.Error.Retryable {
			// A transient model failure is not fatal; the lexical fallback
			// can still produce a set.
			r.adj.Apply(retry.FallbackOnly)
			return nil
		}
		return a.fail(r, req, "match_failure", result.Error.Message)
	}

	set := result.Data.(*matcher.Set)
	prev := r.slots.Matches
	// A retry only replaces the slot when it actually improved things.
	if prev == nil || set.Confidence() >= prev.Confidence() {
		r.slots.Matches = set
	}
	r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
		Success:    true,
		Summary:    fmt.Sprintf("%d개 헤더 매칭, 신뢰도 %.2f", set.Columns, set.Confidence()),
		Confidence: set.Confidence(),
	}})
	return nil
}

func (a *Agent) actValidate(ctx context.Context, r *run, req Request, thought Thought) *Envelope {
	opts := validation.Options{
		Sheet:            req.Sheet,
		Answers:          req.Answers,
		TolerancePercent: a.config.TolerancePercent,
		EnableAI:         a.config.EnableAI && !r.adj.DisableLLM,
	}
	result, err := a.registry.Dispatch(ctx, tools.ValidateParams{Parsed: r.slots.Parsed, Matches: r.slots.Matches, Opts: opts})
	if err != nil {
		return a.observeFatal(r, req, thought, err)
	}
	if !result.Success {
		r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
			Success: false,
			Error:   result.Error.Message,
		}})
		return a.fail(r, req, "validation_failure", result.Error.Message)
	}

	outcome := result.Data.(*validation.Outcome)
	r.slots.Validation = outcome
	r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
		Success: true,
		Summary: fmt.Sprintf("오류 %d건, 경고 %d건, 점수 %.2f",
			len(outcome.Bundle.Errors), len(outcome.Bundle.Warnings), outcome.Confidence.Score),
		Confidence: outcome.Confidence.Score,
	}})
	return nil
}

// observeFatal handles a logical dispatch error: the agent translates it
// into a FAIL with the error attached to the last observation.
func (a *Agent) observeFatal(r *run, req Request, thought Thought, err error) *Envelope {
	r.steps = append(r.steps, Step{Thought: thought, Observation: Observation{
		Success: false,
		Error:   err.Error(),
	}})
	return a.fail(r, req, "tool_error", err.Error())
}

// overallConfidence is the data-quality score once validation ran, the match
// confidence before that.
func (a *Agent) overallConfidence(r *run) float64 {
	if r.slots.Validation != nil {
		return r.slots.Validation.Confidence.Score
	}
	if r.slots.Matches != nil {
		return r.slots.Matches.Confidence()
	}
	return 0
}

// gradeFor maps a confidence to the envelope grade and recommendation.
func (a *Agent) gradeFor(confidence float64) (Grade, string) {
	switch {
	case confidence >= a.config.AutoComplete:
		return GradeA, "auto_complete"
	case confidence >= a.config.AutoCorrect:
		return GradeB, "auto_correct_with_review"
	case confidence >= a.config.NeedsReview:
		return GradeC, "manual_review"
	default:
		return GradeD, "full_manual_review"
	}
}

func (a *Agent) complete(ctx context.Context, r *run, req Request) *Envelope {
	confidence := a.overallConfidence(r)
	grade, recommendation := a.gradeFor(confidence)

	a.recordCase(ctx, r, grade)

	env := &Envelope{
		Status:         StatusCompleted,
		Grade:          grade,
		Recommendation: recommendation,
		Confidence:     confidence,
		SessionID:      req.SessionID,
		Transcript:     r.steps,
		Slots:          r.slots,
		NeedsReview:    grade == GradeC || grade == GradeD,
	}
	zap.L().Info("agent run completed",
		zap.String("session_id", req.SessionID),
		zap.String("grade", string(grade)),
		zap.Float64("confidence", confidence),
		zap.Int("steps", len(r.steps)),
	)
	return env
}

// recordCase feeds a finished mapping back into the case memory so the next
// upload with the same headers binds as few-shot.
func (a *Agent) recordCase(ctx context.Context, r *run, grade Grade) {
	set := r.slots.Matches
	if set == nil || r.slots.Parsed == nil {
		return
	}
	mappings := make([]casestore.Mapping, 0, len(set.Matches))
	for _, m := range set.Matches {
		if m.Target == "" {
			continue
		}
		mappings = append(mappings, casestore.Mapping{Source: m.Source, Target: m.Target, Confidence: m.Confidence})
	}
	if len(mappings) == 0 {
		return
	}

	result, err := a.registry.Dispatch(ctx, tools.SaveCaseParams{Request: casestore.SaveRequest{
		Headers:         r.slots.Parsed.Headers,
		Matches:         mappings,
		Confidence:      set.Confidence(),
		WasAutoApproved: grade == GradeA || grade == GradeB,
	}})
	if err != nil || !result.Success {
		zap.L().Warn("case recording skipped", zap.Error(err))
	}
}

func (a *Agent) fail(r *run, req Request, reason, message string) *Envelope {
	confidence := a.overallConfidence(r)
	grade, _ := a.gradeFor(confidence)
	env := &Envelope{
		Status:      StatusFailed,
		Reason:      reason,
		Grade:       grade,
		Confidence:  confidence,
		SessionID:   req.SessionID,
		Transcript:  r.steps,
		Slots:       r.slots,
		NeedsReview: true,
	}
	zap.L().Warn("agent run failed",
		zap.String("session_id", req.SessionID),
		zap.String("reason", reason),
		zap.String("message", message),
	)
	return env
}

func (a *Agent) askHuman(r *run, req Request, reason string) *Envelope {
	confidence := a.overallConfidence(r)
	grade, _ := a.gradeFor(confidence)
	env := &Envelope{
		Status:      StatusNeedsHuman,
		Reason:      reason,
		Grade:       grade,
		Confidence:  confidence,
		SessionID:   req.SessionID,
		Transcript:  r.steps,
		Slots:       r.slots,
		NeedsReview: true,
	}
	zap.L().Info("agent escalated to human",
		zap.String("session_id", req.SessionID),
		zap.String("reason", reason),
	)
	return env
}
