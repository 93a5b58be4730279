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
package validation

import (
	"context"

	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/llm"
	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

// Options tune one validation run.
type Options struct {
	Sheet schema.Sheet
	// Answers are the diagnostic questionnaire responses; layer 2 is skipped
	// when nil.
	Answers schema.Answers
	// TolerancePercent overrides the layer-2 tolerance; zero keeps the
	// default.
	TolerancePercent float64
	// EnableAI turns on the model review layer.
	EnableAI bool
	// Rules are knowledge-base guidance lines injected into the AI digest.
	Rules []string
}

// Outcome is the complete validation result for one roster.
type Outcome struct {
	Bundle     Bundle           `json:"bundle"`
	Layer2     Layer2Result     `json:"layer2"`
	Duplicates DuplicateReport  `json:"duplicates"`
	Confidence ConfidenceRecord `json:"confidence"`
	Anomalies  AnomalyReport    `json:"anomalies"`
}

// Validator composes the three layers and the duplicate detector.
type Validator struct {
	layer1 *Layer1
	layer2 *Layer2
	ai     *AIValidator
}

// New creates a validator. provider may be nil; the AI layer then stays off
// regardless of options.
func New(registry *schema.Registry, provider llm.Provider) *Validator {
	return &Validator{
		layer1: NewLayer1(registry),
		layer2: &Layer2{},
		ai:     NewAIValidator(provider),
	}
}

// Run executes all layers, merges their findings, and scores the result.
func (v *Validator) Run(ctx context.Context, res *parser.Result, set *matcher.Set, opts Options) (*Outcome, error) {
	bundle, err := v.layer1.Validate(ctx, res, set, opts.Sheet)
	if err != nil {
		return nil, err
	}

	all := make([]Finding, 0, len(bundle.Errors)+len(bundle.Warnings))
	all = append(all, bundle.Errors...)
	all = append(all, bundle.Warnings...)

	outcome := &Outcome{}

	if len(opts.Answers) > 0 {
		l2 := v.layer2.Validate(res, set, opts.Answers, opts.TolerancePercent)
		outcome.Layer2 = *l2
		all = append(all, v.layer2.Findings(l2)...)
		outcome.Bundle.Checks = l2.Checks
	} else {
		outcome.Layer2 = Layer2Result{Status: Layer2Passed}
	}

	dup := DetectDuplicates(res, set)
	outcome.Duplicates = *dup
	all = append(all, dup.Findings()...)

	if opts.EnableAI {
		aiFindings, reasoning, used := v.ai.Validate(ctx, res, set, opts.Answers, opts.Rules)
		all = append(all, aiFindings...)
		outcome.Bundle.AIReasoning = reasoning
		outcome.Bundle.UsedAI = used
	}

	for _, f := range MergeFindings(all) {
		outcome.Bundle.add(f)
	}
	outcome.Bundle.finalize()

	outcome.Confidence = ScoreBundle(len(res.Rows), &outcome.Bundle)
	outcome.Anomalies = DetectAnomalies(set)

	zap.L().Info("validation complete",
		zap.Int("rows", len(res.Rows)),
		zap.Int("errors", len(outcome.Bundle.Errors)),
		zap.Int("warnings", len(outcome.Bundle.Warnings)),
		zap.Float64("confidence", outcome.Confidence.Score),
		zap.String("layer2", string(outcome.Layer2.Status)),
	)
	return outcome, nil
}
