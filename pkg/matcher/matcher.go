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

// Package matcher maps customer headers onto the standard schema. Resolution
// order: ignore-list partition, case-memory direct hits, LLM mapping,
// lexical fallback. The output always carries exactly one match per input
// header, in input order.
package matcher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/casestore"
	"github.com/wikisoft/rostercheck/pkg/llm"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

// Provenance tags where a match came from.
type Provenance string

const (
	ProvenanceIgnored  Provenance = "ignored"
	ProvenanceFewShot  Provenance = "few-shot"
	ProvenanceAI       Provenance = "ai"
	ProvenanceLexical  Provenance = "lexical-fallback"
	ProvenanceUnmapped Provenance = "unmapped"
)

// Match binds one customer header to a standard field. Target is empty
// exactly when the provenance is ignored or unmapped.
type Match struct {
	Source     string     `json:"source"`
	Target     string     `json:"target,omitempty"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
}

// Set is the full mapping for one upload.
type Set struct {
	Columns     int      `json:"columns"`
	Matches     []Match  `json:"matches"`
	Warnings    []string `json:"warnings"`
	UsedAI      bool     `json:"used_ai"`
	UsedFewShot bool     `json:"used_fewshot"`
}

// Confidence is the set's aggregate score: the mean of active-match
// confidences, minus 0.05 per unmapped header. Ignored columns do not
// participate. Clamped to [0, 1].
func (s *Set) Confidence() float64 {
	var sum float64
	active, unmapped := 0, 0
	for _, m := range s.Matches {
		switch m.Provenance {
		case ProvenanceIgnored:
			continue
		case ProvenanceUnmapped:
			unmapped++
			active++
		default:
			sum += m.Confidence
			active++
		}
	}
	if active == 0 {
		return 1.0
	}
	score := sum/float64(active) - 0.05*float64(unmapped)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// SourceFor returns the customer header bound to a canonical field.
func (s *Set) SourceFor(canonical string) (string, bool) {
	for _, m := range s.Matches {
		if m.Target == canonical {
			return m.Source, true
		}
	}
	return "", false
}

// Targets returns the set of bound canonical fields.
func (s *Set) Targets() map[string]bool {
	out := make(map[string]bool)
	for _, m := range s.Matches {
		if m.Target != "" {
			out[m.Target] = true
		}
	}
	return out
}

// DefaultLexicalThreshold accepts a lexical candidate.
const DefaultLexicalThreshold = 0.65

// Options tune one matching request. The retry strategies mutate these.
type Options struct {
	Sheet schema.Sheet
	// LexicalThreshold is the minimum similarity for the lexical fallback.
	// Zero means DefaultLexicalThreshold.
	LexicalThreshold float64
	// DisableLLM skips the model call (FALLBACK_ONLY strategy, llm.enabled
	// false, or missing credentials).
	DisableLLM bool
	// ForceLLM calls the model even for headers the case memory already
	// bound (STRICT_MATCHING strategy).
	ForceLLM bool
	// Retry marks a re-match pass; thresholds have usually been altered.
	Retry bool
}

// ignoredKeywords close over the headers that never map to schema fields.
var ignoredKeywords = []string{"참고사항", "비고", "메모", "note", "remark", "comment", "unnamed"}

// Matcher resolves headers against the schema, consulting the case memory
// and an optional model.
type Matcher struct {
	registry *schema.Registry
	cases    *casestore.Store
	provider llm.Provider // nil disables the model path
}

// New creates a matcher. provider may be nil.
func New(registry *schema.Registry, cases *casestore.Store, provider llm.Provider) *Matcher {
	return &Matcher{registry: registry, cases: cases, provider: provider}
}

// MatchHeaders runs the canonical matching algorithm over the headers.
func (m *Matcher) MatchHeaders(ctx context.Context, headers []string, opts Options) (*Set, error) {
	if opts.Sheet == "" {
		opts.Sheet = schema.SheetActive
	}
	if opts.LexicalThreshold <= 0 {
		opts.LexicalThreshold = DefaultLexicalThreshold
	}

	set := &Set{Columns: len(headers)}
	bound := make(map[int]Match, len(headers)) // header index -> match

	// 1. Partition out ignored headers.
	var activeIdx []int
	for i, h := range headers {
		if isIgnored(h) {
			bound[i] = Match{Source: h, Confidence: 0, Provenance: ProvenanceIgnored}
			continue
		}
		activeIdx = append(activeIdx, i)
	}

	// 2. Case-memory direct hits.
	var remaining []int
	for _, i := range activeIdx {
		if opts.ForceLLM {
			remaining = append(remaining, i)
			continue
		}
		if target, ok := m.caseHit(headers[i]); ok {
			bound[i] = Match{Source: headers[i], Target: target, Confidence: 0.95, Provenance: ProvenanceFewShot}
			set.UsedFewShot = true
			continue
		}
		remaining = append(remaining, i)
	}

	// 3. LLM mapping for what remains.
	if len(remaining) > 0 && m.provider != nil && !opts.DisableLLM {
		llmBound, err := m.matchWithModel(ctx, headers, remaining, opts)
		if err != nil {
			set.Warnings = append(set.Warnings, fmt.Sprintf("AI 매칭 실패, 사전 기반 매칭으로 대체: %v", err))
			zap.L().Warn("llm matching failed, falling back to lexical", zap.Error(err))
		} else {
			set.UsedAI = true
			var still []int
			for _, i := range remaining {
				if match, ok := llmBound[i]; ok {
					bound[i] = match
				} else {
					still = append(still, i)
				}
			}
			remaining = still
		}
	}

	// 4. Lexical fallback.
	for _, i := range remaining {
		bound[i] = m.lexicalMatch(headers[i], opts)
	}

	// 5. Merge in original header order.
	set.Matches = make([]Match, len(headers))
	for i, h := range headers {
		match, ok := bound[i]
		if !ok {
			match = Match{Source: h, Provenance: ProvenanceUnmapped}
		}
		set.Matches[i] = match
	}

	// 6. Missing-required warnings. Ignored columns never trigger these.
	targets := set.Targets()
	for _, req := range m.registry.Required(opts.Sheet) {
		if !targets[req] {
			set.Warnings = append(set.Warnings, fmt.Sprintf("필수 항목 누락: %s", req))
		}
	}

	zap.L().Debug("headers matched",
		zap.Int("columns", set.Columns),
		zap.Bool("used_ai", set.UsedAI),
		zap.Bool("used_fewshot", set.UsedFewShot),
		zap.Float64("confidence", set.Confidence()),
	)
	return set, nil
}

// caseHit looks for an exact normalized-header binding in the case memory,
// most recent case first.
func (m *Matcher) caseHit(header string) (string, bool) {
	if m.cases == nil {
		return "", false
	}
	key := schema.NormalizeKey(header)
	for _, c := range m.cases.FindByHeader(header) {
		for _, mapping := range c.Matches {
			if schema.NormalizeKey(mapping.Source) == key && mapping.Target != "" {
				// Human corrections recorded on the case take precedence
				// over the stored binding.
				if corrected, ok := c.HumanCorrections[mapping.Source]; ok && corrected != "" {
					return corrected, true
				}
				return mapping.Target, true
			}
		}
	}
	return "", false
}

func isIgnored(header string) bool {
	key := schema.NormalizeKey(header)
	if key == "" {
		return true
	}
	for _, kw := range ignoredKeywords {
		if strings.Contains(key, schema.NormalizeKey(kw)) {
			return true
		}
	}
	return false
}
