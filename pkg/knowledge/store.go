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

// Package knowledge persists the error rules and learned exceptions the AI
// validator consults. The store is process-wide; writes are serialized and
// readers get snapshot copies.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Rule is one active validation guideline injected into the AI review
// prompt.
type Rule struct {
	ID        string    `json:"id"`
	Field     string    `json:"field"`
	Condition string    `json:"condition"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// Pattern is a learned exception: a value combination that looked wrong but
// was confirmed acceptable (or the reverse) by a human, together with the
// interpretation to apply next time.
type Pattern struct {
	Field                 string    `json:"field"`
	OriginalValue         string    `json:"original_value"`
	WasError              bool      `json:"was_error"`
	CorrectInterpretation string    `json:"correct_interpretation"`
	DiagnosticContext     string    `json:"diagnostic_context,omitempty"`
	Occurrences           int       `json:"occurrences"`
	LearnedAt             time.Time `json:"learned_at"`
}

// patternKey dedupes learning across sessions: the same field with the same
// interpretation prefix is one pattern, not many.
func patternKey(field, interpretation string) string {
	runes := []rune(interpretation)
	if len(runes) > 30 {
		runes = runes[:30]
	}
	return field + "|" + string(runes)
}

// Base is the built-in rule set shipped with the service.
var baseRules = []Rule{
	{ID: "base-hire-age", Field: "입사일", Condition: "입사 시점 나이 < 18", Message: "만 18세 미만 입사는 표준 근로계약 검토가 필요합니다", Severity: "error", Category: "employment", Active: true},
	{ID: "base-salary-min", Field: "기준급여", Condition: "기준급여 < 최저임금 월 환산액", Message: "최저임금 미달 급여는 입력 오류일 가능성이 높습니다", Severity: "warning", Category: "salary", Active: true},
	{ID: "base-retire-order", Field: "퇴사일", Condition: "퇴사일 < 입사일", Message: "퇴사일이 입사일보다 빠를 수 없습니다", Severity: "error", Category: "dates", Active: true},
}

// Store holds the rules and learned patterns, optionally backed by two JSON
// files under dir.
type Store struct {
	mu       sync.RWMutex
	dir      string // empty for in-memory
	rules    []Rule
	patterns map[string]Pattern
}

// NewMemory creates an in-memory knowledge base seeded with the base rules.
func NewMemory() *Store {
	return &Store{
		rules:    append([]Rule(nil), baseRules...),
		patterns: make(map[string]Pattern),
	}
}

// Open loads (or initializes) a file-backed knowledge base under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create knowledge dir: %w", err)
	}
	s := NewMemory()
	s.dir = dir

	if data, err := os.ReadFile(s.rulesPath()); err == nil {
		var rules []Rule
		if err := json.Unmarshal(data, &rules); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.rulesPath(), err)
		}
		s.rules = rules
	}
	if data, err := os.ReadFile(s.patternsPath()); err == nil {
		var patterns map[string]Pattern
		if err := json.Unmarshal(data, &patterns); err != nil {
			return nil, fmt.Errorf("decode %s: %w", s.patternsPath(), err)
		}
		s.patterns = patterns
	}
	return s, nil
}

func (s *Store) rulesPath() string    { return filepath.Join(s.dir, "rules.json") }
func (s *Store) patternsPath() string { return filepath.Join(s.dir, "patterns.json") }

// Rules returns the active rule set.
func (s *Store) Rules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out
}

// RuleLines renders the active rules as prompt guidance lines.
func (s *Store) RuleLines() []string {
	rules := s.Rules()
	lines := make([]string, 0, len(rules))
	for _, r := range rules {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s → %s", r.Severity, r.Field, r.Condition, r.Message))
	}
	return lines
}

// AddRule records a new rule and returns its id.
func (s *Store) AddRule(field, condition, message, severity, category string) (string, error) {
	rule := Rule{
		ID:        uuid.NewString(),
		Field:     field,
		Condition: condition,
		Message:   message,
		Severity:  severity,
		Category:  category,
		CreatedAt: time.Now().UTC(),
		Active:    true,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule)
	if err := s.flushRulesLocked(); err != nil {
		return "", err
	}
	zap.L().Info("knowledge rule added",
		zap.String("rule_id", rule.ID),
		zap.String("field", field),
		zap.String("severity", severity),
	)
	return rule.ID, nil
}

// LearnFromCorrection records a human correction as an exception pattern.
// Re-learning the same (field, interpretation) bumps the occurrence count
// instead of storing a duplicate.
func (s *Store) LearnFromCorrection(field, originalValue string, wasError bool, correctInterpretation, diagnosticContext string) error {
	key := patternKey(field, correctInterpretation)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.patterns[key]; ok {
		existing.Occurrences++
		existing.LearnedAt = time.Now().UTC()
		s.patterns[key] = existing
	} else {
		s.patterns[key] = Pattern{
			Field:                 field,
			OriginalValue:         originalValue,
			WasError:              wasError,
			CorrectInterpretation: correctInterpretation,
			DiagnosticContext:     diagnosticContext,
			Occurrences:           1,
			LearnedAt:             time.Now().UTC(),
		}
	}
	return s.flushPatternsLocked()
}

// Patterns returns a snapshot of the learned exceptions.
func (s *Store) Patterns() []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Pattern, 0, len(s.patterns))
	for _, p := range s.patterns {
		out = append(out, p)
	}
	return out
}

func (s *Store) flushRulesLocked() error {
	if s.dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.rules, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.rulesPath(), data, 0o644)
}

func (s *Store) flushPatternsLocked() error {
	if s.dir == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.patterns, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.patternsPath(), data, 0o644)
}
