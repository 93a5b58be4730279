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

// Package tools is the uniform dispatch surface between the agent and the
// pipeline components. Every component is exposed as exactly one tool; the
// agent never imports a component directly. Invocations form a closed union
// of typed parameter structs rather than string-keyed argument bags.
package tools

import (
	"context"
	"fmt"

	"github.com/wikisoft/rostercheck/pkg/casestore"
	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/validation"
)

// Tool names. One entry per pipeline component.
const (
	ToolParseFile     = "parse_file"
	ToolMatchHeaders  = "match_headers"
	ToolValidateData  = "validate_data"
	ToolDetectDupes   = "detect_duplicates"
	ToolScore         = "score_confidence"
	ToolSaveCase      = "save_case"
	ToolCaseStats     = "case_stats"
	ToolAddRule       = "kb_add_rule"
	ToolLearnFromUser = "kb_learn_from_correction"
)

// Invocation is the closed union of tool calls. Each parameter struct names
// the tool it drives; the registry dispatches on that name.
type Invocation interface {
	// Tool returns the name of the tool this invocation targets.
	Tool() string
}

// Param describes one declared tool parameter, for discovery and docs.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// Tool is one executable pipeline capability.
type Tool interface {
	// Name returns the tool's unique identifier.
	Name() string

	// Description returns a human-readable description.
	Description() string

	// Params returns the declared parameter list.
	Params() []Param

	// Execute runs the tool. The invocation must be the parameter type the
	// tool declares; anything else is a logical error.
	Execute(ctx context.Context, inv Invocation) (*Result, error)
}

// Result is the outcome of one tool execution.
type Result struct {
	// Success indicates the tool ran to completion.
	Success bool

	// Data holds the tool's typed output (parser.Result, matcher.Set, ...).
	Data any

	// Confidence is the tool's self-reported confidence in [0, 1] where the
	// tool has a meaningful notion of it; 1 otherwise.
	Confidence float64

	// Error carries structured failure information when Success is false.
	Error *Error
}

// Error is a structured tool failure.
type Error struct {
	// Code is a machine-readable error code.
	Code string

	// Message is a human-readable error message.
	Message string

	// Retryable indicates the retry strategy may attempt the call again.
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// badInvocation reports a parameter struct handed to the wrong tool. This is
// a logical error: the invocation union is closed, so it means a programming
// mistake, not bad user input.
func badInvocation(tool string, inv Invocation) error {
	return fmt.Errorf("tool %s: invocation type %T targets %s", tool, inv, inv.Tool())
}

// ParseParams drives parse_file.
type ParseParams struct {
	Data []byte
	Opts parser.Options
}

func (ParseParams) Tool() string { return ToolParseFile }

// MatchParams drives match_headers.
type MatchParams struct {
	Headers []string
	Opts    matcher.Options
}

func (MatchParams) Tool() string { return ToolMatchHeaders }

// ValidateParams drives validate_data.
type ValidateParams struct {
	Parsed  *parser.Result
	Matches *matcher.Set
	Opts    validation.Options
}

func (ValidateParams) Tool() string { return ToolValidateData }

// DetectDupesParams drives detect_duplicates.
type DetectDupesParams struct {
	Parsed  *parser.Result
	Matches *matcher.Set
}

func (DetectDupesParams) Tool() string { return ToolDetectDupes }

// ScoreParams drives score_confidence.
type ScoreParams struct {
	TotalRows int
	Bundle    *validation.Bundle
	Matches   *matcher.Set
}

func (ScoreParams) Tool() string { return ToolScore }

// ScoreData is the score_confidence output.
type ScoreData struct {
	Confidence validation.ConfidenceRecord `json:"confidence"`
	Anomalies  validation.AnomalyReport    `json:"anomalies"`
}

// SaveCaseParams drives save_case.
type SaveCaseParams struct {
	Request casestore.SaveRequest
}

func (SaveCaseParams) Tool() string { return ToolSaveCase }

// CaseStatsParams drives case_stats.
type CaseStatsParams struct{}

func (CaseStatsParams) Tool() string { return ToolCaseStats }

// AddRuleParams drives kb_add_rule.
type AddRuleParams struct {
	Field     string
	Condition string
	Message   string
	Severity  string
	Category  string
}

func (AddRuleParams) Tool() string { return ToolAddRule }

// LearnParams drives kb_learn_from_correction.
type LearnParams struct {
	Field             string
	OriginalValue     string
	WasError          bool
	Interpretation    string
	DiagnosticContext string
}

func (LearnParams) Tool() string { return ToolLearnFromUser }
