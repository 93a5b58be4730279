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
package tools

import (
	"context"
	"errors"

	"github.com/wikisoft/rostercheck/pkg/casestore"
	"github.com/wikisoft/rostercheck/pkg/knowledge"
	"github.com/wikisoft/rostercheck/pkg/llm"
	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/validation"
)

// Deps are the constructed pipeline components the roster tools wrap.
type Deps struct {
	Parser    *parser.Parser
	Matcher   *matcher.Matcher
	Validator *validation.Validator
	Cases     *casestore.Store
	Knowledge *knowledge.Store
}

// NewRosterRegistry builds the standard registry with one tool per pipeline
// component. Panics on duplicate registration; the tool set is compiled in.
func NewRosterRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.MustRegister(
		&parseTool{deps.Parser},
		&matchTool{deps.Matcher},
		&validateTool{deps.Validator, deps.Knowledge},
		&dupesTool{},
		&scoreTool{},
		&saveCaseTool{deps.Cases},
		&caseStatsTool{deps.Cases},
		&addRuleTool{deps.Knowledge},
		&learnTool{deps.Knowledge},
	)
	return r
}

type parseTool struct {
	parser *parser.Parser
}

func (t *parseTool) Name() string { return ToolParseFile }
func (t *parseTool) Description() string {
	return "업로드된 명부 파일을 헤더, 행, 메타데이터로 파싱합니다"
}
func (t *parseTool) Params() []Param {
	return []Param{
		{Name: "data", Type: "bytes", Required: true, Description: "raw upload bytes"},
		{Name: "opts", Type: "parser.Options", Description: "row cap, forced encoding, sheet"},
	}
}

func (t *parseTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	params, ok := inv.(ParseParams)
	if !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	res, err := t.parser.Parse(params.Data, params.Opts)
	if err != nil {
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			return &Result{
				Success: false,
				Error: &Error{
					Code:    perr.Reason,
					Message: perr.Message,
					// A different text encoding may still decode the bytes.
					Retryable: perr.Reason == parser.ReasonUndecodable,
				},
			}, nil
		}
		return nil, err
	}
	return &Result{Success: true, Data: res, Confidence: 1}, nil
}

type matchTool struct {
	matcher *matcher.Matcher
}

func (t *matchTool) Name() string { return ToolMatchHeaders }
func (t *matchTool) Description() string {
	return "고객 헤더를 표준 스키마 항목에 매칭합니다 (사례 기억 → AI → 사전 기반)"
}
func (t *matchTool) Params() []Param {
	return []Param{
		{Name: "headers", Type: "[]string", Required: true, Description: "normalized customer headers"},
		{Name: "opts", Type: "matcher.Options", Description: "sheet, thresholds, llm toggles"},
	}
}

func (t *matchTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	params, ok := inv.(MatchParams)
	if !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	set, err := t.matcher.MatchHeaders(ctx, params.Headers, params.Opts)
	if err != nil {
		return &Result{Success: false, Error: classify(err)}, nil
	}
	return &Result{Success: true, Data: set, Confidence: set.Confidence()}, nil
}

type validateTool struct {
	validator *validation.Validator
	knowledge *knowledge.Store
}

func (t *validateTool) Name() string { return ToolValidateData }
func (t *validateTool) Description() string {
	return "명부를 3계층으로 검증합니다 (행 단위 규칙, 진단 답변 대조, AI 이상 검토)"
}
func (t *validateTool) Params() []Param {
	return []Param{
		{Name: "parsed", Type: "parser.Result", Required: true, Description: "parsed workbook"},
		{Name: "matches", Type: "matcher.Set", Required: true, Description: "header match set"},
		{Name: "opts", Type: "validation.Options", Description: "answers, tolerance, ai toggle"},
	}
}

func (t *validateTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	params, ok := inv.(ValidateParams)
	if !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	opts := params.Opts
	if opts.EnableAI && t.knowledge != nil && len(opts.Rules) == 0 {
		opts.Rules = t.knowledge.RuleLines()
	}
	outcome, err := t.validator.Run(ctx, params.Parsed, params.Matches, opts)
	if err != nil {
		return &Result{Success: false, Error: classify(err)}, nil
	}
	return &Result{Success: true, Data: outcome, Confidence: outcome.Confidence.Score}, nil
}

type dupesTool struct{}

func (t *dupesTool) Name() string { return ToolDetectDupes }
func (t *dupesTool) Description() string {
	return "완전/유사/의심 중복 그룹을 탐지합니다"
}
func (t *dupesTool) Params() []Param {
	return []Param{
		{Name: "parsed", Type: "parser.Result", Required: true, Description: "parsed workbook"},
		{Name: "matches", Type: "matcher.Set", Required: true, Description: "header match set"},
	}
}

func (t *dupesTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	params, ok := inv.(DetectDupesParams)
	if !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	report := validation.DetectDuplicates(params.Parsed, params.Matches)
	return &Result{Success: true, Data: report, Confidence: 1}, nil
}

type scoreTool struct{}

func (t *scoreTool) Name() string { return ToolScore }
func (t *scoreTool) Description() string {
	return "검증 결과로부터 신뢰도 점수와 이상 징후를 계산합니다"
}
func (t *scoreTool) Params() []Param {
	return []Param{
		{Name: "total_rows", Type: "int", Required: true, Description: "validated row count"},
		{Name: "bundle", Type: "validation.Bundle", Required: true, Description: "merged findings"},
		{Name: "matches", Type: "matcher.Set", Required: true, Description: "header match set"},
	}
}

func (t *scoreTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	params, ok := inv.(ScoreParams)
	if !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	data := ScoreData{
		Confidence: validation.ScoreBundle(params.TotalRows, params.Bundle),
		Anomalies:  validation.DetectAnomalies(params.Matches),
	}
	return &Result{Success: true, Data: data, Confidence: data.Confidence.Score}, nil
}

type saveCaseTool struct {
	cases *casestore.Store
}

func (t *saveCaseTool) Name() string { return ToolSaveCase }
func (t *saveCaseTool) Description() string {
	return "성공한 헤더 매핑을 사례 기억에 기록합니다"
}
func (t *saveCaseTool) Params() []Param {
	return []Param{
		{Name: "request", Type: "casestore.SaveRequest", Required: true, Description: "mapping session to record"},
	}
}

func (t *saveCaseTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	params, ok := inv.(SaveCaseParams)
	if !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	id, err := t.cases.Save(params.Request)
	if err != nil {
		return &Result{Success: false, Error: classify(err)}, nil
	}
	return &Result{Success: true, Data: id, Confidence: 1}, nil
}

type caseStatsTool struct {
	cases *casestore.Store
}

func (t *caseStatsTool) Name() string { return ToolCaseStats }
func (t *caseStatsTool) Description() string {
	return "사례 기억 통계를 반환합니다"
}
func (t *caseStatsTool) Params() []Param { return nil }

func (t *caseStatsTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	if _, ok := inv.(CaseStatsParams); !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	return &Result{Success: true, Data: t.cases.Stats(), Confidence: 1}, nil
}

type addRuleTool struct {
	knowledge *knowledge.Store
}

func (t *addRuleTool) Name() string { return ToolAddRule }
func (t *addRuleTool) Description() string {
	return "지식 베이스에 검증 규칙을 추가합니다"
}
func (t *addRuleTool) Params() []Param {
	return []Param{
		{Name: "field", Type: "string", Required: true, Description: "canonical field"},
		{Name: "condition", Type: "string", Required: true, Description: "rule condition"},
		{Name: "message", Type: "string", Required: true, Description: "finding message"},
		{Name: "severity", Type: "string", Required: true, Description: "error or warning"},
		{Name: "category", Type: "string", Description: "rule grouping"},
	}
}

func (t *addRuleTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	params, ok := inv.(AddRuleParams)
	if !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	id, err := t.knowledge.AddRule(params.Field, params.Condition, params.Message, params.Severity, params.Category)
	if err != nil {
		return &Result{Success: false, Error: classify(err)}, nil
	}
	return &Result{Success: true, Data: id, Confidence: 1}, nil
}

type learnTool struct {
	knowledge *knowledge.Store
}

func (t *learnTool) Name() string { return ToolLearnFromUser }
func (t *learnTool) Description() string {
	return "사람의 수정 내용을 예외 패턴으로 학습합니다"
}
func (t *learnTool) Params() []Param {
	return []Param{
		{Name: "field", Type: "string", Required: true, Description: "canonical field"},
		{Name: "original_value", Type: "string", Required: true, Description: "flagged cell value"},
		{Name: "was_error", Type: "bool", Required: true, Description: "whether the flag was correct"},
		{Name: "interpretation", Type: "string", Required: true, Description: "correct reading of the value"},
		{Name: "diagnostic_context", Type: "string", Description: "relevant questionnaire answers"},
	}
}

func (t *learnTool) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	params, ok := inv.(LearnParams)
	if !ok {
		return nil, badInvocation(t.Name(), inv)
	}
	err := t.knowledge.LearnFromCorrection(params.Field, params.OriginalValue, params.WasError, params.Interpretation, params.DiagnosticContext)
	if err != nil {
		return &Result{Success: false, Error: classify(err)}, nil
	}
	return &Result{Success: true, Confidence: 1}, nil
}

// classify converts an internal error into a structured tool error, marking
// transient model failures retryable.
func classify(err error) *Error {
	switch {
	case errors.Is(err, llm.ErrRateLimited):
		return &Error{Code: "rate_limited", Message: err.Error(), Retryable: true}
	case errors.Is(err, llm.ErrTimeout):
		return &Error{Code: "timeout", Message: err.Error(), Retryable: true}
	case errors.Is(err, llm.ErrUnavailable):
		return &Error{Code: "unavailable", Message: err.Error(), Retryable: true}
	default:
		return &Error{Code: "internal", Message: err.Error()}
	}
}
