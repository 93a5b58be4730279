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
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wikisoft/rostercheck/pkg/llm"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

type stubProvider struct {
	content string
	err     error
	prompt  string
}

func (s *stubProvider) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.prompt = req.Prompt
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content}, nil
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-1" }

func TestValidator_RunCleanRoster(t *testing.T) {
	res := makeResult(standardHeaders, [][]string{
		goodRow("1001", "김철수"),
		goodRow("1002", "이영희"),
	})
	v := New(schema.New(), nil)
	v.layer1.now = func() time.Time { return testToday }

	outcome, err := v.Run(context.Background(), res, identitySet(standardHeaders), Options{
		Answers: schema.Answers{schema.QRegulars: 2},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Bundle.Passed {
		t.Errorf("bundle = %+v, want passed", outcome.Bundle)
	}
	if outcome.Confidence.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", outcome.Confidence.Score)
	}
	if outcome.Layer2.Status != Layer2Passed {
		t.Errorf("layer2 = %s", outcome.Layer2.Status)
	}
}

func TestValidator_RunMergesLayers(t *testing.T) {
	rows := [][]string{
		goodRow("1001", "김철수"),
		goodRow("1001", "김철수"), // exact duplicate
	}
	res := makeResult(standardHeaders, rows)
	v := New(schema.New(), nil)
	v.layer1.now = func() time.Time { return testToday }

	outcome, err := v.Run(context.Background(), res, identitySet(standardHeaders), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(outcome.Duplicates.Exact) != 1 {
		t.Fatalf("duplicates = %+v", outcome.Duplicates)
	}
	if len(outcome.Bundle.Errors) == 0 {
		t.Error("exact duplicates must surface as errors")
	}
	// both rows carry errors
	if outcome.Confidence.Factors.ErrorRows != 2 {
		t.Errorf("error rows = %d, want 2", outcome.Confidence.Factors.ErrorRows)
	}
	if outcome.Confidence.Score != 0 {
		t.Errorf("score = %v, want 0", outcome.Confidence.Score)
	}
}

func TestValidator_RunConcurrentTolerances(t *testing.T) {
	codes := make([]string, 100)
	for i := range codes {
		codes[i] = "2"
	}
	headers := []string{schema.FieldEmployeeID, schema.FieldName, schema.FieldEmployeeCls}
	var rows [][]string
	for i, code := range codes {
		rows = append(rows, []string{string(rune('A' + i%26)), "직원", code})
	}
	res := makeResult(headers, rows)
	v := New(schema.New(), nil)
	v.layer1.now = func() time.Time { return testToday }

	// One validator serves many uploads at once; per-request tolerances must
	// not bleed between runs. A 3% deviation is high under tolerance 2 and
	// low under tolerance 10, on every run.
	var wg sync.WaitGroup
	errs := make(chan string, 16)
	for i := 0; i < 8; i++ {
		tol, want := 2.0, CheckHigh
		if i%2 == 1 {
			tol, want = 10.0, CheckLow
		}
		wg.Add(1)
		go func(tol float64, want CheckStatus) {
			defer wg.Done()
			outcome, err := v.Run(context.Background(), res, identitySet(headers), Options{
				Answers:          schema.Answers{schema.QRegulars: 97},
				TolerancePercent: tol,
			})
			if err != nil {
				errs <- err.Error()
				return
			}
			if got := outcome.Layer2.Checks[0].Status; got != want {
				errs <- "check status = " + string(got) + ", want " + string(want)
			}
		}(tol, want)
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestValidator_RunWithAI(t *testing.T) {
	stub := &stubProvider{content: `{"findings":[{"row":2,"column":"기준급여","severity":"warning","message":"임원 급여가 유난히 낮습니다"}],"reasoning":["기준급여 분포 검토"]}`}
	res := makeResult(standardHeaders, [][]string{goodRow("1001", "김철수")})
	v := New(schema.New(), stub)
	v.layer1.now = func() time.Time { return testToday }

	outcome, err := v.Run(context.Background(), res, identitySet(standardHeaders), Options{
		EnableAI: true,
		Rules:    []string{"이 고객사의 임원 급여는 항상 500만원 이상입니다"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Bundle.UsedAI {
		t.Error("UsedAI not set")
	}
	if len(outcome.Bundle.Warnings) != 1 || outcome.Bundle.Warnings[0].Source != SourceAI {
		t.Errorf("warnings = %v", outcome.Bundle.Warnings)
	}
	if len(outcome.Bundle.AIReasoning) != 1 {
		t.Errorf("reasoning = %v", outcome.Bundle.AIReasoning)
	}
	if stub.prompt == "" {
		t.Error("digest prompt not sent")
	}
}

func TestValidator_AIFailureIsAdvisory(t *testing.T) {
	stub := &stubProvider{err: errors.New("boom")}
	res := makeResult(standardHeaders, [][]string{goodRow("1001", "김철수")})
	v := New(schema.New(), stub)
	v.layer1.now = func() time.Time { return testToday }

	outcome, err := v.Run(context.Background(), res, identitySet(standardHeaders), Options{EnableAI: true})
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Bundle.UsedAI {
		t.Error("failed AI call must not count as used")
	}
	if !outcome.Bundle.Passed {
		t.Errorf("bundle = %+v, want passed", outcome.Bundle)
	}
}

func TestAIValidator_NilProviderIsNoop(t *testing.T) {
	res := makeResult(standardHeaders, [][]string{goodRow("1", "가")})
	fs, reasoning, used := NewAIValidator(nil).Validate(context.Background(), res, identitySet(standardHeaders), nil, nil)
	if fs != nil || reasoning != nil || used {
		t.Error("nil provider must be a no-op")
	}
}

func TestBuildDigest_ContainsStatsAndRules(t *testing.T) {
	res := makeResult(standardHeaders, [][]string{goodRow("1001", "김철수")})
	digest := buildDigest(res, identitySet(standardHeaders), schema.Answers{"q2": "yes"}, []string{"규칙 하나"})
	for _, want := range []string{"ROWS: 1", "기준급여", "규칙 하나", "정년 제도"} {
		if !strings.Contains(digest, want) {
			t.Errorf("digest missing %q", want)
		}
	}
}
