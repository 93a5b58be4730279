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
package agent

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/wikisoft/rostercheck/pkg/casestore"
	"github.com/wikisoft/rostercheck/pkg/knowledge"
	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/schema"
	"github.com/wikisoft/rostercheck/pkg/tools"
	"github.com/wikisoft/rostercheck/pkg/validation"
)

func newTestAgent(t *testing.T) (*Agent, *casestore.Store) {
	t.Helper()
	reg := schema.New()
	cases := casestore.NewMemory()
	deps := tools.Deps{
		Parser:    parser.New(reg),
		Matcher:   matcher.New(reg, cases, nil),
		Validator: validation.New(reg, nil),
		Cases:     cases,
		Knowledge: knowledge.NewMemory(),
	}
	return New(tools.NewRosterRegistry(deps), DefaultConfig()), cases
}

const cleanHeader = "사원번호,이름,생년월일,입사일,성별,종업원구분,기준급여"

func cleanRoster() []byte {
	return []byte(cleanHeader + "\n" +
		"EMP001,홍길동,19900115,20150301,1,2,3200000\n" +
		"EMP002,김철수,19850620,20100401,1,2,4100000\n" +
		"EMP003,이영희,19921103,20180902,2,2,3000000\n")
}

func TestCleanRosterCompletesGradeA(t *testing.T) {
	a, _ := newTestAgent(t)
	env := a.Run(context.Background(), Request{Data: cleanRoster(), SessionID: "s1"})

	if env.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed (reason=%s)", env.Status, env.Reason)
	}
	if env.Grade != GradeA {
		t.Fatalf("grade = %s, want A", env.Grade)
	}
	if env.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want 1.0", env.Confidence)
	}
	v := env.Slots.Validation
	if v == nil || len(v.Bundle.Errors) != 0 || len(v.Bundle.Warnings) != 0 {
		t.Fatalf("expected an empty bundle, got %+v", v)
	}
	if v.Anomalies.Detected {
		t.Fatalf("unexpected anomalies: %+v", v.Anomalies)
	}
	// One act per transcript step: PARSE, MATCH, VALIDATE.
	if len(env.Transcript) != 3 {
		t.Fatalf("transcript steps = %d, want 3", len(env.Transcript))
	}
	wantActions := []Action{ActionParse, ActionMatch, ActionValidate}
	for i, step := range env.Transcript {
		if step.Thought.Action != wantActions[i] {
			t.Errorf("step %d action = %s, want %s", i, step.Thought.Action, wantActions[i])
		}
		if !step.Observation.Success {
			t.Errorf("step %d not successful: %s", i, step.Observation.Error)
		}
	}
}

func TestAliasHeadersMatchAndLearn(t *testing.T) {
	a, cases := newTestAgent(t)
	data := []byte("사번,성명,생일,입사년월일,성,직급구분,월급\n" +
		"EMP001,홍길동,19900115,20150301,1,2,3200000\n")

	env := a.Run(context.Background(), Request{Data: data})
	if env.Status != StatusCompleted {
		t.Fatalf("status = %s (reason=%s)", env.Status, env.Reason)
	}
	for _, m := range env.Slots.Matches.Matches {
		if m.Target == "" {
			t.Errorf("header %q unmapped", m.Source)
		}
	}

	if cases.Stats().TotalCases != 1 {
		t.Fatalf("case memory size = %d, want 1", cases.Stats().TotalCases)
	}

	// A second upload with the same headers binds from memory.
	again := a.Run(context.Background(), Request{Data: data})
	if again.Status != StatusCompleted {
		t.Fatalf("second run status = %s", again.Status)
	}
	if !again.Slots.Matches.UsedFewShot {
		t.Fatal("second run did not use the case memory")
	}
	for _, m := range again.Slots.Matches.Matches {
		if m.Provenance != matcher.ProvenanceFewShot {
			t.Errorf("header %q provenance = %s, want few-shot", m.Source, m.Provenance)
		}
	}
	// Content addressing: the repeat upload updates, not duplicates.
	if cases.Stats().TotalCases != 1 {
		t.Fatalf("case memory size after repeat = %d, want 1", cases.Stats().TotalCases)
	}
}

func TestUnderageHireScoresDown(t *testing.T) {
	a, _ := newTestAgent(t)
	data := []byte(cleanHeader + "\n" +
		"EMP001,홍길동,19900115,20150301,1,2,3200000\n" +
		"EMP002,김철수,19850620,20100401,1,2,4100000\n" +
		"EMP003,박민수,20100101,20250101,1,2,3200000\n")

	env := a.Run(context.Background(), Request{Data: data})
	if env.Status != StatusCompleted {
		t.Fatalf("status = %s (reason=%s)", env.Status, env.Reason)
	}

	v := env.Slots.Validation
	var hireErrors []validation.Finding
	for _, f := range v.Bundle.Errors {
		if f.Column == schema.FieldHireDate {
			hireErrors = append(hireErrors, f)
		}
	}
	if len(hireErrors) != 1 {
		t.Fatalf("hire-date errors = %d, want 1: %+v", len(hireErrors), v.Bundle.Errors)
	}
	if !strings.Contains(hireErrors[0].Message, "18") {
		t.Errorf("message %q does not cite the age floor", hireErrors[0].Message)
	}

	want := 1.0 - 1.0/3.0
	if math.Abs(v.Confidence.Score-want) > 1e-9 {
		t.Fatalf("score = %v, want %v", v.Confidence.Score, want)
	}
	if env.Grade != GradeC {
		t.Fatalf("grade = %s, want C", env.Grade)
	}
}

func TestMinimumWageWarningKeepsScore(t *testing.T) {
	a, _ := newTestAgent(t)
	data := []byte(cleanHeader + "\n" +
		"EMP001,홍길동,19900115,20150301,1,2,1500000\n")

	env := a.Run(context.Background(), Request{Data: data})
	if env.Status != StatusCompleted {
		t.Fatalf("status = %s (reason=%s)", env.Status, env.Reason)
	}

	v := env.Slots.Validation
	if len(v.Bundle.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", v.Bundle.Errors)
	}
	var salaryWarnings int
	for _, f := range v.Bundle.Warnings {
		if f.Column == schema.FieldBaseSalary {
			salaryWarnings++
		}
	}
	if salaryWarnings != 1 {
		t.Fatalf("salary warnings = %d, want 1: %+v", salaryWarnings, v.Bundle.Warnings)
	}
	if v.Confidence.Score != 1.0 {
		t.Fatalf("score = %v, want 1.0 (warnings do not reduce it)", v.Confidence.Score)
	}
	if v.Bundle.Passed {
		t.Fatal("bundle with warnings must not pass")
	}
}

func TestDuplicateIDFlagsBothRows(t *testing.T) {
	a, _ := newTestAgent(t)
	data := []byte(cleanHeader + "\n" +
		"EMP001,홍길동,19900115,20150301,1,2,3200000\n" +
		"EMP001,김철수,19850620,20100401,1,2,4100000\n")

	env := a.Run(context.Background(), Request{Data: data})
	if env.Status != StatusCompleted {
		t.Fatalf("status = %s (reason=%s)", env.Status, env.Reason)
	}

	v := env.Slots.Validation
	if len(v.Duplicates.Exact) != 1 {
		t.Fatalf("exact duplicate groups = %d, want 1", len(v.Duplicates.Exact))
	}
	group := v.Duplicates.Exact[0]
	if len(group.Rows) != 2 {
		t.Fatalf("group rows = %v, want both", group.Rows)
	}
	if v.Confidence.Factors.ErrorRows != 2 {
		t.Fatalf("error rows = %d, want 2", v.Confidence.Factors.ErrorRows)
	}
	if v.Confidence.Score != 0 {
		t.Fatalf("score = %v, want 0", v.Confidence.Score)
	}
}

func TestLayer2HeadcountMismatch(t *testing.T) {
	a, _ := newTestAgent(t)

	var sb strings.Builder
	sb.WriteString(cleanHeader + "\n")
	for i := 1; i <= 17; i++ {
		sb.WriteString(fmt.Sprintf("EMP%03d,직원%d,19900115,20150301,1,1,3200000\n", i, i))
	}
	env := a.Run(context.Background(), Request{
		Data:    []byte(sb.String()),
		Answers: schema.Answers{"q21": 20},
	})
	if env.Status != StatusCompleted {
		t.Fatalf("status = %s (reason=%s)", env.Status, env.Reason)
	}

	l2 := env.Slots.Validation.Layer2
	if l2.Status != validation.Layer2Failed {
		t.Fatalf("layer2 status = %s, want failed", l2.Status)
	}
	var check *validation.Check
	for i := range l2.Checks {
		if l2.Checks[i].QuestionID == schema.QExecutives {
			check = &l2.Checks[i]
		}
	}
	if check == nil {
		t.Fatal("no q21 check recorded")
	}
	if check.Status != validation.CheckHigh {
		t.Fatalf("q21 status = %s, want high", check.Status)
	}
	if check.Calculated != 17 {
		t.Fatalf("calculated = %v, want 17", check.Calculated)
	}
	if math.Abs(check.DiffPercent-17.6) > 0.1 {
		t.Fatalf("diff percent = %v, want ≈17.6", check.DiffPercent)
	}
}

func TestEmptyUploadFails(t *testing.T) {
	a, _ := newTestAgent(t)
	env := a.Run(context.Background(), Request{Data: []byte("")})

	if env.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", env.Status)
	}
	if env.Reason != parser.ReasonNoHeaderRow && env.Reason != parser.ReasonAllEmpty {
		t.Fatalf("reason = %s, want a parse reason", env.Reason)
	}
	if !env.NeedsReview {
		t.Fatal("failed run must flag human review")
	}
}

func TestHeaderOnlyUploadScoresPerfect(t *testing.T) {
	a, _ := newTestAgent(t)
	env := a.Run(context.Background(), Request{Data: []byte(cleanHeader + "\n")})

	if env.Status != StatusCompleted {
		t.Fatalf("status = %s (reason=%s)", env.Status, env.Reason)
	}
	v := env.Slots.Validation
	if v.Confidence.Score != 1.0 || !v.Bundle.Passed || v.Anomalies.Detected {
		t.Fatalf("zero-row roster should be trivially clean: %+v", v.Confidence)
	}
}

func TestCancellationFailsWithPartialContext(t *testing.T) {
	a, _ := newTestAgent(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	env := a.Run(ctx, Request{Data: cleanRoster()})
	if env.Status != StatusFailed || env.Reason != ReasonCancelled {
		t.Fatalf("status=%s reason=%s, want failed/cancelled", env.Status, env.Reason)
	}
}

func TestIterationCapReturnsPartialContext(t *testing.T) {
	reg := schema.New()
	cases := casestore.NewMemory()
	deps := tools.Deps{
		Parser:    parser.New(reg),
		Matcher:   matcher.New(reg, cases, nil),
		Validator: validation.New(reg, nil),
		Cases:     cases,
		Knowledge: knowledge.NewMemory(),
	}
	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	a := New(tools.NewRosterRegistry(deps), cfg)

	env := a.Run(context.Background(), Request{Data: cleanRoster()})
	if env.Status != StatusFailed || env.Reason != ReasonMaxIterations {
		t.Fatalf("status=%s reason=%s, want failed/max_iterations", env.Status, env.Reason)
	}
	if env.Slots.Parsed == nil || env.Slots.Matches == nil {
		t.Fatal("partial context lost on failure")
	}
	if len(env.Transcript) != 2 {
		t.Fatalf("transcript steps = %d, want 2", len(env.Transcript))
	}
}

func TestThinkRuleOrder(t *testing.T) {
	a, _ := newTestAgent(t)
	r := &run{}

	if got := a.think(r, 1).Action; got != ActionParse {
		t.Fatalf("empty slots → %s, want PARSE", got)
	}

	r.slots.Parsed = &parser.Result{}
	if got := a.think(r, 2).Action; got != ActionMatch {
		t.Fatalf("parsed only → %s, want MATCH", got)
	}

	// A weak match retries first, then escalates.
	weak := &matcher.Set{Columns: 1, Matches: []matcher.Match{
		{Source: "알수없음", Provenance: matcher.ProvenanceUnmapped},
	}}
	r.slots.Matches = weak
	th := a.think(r, 3)
	if th.Action != ActionMatch || !th.Retry {
		t.Fatalf("weak match → %s retry=%v, want MATCH retry", th.Action, th.Retry)
	}
	r.matchRetries = a.config.MatchRetryLimit
	if got := a.think(r, 4).Action; got != ActionAskHuman {
		t.Fatalf("weak match after retries → %s, want ASK_HUMAN", got)
	}

	strong := &matcher.Set{Columns: 1, Matches: []matcher.Match{
		{Source: "사원번호", Target: "사원번호", Confidence: 1, Provenance: matcher.ProvenanceLexical},
	}}
	r.slots.Matches = strong
	if got := a.think(r, 5).Action; got != ActionValidate {
		t.Fatalf("strong match → %s, want VALIDATE", got)
	}

	r.slots.Validation = &validation.Outcome{}
	if got := a.think(r, 6).Action; got != ActionComplete {
		t.Fatalf("all slots → %s, want COMPLETE", got)
	}
}
