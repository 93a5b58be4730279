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
	"math"
	"testing"

	"github.com/wikisoft/rostercheck/pkg/schema"
)

// rosterWithClasses builds n rows whose employee-class column carries the
// given code.
func rosterWithClasses(codes []string) ([]string, [][]string) {
	headers := []string{schema.FieldEmployeeID, schema.FieldName, schema.FieldEmployeeCls}
	var rows [][]string
	for i, code := range codes {
		rows = append(rows, []string{string(rune('A' + i%26)), "직원", code})
	}
	return headers, rows
}

func TestLayer2_HeadcountMismatchHigh(t *testing.T) {
	codes := make([]string, 17)
	for i := range codes {
		codes[i] = "1" // all executives
	}
	headers, rows := rosterWithClasses(codes)
	res := makeResult(headers, rows)

	result := (&Layer2{}).Validate(res, identitySet(headers), schema.Answers{schema.QExecutives: 20}, 0)
	if result.Status != Layer2Failed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if len(result.Checks) != 1 {
		t.Fatalf("checks = %v, want one", result.Checks)
	}
	c := result.Checks[0]
	if c.Status != CheckHigh {
		t.Errorf("check status = %s, want high", c.Status)
	}
	if c.Calculated != 17 {
		t.Errorf("calculated = %v, want 17", c.Calculated)
	}
	if math.Abs(c.DiffPercent-17.647) > 0.01 {
		t.Errorf("diff = %v, want ~17.6%%", c.DiffPercent)
	}
}

func TestLayer2_ExactMatchPasses(t *testing.T) {
	headers, rows := rosterWithClasses([]string{"1", "2", "2", "3"})
	res := makeResult(headers, rows)

	result := (&Layer2{}).Validate(res, identitySet(headers), schema.Answers{
		schema.QExecutives:  1,
		schema.QRegulars:    "2",
		schema.QContractors: 1,
	}, 0)
	if result.Status != Layer2Passed {
		t.Fatalf("status = %s, checks = %+v", result.Status, result.Checks)
	}
	// three per-class checks plus the composite
	if len(result.Checks) != 4 {
		t.Errorf("checks = %d, want 4", len(result.Checks))
	}
}

func TestLayer2_SmallDiffIsLow(t *testing.T) {
	codes := make([]string, 100)
	for i := range codes {
		codes[i] = "2"
	}
	headers, rows := rosterWithClasses(codes)
	res := makeResult(headers, rows)

	result := (&Layer2{}).Validate(res, identitySet(headers), schema.Answers{schema.QRegulars: 97}, 0)
	if result.Status != Layer2Warnings {
		t.Fatalf("status = %s, want warnings", result.Status)
	}
	if result.Checks[0].Status != CheckLow {
		t.Errorf("check = %+v, want low", result.Checks[0])
	}
}

func TestLayer2_TolerancePerCall(t *testing.T) {
	codes := make([]string, 100)
	for i := range codes {
		codes[i] = "2"
	}
	headers, rows := rosterWithClasses(codes)
	res := makeResult(headers, rows)
	answers := schema.Answers{schema.QRegulars: 97}

	// The same instance classifies a 3% deviation differently per call,
	// depending only on the tolerance passed in.
	l2 := &Layer2{}
	if got := l2.Validate(res, identitySet(headers), answers, 2).Checks[0].Status; got != CheckHigh {
		t.Errorf("tight tolerance: status = %s, want high", got)
	}
	if got := l2.Validate(res, identitySet(headers), answers, 10).Checks[0].Status; got != CheckLow {
		t.Errorf("loose tolerance: status = %s, want low", got)
	}
}

func TestLayer2_NonNumericAnswerInvalid(t *testing.T) {
	headers, rows := rosterWithClasses([]string{"2"})
	res := makeResult(headers, rows)

	result := (&Layer2{}).Validate(res, identitySet(headers), schema.Answers{schema.QRegulars: "많음"}, 0)
	if result.Status != Layer2Failed {
		t.Fatalf("status = %s, want failed", result.Status)
	}
	if result.Checks[0].Status != CheckInvalid {
		t.Errorf("check = %+v, want invalid", result.Checks[0])
	}
}

func TestLayer2_UnboundClassColumnIsInfo(t *testing.T) {
	headers := []string{schema.FieldEmployeeID, schema.FieldName}
	res := makeResult(headers, [][]string{{"1", "가"}})

	result := (&Layer2{}).Validate(res, identitySet(headers), schema.Answers{schema.QExecutives: 1}, 0)
	if result.Checks[0].Status != CheckInfo {
		t.Errorf("check = %+v, want info", result.Checks[0])
	}
	if result.Status != Layer2Passed {
		t.Errorf("info checks must not fail the layer: %s", result.Status)
	}
}

func TestLayer2_UnansweredQuestionsSkipped(t *testing.T) {
	headers, rows := rosterWithClasses([]string{"1", "2"})
	res := makeResult(headers, rows)

	result := (&Layer2{}).Validate(res, identitySet(headers), schema.Answers{"q2": "yes"}, 0)
	if len(result.Checks) != 0 {
		t.Errorf("checks = %v, want none for yes/no-only answers", result.Checks)
	}
}

func TestLayer2_FindingsOnlyForHigh(t *testing.T) {
	headers, rows := rosterWithClasses([]string{"1", "1"})
	res := makeResult(headers, rows)

	l2 := &Layer2{}
	result := l2.Validate(res, identitySet(headers), schema.Answers{schema.QExecutives: 10}, 0)
	fs := l2.Findings(result)
	if len(fs) != 1 || fs[0].Severity != SeverityWarning || fs[0].Source != SourceLayer2 {
		t.Errorf("findings = %v", fs)
	}
}

func TestClassifyEmployee(t *testing.T) {
	cases := map[string]string{
		"1":    "executive",
		"1.0":  "executive",
		"임원":   "executive",
		"3":    "contractor",
		"계약직":  "contractor",
		"촉탁직":  "contractor",
		"2":    "regular",
		"정규직":  "regular",
		"알수없음": "regular",
	}
	for in, want := range cases {
		if got := classifyEmployee(in); got != want {
			t.Errorf("classifyEmployee(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestDiffPercent(t *testing.T) {
	if d := diffPercent(0, 0); d != 0 {
		t.Errorf("0/0 diff = %v", d)
	}
	if d := diffPercent(0, 5); d != 100 {
		t.Errorf("0 vs 5 diff = %v, want 100", d)
	}
}
