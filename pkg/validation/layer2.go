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
	"fmt"
	"math"
	"strings"

	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

// DefaultTolerancePercent is the layer-2 headcount tolerance.
const DefaultTolerancePercent = 5.0

// Layer2 reconciles the numeric diagnostic answers against aggregates
// computed from the parsed roster. The zero value is ready to use; it is
// stateless so one instance serves concurrent validations.
type Layer2 struct{}

// headcounts classified from the employee-class column.
type headcounts struct {
	executives  int
	regulars    int
	contractors int
	total       int
	classified  bool // employee-class column was bound
}

// Validate runs every computable check for the answered numeric questions.
// tolerancePercent splits low from high deviations; zero or negative means
// DefaultTolerancePercent.
func (v *Layer2) Validate(res *parser.Result, set *matcher.Set, answers schema.Answers, tolerancePercent float64) *Layer2Result {
	tol := tolerancePercent
	if tol <= 0 {
		tol = DefaultTolerancePercent
	}

	counts := countByClass(res, set)
	result := &Layer2Result{Status: Layer2Passed}

	type target struct {
		id       string
		name     string
		computed int
	}
	targets := []target{
		{schema.QExecutives, "임원 수", counts.executives},
		{schema.QRegulars, "정규직 수", counts.regulars},
		{schema.QContractors, "계약직 수", counts.contractors},
	}

	compositeParts := 0
	compositeSum := 0.0
	for _, t := range targets {
		raw, answered := answers[t.id]
		if !answered {
			continue
		}
		user, ok := numericAnswer(raw)
		if !ok {
			result.Checks = append(result.Checks, Check{
				QuestionID: t.id, Name: t.name, Status: CheckInvalid, UserInput: raw,
				Message: fmt.Sprintf("%s 응답이 숫자가 아닙니다: %v", t.name, raw),
			})
			continue
		}
		compositeParts++
		compositeSum += user

		if !counts.classified {
			result.Checks = append(result.Checks, Check{
				QuestionID: t.id, Name: t.name, Status: CheckInfo, UserInput: raw,
				Message: "종업원구분 열이 매칭되지 않아 계산할 수 없습니다",
			})
			continue
		}
		result.Checks = append(result.Checks, compare(t.id, t.name, float64(t.computed), user, raw, tol))
	}

	// Composite headcount: the three answers together should cover the
	// roster.
	if compositeParts == 3 {
		result.Checks = append(result.Checks,
			compare("q21+q22+q23", "전체 인원", float64(counts.total), compositeSum, compositeSum, tol))
	}

	for _, c := range result.Checks {
		switch c.Status {
		case CheckHigh, CheckInvalid:
			result.Status = Layer2Failed
		case CheckLow:
			if result.Status != Layer2Failed {
				result.Status = Layer2Warnings
			}
		}
	}
	return result
}

// Findings projects non-passing checks into the finding stream so they count
// against the confidence score.
func (v *Layer2) Findings(result *Layer2Result) []Finding {
	var fs []Finding
	for _, c := range result.Checks {
		if c.Status == CheckHigh || c.Status == CheckInvalid {
			fs = append(fs, Finding{
				Column:   schema.FieldEmployeeCls,
				EmpInfo:  c.Name,
				Severity: SeverityWarning,
				Message:  c.Message,
				Source:   SourceLayer2,
			})
		}
	}
	return fs
}

func compare(id, name string, calculated, user float64, raw any, tol float64) Check {
	diff := diffPercent(calculated, user)
	c := Check{
		QuestionID: id, Name: name,
		Calculated: calculated, UserInput: raw, DiffPercent: diff,
	}
	switch {
	case diff < 0.01:
		c.Status = CheckPassed
		c.Message = fmt.Sprintf("%s 일치 (%.0f명)", name, calculated)
	case diff <= tol:
		c.Status = CheckLow
		c.Message = fmt.Sprintf("%s 경미한 차이: 명부 %.0f명, 응답 %.0f명 (%.1f%%)", name, calculated, user, diff)
	default:
		c.Status = CheckHigh
		c.Message = fmt.Sprintf("%s 불일치: 명부 %.0f명, 응답 %.0f명 (%.1f%%)", name, calculated, user, diff)
	}
	return c
}

// diffPercent measures the deviation of the answer from the computed value,
// relative to the computed value. When the roster computes zero but the
// answer is positive the deviation is unbounded; the answer becomes the base
// so the check reports 100 instead, since the JSON payload cannot carry +Inf.
// Classification is unaffected: 100 is above any sane tolerance.
func diffPercent(calculated, user float64) float64 {
	if calculated == 0 && user == 0 {
		return 0
	}
	base := calculated
	if base == 0 {
		base = user
	}
	return math.Abs(calculated-user) / math.Abs(base) * 100
}

func countByClass(res *parser.Result, set *matcher.Set) headcounts {
	counts := headcounts{total: len(res.Rows)}
	src, bound := set.SourceFor(schema.FieldEmployeeCls)
	if !bound {
		return counts
	}
	counts.classified = true
	for _, row := range res.Rows {
		switch classifyEmployee(res.Cell(row, src)) {
		case "executive":
			counts.executives++
		case "contractor":
			counts.contractors++
		default:
			counts.regulars++
		}
	}
	return counts
}

// classifyEmployee folds the class cell into executive, contractor, or
// regular. Numeric codes follow the standard template legend (1 임원,
// 2 정규직, 3 계약직).
func classifyEmployee(raw string) string {
	v := strings.TrimSuffix(strings.TrimSpace(raw), ".0")
	switch {
	case v == "1" || strings.Contains(v, "임원"):
		return "executive"
	case v == "3" || strings.Contains(v, "계약") || strings.Contains(v, "촉탁"):
		return "contractor"
	default:
		return "regular"
	}
}

func numericAnswer(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		return parser.Numeric(v)
	default:
		return 0, false
	}
}
