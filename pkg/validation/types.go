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

// Package validation runs the layered roster checks: per-row format and
// domain rules (layer 1), diagnostic-answer reconciliation (layer 2), an
// optional model-driven anomaly review, and duplicate detection. A bad cell
// never aborts the run; it becomes a finding.
package validation

import (
	"fmt"
	"sort"
)

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Source tags which layer produced a finding.
type Source string

const (
	SourceLayer1 Source = "layer1"
	SourceLayer2 Source = "layer2"
	SourceAI     Source = "ai"
)

// Finding is one validation result item. Row is the 1-based spreadsheet row
// number, header row counted as row 1.
type Finding struct {
	Row      int      `json:"row"`
	EmpInfo  string   `json:"emp_info"`
	Column   string   `json:"column"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Source   Source   `json:"source"`
}

// Bundle aggregates findings across layers. Passed holds iff both lists are
// empty.
type Bundle struct {
	Errors      []Finding `json:"errors"`
	Warnings    []Finding `json:"warnings"`
	Checks      []Check   `json:"checks"`
	AIReasoning []string  `json:"ai_reasoning,omitempty"`
	UsedAI      bool      `json:"used_ai"`
	Passed      bool      `json:"passed"`
}

func (b *Bundle) add(f Finding) {
	if f.Severity == SeverityError {
		b.Errors = append(b.Errors, f)
		return
	}
	b.Warnings = append(b.Warnings, f)
}

// finalize sorts findings for stable output and recomputes Passed.
func (b *Bundle) finalize() {
	sortFindings(b.Errors)
	sortFindings(b.Warnings)
	b.Passed = len(b.Errors) == 0 && len(b.Warnings) == 0
}

func sortFindings(fs []Finding) {
	sort.SliceStable(fs, func(i, j int) bool {
		if fs[i].Row != fs[j].Row {
			return fs[i].Row < fs[j].Row
		}
		return fs[i].Column < fs[j].Column
	})
}

// CheckStatus classifies one layer-2 reconciliation.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "passed"
	CheckLow     CheckStatus = "low"     // within tolerance, advisory
	CheckHigh    CheckStatus = "high"    // outside tolerance
	CheckInfo    CheckStatus = "info"    // aggregate not computable from the data
	CheckInvalid CheckStatus = "invalid" // answer not usable
)

// Check reconciles one diagnostic answer against a data aggregate.
type Check struct {
	QuestionID  string      `json:"question_id"`
	Name        string      `json:"name"`
	Status      CheckStatus `json:"status"`
	Calculated  float64     `json:"calculated"`
	UserInput   any         `json:"user_input,omitempty"`
	DiffPercent float64     `json:"diff_percent"`
	Message     string      `json:"message"`
}

// Layer2Status is the rollup over all checks.
type Layer2Status string

const (
	Layer2Passed   Layer2Status = "passed"
	Layer2Warnings Layer2Status = "warnings"
	Layer2Failed   Layer2Status = "failed"
)

// Layer2Result is the reconciliation outcome.
type Layer2Result struct {
	Status Layer2Status `json:"status"`
	Checks []Check      `json:"checks"`
}

// EmpInfo builds the row disambiguator shown in findings from the
// identifying columns, falling back to the row number.
func EmpInfo(name, id string, row int) string {
	switch {
	case name != "" && id != "":
		return fmt.Sprintf("%s(%s)", name, id)
	case name != "":
		return name
	case id != "":
		return id
	default:
		return fmt.Sprintf("행 %d", row)
	}
}
