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
package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/schema"
	"github.com/wikisoft/rostercheck/pkg/validation"
)

func TestWorkbookRoundTrip(t *testing.T) {
	res := &parser.Result{
		Headers: []string{"사번", "성명", "생년월일"},
		Rows: []parser.Row{
			{SheetRow: 2, Cells: []string{"1001", "김철수", "19900101"}},
			{SheetRow: 3, Cells: []string{"1002", "이영희", "19851231"}},
		},
	}
	set := &matcher.Set{Columns: 3, Matches: []matcher.Match{
		{Source: "사번", Target: schema.FieldEmployeeID, Confidence: 1, Provenance: matcher.ProvenanceLexical},
		{Source: "성명", Target: schema.FieldName, Confidence: 1, Provenance: matcher.ProvenanceLexical},
		{Source: "생년월일", Target: schema.FieldBirthDate, Confidence: 1, Provenance: matcher.ProvenanceLexical},
	}}
	outcome := &validation.Outcome{}
	outcome.Bundle.Errors = []validation.Finding{
		{Row: 3, EmpInfo: "이영희(1002)", Column: schema.FieldBirthDate, Severity: validation.SeverityError, Message: "생년월일 범위 오류", Source: validation.SourceLayer1},
	}

	data, err := Workbook(res, set, outcome)
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("재직자명부")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	// Headers are rewritten to canonical names.
	if rows[0][0] != schema.FieldEmployeeID || rows[0][1] != schema.FieldName {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][0] != "1001" || rows[2][2] != "19851231" {
		t.Errorf("data rows = %v", rows[1:])
	}

	findings, err := f.GetRows("검증결과")
	if err != nil {
		t.Fatalf("findings sheet: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("findings rows = %d, want title + 1", len(findings))
	}
	if findings[1][3] != "오류" {
		t.Errorf("finding label = %v", findings[1])
	}
}
