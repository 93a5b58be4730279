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

// Package export renders the corrected workbook: canonical headers over the
// parser-normalized values, with finding cells highlighted and a findings
// sheet appended.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/validation"
)

const (
	dataSheet     = "재직자명부"
	findingsSheet = "검증결과"
)

// Workbook builds the corrected xlsx bytes. Mapped columns are renamed to
// their canonical field; unmapped and ignored columns keep the customer
// header. Cell values are the parser-normalized ones (canonical dates,
// identifier artefacts stripped).
func Workbook(res *parser.Result, set *matcher.Set, outcome *validation.Outcome) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), dataSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, errStyle, warnStyle, err := buildStyles(f)
	if err != nil {
		return nil, err
	}

	// Header row: canonical names where a match bound one.
	columnTarget := make(map[int]string, len(set.Matches))
	for i, m := range set.Matches {
		name := m.Source
		if m.Target != "" {
			name = m.Target
			columnTarget[i] = m.Target
		}
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(dataSheet, cell, name); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
		if err := f.SetCellStyle(dataSheet, cell, cell, headerStyle); err != nil {
			return nil, err
		}
	}

	// Finding index: spreadsheet row -> canonical column -> severity.
	severityAt := make(map[int]map[string]validation.Severity)
	mark := func(fs []validation.Finding) {
		for _, finding := range fs {
			if finding.Row <= 0 || finding.Column == "" {
				continue
			}
			cols, ok := severityAt[finding.Row]
			if !ok {
				cols = make(map[string]validation.Severity)
				severityAt[finding.Row] = cols
			}
			// Errors outrank warnings when both hit the same cell.
			if cols[finding.Column] != validation.SeverityError {
				cols[finding.Column] = finding.Severity
			}
		}
	}
	mark(outcome.Bundle.Warnings)
	mark(outcome.Bundle.Errors)

	for _, row := range res.Rows {
		for c, value := range row.Cells {
			cell, _ := excelize.CoordinatesToCellName(c+1, row.SheetRow)
			if err := f.SetCellValue(dataSheet, cell, value); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row.SheetRow, err)
			}
			canonical, mapped := columnTarget[c]
			if !mapped {
				continue
			}
			switch severityAt[row.SheetRow][canonical] {
			case validation.SeverityError:
				if err := f.SetCellStyle(dataSheet, cell, cell, errStyle); err != nil {
					return nil, err
				}
			case validation.SeverityWarning:
				if err := f.SetCellStyle(dataSheet, cell, cell, warnStyle); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := writeFindings(f, outcome, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func buildStyles(f *excelize.File) (header, errs, warns int, err error) {
	header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return
	}
	errs, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}},
		Font: &excelize.Font{Color: "9C0006"},
	})
	if err != nil {
		return
	}
	warns, err = f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFEB9C"}},
		Font: &excelize.Font{Color: "9C6500"},
	})
	return
}

func writeFindings(f *excelize.File, outcome *validation.Outcome, headerStyle int) error {
	if _, err := f.NewSheet(findingsSheet); err != nil {
		return fmt.Errorf("create findings sheet: %w", err)
	}
	titles := []string{"행", "대상", "항목", "구분", "내용"}
	for i, title := range titles {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(findingsSheet, cell, title); err != nil {
			return err
		}
		if err := f.SetCellStyle(findingsSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}

	rowNum := 2
	write := func(fs []validation.Finding, label string) error {
		for _, finding := range fs {
			values := []any{finding.Row, finding.EmpInfo, finding.Column, label, finding.Message}
			for i, v := range values {
				cell, _ := excelize.CoordinatesToCellName(i+1, rowNum)
				if err := f.SetCellValue(findingsSheet, cell, v); err != nil {
					return err
				}
			}
			rowNum++
		}
		return nil
	}
	if err := write(outcome.Bundle.Errors, "오류"); err != nil {
		return err
	}
	return write(outcome.Bundle.Warnings, "경고")
}
