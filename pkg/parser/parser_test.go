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
package parser

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/korean"

	"github.com/wikisoft/rostercheck/pkg/schema"
)

func encodeEUCKR(s string) ([]byte, error) {
	return korean.EUCKR.NewEncoder().Bytes([]byte(s))
}

func newTestParser() *Parser {
	return New(schema.New())
}

func csvBytes(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

func TestParse_CSV(t *testing.T) {
	p := newTestParser()
	data := csvBytes(
		"사원번호,이름,생년월일,입사일,기준급여",
		"EMP001,홍길동,19900115,20150301,3200000",
		"EMP002,김철수,1985-06-20,20180715,2800000",
	)

	res, err := p.Parse(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Headers) != 5 {
		t.Fatalf("headers = %v", res.Headers)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	for _, row := range res.Rows {
		if len(row.Cells) != len(res.Headers) {
			t.Errorf("row %d has %d cells, want %d", row.SheetRow, len(row.Cells), len(res.Headers))
		}
	}
	// Dates in date-typed columns are canonicalized.
	if got := res.Cell(res.Rows[1], "생년월일"); got != "19850620" {
		t.Errorf("birth date = %q, want 19850620", got)
	}
	// Header row is spreadsheet row 1, first data row is 2.
	if res.Rows[0].SheetRow != 2 {
		t.Errorf("first data row = %d, want 2", res.Rows[0].SheetRow)
	}
}

func TestParse_UTF8BOMStripped(t *testing.T) {
	p := newTestParser()
	data := append([]byte("\uFEFF"), csvBytes(
		"사원번호,이름",
		"EMP001,홍길동",
	)...)

	res, err := p.Parse(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	// The BOM must not survive into the first header.
	if res.Headers[0] != "사원번호" {
		t.Errorf("first header = %q, want 사원번호", res.Headers[0])
	}
}

func TestParse_HeaderAnnotationsStripped(t *testing.T) {
	p := newTestParser()
	data := csvBytes(
		`사원번호,이름,"성별`+"\n"+`(1:남, 2:여)"`,
		"EMP001,홍길동,1",
	)
	res, err := p.Parse(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Headers[2] != "성별" {
		t.Errorf("annotated header = %q, want 성별", res.Headers[2])
	}
}

func TestParse_FiltersEmptyAndDescriptionRows(t *testing.T) {
	p := newTestParser()
	data := csvBytes(
		"사원번호,이름,기준급여,비고",
		",,,",
		"EMP001,홍길동,3200000,",
		",,,※ 양식에 맞춰 입력하세요",
		"EMP002,김철수,2800000,",
	)
	res, err := p.Parse(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(res.Rows))
	}
	if res.Meta.EmptySkipped != 1 {
		t.Errorf("empty skipped = %d, want 1", res.Meta.EmptySkipped)
	}
	if res.Meta.DescriptionSkipped != 1 {
		t.Errorf("description skipped = %d, want 1", res.Meta.DescriptionSkipped)
	}
	// Filtered counts plus returned count equals raw count.
	total := len(res.Rows) + res.Meta.EmptySkipped + res.Meta.DescriptionSkipped
	if total != res.Meta.RawRows {
		t.Errorf("row accounting: %d filtered+kept vs %d raw", total, res.Meta.RawRows)
	}
}

func TestParse_IdentifierFloatArtefact(t *testing.T) {
	p := newTestParser()
	data := csvBytes(
		"사원번호,이름",
		"190001.0,홍길동",
	)
	res, err := p.Parse(data, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Cell(res.Rows[0], "사원번호"); got != "190001" {
		t.Errorf("identifier = %q, want 190001", got)
	}
}

func TestParse_RowCap(t *testing.T) {
	p := newTestParser()
	lines := []string{"사원번호,이름"}
	for i := 0; i < 10; i++ {
		lines = append(lines, "EMP00"+string(rune('0'+i))+",홍길동")
	}
	res, err := p.Parse(csvBytes(lines...), Options{MaxRows: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Rows) != 3 {
		t.Errorf("rows = %d, want 3", len(res.Rows))
	}
	if !res.Meta.Capped {
		t.Error("expected capped flag")
	}
}

func TestParse_NoHeaderRow(t *testing.T) {
	p := newTestParser()
	_, err := p.Parse([]byte("\n\n\n"), Options{})
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Reason != ReasonNoHeaderRow {
		t.Fatalf("err = %v, want ParseError(no_header_row)", err)
	}
}

func TestParse_Workbook(t *testing.T) {
	f := excelize.NewFile()
	sheet := "(2-2) 재직자명부"
	f.NewSheet(sheet)
	f.DeleteSheet("Sheet1")
	rows := [][]any{
		{"사원번호", "이름", "생년월일"},
		{"EMP001", "홍길동", "19900115"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}

	p := newTestParser()
	res, err := p.Parse(buf.Bytes(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.Kind != "xlsx" {
		t.Errorf("kind = %q, want xlsx", res.Meta.Kind)
	}
	if res.Meta.SheetName != sheet {
		t.Errorf("sheet = %q, want %q", res.Meta.SheetName, sheet)
	}
	if len(res.Rows) != 1 || res.Cell(res.Rows[0], "이름") != "홍길동" {
		t.Fatalf("unexpected rows: %+v", res.Rows)
	}
}

func TestSelectSheet_Priority(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{[]string{"안내", "(2-2) 재직자명부", "재직자명부(시스템)"}, "(2-2) 재직자명부"},
		{[]string{"안내", "재직자명부 시스템용"}, "재직자명부 시스템용"},
		{[]string{"안내", "재직자 명부"}, "재직자 명부"},
		{[]string{"Sheet1", "Sheet2"}, "Sheet1"},
	}
	for _, tc := range tests {
		if got := selectSheet(tc.names); got != tc.want {
			t.Errorf("selectSheet(%v) = %q, want %q", tc.names, got, tc.want)
		}
	}
}

func TestParse_CP949Text(t *testing.T) {
	// "사원번호,이름\nEMP001,홍길동" encoded as EUC-KR.
	utf := "사원번호,이름\nEMP001,홍길동"
	enc, err := encodeEUCKR(utf)
	if err != nil {
		t.Fatal(err)
	}
	p := newTestParser()
	res, err := p.Parse(enc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Meta.Encoding != "cp949" {
		t.Errorf("encoding = %q, want cp949", res.Meta.Encoding)
	}
	if res.Cell(res.Rows[0], "이름") != "홍길동" {
		t.Errorf("name cell mis-decoded: %+v", res.Rows[0])
	}
}
