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
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

// minimumMonthlyWage is the statutory monthly minimum wage in KRW. Salaries
// below it draw a warning, not an error: part-time rosters legitimately dip
// under it.
const minimumMonthlyWage = 2_060_740

const (
	minBirthYear  = 1945
	maxBirthYear  = 2010
	minHireAge    = 18
	maxHireAgeOld = 70
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// layer1Batch rows are validated per goroutine.
const layer1Batch = 500

// Layer1 runs the per-row format and domain checks.
type Layer1 struct {
	registry *schema.Registry

	// now is swapped in tests; zero value means time.Now.
	now func() time.Time
}

// NewLayer1 creates the row validator.
func NewLayer1(registry *schema.Registry) *Layer1 {
	return &Layer1{registry: registry, now: time.Now}
}

// rowView resolves canonical fields to cells through the header match set.
type rowView struct {
	res    *parser.Result
	source map[string]string // canonical field -> customer header
}

func newRowView(res *parser.Result, set *matcher.Set) *rowView {
	source := make(map[string]string)
	for _, m := range set.Matches {
		if m.Target != "" {
			if _, dup := source[m.Target]; !dup {
				source[m.Target] = m.Source
			}
		}
	}
	return &rowView{res: res, source: source}
}

func (v *rowView) cell(row parser.Row, canonical string) string {
	src, ok := v.source[canonical]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.res.Cell(row, src))
}

func (v *rowView) has(canonical string) bool {
	_, ok := v.source[canonical]
	return ok
}

func (v *rowView) empInfo(row parser.Row) string {
	return EmpInfo(v.cell(row, schema.FieldName), v.cell(row, schema.FieldEmployeeID), row.SheetRow)
}

// Validate checks every row and returns the layer-1 findings. Row batches
// run in parallel; output order is restored afterwards.
func (v *Layer1) Validate(ctx context.Context, res *parser.Result, set *matcher.Set, sheet schema.Sheet) (*Bundle, error) {
	if sheet == "" {
		sheet = schema.SheetActive
	}
	view := newRowView(res, set)
	today := v.now()

	batches := (len(res.Rows) + layer1Batch - 1) / layer1Batch
	found := make([][]Finding, batches)

	g, ctx := errgroup.WithContext(ctx)
	for b := 0; b < batches; b++ {
		b := b
		lo := b * layer1Batch
		hi := minInt2(lo+layer1Batch, len(res.Rows))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var fs []Finding
			for _, row := range res.Rows[lo:hi] {
				fs = append(fs, v.checkRow(view, row, sheet, today)...)
			}
			found[b] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle := &Bundle{}
	for _, fs := range found {
		for _, f := range fs {
			bundle.add(f)
		}
	}
	for _, f := range v.checkDuplicateIDs(view, res.Rows) {
		bundle.add(f)
	}
	bundle.finalize()
	return bundle, nil
}

func (v *Layer1) checkRow(view *rowView, row parser.Row, sheet schema.Sheet, today time.Time) []Finding {
	var fs []Finding
	info := view.empInfo(row)
	emit := func(col string, sev Severity, msg string) {
		fs = append(fs, Finding{
			Row: row.SheetRow, EmpInfo: info, Column: col,
			Severity: sev, Message: msg, Source: SourceLayer1,
		})
	}

	// Required cells. Unbound required columns are a matching warning, not a
	// row finding.
	for _, req := range v.registry.Required(sheet) {
		if view.has(req) && view.cell(row, req) == "" {
			emit(req, SeverityError, fmt.Sprintf("필수 값 누락: %s", req))
		}
	}

	birth, birthOK := v.checkBirth(view, row, emit)
	hire, hireOK := v.checkDateCell(view, row, schema.FieldHireDate, emit)

	if hireOK {
		if hire.After(today) {
			emit(schema.FieldHireDate, SeverityError, "입사일이 미래 날짜입니다")
		}
		if birthOK {
			switch age := yearsBetween(birth, hire); {
			case age < 0:
				emit(schema.FieldHireDate, SeverityError, "입사일이 생년월일보다 빠릅니다")
			case age < minHireAge:
				emit(schema.FieldHireDate, SeverityError, fmt.Sprintf("입사 시 나이 %d세 미만 (만 %d세)", minHireAge, age))
			case age > maxHireAgeOld:
				emit(schema.FieldHireDate, SeverityWarning, fmt.Sprintf("입사 시 나이 %d세 초과 (만 %d세)", maxHireAgeOld, age))
			}
		}
	}

	if leave, ok := v.checkDateCell(view, row, schema.FieldLeaveDate, emit); ok && hireOK && leave.Before(hire) {
		emit(schema.FieldLeaveDate, SeverityError, "퇴사일이 입사일보다 빠릅니다")
	}
	if conv, ok := v.checkDateCell(view, row, schema.FieldConvertDate, emit); ok && hireOK && conv.Before(hire) {
		emit(schema.FieldConvertDate, SeverityError, "제도전환일이 입사일보다 빠릅니다")
	}

	v.checkSalary(view, row, emit)
	v.checkPayout(view, row, schema.FieldSeverance, emit)
	v.checkPayout(view, row, schema.FieldMidSettle, emit)
	v.checkGender(view, row, emit)
	v.checkScheme(view, row, emit)
	v.checkPhone(view, row, emit)
	v.checkEmail(view, row, emit)
	return fs
}

type emitFn func(col string, sev Severity, msg string)

// checkBirth validates the birth date cell and the plausible year window.
func (v *Layer1) checkBirth(view *rowView, row parser.Row, emit emitFn) (time.Time, bool) {
	t, ok := v.checkDateCell(view, row, schema.FieldBirthDate, emit)
	if !ok {
		return time.Time{}, false
	}
	if y := t.Year(); y < minBirthYear || y > maxBirthYear {
		emit(schema.FieldBirthDate, SeverityError,
			fmt.Sprintf("출생년도 %d는 허용 범위(%d~%d)를 벗어납니다", y, minBirthYear, maxBirthYear))
	}
	return t, true
}

// checkDateCell parses a bound date cell. Returns false when the cell is
// absent, empty, or unparseable; the last case also emits an error.
func (v *Layer1) checkDateCell(view *rowView, row parser.Row, field string, emit emitFn) (time.Time, bool) {
	raw := view.cell(row, field)
	if raw == "" {
		return time.Time{}, false
	}
	canonical, ok := parser.NormalizeDate(raw)
	if !ok {
		emit(field, SeverityError, fmt.Sprintf("%s 형식 오류: %q", field, raw))
		return time.Time{}, false
	}
	t, ok := parser.ParseCanonicalDate(canonical)
	if !ok {
		emit(field, SeverityError, fmt.Sprintf("%s 형식 오류: %q", field, raw))
		return time.Time{}, false
	}
	return t, true
}

func (v *Layer1) checkSalary(view *rowView, row parser.Row, emit emitFn) {
	raw := view.cell(row, schema.FieldBaseSalary)
	if raw == "" {
		return
	}
	amount, ok := parser.Numeric(raw)
	if !ok {
		emit(schema.FieldBaseSalary, SeverityError, fmt.Sprintf("기준급여가 숫자가 아닙니다: %q", raw))
		return
	}
	if amount <= 0 {
		emit(schema.FieldBaseSalary, SeverityError, "기준급여는 0보다 커야 합니다")
		return
	}
	if amount < minimumMonthlyWage {
		emit(schema.FieldBaseSalary, SeverityWarning,
			fmt.Sprintf("기준급여 최저임금(%s원) 미달: %s원", formatWon(minimumMonthlyWage), formatWon(int64(amount))))
	}
}

func (v *Layer1) checkPayout(view *rowView, row parser.Row, field string, emit emitFn) {
	raw := view.cell(row, field)
	if raw == "" {
		return
	}
	amount, ok := parser.Numeric(raw)
	if !ok {
		emit(field, SeverityError, fmt.Sprintf("%s가 숫자가 아닙니다: %q", field, raw))
		return
	}
	if amount < 0 {
		emit(field, SeverityError, fmt.Sprintf("%s는 음수일 수 없습니다", field))
	}
}

var genderValues = map[string]bool{
	"1": true, "2": true, "남": true, "여": true, "m": true, "f": true,
}

func (v *Layer1) checkGender(view *rowView, row parser.Row, emit emitFn) {
	raw := view.cell(row, schema.FieldGender)
	if raw == "" {
		return
	}
	key := strings.ToLower(strings.TrimSuffix(raw, ".0"))
	if !genderValues[key] {
		emit(schema.FieldGender, SeverityError, fmt.Sprintf("성별 값 오류: %q (허용: 1, 2, 남, 여, M, F)", raw))
	}
}

func (v *Layer1) checkScheme(view *rowView, row parser.Row, emit emitFn) {
	raw := view.cell(row, schema.FieldScheme)
	if raw == "" {
		return
	}
	switch strings.TrimSuffix(raw, ".0") {
	case "1", "2", "3":
	default:
		emit(schema.FieldScheme, SeverityError, fmt.Sprintf("제도구분 값 오류: %q (허용: 1, 2, 3)", raw))
	}
}

func (v *Layer1) checkPhone(view *rowView, row parser.Row, emit emitFn) {
	raw := view.cell(row, schema.FieldPhone)
	if raw == "" {
		return
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) < 10 || len(digits) > 11 || !strings.HasPrefix(digits, "0") {
		emit(schema.FieldPhone, SeverityWarning, fmt.Sprintf("전화번호 형식 오류: %q", raw))
	}
}

func (v *Layer1) checkEmail(view *rowView, row parser.Row, emit emitFn) {
	raw := view.cell(row, schema.FieldEmail)
	if raw == "" {
		return
	}
	if !emailRe.MatchString(raw) {
		emit(schema.FieldEmail, SeverityWarning, fmt.Sprintf("이메일 형식 오류: %q", raw))
	}
}

// checkDuplicateIDs flags repeated employee numbers. Each involved row gets
// a warning; exact-duplicate full rows are escalated separately by the
// duplicate detector.
func (v *Layer1) checkDuplicateIDs(view *rowView, rows []parser.Row) []Finding {
	if !view.has(schema.FieldEmployeeID) {
		return nil
	}
	byID := make(map[string][]parser.Row)
	for _, row := range rows {
		id := view.cell(row, schema.FieldEmployeeID)
		if id == "" {
			continue
		}
		byID[id] = append(byID[id], row)
	}

	ids := make([]string, 0, len(byID))
	for id, group := range byID {
		if len(group) > 1 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var fs []Finding
	for _, id := range ids {
		group := byID[id]
		rowNums := make([]string, len(group))
		for i, row := range group {
			rowNums[i] = fmt.Sprintf("%d", row.SheetRow)
		}
		msg := fmt.Sprintf("사원번호 중복: %s (행 %s)", id, strings.Join(rowNums, ", "))
		for _, row := range group {
			fs = append(fs, Finding{
				Row: row.SheetRow, EmpInfo: view.empInfo(row), Column: schema.FieldEmployeeID,
				Severity: SeverityWarning, Message: msg, Source: SourceLayer1,
			})
		}
	}
	return fs
}

// yearsBetween is the full-year age at `at` for someone born `birth`.
func yearsBetween(birth, at time.Time) int {
	years := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		years--
	}
	return years
}

func formatWon(n int64) string {
	s := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + formatWon(-n)
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func minInt2(a, b int) int {
	if a < b {
		return a
	}
	return b
}
