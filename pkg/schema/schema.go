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

// Package schema holds the standard field registry for HR retirement-benefit
// rosters. The registry is built once at startup and is immutable afterwards,
// so reads are lock-free.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Sheet identifies which roster sheet a field belongs to.
type Sheet string

const (
	// SheetActive is the active-employee roster (재직자).
	SheetActive Sheet = "재직자"
	// SheetRetired is the departed-employee roster (퇴직자).
	SheetRetired Sheet = "퇴직자"
	// SheetExtra is the supplementary-records sheet (추가).
	SheetExtra Sheet = "추가"
	// SheetAll marks a field present on every sheet.
	SheetAll Sheet = "all"
)

// FieldType is the declared data type of a standard field.
type FieldType string

const (
	TypeString   FieldType = "string"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeCategory FieldType = "category"
)

// Field describes one canonical roster column.
type Field struct {
	// Name is the canonical field name. Globally unique.
	Name string
	// Type is the declared data type.
	Type FieldType
	// Required marks the field as mandatory for its sheet.
	Required bool
	// Affinity is the sheet the field belongs to, or SheetAll.
	Affinity Sheet
	// Aliases are alternative customer spellings, compared after
	// normalization. An alias must never collide with another field's
	// canonical name.
	Aliases []string
	// Examples are sample values used in LLM prompts.
	Examples []string
}

// Canonical field names. Callers that override matches by name use these.
const (
	FieldEmployeeID  = "사원번호"
	FieldName        = "이름"
	FieldBirthDate   = "생년월일"
	FieldHireDate    = "입사일"
	FieldLeaveDate   = "퇴사일"
	FieldGender      = "성별"
	FieldEmployeeCls = "종업원구분"
	FieldBaseSalary  = "기준급여"
	FieldScheme      = "제도구분"
	FieldConvertDate = "제도전환일"
	FieldPhone       = "전화번호"
	FieldEmail       = "이메일"
	FieldDepartment  = "부서"
	FieldSeverance   = "퇴직급여"
	FieldMidSettle   = "중간정산금액"
)

// Registry is the static standard-schema registry.
type Registry struct {
	fields  []Field
	byName  map[string]int // normalized canonical name -> fields index
	byAlias map[string]int // normalized alias -> fields index (first declared wins)
}

// standardFields is the fixed roster schema. Declaration order matters:
// alias ties between two fields resolve to the first-declared field.
var standardFields = []Field{
	{Name: FieldEmployeeID, Type: TypeString, Required: true, Affinity: SheetAll,
		Aliases:  []string{"사번", "직원번호", "사원 번호", "행원번호", "employee id", "emp no", "emp id"},
		Examples: []string{"EMP001", "2019-0042"}},
	{Name: FieldName, Type: TypeString, Required: true, Affinity: SheetAll,
		Aliases:  []string{"성명", "직원명", "사원명", "성 명", "name"},
		Examples: []string{"홍길동"}},
	{Name: FieldBirthDate, Type: TypeDate, Required: true, Affinity: SheetAll,
		Aliases:  []string{"생일", "생년 월일", "출생일", "주민등록상 생년월일", "birth date", "birthdate"},
		Examples: []string{"19900115"}},
	{Name: FieldHireDate, Type: TypeDate, Required: true, Affinity: SheetActive,
		Aliases:  []string{"입사년월일", "입사일자", "입 사 일", "입행일", "hire date"},
		Examples: []string{"20150301"}},
	{Name: FieldLeaveDate, Type: TypeDate, Required: true, Affinity: SheetRetired,
		Aliases:  []string{"퇴사일자", "퇴직일", "퇴직일자", "퇴직년월일", "leave date"},
		Examples: []string{"20231231"}},
	{Name: FieldGender, Type: TypeCategory, Required: false, Affinity: SheetAll,
		Aliases:  []string{"성", "남녀구분", "gender", "sex"},
		Examples: []string{"1", "2", "남", "여"}},
	{Name: FieldEmployeeCls, Type: TypeCategory, Required: true, Affinity: SheetActive,
		Aliases:  []string{"직급구분", "직원구분", "고용구분", "임직원구분", "employee type"},
		Examples: []string{"1", "2", "3"}},
	{Name: FieldBaseSalary, Type: TypeNumber, Required: true, Affinity: SheetActive,
		Aliases:  []string{"월급", "급여", "월 급여", "기준 급여", "월평균임금", "base salary", "salary"},
		Examples: []string{"3200000"}},
	{Name: FieldScheme, Type: TypeCategory, Required: false, Affinity: SheetActive,
		Aliases:  []string{"제도", "퇴직연금제도", "가입제도", "scheme"},
		Examples: []string{"1", "2", "3"}},
	{Name: FieldConvertDate, Type: TypeDate, Required: false, Affinity: SheetActive,
		Aliases: []string{"전환일", "제도 전환일", "전환일자"}},
	{Name: FieldPhone, Type: TypeString, Required: false, Affinity: SheetAll,
		Aliases:  []string{"휴대폰", "휴대전화", "연락처", "핸드폰", "phone"},
		Examples: []string{"01012345678"}},
	{Name: FieldEmail, Type: TypeString, Required: false, Affinity: SheetAll,
		Aliases: []string{"email", "e-mail", "메일", "메일주소", "이메일주소"}},
	{Name: FieldDepartment, Type: TypeString, Required: false, Affinity: SheetAll,
		Aliases: []string{"부서명", "소속", "소속부서", "department"}},
	{Name: FieldSeverance, Type: TypeNumber, Required: false, Affinity: SheetRetired,
		Aliases: []string{"퇴직금", "퇴직급여액", "지급액", "severance"}},
	{Name: FieldMidSettle, Type: TypeNumber, Required: false, Affinity: SheetExtra,
		Aliases: []string{"중간정산액", "중간정산 금액", "중도정산금액"}},
}

// New builds the standard registry. Panics on an invalid declaration table;
// the table is compiled in, so a failure here is a programming error.
func New() *Registry {
	r, err := NewWithFields(standardFields)
	if err != nil {
		panic(fmt.Sprintf("standard schema is invalid: %v", err))
	}
	return r
}

// NewWithFields builds a registry from an explicit field table, enforcing the
// registry invariants: canonical names are unique and no alias collides with
// another field's canonical name.
func NewWithFields(fields []Field) (*Registry, error) {
	r := &Registry{
		fields:  fields,
		byName:  make(map[string]int, len(fields)),
		byAlias: make(map[string]int),
	}
	for i, f := range fields {
		key := NormalizeKey(f.Name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate canonical field %q", f.Name)
		}
		r.byName[key] = i
	}
	for i, f := range fields {
		for _, alias := range f.Aliases {
			key := NormalizeKey(alias)
			if owner, exists := r.byName[key]; exists && owner != i {
				return nil, fmt.Errorf("alias %q of %q collides with canonical field %q",
					alias, f.Name, r.fields[owner].Name)
			}
			// First-declared field wins alias ties.
			if _, exists := r.byAlias[key]; !exists {
				r.byAlias[key] = i
			}
		}
	}
	return r, nil
}

// Fields returns the descriptors whose affinity matches sheet or is SheetAll.
func (r *Registry) Fields(sheet Sheet) []Field {
	out := make([]Field, 0, len(r.fields))
	for _, f := range r.fields {
		if f.Affinity == SheetAll || f.Affinity == sheet {
			out = append(out, f)
		}
	}
	return out
}

// All returns every declared field in declaration order.
func (r *Registry) All() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Required returns the canonical names required for the given sheet.
func (r *Registry) Required(sheet Sheet) []string {
	var out []string
	for _, f := range r.Fields(sheet) {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// Resolve maps an alias or canonical spelling to its canonical name.
// A spelling that is both a canonical name and another field's alias resolves
// to the canonical owner.
func (r *Registry) Resolve(alias string) (string, bool) {
	key := NormalizeKey(alias)
	if i, ok := r.byName[key]; ok {
		return r.fields[i].Name, true
	}
	if i, ok := r.byAlias[key]; ok {
		return r.fields[i].Name, true
	}
	return "", false
}

// Lookup returns the descriptor for a canonical name.
func (r *Registry) Lookup(name string) (Field, bool) {
	if i, ok := r.byName[NormalizeKey(name)]; ok {
		return r.fields[i], true
	}
	return Field{}, false
}

var (
	bracketRe    = regexp.MustCompile(`[(\[（【][^)\]）】]*[)\]）】]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	punctRe      = regexp.MustCompile(`[\s_\-./:*※]+`)
)

// NormalizeHeader cleans a raw header cell: embedded newlines become spaces,
// bracketed annotations are dropped, runs of whitespace collapse to one
// space. "성별\n(1:남, 2:여)" becomes "성별".
func NormalizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = bracketRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeKey reduces a header or alias to its comparison key: header
// normalization, then lower-casing, then removal of spaces and punctuation.
// The matcher and the registry must agree on this, so both call here.
func NormalizeKey(s string) string {
	s = NormalizeHeader(s)
	s = strings.ToLower(s)
	return punctRe.ReplaceAllString(s, "")
}
