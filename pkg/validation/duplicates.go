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
	"sort"
	"strings"

	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

// DuplicateKind names the three detection passes.
type DuplicateKind string

const (
	DuplicateExact      DuplicateKind = "exact"      // same employee id
	DuplicateSimilar    DuplicateKind = "similar"    // same name and birth date, different ids
	DuplicateSuspicious DuplicateKind = "suspicious" // same phone or email across different ids
)

// DuplicateGroup is one cluster of rows a pass tied together.
type DuplicateGroup struct {
	Kind     DuplicateKind `json:"kind"`
	Severity string        `json:"severity"` // error, warning, info
	Rows     []int         `json:"rows"`
	EmpInfo  string        `json:"emp_info"`
	// Fields lists the mapped columns whose values differ inside the group,
	// for exact groups; for suspicious groups it names the shared column.
	Fields []string `json:"fields,omitempty"`

	// rowInfo holds the per-row emp info, parallel to Rows. Findings need it
	// so each row keeps its own identity even inside one group.
	rowInfo []string
}

// DuplicateReport is the detector output. Exact groups escalate to errors,
// similar groups to warnings; suspicious groups stay report-only so a shared
// phone line never blocks an upload by itself.
type DuplicateReport struct {
	Exact      []DuplicateGroup `json:"exact"`
	Similar    []DuplicateGroup `json:"similar"`
	Suspicious []DuplicateGroup `json:"suspicious"`
}

// Empty reports whether no pass found anything.
func (r *DuplicateReport) Empty() bool {
	return len(r.Exact) == 0 && len(r.Similar) == 0 && len(r.Suspicious) == 0
}

// Findings converts escalating groups into the finding stream, one per row.
// Suspicious groups carry info severity and never enter the stream.
func (r *DuplicateReport) Findings() []Finding {
	var fs []Finding
	for _, g := range r.Exact {
		msg := fmt.Sprintf("사원번호 중복: %s (행 %s)", g.EmpInfo, joinRows(g.Rows))
		for i, row := range g.Rows {
			fs = append(fs, Finding{
				Row: row, EmpInfo: g.info(i), Column: schema.FieldEmployeeID,
				Severity: SeverityError, Message: msg, Source: SourceLayer1,
			})
		}
	}
	for _, g := range r.Similar {
		msg := fmt.Sprintf("동일 인물 의심: %s (행 %s, 서로 다른 사원번호)", g.EmpInfo, joinRows(g.Rows))
		for i, row := range g.Rows {
			fs = append(fs, Finding{
				Row: row, EmpInfo: g.info(i), Column: schema.FieldEmployeeID,
				Severity: SeverityWarning, Message: msg, Source: SourceLayer1,
			})
		}
	}
	return fs
}

func (g *DuplicateGroup) info(i int) string {
	if i < len(g.rowInfo) {
		return g.rowInfo[i]
	}
	return g.EmpInfo
}

// DetectDuplicates runs the three independent passes over the mapped
// columns:
//
//  1. exact — rows sharing a canonical employee id (error)
//  2. similar — rows sharing name and birth date under more than one
//     distinct id (warning)
//  3. suspicious — rows sharing a phone number or email across different
//     ids (info)
func DetectDuplicates(res *parser.Result, set *matcher.Set) *DuplicateReport {
	view := newRowView(res, set)
	report := &DuplicateReport{}

	if view.has(schema.FieldEmployeeID) {
		byID := groupBy(res.Rows, func(row parser.Row) string {
			return view.cell(row, schema.FieldEmployeeID)
		})
		for _, group := range byID {
			g := DuplicateGroup{
				Kind:     DuplicateExact,
				Severity: string(SeverityError),
				EmpInfo:  view.empInfo(group[0]),
				Fields:   differingFields(view, group),
			}
			for _, row := range group {
				g.Rows = append(g.Rows, row.SheetRow)
				g.rowInfo = append(g.rowInfo, view.empInfo(row))
			}
			report.Exact = append(report.Exact, g)
		}
	}

	if view.has(schema.FieldName) && view.has(schema.FieldBirthDate) {
		byPerson := groupBy(res.Rows, func(row parser.Row) string {
			name := view.cell(row, schema.FieldName)
			birth := view.cell(row, schema.FieldBirthDate)
			if name == "" || birth == "" {
				return ""
			}
			return name + "\x1f" + birth
		})
		for _, group := range byPerson {
			if sameIDs(view, group) {
				continue
			}
			g := DuplicateGroup{
				Kind:     DuplicateSimilar,
				Severity: string(SeverityWarning),
				EmpInfo:  view.empInfo(group[0]),
			}
			for _, row := range group {
				g.Rows = append(g.Rows, row.SheetRow)
				g.rowInfo = append(g.rowInfo, view.empInfo(row))
			}
			report.Similar = append(report.Similar, g)
		}
	}

	for _, contact := range []string{schema.FieldPhone, schema.FieldEmail} {
		if !view.has(contact) {
			continue
		}
		byContact := groupBy(res.Rows, func(row parser.Row) string {
			return view.cell(row, contact)
		})
		for _, group := range byContact {
			// A shared contact under one id is the same person, not a
			// duplicate.
			if sameIDs(view, group) {
				continue
			}
			g := DuplicateGroup{
				Kind:     DuplicateSuspicious,
				Severity: "info",
				EmpInfo:  view.empInfo(group[0]),
				Fields:   []string{contact},
			}
			for _, row := range group {
				g.Rows = append(g.Rows, row.SheetRow)
			}
			report.Suspicious = append(report.Suspicious, g)
		}
	}
	return report
}

// groupBy clusters rows by key, returning only clusters of two or more, in
// first-appearance order. Empty keys never group.
func groupBy(rows []parser.Row, key func(parser.Row) string) [][]parser.Row {
	byKey := make(map[string][]parser.Row)
	var order []string
	for _, row := range rows {
		k := key(row)
		if k == "" {
			continue
		}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], row)
	}
	var out [][]parser.Row
	for _, k := range order {
		if len(byKey[k]) > 1 {
			out = append(out, byKey[k])
		}
	}
	return out
}

// differingFields lists the mapped columns whose values are not uniform
// inside a group.
func differingFields(view *rowView, group []parser.Row) []string {
	fields := make([]string, 0, len(view.source))
	for canonical := range view.source {
		fields = append(fields, canonical)
	}
	sort.Strings(fields)

	var out []string
	for _, f := range fields {
		first := view.cell(group[0], f)
		for _, row := range group[1:] {
			if view.cell(row, f) != first {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func sameIDs(view *rowView, group []parser.Row) bool {
	first := view.cell(group[0], schema.FieldEmployeeID)
	for _, row := range group[1:] {
		if view.cell(row, schema.FieldEmployeeID) != first {
			return false
		}
	}
	return true
}

func joinRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return strings.Join(parts, ", ")
}
