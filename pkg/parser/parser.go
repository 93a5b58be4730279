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

// Package parser decodes uploaded roster bytes into headers, rows, and parse
// metadata. Format is classified by magic bytes: zip-based workbooks go
// through excelize, OLE compound files are treated as legacy workbooks, and
// anything else is read as delimited text with encoding detection.
package parser

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/schema"
)

// DefaultMaxRows caps sampled parsing.
const DefaultMaxRows = 5000

// ParseError is an input-kind failure: the bytes could not be turned into a
// roster at all. The HTTP boundary maps it to a 4xx.
type ParseError struct {
	Reason  string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed (%s): %s", e.Reason, e.Message)
}

// Stable ParseError reasons.
const (
	ReasonNoHeaderRow = "no_header_row"
	ReasonAllEmpty    = "all_rows_empty"
	ReasonUndecodable = "undecodable"
)

// Row is one data row. SheetRow is the 1-based spreadsheet row number with
// the header row counted as row 1; findings reference it directly.
type Row struct {
	SheetRow int      `json:"sheet_row"`
	Cells    []string `json:"cells"`
}

// Meta reports how the parse went.
type Meta struct {
	Kind               string            `json:"kind"` // xlsx, legacy, text
	SheetName          string            `json:"sheet_name,omitempty"`
	Encoding           string            `json:"encoding,omitempty"`
	RawRows            int               `json:"raw_rows"`
	EmptySkipped       int               `json:"empty_skipped"`
	DescriptionSkipped int               `json:"description_skipped"`
	Capped             bool              `json:"capped"`
	MaxRows            int               `json:"max_rows"`
	ColumnTypes        map[string]string `json:"column_types,omitempty"`
}

// Result is a parsed workbook. Every row has exactly len(Headers) cells.
type Result struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
	Meta    Meta     `json:"meta"`

	index map[string]int
}

// Options tune a single parse.
type Options struct {
	// MaxRows caps the number of returned rows; 0 means DefaultMaxRows.
	MaxRows int
	// Encoding forces the text decoding (utf-8, cp949, euc-kr, latin1).
	// Empty means detect. The retry strategy rotates this on reparse.
	Encoding string
	// Sheet is the roster sheet the upload claims to be.
	Sheet schema.Sheet
}

// Parser decodes uploads against the standard schema.
type Parser struct {
	registry *schema.Registry
}

// New creates a parser bound to the standard schema registry.
func New(registry *schema.Registry) *Parser {
	return &Parser{registry: registry}
}

var (
	magicZip = []byte{0x50, 0x4B, 0x03, 0x04}
	magicOLE = []byte{0xD0, 0xCF}
)

// Parse classifies data by magic bytes and decodes it.
func (p *Parser) Parse(data []byte, opts Options) (*Result, error) {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.Sheet == "" {
		opts.Sheet = schema.SheetActive
	}

	var (
		table [][]string
		meta  Meta
		err   error
	)
	switch {
	case bytes.HasPrefix(data, magicZip):
		table, meta, err = p.parseWorkbook(data)
	case bytes.HasPrefix(data, magicOLE):
		table, meta, err = p.parseLegacyWorkbook(data)
	default:
		table, meta, err = p.parseText(data, opts.Encoding)
	}
	if err != nil {
		return nil, err
	}

	res, err := p.assemble(table, meta, opts)
	if err != nil {
		return nil, err
	}
	zap.L().Debug("parsed roster",
		zap.String("kind", res.Meta.Kind),
		zap.Int("headers", len(res.Headers)),
		zap.Int("rows", len(res.Rows)),
		zap.Int("empty_skipped", res.Meta.EmptySkipped),
		zap.Int("description_skipped", res.Meta.DescriptionSkipped),
	)
	return res, nil
}

// descriptionKeywords mark guidance text planted in annotation columns of
// distributed templates.
var descriptionKeywords = []string{"※", "양식", "입력", "예시", "작성", "기재"}

// assemble turns a raw cell table into a Result: header normalization, row
// padding, empty/description filtering, date and identifier normalization,
// and the row cap.
func (p *Parser) assemble(table [][]string, meta Meta, opts Options) (*Result, error) {
	headerIdx := -1
	for i, row := range table {
		if countNonEmpty(row) > 0 {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, &ParseError{Reason: ReasonNoHeaderRow, Message: "workbook has no header row"}
	}

	headers := make([]string, len(table[headerIdx]))
	for i, h := range table[headerIdx] {
		headers[i] = schema.NormalizeHeader(h)
	}

	colTypes := make(map[string]string, len(headers))
	keyCols := make([]int, 0, 2)
	idCol, remarkCol := -1, -1
	dateCols := make(map[int]bool)
	idLikeCols := make(map[int]bool)
	for i, h := range headers {
		canonical, ok := p.registry.Resolve(h)
		if !ok {
			colTypes[h] = string(schema.TypeString)
			if isRemarkHeader(h) {
				remarkCol = i
			}
			continue
		}
		field, _ := p.registry.Lookup(canonical)
		colTypes[h] = string(field.Type)
		switch canonical {
		case schema.FieldEmployeeID:
			idCol = i
			keyCols = append(keyCols, i)
			idLikeCols[i] = true
		case schema.FieldName:
			keyCols = append(keyCols, i)
		}
		if field.Type == schema.TypeDate {
			dateCols[i] = true
		}
		if field.Type == schema.TypeCategory {
			idLikeCols[i] = true
		}
	}

	meta.RawRows = len(table) - headerIdx - 1
	meta.MaxRows = opts.MaxRows
	meta.ColumnTypes = colTypes

	rows := make([]Row, 0, minInt(meta.RawRows, opts.MaxRows))
	for i := headerIdx + 1; i < len(table); i++ {
		// Spreadsheet numbering treats the header row as row 1.
		sheetRow := i - headerIdx + 1
		cells := padTo(table[i], len(headers))

		// Description rows also have blank key columns, so they are
		// classified before the empty check.
		if isDescriptionRow(cells, idCol, remarkCol) {
			meta.DescriptionSkipped++
			continue
		}
		if isEmptyRow(cells, keyCols) {
			meta.EmptySkipped++
			continue
		}
		if len(rows) >= opts.MaxRows {
			meta.Capped = true
			break
		}

		for c := range cells {
			cells[c] = strings.TrimSpace(cells[c])
			if idLikeCols[c] {
				cells[c] = NormalizeIdentifier(cells[c])
			}
			if dateCols[c] && cells[c] != "" {
				if norm, ok := NormalizeDate(cells[c]); ok {
					cells[c] = norm
				}
			}
		}
		rows = append(rows, Row{SheetRow: sheetRow, Cells: cells})
	}

	if len(rows) == 0 && meta.RawRows > 0 && meta.EmptySkipped == meta.RawRows {
		return nil, &ParseError{Reason: ReasonAllEmpty, Message: "all rows are empty"}
	}

	res := &Result{Headers: headers, Rows: rows, Meta: meta}
	res.buildIndex()
	return res, nil
}

func (r *Result) buildIndex() {
	r.index = make(map[string]int, len(r.Headers))
	for i, h := range r.Headers {
		if _, dup := r.index[h]; !dup {
			r.index[h] = i
		}
	}
}

// Cell returns the value of the named column in a row, or "" when the column
// does not exist. Duplicate header names resolve to the first occurrence.
func (r *Result) Cell(row Row, header string) string {
	if r.index == nil {
		r.buildIndex()
	}
	i, ok := r.index[header]
	if !ok || i >= len(row.Cells) {
		return ""
	}
	return row.Cells[i]
}

// HasColumn reports whether a header is present.
func (r *Result) HasColumn(header string) bool {
	if r.index == nil {
		r.buildIndex()
	}
	_, ok := r.index[header]
	return ok
}

func isEmptyRow(cells []string, keyCols []int) bool {
	if len(keyCols) == 0 {
		return countNonEmpty(cells) == 0
	}
	for _, c := range keyCols {
		if c < len(cells) && strings.TrimSpace(cells[c]) != "" {
			return false
		}
	}
	return true
}

// isDescriptionRow detects template guidance rows: the remark column (or any
// cell, when no remark column exists) carries guidance keywords while the
// identifier column holds nothing numeric.
func isDescriptionRow(cells []string, idCol, remarkCol int) bool {
	if idCol >= 0 && idCol < len(cells) && hasDigits(cells[idCol]) {
		return false
	}
	probe := cells
	if remarkCol >= 0 && remarkCol < len(cells) {
		probe = cells[remarkCol : remarkCol+1]
	}
	for _, cell := range probe {
		for _, kw := range descriptionKeywords {
			if strings.Contains(cell, kw) {
				return true
			}
		}
	}
	return false
}

func isRemarkHeader(h string) bool {
	key := schema.NormalizeKey(h)
	switch key {
	case "비고", "참고사항", "메모", "note", "remark", "comment":
		return true
	}
	return false
}

func hasDigits(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func countNonEmpty(cells []string) int {
	n := 0
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

func padTo(cells []string, n int) []string {
	out := make([]string, n)
	copy(out, cells)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// numericValue parses a cell as a number, tolerating thousands separators
// and a currency suffix.
func numericValue(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, "원")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Numeric exposes cell numeric parsing to the validators.
func Numeric(s string) (float64, bool) {
	return numericValue(s)
}
