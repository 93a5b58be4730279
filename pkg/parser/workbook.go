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
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseWorkbook decodes a zip-based (xlsx) workbook.
func (p *Parser) parseWorkbook(data []byte) ([][]string, Meta, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, Meta{}, &ParseError{Reason: ReasonUndecodable, Message: err.Error()}
	}
	defer f.Close()

	sheet := selectSheet(f.GetSheetList())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, Meta{}, &ParseError{Reason: ReasonUndecodable, Message: err.Error()}
	}
	return rows, Meta{Kind: "xlsx", SheetName: sheet}, nil
}

// parseLegacyWorkbook handles OLE compound files. Some "xls" uploads are
// mislabeled xlsx archives, so a zip-based open is attempted before giving
// up; true BIFF streams are rejected as undecodable input.
func (p *Parser) parseLegacyWorkbook(data []byte) ([][]string, Meta, error) {
	table, meta, err := p.parseWorkbook(data)
	if err == nil {
		meta.Kind = "legacy"
		return table, meta, nil
	}
	return nil, Meta{}, &ParseError{
		Reason:  ReasonUndecodable,
		Message: "legacy .xls workbooks are not supported; re-save the file as .xlsx",
	}
}

// selectSheet picks the roster sheet. The priority order is part of the
// parser contract:
//  1. name contains "(2-2)" and "재직자"
//  2. name contains "재직자명부" and "시스템"
//  3. name contains "재직자" and "명부"
//  4. first sheet
func selectSheet(names []string) string {
	if len(names) == 0 {
		return ""
	}
	match := func(parts ...string) string {
		for _, n := range names {
			ok := true
			for _, part := range parts {
				if !strings.Contains(n, part) {
					ok = false
					break
				}
			}
			if ok {
				return n
			}
		}
		return ""
	}
	if n := match("(2-2)", "재직자"); n != "" {
		return n
	}
	if n := match("재직자명부", "시스템"); n != "" {
		return n
	}
	if n := match("재직자", "명부"); n != "" {
		return n
	}
	return names[0]
}
