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
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Excel serial day numbers are only trusted inside this window
// (1927-05-18 .. 2119-02-01); anything outside is treated as a plain number.
const (
	serialMin = 10000
	serialMax = 80000
)

// excelEpoch is the Excel 1900 date system base (accounting for the
// fictitious 1900-02-29).
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

var (
	eightDigitRe = regexp.MustCompile(`^\d{8}$`)
	sixDigitRe   = regexp.MustCompile(`^\d{6}$`)
	delimDateRe  = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})$`)
)

// NormalizeDate canonicalizes a cell into the 8-digit YYYYMMDD form.
// Accepted inputs: an already canonical YYYYMMDD string, an Excel serial day
// number, YYMMDD (YY <= 49 means 2000s), and YYYY-MM-DD / YYYY/MM/DD /
// YYYY.MM.DD. Returns ok=false when the cell cannot be read as a date.
// Normalization is idempotent: feeding the output back returns it unchanged.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, ".0")
	if s == "" {
		return "", false
	}

	if eightDigitRe.MatchString(s) {
		if _, err := time.Parse("20060102", s); err != nil {
			return "", false
		}
		return s, true
	}

	if m := delimDateRe.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}

	if sixDigitRe.MatchString(s) {
		// Six digits are always YYMMDD: the plausible serial window tops out
		// at five digits.
		yy, _ := strconv.Atoi(s[:2])
		century := "19"
		if yy <= 49 {
			century = "20"
		}
		full := century + s
		if _, err := time.Parse("20060102", full); err != nil {
			return "", false
		}
		return full, true
	}

	if n, err := strconv.Atoi(s); err == nil && n >= serialMin && n <= serialMax {
		return fromSerial(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		n := int(f)
		if float64(n) == f && n >= serialMin && n <= serialMax {
			return fromSerial(n), true
		}
	}

	return "", false
}

func fromSerial(n int) string {
	return excelEpoch.AddDate(0, 0, n).Format("20060102")
}

func buildDate(y, m, d string) (string, bool) {
	if len(m) == 1 {
		m = "0" + m
	}
	if len(d) == 1 {
		d = "0" + d
	}
	s := y + m + d
	if _, err := time.Parse("20060102", s); err != nil {
		return "", false
	}
	return s, true
}

// ParseCanonicalDate converts a canonical YYYYMMDD string to a time.Time.
func ParseCanonicalDate(s string) (time.Time, bool) {
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeIdentifier strips the Excel float artefact from identifier cells,
// so "190001.0" compares equal to "190001".
func NormalizeIdentifier(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndex(s, ".0"); i > 0 && i == len(s)-2 {
		head := s[:i]
		if _, err := strconv.ParseInt(head, 10, 64); err == nil {
			return head
		}
	}
	return s
}
