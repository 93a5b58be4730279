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
	"encoding/csv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/korean"
)

// Encodings the text path understands. The retry strategy's
// ALTERNATIVE_PARSER rotates through these in order.
var TextEncodings = []string{"utf-8", "cp949", "euc-kr", "latin1"}

// parseText decodes delimited text. With no forced encoding, valid UTF-8 is
// taken as-is and anything else is decoded as CP949 (the dominant legacy
// encoding for Korean spreadsheet exports).
func (p *Parser) parseText(data []byte, forced string) ([][]string, Meta, error) {
	enc := forced
	if enc == "" {
		if utf8.Valid(data) {
			enc = "utf-8"
		} else {
			enc = "cp949"
		}
	}

	decoded, err := decodeBytes(data, enc)
	if err != nil {
		return nil, Meta{}, &ParseError{Reason: ReasonUndecodable, Message: err.Error()}
	}

	decoded = strings.TrimPrefix(decoded, "\uFEFF")
	delim := detectDelimiter(decoded)

	r := csv.NewReader(strings.NewReader(decoded))
	r.Comma = delim
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, Meta{}, &ParseError{Reason: ReasonUndecodable, Message: err.Error()}
	}
	return records, Meta{Kind: "text", Encoding: enc}, nil
}

func decodeBytes(data []byte, enc string) (string, error) {
	var dec *encoding.Decoder
	switch enc {
	case "utf-8", "":
		return string(data), nil
	case "cp949", "euc-kr":
		dec = korean.EUCKR.NewDecoder()
	case "latin1":
		dec = charmap.ISO8859_1.NewDecoder()
	default:
		dec = korean.EUCKR.NewDecoder()
	}
	out, err := dec.Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// detectDelimiter picks the separator with the highest count in the first
// line, defaulting to comma.
func detectDelimiter(s string) rune {
	line := s
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		line = s[:i]
	}
	best, bestCount := ',', strings.Count(line, ",")
	for _, cand := range []rune{'\t', ';', '|'} {
		if c := strings.Count(line, string(cand)); c > bestCount {
			best, bestCount = cand, c
		}
	}
	return best
}
