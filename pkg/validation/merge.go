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
	"strconv"
	"strings"
)

// topicRules canonicalize a finding message to a short topic token so that
// two layers reporting the same underlying issue in different words collapse
// into one finding. First hit wins; ordering matters where keywords overlap.
var topicRules = []struct {
	keywords []string
	topic    string
}{
	{[]string{"최저임금"}, "최저임금|미달"},
	{[]string{"나이", "미만"}, "나이:미만"},
	{[]string{"나이", "초과"}, "나이:초과"},
	{[]string{"미래"}, "미래날짜"},
	{[]string{"생년월일보다"}, "생년월일역전"},
	{[]string{"입사일보다"}, "입사일역전"},
	{[]string{"동일 인물"}, "동일인물"},
	{[]string{"중복"}, "중복"},
	{[]string{"누락"}, "누락"},
	{[]string{"음수"}, "음수"},
	{[]string{"0보다"}, "비양수"},
	{[]string{"형식 오류"}, "형식오류"},
	{[]string{"범위"}, "범위오류"},
	{[]string{"불일치"}, "불일치"},
	{[]string{"숫자가 아닙"}, "비숫자"},
	{[]string{"값 오류"}, "값오류"},
}

func topicOf(message string) string {
	for _, rule := range topicRules {
		hit := true
		for _, kw := range rule.keywords {
			if !strings.Contains(message, kw) {
				hit = false
				break
			}
		}
		if hit {
			return rule.topic
		}
	}
	return message
}

// MergeFindings collapses findings that share (row, emp_info, column,
// topic). Cross-layer de-duplication only ever concerns findings about the
// same row, so the row is part of the key: two rows carrying the same defect
// stay two findings. The surviving finding carries the highest severity seen
// and the distinct messages joined together. First-occurrence order is
// preserved.
func MergeFindings(findings []Finding) []Finding {
	type slot struct {
		idx      int
		messages []string
	}
	merged := make([]Finding, 0, len(findings))
	byKey := make(map[string]*slot)

	for _, f := range findings {
		key := strconv.Itoa(f.Row) + "\x1f" + f.EmpInfo + "\x1f" + f.Column + "\x1f" + topicOf(f.Message)
		s, seen := byKey[key]
		if !seen {
			merged = append(merged, f)
			byKey[key] = &slot{idx: len(merged) - 1, messages: []string{f.Message}}
			continue
		}
		keep := &merged[s.idx]
		if f.Severity == SeverityError {
			keep.Severity = SeverityError
		}
		if !containsString(s.messages, f.Message) {
			s.messages = append(s.messages, f.Message)
			keep.Message = strings.Join(s.messages, "; ")
		}
	}
	return merged
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
