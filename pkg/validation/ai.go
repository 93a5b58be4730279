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
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/llm"
	"github.com/wikisoft/rostercheck/pkg/matcher"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

const aiSystemPrompt = `You review a Korean HR retirement-benefit roster for anomalies the
mechanical checks cannot express: implausible value combinations, salary
outliers for a tenure band, patterns that contradict the company's stated
policies. Only report what the digest supports; do not restate mechanical
format errors. Respond only with a JSON object:
{"findings":[{"row":3,"column":"기준급여","severity":"warning","message":"..."}],"reasoning":["..."]}
Severity is "error" or "warning". Rows are 1-based spreadsheet rows.`

// aiSampleRows caps the raw rows included in the digest.
const aiSampleRows = 5

// AIValidator asks the model to review a statistical digest of the roster.
// Advisory by design: transport or parse failures degrade to an empty result
// with UsedAI false, never to a hard error.
type AIValidator struct {
	provider llm.Provider
}

// NewAIValidator creates the third-layer validator. provider may be nil, in
// which case Validate is a no-op.
func NewAIValidator(provider llm.Provider) *AIValidator {
	return &AIValidator{provider: provider}
}

type aiResponse struct {
	Findings []struct {
		Row      int    `json:"row"`
		Column   string `json:"column"`
		Severity string `json:"severity"`
		Message  string `json:"message"`
	} `json:"findings"`
	Reasoning []string `json:"reasoning"`
}

// Validate sends the digest and returns model findings plus its reasoning
// trail. rules carries the knowledge-base guidance lines for this customer.
func (v *AIValidator) Validate(ctx context.Context, res *parser.Result, set *matcher.Set, answers schema.Answers, rules []string) ([]Finding, []string, bool) {
	if v.provider == nil {
		return nil, nil, false
	}

	resp, err := v.provider.Complete(ctx, llm.Request{
		System:      aiSystemPrompt,
		Prompt:      buildDigest(res, set, answers, rules),
		Temperature: 0,
		ForceJSON:   true,
	})
	if err != nil {
		zap.L().Warn("ai validation skipped", zap.Error(err))
		return nil, nil, false
	}

	var parsed aiResponse
	if err := json.Unmarshal([]byte(extractModelJSON(resp.Content)), &parsed); err != nil {
		zap.L().Warn("ai validation returned invalid JSON", zap.Error(err))
		return nil, nil, false
	}

	view := newRowView(res, set)
	byRow := make(map[int]parser.Row, len(res.Rows))
	for _, row := range res.Rows {
		byRow[row.SheetRow] = row
	}

	var fs []Finding
	for _, f := range parsed.Findings {
		if f.Message == "" {
			continue
		}
		sev := SeverityWarning
		if f.Severity == string(SeverityError) {
			sev = SeverityError
		}
		info := ""
		if row, ok := byRow[f.Row]; ok {
			info = view.empInfo(row)
		}
		fs = append(fs, Finding{
			Row: f.Row, EmpInfo: info, Column: f.Column,
			Severity: sev, Message: f.Message, Source: SourceAI,
		})
	}
	return fs, parsed.Reasoning, true
}

// buildDigest summarizes the roster: per-field fill rates and numeric
// ranges, the policy answers, knowledge-base rules, and a few sample rows.
// Raw PII columns are withheld; only mapped analytic fields are sampled.
func buildDigest(res *parser.Result, set *matcher.Set, answers schema.Answers, rules []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ROWS: %d\n\nFIELD STATS:\n", len(res.Rows))

	view := newRowView(res, set)
	fields := sortedFields(view)
	for _, f := range fields {
		nonEmpty := 0
		var minV, maxV float64
		numeric := 0
		for _, row := range res.Rows {
			cell := view.cell(row, f)
			if cell == "" {
				continue
			}
			nonEmpty++
			if n, ok := parser.Numeric(cell); ok {
				if numeric == 0 || n < minV {
					minV = n
				}
				if numeric == 0 || n > maxV {
					maxV = n
				}
				numeric++
			}
		}
		fmt.Fprintf(&b, "- %s: %d/%d filled", f, nonEmpty, len(res.Rows))
		if numeric > 0 {
			fmt.Fprintf(&b, ", range %.0f~%.0f", minV, maxV)
		}
		b.WriteString("\n")
	}

	if len(answers) > 0 {
		b.WriteString("\nCOMPANY POLICY ANSWERS:\n")
		for _, q := range schema.Questions() {
			if a, ok := answers[q.ID]; ok {
				fmt.Fprintf(&b, "- %s: %v\n", q.Text, a)
			}
		}
	}

	if len(rules) > 0 {
		b.WriteString("\nKNOWN RULES FOR THIS CUSTOMER:\n")
		for _, r := range rules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	if len(res.Rows) > 0 {
		b.WriteString("\nSAMPLE ROWS (mapped fields only):\n")
		n := minInt2(aiSampleRows, len(res.Rows))
		for _, row := range res.Rows[:n] {
			fmt.Fprintf(&b, "row %d:", row.SheetRow)
			for _, f := range fields {
				if cell := view.cell(row, f); cell != "" {
					fmt.Fprintf(&b, " %s=%s", f, cell)
				}
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func sortedFields(view *rowView) []string {
	out := make([]string, 0, len(view.source))
	for f := range view.source {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// extractModelJSON trims code fences and surrounding prose.
func extractModelJSON(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+3:]
		s = strings.TrimPrefix(s, "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
