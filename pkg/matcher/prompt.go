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
package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wikisoft/rostercheck/pkg/llm"
	"github.com/wikisoft/rostercheck/pkg/schema"
)

const matchSystemPrompt = `You map Korean HR roster column headers onto a fixed standard schema.
Map each customer header to exactly one standard field, or list it as unmapped.
Use the few-shot examples as precedent when they apply.
Respond only with a JSON object of this shape:
{"mappings":[{"customer_header":"...","standard_field":"...","confidence":0.9}],"unmapped":["..."]}`

// maxFewShot bounds the examples injected into the prompt.
const maxFewShot = 3

type modelResponse struct {
	Mappings []struct {
		CustomerHeader string  `json:"customer_header"`
		StandardField  string  `json:"standard_field"`
		Confidence     float64 `json:"confidence"`
	} `json:"mappings"`
	Unmapped []string `json:"unmapped"`
}

// matchWithModel asks the provider to map the remaining headers. The model
// is advisory: a response that is not valid JSON, or that names unknown
// fields, is reported as an error so the caller falls through to the lexical
// path.
func (m *Matcher) matchWithModel(ctx context.Context, headers []string, remaining []int, opts Options) (map[int]Match, error) {
	active := make([]string, len(remaining))
	for i, idx := range remaining {
		active[i] = headers[idx]
	}

	resp, err := m.provider.Complete(ctx, llm.Request{
		System:      matchSystemPrompt,
		Prompt:      m.buildMatchPrompt(active, opts.Sheet),
		Temperature: 0,
		ForceJSON:   true,
	})
	if err != nil {
		return nil, err
	}

	var parsed modelResponse
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON from model: %w", err)
	}

	byKey := make(map[string]int, len(remaining))
	for _, idx := range remaining {
		byKey[schema.NormalizeKey(headers[idx])] = idx
	}

	out := make(map[int]Match, len(parsed.Mappings))
	for _, mp := range parsed.Mappings {
		idx, ok := byKey[schema.NormalizeKey(mp.CustomerHeader)]
		if !ok {
			continue // header the model invented
		}
		canonical, ok := m.registry.Resolve(mp.StandardField)
		if !ok {
			return nil, fmt.Errorf("model mapped %q to unknown field %q", mp.CustomerHeader, mp.StandardField)
		}
		conf := mp.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.5
		}
		out[idx] = Match{Source: headers[idx], Target: canonical, Confidence: conf, Provenance: ProvenanceAI}
	}
	for _, h := range parsed.Unmapped {
		if idx, ok := byKey[schema.NormalizeKey(h)]; ok {
			out[idx] = Match{Source: headers[idx], Provenance: ProvenanceUnmapped}
		}
	}
	return out, nil
}

func (m *Matcher) buildMatchPrompt(active []string, sheet schema.Sheet) string {
	var b strings.Builder

	b.WriteString("STANDARD FIELDS (")
	b.WriteString(string(sheet))
	b.WriteString(" sheet):\n")
	for _, f := range m.registry.Fields(sheet) {
		fmt.Fprintf(&b, "- %s (%s", f.Name, f.Type)
		if f.Required {
			b.WriteString(", required")
		}
		b.WriteString(")")
		if len(f.Aliases) > 0 {
			fmt.Fprintf(&b, " aliases: %s", strings.Join(f.Aliases, ", "))
		}
		b.WriteString("\n")
	}

	if m.cases != nil {
		examples := m.cases.FewShot(active, maxFewShot)
		if len(examples) > 0 {
			b.WriteString("\nFEW-SHOT EXAMPLES:\n")
			for i, ex := range examples {
				fmt.Fprintf(&b, "\n--- Example %d (priority=%s) ---\n", i+1, ex.Priority)
				fmt.Fprintf(&b, "Headers: %v\n", ex.InputHeaders)
				b.WriteString("Mappings:\n")
				for _, mp := range ex.OutputMatches {
					target := mp.Target
					if corrected, ok := ex.HumanCorrections[mp.Source]; ok && corrected != "" {
						target = corrected + " (human corrected)"
					}
					if target == "" {
						target = "(unmapped)"
					}
					fmt.Fprintf(&b, "  %s → %s\n", mp.Source, target)
				}
			}
		}
	}

	b.WriteString("\nCUSTOMER HEADERS TO MAP:\n")
	for _, h := range active {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	return b.String()
}

// extractJSON trims code fences and surrounding prose from a model reply.
func extractJSON(s string) string {
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
