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
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/wikisoft/rostercheck/pkg/schema"
)

// lexicalMatch compares a header against every canonical name and alias and
// keeps the best candidate when it clears the threshold.
func (m *Matcher) lexicalMatch(header string, opts Options) Match {
	key := schema.NormalizeKey(header)
	if key == "" {
		return Match{Source: header, Provenance: ProvenanceUnmapped}
	}

	// Exact resolution (canonical or alias) short-circuits at full score.
	if canonical, ok := m.registry.Resolve(header); ok {
		return Match{Source: header, Target: canonical, Confidence: 1.0, Provenance: ProvenanceLexical}
	}

	var (
		bestField string
		bestScore float64
	)
	for _, field := range m.registry.Fields(opts.Sheet) {
		score := Similarity(key, schema.NormalizeKey(field.Name))
		for _, alias := range field.Aliases {
			if s := Similarity(key, schema.NormalizeKey(alias)); s > score {
				score = s
			}
		}
		if score > bestScore {
			bestScore, bestField = score, field.Name
		}
	}

	if bestScore >= opts.LexicalThreshold {
		return Match{Source: header, Target: bestField, Confidence: bestScore, Provenance: ProvenanceLexical}
	}
	return Match{Source: header, Provenance: ProvenanceUnmapped}
}

// Similarity is a stable edit-distance ratio in [0, 1]: the share of text
// the two strings have in common under a character diff.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)

	common, total := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			common += len(d.Text)
			total += len(d.Text)
		case diffmatchpatch.DiffInsert, diffmatchpatch.DiffDelete:
			total += len(d.Text)
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(common) / float64(total)
}
