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
	"testing"

	"github.com/wikisoft/rostercheck/pkg/matcher"
)

func TestScoreBundle(t *testing.T) {
	b := &Bundle{
		Errors: []Finding{
			{Row: 2, Severity: SeverityError},
			{Row: 2, Severity: SeverityError}, // same row counted once
			{Row: 5, Severity: SeverityError},
		},
		Warnings: []Finding{
			{Row: 5, Severity: SeverityWarning}, // error row, not double counted
			{Row: 7, Severity: SeverityWarning},
		},
	}
	rec := ScoreBundle(10, b)
	if rec.Score != 0.8 {
		t.Errorf("score = %v, want 0.8", rec.Score)
	}
	want := Factors{TotalRows: 10, ErrorRows: 2, WarningRows: 1, NormalRows: 8}
	if rec.Factors != want {
		t.Errorf("factors = %+v, want %+v", rec.Factors, want)
	}
}

func TestScoreBundle_WarningsDoNotReduceScore(t *testing.T) {
	b := &Bundle{Warnings: []Finding{{Row: 2, Severity: SeverityWarning}}}
	if rec := ScoreBundle(1, b); rec.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", rec.Score)
	}
}

func TestScoreBundle_EmptyRoster(t *testing.T) {
	if rec := ScoreBundle(0, &Bundle{}); rec.Score != 1.0 {
		t.Errorf("score = %v, want 1.0", rec.Score)
	}
}

func TestScoreBundle_RowlessFindingsIgnored(t *testing.T) {
	b := &Bundle{Warnings: []Finding{{Row: 0, Severity: SeverityWarning, Source: SourceLayer2}}}
	rec := ScoreBundle(5, b)
	if rec.Score != 1.0 || rec.Factors.WarningRows != 0 {
		t.Errorf("rec = %+v", rec)
	}
}

func TestDetectAnomalies_UnmappedColumns(t *testing.T) {
	set := &matcher.Set{Matches: []matcher.Match{
		{Source: "a", Target: "사원번호", Confidence: 0.9, Provenance: matcher.ProvenanceAI},
		{Source: "b", Provenance: matcher.ProvenanceUnmapped},
		{Source: "c", Provenance: matcher.ProvenanceUnmapped},
		{Source: "d", Target: "이름", Confidence: 0.9, Provenance: matcher.ProvenanceLexical},
		{Source: "비고", Provenance: matcher.ProvenanceIgnored},
	}}
	report := DetectAnomalies(set)
	if !report.Detected {
		t.Fatal("2/4 unmapped must be detected")
	}
	if report.Anomalies[0].Type != "unmapped_columns" {
		t.Errorf("anomaly = %+v", report.Anomalies[0])
	}
	if report.Anomalies[0].Severity != string(SeverityWarning) {
		t.Errorf("severity = %s, want warning", report.Anomalies[0].Severity)
	}
	if report.Recommendation != RecommendManualReview {
		t.Errorf("recommendation = %q, want %q", report.Recommendation, RecommendManualReview)
	}
}

func TestDetectAnomalies_LowConfidence(t *testing.T) {
	set := &matcher.Set{Matches: []matcher.Match{
		{Source: "a", Target: "사원번호", Confidence: 0.3, Provenance: matcher.ProvenanceAI},
		{Source: "b", Target: "이름", Confidence: 0.4, Provenance: matcher.ProvenanceAI},
	}}
	report := DetectAnomalies(set)
	if !report.Detected || report.Anomalies[0].Type != "low_match_confidence" {
		t.Errorf("report = %+v", report)
	}
	if report.Anomalies[0].Severity != string(SeverityWarning) {
		t.Errorf("severity = %s, want warning", report.Anomalies[0].Severity)
	}
	if report.Recommendation != RecommendManualReview {
		t.Errorf("recommendation = %q, want %q", report.Recommendation, RecommendManualReview)
	}
}

func TestDetectAnomalies_CleanSet(t *testing.T) {
	set := &matcher.Set{Matches: []matcher.Match{
		{Source: "a", Target: "사원번호", Confidence: 1.0, Provenance: matcher.ProvenanceLexical},
	}}
	report := DetectAnomalies(set)
	if report.Detected {
		t.Errorf("report = %+v, want clean", report)
	}
	if report.Recommendation != RecommendAutoProceed {
		t.Errorf("recommendation = %q, want %q", report.Recommendation, RecommendAutoProceed)
	}
}

func TestDetectAnomalies_EmptySetAutoProceeds(t *testing.T) {
	report := DetectAnomalies(&matcher.Set{})
	if report.Detected || report.Recommendation != RecommendAutoProceed {
		t.Errorf("report = %+v", report)
	}
}
