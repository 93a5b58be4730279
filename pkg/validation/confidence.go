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

	"github.com/wikisoft/rostercheck/pkg/matcher"
)

// Factors are the row counts behind a confidence score.
type Factors struct {
	TotalRows   int `json:"total_rows"`
	ErrorRows   int `json:"error_rows"`
	WarningRows int `json:"warning_rows"`
	NormalRows  int `json:"normal_rows"`
}

// ConfidenceRecord is the data-quality score for a validated roster: the
// share of rows free of errors. Warnings flag the row but do not reduce the
// score; they gate auto-approval through Bundle.Passed instead.
type ConfidenceRecord struct {
	Score   float64 `json:"score"`
	Factors Factors `json:"factors"`
}

// ScoreBundle computes the confidence record from the merged findings.
func ScoreBundle(totalRows int, b *Bundle) ConfidenceRecord {
	errRows := make(map[int]bool)
	warnRows := make(map[int]bool)
	for _, f := range b.Errors {
		if f.Row > 0 {
			errRows[f.Row] = true
		}
	}
	for _, f := range b.Warnings {
		if f.Row > 0 && !errRows[f.Row] {
			warnRows[f.Row] = true
		}
	}

	rec := ConfidenceRecord{Factors: Factors{
		TotalRows:   totalRows,
		ErrorRows:   len(errRows),
		WarningRows: len(warnRows),
	}}
	rec.Factors.NormalRows = totalRows - rec.Factors.ErrorRows
	if rec.Factors.NormalRows < 0 {
		rec.Factors.NormalRows = 0
	}
	if totalRows == 0 {
		rec.Score = 1.0
		return rec
	}
	rec.Score = float64(rec.Factors.NormalRows) / float64(totalRows)
	return rec
}

// Anomaly is a structural problem with the upload itself rather than with a
// row.
type Anomaly struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Recommendation values for an anomaly report. Clients branch on these, so
// the set is closed; human-readable detail lives in the anomaly messages.
const (
	RecommendAutoProceed  = "auto_proceed"
	RecommendManualReview = "manual_review"
)

// AnomalyReport flags uploads whose header matching looks untrustworthy.
type AnomalyReport struct {
	Detected       bool      `json:"detected"`
	Anomalies      []Anomaly `json:"anomalies"`
	Recommendation string    `json:"recommendation"`
}

// unmappedRatioLimit is the share of active columns that may stay unmapped
// before the upload is flagged.
const unmappedRatioLimit = 0.20

// minAverageMatchConfidence below which matching is considered guesswork.
const minAverageMatchConfidence = 0.50

// DetectAnomalies inspects the header match set for structural problems.
func DetectAnomalies(set *matcher.Set) AnomalyReport {
	report := AnomalyReport{Recommendation: RecommendAutoProceed}

	active, unmapped := 0, 0
	var confSum float64
	for _, m := range set.Matches {
		if m.Provenance == matcher.ProvenanceIgnored {
			continue
		}
		active++
		if m.Provenance == matcher.ProvenanceUnmapped {
			unmapped++
			continue
		}
		confSum += m.Confidence
	}
	if active == 0 {
		return report
	}

	if ratio := float64(unmapped) / float64(active); ratio > unmappedRatioLimit {
		report.Anomalies = append(report.Anomalies, Anomaly{
			Type: "unmapped_columns", Severity: string(SeverityWarning),
			Message: fmt.Sprintf("열 %d개 중 %d개가 표준 항목에 매칭되지 않았습니다 (%.0f%%)", active, unmapped, ratio*100),
		})
	}
	mapped := active - unmapped
	if mapped > 0 {
		if avg := confSum / float64(mapped); avg < minAverageMatchConfidence {
			report.Anomalies = append(report.Anomalies, Anomaly{
				Type: "low_match_confidence", Severity: string(SeverityWarning),
				Message: fmt.Sprintf("평균 매칭 신뢰도가 %.2f로 낮습니다", avg),
			})
		}
	}

	if len(report.Anomalies) > 0 {
		report.Detected = true
		report.Recommendation = RecommendManualReview
	}
	return report
}
