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
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/agent"
	"github.com/wikisoft/rostercheck/pkg/events"
	"github.com/wikisoft/rostercheck/pkg/export"
	"github.com/wikisoft/rostercheck/pkg/parser"
	"github.com/wikisoft/rostercheck/pkg/schema"
	"github.com/wikisoft/rostercheck/pkg/validation"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleQuestions(w http.ResponseWriter, _ *http.Request) {
	qs := schema.Questions()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     len(qs),
		"questions": qs,
	})
}

func (s *Server) handleCaseStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cases.Stats())
}

// handleValidate accepts a multipart upload:
//
//	file            the roster workbook or CSV (required)
//	chatbot_answers questionnaire answers as a JSON object (optional)
//	sheet           "재직자" or "퇴직자" (optional, defaults to 재직자)
//
// The session id comes from the X-Session-ID header when present. With
// ?format=xlsx a completed run returns the corrected workbook instead of the
// JSON envelope.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.config.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			writeError(w, http.StatusRequestEntityTooLarge, "upload_too_large",
				fmt.Sprintf("업로드 크기는 %dMB 이하여야 합니다", s.config.MaxUploadMB))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_multipart", "multipart/form-data 요청이 아닙니다")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "file 필드가 필요합니다")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable_file", "파일을 읽을 수 없습니다")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty_file", "빈 파일입니다")
		return
	}

	var answers schema.Answers
	if raw := r.FormValue("chatbot_answers"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &answers); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_answers", "chatbot_answers가 올바른 JSON 객체가 아닙니다")
			return
		}
	}

	sheet := schema.SheetActive
	switch r.FormValue("sheet") {
	case "", string(schema.SheetActive):
	case string(schema.SheetRetired):
		sheet = schema.SheetRetired
	default:
		writeError(w, http.StatusBadRequest, "unknown_sheet", "sheet는 재직자 또는 퇴직자여야 합니다")
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	s.emitter.Emit(events.TypeValidationStarted, sessionID, map[string]any{
		"session_id": sessionID,
		"sheet":      string(sheet),
		"bytes":      len(data),
	})

	env := s.agent.Run(r.Context(), agent.Request{
		Data:      data,
		Sheet:     sheet,
		Answers:   answers,
		SessionID: sessionID,
	})

	s.emitResult(sessionID, env)
	s.logger.Info("validation finished",
		zap.String("session_id", sessionID),
		zap.String("status", string(env.Status)),
		zap.String("grade", string(env.Grade)),
		zap.Float64("confidence", env.Confidence),
	)

	if r.URL.Query().Get("format") == "xlsx" && env.Status == agent.StatusCompleted {
		s.writeWorkbook(w, sessionID, env)
		return
	}
	writeJSON(w, statusFor(env), newValidateResponse(env))
}

// validateResponse is the wire shape of POST /validate: the agent envelope
// with the report sections clients act on lifted to the top level, plus a
// compact per-step breakdown of the run alongside the full transcript.
type validateResponse struct {
	*agent.Envelope
	Anomalies  *validation.AnomalyReport   `json:"anomalies,omitempty"`
	Duplicates *validation.DuplicateReport `json:"duplicates,omitempty"`
	Steps      []stepSummary               `json:"steps"`
}

type stepSummary struct {
	Action     string  `json:"action"`
	Success    bool    `json:"success"`
	Summary    string  `json:"summary"`
	Confidence float64 `json:"confidence"`
}

func newValidateResponse(env *agent.Envelope) *validateResponse {
	resp := &validateResponse{
		Envelope: env,
		Steps:    make([]stepSummary, len(env.Transcript)),
	}
	if v := env.Slots.Validation; v != nil {
		resp.Anomalies = &v.Anomalies
		resp.Duplicates = &v.Duplicates
	}
	for i, st := range env.Transcript {
		resp.Steps[i] = stepSummary{
			Action:     string(st.Thought.Action),
			Success:    st.Observation.Success,
			Summary:    st.Observation.Summary,
			Confidence: st.Observation.Confidence,
		}
	}
	return resp
}

// statusFor keeps input-kind failures on 4xx: a roster that could not be
// parsed at all is the caller's problem, not a completed validation.
func statusFor(env *agent.Envelope) int {
	if env.Status == agent.StatusFailed {
		switch env.Reason {
		case parser.ReasonNoHeaderRow, parser.ReasonAllEmpty, parser.ReasonUndecodable:
			return http.StatusUnprocessableEntity
		}
	}
	return http.StatusOK
}

// sensitiveColumns lists the matched canonical fields that carry personal
// contact data, for the pii_detected event.
func sensitiveColumns(env *agent.Envelope) []string {
	if env.Slots.Matches == nil {
		return nil
	}
	var cols []string
	for _, m := range env.Slots.Matches.Matches {
		if m.Target == schema.FieldPhone || m.Target == schema.FieldEmail {
			cols = append(cols, m.Target)
		}
	}
	return cols
}

func (s *Server) emitResult(sessionID string, env *agent.Envelope) {
	if cols := sensitiveColumns(env); len(cols) > 0 {
		s.emitter.Emit(events.TypePIIDetected, sessionID, map[string]any{
			"session_id": sessionID,
			"columns":    cols,
		})
	}
	payload := map[string]any{
		"session_id": sessionID,
		"status":     string(env.Status),
		"grade":      string(env.Grade),
		"confidence": env.Confidence,
	}
	if env.Status == agent.StatusFailed {
		payload["reason"] = env.Reason
		s.emitter.Emit(events.TypeValidationFailed, sessionID, payload)
		return
	}
	s.emitter.Emit(events.TypeValidationCompleted, sessionID, payload)
}

func (s *Server) writeWorkbook(w http.ResponseWriter, sessionID string, env *agent.Envelope) {
	sl := env.Slots
	if sl.Parsed == nil || sl.Matches == nil || sl.Validation == nil {
		writeError(w, http.StatusConflict, "no_workbook", "보정 통합문서를 만들 컨텍스트가 없습니다")
		return
	}
	data, err := export.Workbook(sl.Parsed, sl.Matches, sl.Validation)
	if err != nil {
		s.logger.Error("workbook export failed", zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export_failed", "보정 통합문서 생성에 실패했습니다")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="rostercheck-%s.xlsx"`, sessionID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleWebhook receives partner CloudEvents (binary or structured mode) and
// acknowledges them. Processing is acknowledgement-only; the event is logged
// and surfaced to the sinks untouched.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ev, err := cehttp.NewEventFromHTTPRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_cloudevent", "CloudEvents 형식이 아닙니다")
		return
	}
	receipt, err := events.Acknowledge(ev)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_cloudevent", err.Error())
		return
	}
	s.logger.Info("webhook event received",
		zap.String("event_id", receipt.EventID),
		zap.String("event_type", receipt.EventType),
	)
	writeJSON(w, http.StatusOK, receipt)
}
