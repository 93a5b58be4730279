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
package schema

// QuestionKind distinguishes yes/no policy questions from numeric headcounts.
type QuestionKind string

const (
	QuestionYesNo  QuestionKind = "yesno"
	QuestionNumber QuestionKind = "number"
)

// Question is one diagnostic questionnaire item. Ids are stable and carry
// gaps (q1..q23); Layer-2 reconciliation keys on them, so renumbering is a
// breaking change.
type Question struct {
	ID   string       `json:"id"`
	Text string       `json:"text"`
	Kind QuestionKind `json:"kind"`
	// Topic is a short machine key used in findings and prompts.
	Topic string `json:"topic"`
}

// Question ids referenced by Layer-2.
const (
	QExecutives  = "q21"
	QRegulars    = "q22"
	QContractors = "q23"
)

var diagnosticQuestions = []Question{
	{ID: "q1", Text: "퇴직연금 적립금과 명부상 기준급여 합계가 일치합니까?", Kind: QuestionYesNo, Topic: "fund_asset_consistency"},
	{ID: "q2", Text: "정년 제도를 운영하고 있습니까?", Kind: QuestionYesNo, Topic: "mandatory_retirement_age"},
	{ID: "q4", Text: "임금피크제를 도입했습니까?", Kind: QuestionYesNo, Topic: "wage_peak_system"},
	{ID: "q6", Text: "장기근속 우대 퇴직급여 제도를 운영합니까?", Kind: QuestionYesNo, Topic: "long_term_benefit"},
	{ID: "q7", Text: "연봉제가 아닌 호봉제 급여 체계입니까?", Kind: QuestionYesNo, Topic: "seniority_pay"},
	{ID: "q9", Text: "부담금 산정 시 채권 등급 기준을 사용합니까?", Kind: QuestionYesNo, Topic: "bond_rating_basis"},
	{ID: "q11", Text: "근속 1년 미만 직원이 명부에 포함되어 있습니까?", Kind: QuestionYesNo, Topic: "include_under_one_year"},
	{ID: "q14", Text: "입사 3개월 미만 직원의 기준급여는 월 급여 기준입니까?", Kind: QuestionYesNo, Topic: "short_tenure_salary_basis"},
	{ID: "q17", Text: "입사일과 퇴사일이 같은 직원은 명부에서 제외했습니까?", Kind: QuestionYesNo, Topic: "exclude_same_day_retirees"},
	{ID: "q19", Text: "중간정산은 법정 사유에 의한 것입니까?", Kind: QuestionYesNo, Topic: "mid_settlement_legality"},
	{ID: QExecutives, Text: "임원 수를 입력해 주세요.", Kind: QuestionNumber, Topic: "executive_count"},
	{ID: QRegulars, Text: "정규직 직원 수를 입력해 주세요.", Kind: QuestionNumber, Topic: "regular_count"},
	{ID: QContractors, Text: "계약직 직원 수를 입력해 주세요.", Kind: QuestionNumber, Topic: "contractor_count"},
}

// Questions returns the closed diagnostic questionnaire, 13 items.
func Questions() []Question {
	out := make([]Question, len(diagnosticQuestions))
	copy(out, diagnosticQuestions)
	return out
}

// QuestionByID looks up a questionnaire item.
func QuestionByID(id string) (Question, bool) {
	for _, q := range diagnosticQuestions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Answers maps a question id to the customer's scalar answer. Values are
// strings or numbers as posted by the questionnaire UI.
type Answers map[string]any
