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
package casestore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() SaveRequest {
	return SaveRequest{
		Headers: []string{"사번", "성명", "생일"},
		Matches: []Mapping{
			{Source: "사번", Target: "사원번호", Confidence: 0.9},
			{Source: "성명", Target: "이름", Confidence: 0.9},
			{Source: "생일", Target: "생년월일", Confidence: 0.85},
		},
		Confidence:      0.88,
		WasAutoApproved: true,
	}
}

func TestCaseID_Deterministic(t *testing.T) {
	a := CaseID([]string{"사번", "성명", "생일"})
	b := CaseID([]string{"생일", "사번", "성명"}) // order-insensitive
	c := CaseID([]string{"사 번", "성명", "생일"}) // normalization-insensitive
	assert.Equal(t, a, b)
	assert.Equal(t, a, c)

	d := CaseID([]string{"사번", "성명"})
	assert.NotEqual(t, a, d)
}

func TestSave_Upserts(t *testing.T) {
	s := NewMemory()

	id1, err := s.Save(sampleRequest())
	require.NoError(t, err)

	req := sampleRequest()
	req.Confidence = 0.95
	id2, err := s.Save(req)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "same header set must address the same case")
	assert.Equal(t, 1, s.Stats().TotalCases)

	c, ok := s.Get(id1)
	require.True(t, ok)
	assert.Equal(t, 0.95, c.Confidence, "second save must update, not duplicate")
}

func TestFindByHeader(t *testing.T) {
	s := NewMemory()
	_, err := s.Save(sampleRequest())
	require.NoError(t, err)

	got := s.FindByHeader("사 번") // normalized lookup
	require.Len(t, got, 1)
	assert.Equal(t, []string{"사번", "성명", "생일"}, got[0].Headers)

	assert.Empty(t, s.FindByHeader("없는헤더"))
}

func TestFindSimilar(t *testing.T) {
	s := NewMemory()
	_, err := s.Save(sampleRequest())
	require.NoError(t, err)
	_, err = s.Save(SaveRequest{
		Headers: []string{"완전히", "다른", "헤더들"},
		Matches: []Mapping{{Source: "완전히", Target: "", Confidence: 0}},
	})
	require.NoError(t, err)

	got := s.FindSimilar([]string{"사번", "성명", "부서"}, 5, 0.3)
	require.Len(t, got, 1)
	// shared {사번, 성명} = 2, union {사번, 성명, 부서, 생일} = 4
	assert.InDelta(t, 0.5, got[0].Similarity, 1e-9)
}

func TestFewShot_HumanCorrectedFirst(t *testing.T) {
	s := NewMemory()
	_, err := s.Save(sampleRequest())
	require.NoError(t, err)

	corrected := SaveRequest{
		Headers: []string{"사번", "성명", "월급"},
		Matches: []Mapping{
			{Source: "사번", Target: "사원번호", Confidence: 0.9},
			{Source: "성명", Target: "이름", Confidence: 0.9},
			{Source: "월급", Target: "기준급여", Confidence: 0.7},
		},
		HumanCorrections: map[string]string{"월급": "기준급여"},
	}
	_, err = s.Save(corrected)
	require.NoError(t, err)

	got := s.FewShot([]string{"사번", "성명", "생일", "월급"}, 2)
	require.NotEmpty(t, got)
	assert.Equal(t, "high", got[0].Priority)
	assert.NotEmpty(t, got[0].HumanCorrections)
}

func TestOpen_Reload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cases")

	s, err := Open(dir)
	require.NoError(t, err)
	id, err := s.Save(sampleRequest())
	require.NoError(t, err)

	reloaded, err := Open(dir)
	require.NoError(t, err)
	c, ok := reloaded.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, c.CaseID)
	assert.Equal(t, 1, reloaded.Stats().TotalCases)

	// Index invariant: the pattern index points at the case for each of its
	// normalized headers.
	for _, h := range c.NormalizedHeaders {
		found := reloaded.FindByHeader(h)
		require.NotEmpty(t, found, "pattern index missing header %q", h)
		assert.Equal(t, id, found[0].CaseID)
	}
}
