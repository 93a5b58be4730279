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

// Package casestore is a content-addressed memory of past successful header
// mappings. A case is keyed by the hash of its sorted normalized header set,
// so recording the same header set twice updates the existing case. An
// inverted index (normalized header -> case ids) serves exact lookups; a
// Jaccard-style overlap score serves nearest-neighbour lookups.
//
// Layout on disk: one JSON file per case plus a single index.json holding
// the case summaries, the header-pattern index, and running stats. All
// mutations go through one mutex per store; readers see either the pre-state
// or the post-state of a save, never a torn index.
package casestore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wikisoft/rostercheck/pkg/schema"
)

// DefaultMinOverlap filters candidates in FindSimilar.
const DefaultMinOverlap = 0.3

// Mapping is one stored header binding.
type Mapping struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	Confidence float64 `json:"confidence"`
}

// Case is one recorded mapping session.
type Case struct {
	CaseID            string            `json:"case_id"`
	Timestamp         time.Time         `json:"timestamp"`
	Headers           []string          `json:"headers"`
	NormalizedHeaders []string          `json:"normalized_headers"`
	Matches           []Mapping         `json:"matches"`
	Confidence        float64           `json:"confidence"`
	WasAutoApproved   bool              `json:"was_auto_approved"`
	HumanCorrections  map[string]string `json:"human_corrections,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// ScoredCase is a FindSimilar result.
type ScoredCase struct {
	Case       Case    `json:"case"`
	Similarity float64 `json:"similarity"`
}

// FewShotExample is a distilled case for prompt injection.
type FewShotExample struct {
	InputHeaders     []string          `json:"input_headers"`
	OutputMatches    []Mapping         `json:"output_matches"`
	HumanCorrections map[string]string `json:"human_corrections,omitempty"`
	Priority         string            `json:"priority"` // high when human-corrected
}

// Stats summarizes the store.
type Stats struct {
	TotalCases       int     `json:"total_cases"`
	AutoApproved     int     `json:"auto_approved"`
	AutoApprovalRate float64 `json:"auto_approval_rate"`
	HeaderPatterns   int     `json:"header_patterns"`
}

// SaveRequest carries one mapping session to record.
type SaveRequest struct {
	Headers          []string
	Matches          []Mapping
	Confidence       float64
	WasAutoApproved  bool
	HumanCorrections map[string]string
	Metadata         map[string]string
}

type index struct {
	Cases          map[string]Case     `json:"cases"`
	HeaderPatterns map[string][]string `json:"header_patterns"`
	Stats          Stats               `json:"stats"`
}

// Store is the case memory. With a directory it is file-backed; without one
// it is purely in-memory (used by tests and the default config).
type Store struct {
	mu  sync.RWMutex
	dir string // empty means in-memory only
	idx index
}

// NewMemory creates an in-memory store.
func NewMemory() *Store {
	return &Store{idx: newIndex()}
}

// Open creates a file-backed store rooted at dir, loading any existing
// index.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create case store dir: %w", err)
	}
	s := &Store{dir: dir, idx: newIndex()}
	data, err := os.ReadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read case index: %w", err)
	}
	if err := json.Unmarshal(data, &s.idx); err != nil {
		return nil, fmt.Errorf("decode case index: %w", err)
	}
	if s.idx.Cases == nil || s.idx.HeaderPatterns == nil {
		s.idx = newIndex()
	}
	return s, nil
}

func newIndex() index {
	return index{
		Cases:          make(map[string]Case),
		HeaderPatterns: make(map[string][]string),
	}
}

// CaseID derives the content address of a header set: the SHA-256 of the
// sorted normalized headers. Stable across header order and spelling noise.
func CaseID(headers []string) string {
	norm := NormalizeHeaders(headers)
	sorted := make([]string, len(norm))
	copy(sorted, norm)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x1f")))
	return "case_" + hex.EncodeToString(sum[:])[:16]
}

// NormalizeHeaders applies the shared matcher normalization to each header.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = schema.NormalizeKey(h)
	}
	return out
}

// Save upserts a case and returns its id.
func (s *Store) Save(req SaveRequest) (string, error) {
	id := CaseID(req.Headers)
	c := Case{
		CaseID:            id,
		Timestamp:         time.Now().UTC(),
		Headers:           append([]string(nil), req.Headers...),
		NormalizedHeaders: NormalizeHeaders(req.Headers),
		Matches:           append([]Mapping(nil), req.Matches...),
		Confidence:        req.Confidence,
		WasAutoApproved:   req.WasAutoApproved,
		HumanCorrections:  req.HumanCorrections,
		Metadata:          req.Metadata,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.idx.Cases[id]
	s.idx.Cases[id] = c
	for _, h := range c.NormalizedHeaders {
		if h == "" {
			continue
		}
		if !containsString(s.idx.HeaderPatterns[h], id) {
			s.idx.HeaderPatterns[h] = append(s.idx.HeaderPatterns[h], id)
		}
	}
	s.recomputeStatsLocked()

	if err := s.flushLocked(c); err != nil {
		return "", err
	}
	zap.L().Debug("case saved",
		zap.String("case_id", id),
		zap.Bool("updated", existed),
		zap.Int("headers", len(c.Headers)),
	)
	return id, nil
}

// Get returns a case by id.
func (s *Store) Get(id string) (Case, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.idx.Cases[id]
	return c, ok
}

// FindSimilar ranks stored cases against the query headers. For each
// candidate, similarity = |shared normalized headers| / |union|. Candidates
// under minOverlap are dropped; the top k survive, best first.
func (s *Store) FindSimilar(headers []string, k int, minOverlap float64) []ScoredCase {
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}
	query := make(map[string]bool)
	for _, h := range NormalizeHeaders(headers) {
		if h != "" {
			query[h] = true
		}
	}
	if len(query) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ScoredCase
	for _, c := range s.idx.Cases {
		shared, union := 0, len(query)
		seen := make(map[string]bool, len(c.NormalizedHeaders))
		for _, h := range c.NormalizedHeaders {
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			if query[h] {
				shared++
			} else {
				union++
			}
		}
		if union == 0 {
			continue
		}
		sim := float64(shared) / float64(union)
		if sim >= minOverlap {
			out = append(out, ScoredCase{Case: c, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Case.Timestamp.After(out[j].Case.Timestamp)
	})
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

// FindByHeader returns every case containing the exact normalized header,
// most recent first.
func (s *Store) FindByHeader(header string) []Case {
	key := schema.NormalizeKey(header)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.idx.HeaderPatterns[key]
	out := make([]Case, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.idx.Cases[id]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// FewShot distills similar cases into prompt examples. Human-corrected cases
// are marked high priority and sorted ahead.
func (s *Store) FewShot(headers []string, k int) []FewShotExample {
	if k <= 0 {
		k = 3
	}
	scored := s.FindSimilar(headers, k*2, DefaultMinOverlap)

	out := make([]FewShotExample, 0, len(scored))
	for _, sc := range scored {
		ex := FewShotExample{
			InputHeaders:     sc.Case.Headers,
			OutputMatches:    sc.Case.Matches,
			HumanCorrections: sc.Case.HumanCorrections,
			Priority:         "normal",
		}
		if len(sc.Case.HumanCorrections) > 0 {
			ex.Priority = "high"
		}
		out = append(out, ex)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority == "high" && out[j].Priority != "high"
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Stats reports store totals.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx.Stats
}

func (s *Store) recomputeStatsLocked() {
	st := Stats{
		TotalCases:     len(s.idx.Cases),
		HeaderPatterns: len(s.idx.HeaderPatterns),
	}
	for _, c := range s.idx.Cases {
		if c.WasAutoApproved {
			st.AutoApproved++
		}
	}
	if st.TotalCases > 0 {
		st.AutoApprovalRate = float64(st.AutoApproved) / float64(st.TotalCases)
	}
	s.idx.Stats = st
}

// flushLocked writes the case file and the index. In-memory stores skip it.
func (s *Store) flushLocked(c Case) error {
	if s.dir == "" {
		return nil
	}
	caseData, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode case: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, c.CaseID+".json"), caseData, 0o600); err != nil {
		return fmt.Errorf("write case file: %w", err)
	}
	idxData, err := json.MarshalIndent(s.idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode case index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "index.json"), idxData, 0o600); err != nil {
		return fmt.Errorf("write case index: %w", err)
	}
	return nil
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
