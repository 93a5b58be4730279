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
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing-on-purpose.yaml"))
	require.Error(t, err, "an explicit missing file is an error")

	// With no explicit path the defaults apply.
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 0.95, cfg.Confidence.AutoComplete)
	assert.Equal(t, 0.80, cfg.Confidence.AutoCorrect)
	assert.Equal(t, 0.50, cfg.Confidence.NeedsReview)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.Equal(t, 5.0, cfg.Layer2.TolerancePercent)
	assert.Equal(t, 5000, cfg.Parser.MaxRows)
	assert.True(t, cfg.LLM.Enabled)
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rostercheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agent:
  max_iterations: 8
confidence:
  auto_complete: 0.99
layer2:
  tolerance_percent: 2.5
llm:
  enabled: false
  provider: openai
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Agent.MaxIterations)
	assert.Equal(t, 0.99, cfg.Confidence.AutoComplete)
	assert.Equal(t, 2.5, cfg.Layer2.TolerancePercent)
	assert.False(t, cfg.LLM.Enabled)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	// Untouched keys keep defaults.
	assert.Equal(t, 0.80, cfg.Confidence.AutoCorrect)
}

func TestLoadRejectsUnorderedThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rostercheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
confidence:
  auto_complete: 0.4
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thresholds")
}
