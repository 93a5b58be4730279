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

// Package llm abstracts over model providers. The matcher and the AI
// validator only need single-turn completions with optional strict-JSON
// output, so the interface stays deliberately small.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// ForceJSON asks the provider for a strict JSON object response where
	// supported; providers without native support get a prompt suffix.
	ForceJSON bool
}

// Usage holds token accounting reported by the provider.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Response is the provider's answer.
type Response struct {
	Content string
	Usage   Usage
}

// Provider is a pluggable model backend.
type Provider interface {
	// Complete sends one request and returns the text response.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider name.
	Name() string

	// Model returns the model identifier.
	Model() string
}

// Transient failure sentinels. The retry strategy maps these to its reasons.
var (
	ErrRateLimited = errors.New("llm: rate limited")
	ErrTimeout     = errors.New("llm: request timed out")
	ErrUnavailable = errors.New("llm: provider unavailable")
)

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: api error %d: %s", e.StatusCode, e.Message)
}

// ClassifyStatus wraps an HTTP status into the matching sentinel chain.
func ClassifyStatus(status int, message string) error {
	base := &APIError{StatusCode: status, Message: message}
	switch {
	case status == 429:
		return fmt.Errorf("%w: %w", ErrRateLimited, base)
	case status == 408 || status == 504:
		return fmt.Errorf("%w: %w", ErrTimeout, base)
	case status >= 500:
		return fmt.Errorf("%w: %w", ErrUnavailable, base)
	default:
		return base
	}
}
