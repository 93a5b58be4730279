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
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Logical registry errors. Raised at construction or dispatch time, never
// during normal validation flow.
var (
	ErrToolExists  = errors.New("tools: tool already registered")
	ErrUnknownTool = errors.New("tools: unknown tool")
)

// Registry manages tool registration and dispatch. Registration happens once
// at startup; re-registering an existing name is an error, not a silent
// override.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Fails with ErrToolExists on a duplicate name.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrToolExists, tool.Name())
	}
	r.tools[tool.Name()] = tool
	return nil
}

// MustRegister registers all tools or panics. For startup wiring, where a
// duplicate is a programming error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Dispatch routes an invocation to its tool and executes it. The caller
// observes one result per call, in call order.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation) (*Result, error) {
	tool, ok := r.Get(inv.Tool())
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, inv.Tool())
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := tool.Execute(ctx, inv)
	zap.L().Debug("tool dispatched",
		zap.String("tool", inv.Tool()),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("success", err == nil && result != nil && result.Success),
	)
	return result, err
}
