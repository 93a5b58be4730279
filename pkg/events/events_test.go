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
package events

import (
	"testing"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

func TestNewEventCarriesExtensions(t *testing.T) {
	e, err := NewEmitter(Config{Version: "1.2.0", Environment: "staging"})
	if err != nil {
		t.Fatalf("NewEmitter: %v", err)
	}

	ev, err := e.New(TypeValidationCompleted, "corr-42", map[string]any{"grade": "A"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ev.Validate(); err != nil {
		t.Fatalf("event invalid: %v", err)
	}
	if ev.Type() != TypeValidationCompleted {
		t.Errorf("type = %s", ev.Type())
	}
	if ev.Source() != Source {
		t.Errorf("source = %s", ev.Source())
	}
	ext := ev.Extensions()
	if ext[ExtVersion] != "1.2.0" || ext[ExtEnvironment] != "staging" || ext[ExtCorrelationID] != "corr-42" {
		t.Errorf("extensions = %v", ext)
	}
	if ev.ID() == "" {
		t.Error("missing event id")
	}
}

func TestAcknowledgeInbound(t *testing.T) {
	ev := cloudevents.NewEvent()
	ev.SetID("evt-1")
	ev.SetType(TypeValidationStarted)
	ev.SetSource("/partner/workflow")

	receipt, err := Acknowledge(&ev)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !receipt.Received || receipt.EventID != "evt-1" || receipt.EventType != TypeValidationStarted {
		t.Errorf("receipt = %+v", receipt)
	}
	if receipt.ProcessedAt.IsZero() {
		t.Error("processed_at not stamped")
	}
}

func TestAcknowledgeRejectsInvalid(t *testing.T) {
	ev := cloudevents.NewEvent()
	// No id, type, or source: not a valid envelope.
	if _, err := Acknowledge(&ev); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestEmitWithoutSinksIsNoop(t *testing.T) {
	e, err := NewEmitter(Config{})
	if err != nil {
		t.Fatal(err)
	}
	e.Emit(TypeValidationFailed, "corr-1", map[string]any{"reason": "no_header_row"})
	e.Flush()
}
