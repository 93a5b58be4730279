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

// Package events emits CloudEvents 1.0 envelopes about validation runs to
// configured webhook sinks and decodes inbound envelopes on the generic
// webhook endpoint.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/cloudevents/sdk-go/v2/event"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Standardized event types.
const (
	TypeValidationStarted   = "com.wikisoft.validation.started"
	TypeValidationCompleted = "com.wikisoft.validation.completed"
	TypeValidationFailed    = "com.wikisoft.validation.failed"
	TypePIIDetected         = "com.wikisoft.privacy.pii_detected"
)

// Extension attribute names. CloudEvents extension names must be lowercase
// alphanumerics, so the wikisoft_* names collapse their underscores.
const (
	ExtVersion       = "wikisoftversion"
	ExtEnvironment   = "wikisoftenvironment"
	ExtCorrelationID = "wikisoftcorrelationid"
)

// Source is the CloudEvents source attribute for all outbound events.
const Source = "/wikisoft/rostercheck"

// Emitter fans events out to webhook sinks. Delivery is asynchronous and
// best-effort: a sink failure is logged, never propagated into the
// validation flow.
type Emitter struct {
	client      cloudevents.Client
	sinks       []string
	version     string
	environment string
	timeout     time.Duration
	wg          sync.WaitGroup
}

// Config for an emitter.
type Config struct {
	// Sinks are webhook URLs receiving every event. Empty disables emission.
	Sinks []string
	// Version stamps the wikisoftversion extension.
	Version string
	// Environment stamps the wikisoftenvironment extension.
	Environment string
	// Timeout bounds one delivery attempt. Zero means 10s.
	Timeout time.Duration
}

// NewEmitter builds an emitter over the default HTTP protocol.
func NewEmitter(config Config) (*Emitter, error) {
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("create cloudevents client: %w", err)
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Emitter{
		client:      client,
		sinks:       config.Sinks,
		version:     config.Version,
		environment: config.Environment,
		timeout:     timeout,
	}, nil
}

// New builds one outbound event with the wikisoft extension attributes set.
func (e *Emitter) New(eventType, correlationID string, data any) (event.Event, error) {
	ev := cloudevents.NewEvent()
	ev.SetID(uuid.NewString())
	ev.SetType(eventType)
	ev.SetSource(Source)
	ev.SetTime(time.Now().UTC())
	ev.SetExtension(ExtVersion, e.version)
	ev.SetExtension(ExtEnvironment, e.environment)
	ev.SetExtension(ExtCorrelationID, correlationID)
	if err := ev.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return ev, fmt.Errorf("encode event data: %w", err)
	}
	return ev, nil
}

// Emit builds the event and delivers it to every sink in the background.
func (e *Emitter) Emit(eventType, correlationID string, data any) {
	if len(e.sinks) == 0 {
		return
	}
	ev, err := e.New(eventType, correlationID, data)
	if err != nil {
		zap.L().Warn("event build failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	for _, sink := range e.sinks {
		sink := sink
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
			defer cancel()
			ctx = cloudevents.ContextWithTarget(ctx, sink)
			if result := e.client.Send(ctx, ev); cloudevents.IsUndelivered(result) {
				zap.L().Warn("event undelivered",
					zap.String("type", eventType),
					zap.String("sink", sink),
					zap.Error(result),
				)
			}
		}()
	}
}

// Flush waits for in-flight deliveries, for shutdown.
func (e *Emitter) Flush() {
	e.wg.Wait()
}

// Receipt acknowledges one inbound webhook event.
type Receipt struct {
	Received    bool      `json:"received"`
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Acknowledge validates an inbound envelope and builds its receipt.
func Acknowledge(ev *event.Event) (Receipt, error) {
	if err := ev.Validate(); err != nil {
		return Receipt{}, fmt.Errorf("invalid cloudevent: %w", err)
	}
	return Receipt{
		Received:    true,
		EventID:     ev.ID(),
		EventType:   ev.Type(),
		ProcessedAt: time.Now().UTC(),
	}, nil
}
