// Package telemetry reports stage outcomes. Reporting is strictly best
// effort: nothing here can fail or slow down a pipeline stage.
package telemetry

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/google/uuid"

	"github.com/sofmeright/edgefreight/src/logging"
	"github.com/sofmeright/edgefreight/src/version"
)

// Event is the outcome of one pipeline stage.
type Event struct {
	ID             string    `json:"id"`
	Stage          string    `json:"stage"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"errorMessage,omitempty"`
	JobName        string    `json:"jobName,omitempty"`
	SubscriptionID string    `json:"subscriptionId,omitempty"`
	HubURL         string    `json:"hubUrl,omitempty"`
	Duration       float64   `json:"durationSeconds"`
	Time           time.Time `json:"time"`
	Version        string    `json:"version"`
}

// NewEvent stamps a fresh event for stage.
func NewEvent(stage string) Event {
	return Event{
		ID:      uuid.NewString(),
		Stage:   stage,
		Time:    time.Now().UTC(),
		Version: version.Version,
	}
}

// Sink receives stage outcomes.
type Sink interface {
	// Send queues an event. It never blocks and never fails.
	Send(e Event)

	// Close flushes queued events, giving up when ctx is done.
	Close(ctx context.Context) error
}

// NopSink drops every event.
type NopSink struct{}

// Send implements Sink.
func (NopSink) Send(Event) {}

// Close implements Sink.
func (NopSink) Close(context.Context) error { return nil }

// LogSink writes events to the diagnostic log.
type LogSink struct {
	Logger log.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{Logger: logging.OrNop(logger)}
}

// Send implements Sink.
func (s *LogSink) Send(e Event) {
	lvl := level.Info(s.Logger)
	if !e.Success {
		lvl = level.Warn(s.Logger)
	}
	lvl.Log("msg", "stage outcome",
		"event", e.ID,
		"stage", e.Stage,
		"success", e.Success,
		"error", e.ErrorMessage,
		"job", e.JobName,
		"subscription", e.SubscriptionID,
		"hub", e.HubURL,
		"duration", e.Duration,
	)
}

// Close implements Sink.
func (s *LogSink) Close(context.Context) error { return nil }
