package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sofmeright/edgefreight/src/config"
	"github.com/sofmeright/edgefreight/src/logging"
	"github.com/sofmeright/edgefreight/src/telemetry"
)

func TestNewSink(t *testing.T) {
	logger := logging.Nop()

	assert.IsType(t, telemetry.NopSink{}, newSink(config.TelemetryConfig{Disabled: true, Endpoint: "http://x"}, time.Second, logger))
	assert.IsType(t, &telemetry.LogSink{}, newSink(config.TelemetryConfig{}, time.Second, logger))

	s := newSink(config.TelemetryConfig{Endpoint: "http://127.0.0.1:1/events"}, time.Second, logger)
	assert.IsType(t, &telemetry.HTTPSink{}, s)
	assert.NoError(t, s.Close(t.Context()))
}

func TestTelemetryTimeout(t *testing.T) {
	logger := logging.Nop()
	assert.Equal(t, 5*time.Second, telemetryTimeout(config.TelemetryConfig{}, logger))
	assert.Equal(t, 2*time.Second, telemetryTimeout(config.TelemetryConfig{Timeout: "2s"}, logger))
	assert.Equal(t, 5*time.Second, telemetryTimeout(config.TelemetryConfig{Timeout: "soon"}, logger))
	assert.Equal(t, 5*time.Second, telemetryTimeout(config.TelemetryConfig{Timeout: "-1s"}, logger))
}
