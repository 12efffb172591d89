package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/sofmeright/edgefreight/src/logging"
	"github.com/sofmeright/edgefreight/src/version"
)

// queueSize bounds the events waiting to be posted. A pipeline emits one
// per stage, so overflow only happens with a dead endpoint.
const queueSize = 16

// HTTPSink posts events as JSON to an endpoint from a single background
// sender. Delivery failures are logged and dropped.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	logger   log.Logger

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewHTTPSink starts a sink posting to endpoint. timeout bounds each POST.
func NewHTTPSink(endpoint string, timeout time.Duration, logger log.Logger) *HTTPSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	s := &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logging.OrNop(logger),
		queue:    make(chan Event, queueSize),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

// Send implements Sink.
func (s *HTTPSink) Send(e Event) {
	select {
	case s.queue <- e:
	default:
		level.Warn(s.logger).Log("msg", "telemetry queue full, dropping event", "stage", e.Stage, "event", e.ID)
	}
}

// Close implements Sink. Events still queued when ctx ends are dropped.
func (s *HTTPSink) Close(ctx context.Context) error {
	s.once.Do(func() { close(s.queue) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flushing telemetry: %w", ctx.Err())
	}
}

func (s *HTTPSink) loop() {
	defer close(s.done)
	for e := range s.queue {
		if err := s.post(e); err != nil {
			level.Debug(s.logger).Log("msg", "telemetry delivery failed", "stage", e.Stage, "err", err)
		}
	}
}

func (s *HTTPSink) post(e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("endpoint returned %s", resp.Status)
	}
	return nil
}
