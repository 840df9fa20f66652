// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/telemetry-agent/lib/config"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/source"
)

func post(t *testing.T, server *httptest.Server, path, body string) *http.Response {
	t.Helper()
	response, err := http.Post(server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	t.Cleanup(func() { response.Body.Close() })
	return response
}

func TestIngestPushesIntoInbox(t *testing.T) {
	a, fakeClock := testAgent(t, nil)
	server := httptest.NewServer(a.routes())
	defer server.Close()

	response := post(t, server, "/v1/events", `[
		{"name": "app.login", "priority": "high", "payload": {"user": "ben", "attempts": 2}},
		{"name": "app.tick", "priority": "operational", "time": "2026-02-01T00:00:00Z"}
	]`)
	if response.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(response.Body)
		t.Fatalf("status = %d, body %s", response.StatusCode, body)
	}

	events, err := a.inbox.Poll(context.Background(), event.PriorityHigh)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("inbox held %d events, want 2", len(events))
	}
	if events[0].Name != "app.login" || events[0].Priority != event.PriorityHigh || !events[0].Time.Equal(fakeClock.Now()) {
		t.Fatalf("first event = %+v", events[0])
	}
	var payload struct {
		User     string  `json:"user"`
		Attempts int    `json:"attempts"`
	}
	if err := events[0].DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.User != "ben" || payload.Attempts != 2 {
		t.Fatalf("payload = %+v", payload)
	}
	if want := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC); !events[1].Time.Equal(want) {
		t.Fatalf("second event time = %s, want %s", events[1].Time, want)
	}
}

func TestIngestKeepsLargeIntegersExact(t *testing.T) {
	a, _ := testAgent(t, nil)
	server := httptest.NewServer(a.routes())
	defer server.Close()

	response := post(t, server, "/v1/events", `[
		{"name": "trace.span", "priority": "low", "payload": {
			"span_id": 9007199254740993,
			"offset": 18446744073709551615,
			"ratio": 0.25,
			"samples": [-9007199254740993, 1.5]
		}}
	]`)
	if response.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(response.Body)
		t.Fatalf("status = %d, body %s", response.StatusCode, body)
	}

	events, err := a.inbox.Poll(context.Background(), event.PriorityLow)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("inbox held %d events, want 1", len(events))
	}
	var payload struct {
		SpanID  int64   `json:"span_id"`
		Offset  uint64  `json:"offset"`
		Ratio   float64 `json:"ratio"`
		Samples []any   `json:"samples"`
	}
	if err := events[0].DecodePayload(&payload); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if payload.SpanID != 9007199254740993 {
		t.Fatalf("span_id = %d, want 9007199254740993", payload.SpanID)
	}
	if payload.Offset != 18446744073709551615 {
		t.Fatalf("offset = %d, want 18446744073709551615", payload.Offset)
	}
	if payload.Ratio != 0.25 {
		t.Fatalf("ratio = %g, want 0.25", payload.Ratio)
	}
	if len(payload.Samples) != 2 || payload.Samples[0] != int64(-9007199254740993) || payload.Samples[1] != 1.5 {
		t.Fatalf("samples = %#v", payload.Samples)
	}
}

func TestIngestRejectsInvalidEvents(t *testing.T) {
	a, _ := testAgent(t, nil)
	server := httptest.NewServer(a.routes())
	defer server.Close()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed", `{"name":`, http.StatusBadRequest},
		{"empty", `[]`, http.StatusBadRequest},
		{"missing name", `[{"priority": "high"}]`, http.StatusBadRequest},
		{"missing priority", `[{"name": "x"}]`, http.StatusBadRequest},
		{"off priority", `[{"name": "x", "priority": "off"}]`, http.StatusBadRequest},
		{"unknown priority", `[{"name": "x", "priority": "urgent"}]`, http.StatusBadRequest},
		{"unknown field", `[{"name": "x", "priority": "high", "level": 3}]`, http.StatusBadRequest},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			response := post(t, server, "/v1/events", test.body)
			if response.StatusCode != test.want {
				t.Fatalf("status = %d, want %d", response.StatusCode, test.want)
			}
		})
	}
	if a.inbox.Len() != 0 {
		t.Fatalf("rejected requests left %d events in the inbox", a.inbox.Len())
	}
}

func TestIngestReportsFullInbox(t *testing.T) {
	a, _ := testAgent(t, nil)
	a.inbox = source.NewInbox(ingestSourceName, event.PriorityHigh, 1)
	server := httptest.NewServer(a.routes())
	defer server.Close()

	response := post(t, server, "/v1/events", `[{"name": "a", "priority": "low"}, {"name": "b", "priority": "low"}]`)
	if response.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", response.StatusCode)
	}
	if response.Header.Get("Retry-After") == "" {
		t.Fatal("503 without Retry-After")
	}
}

func TestIngestRejectsOversizedBody(t *testing.T) {
	a, _ := testAgent(t, func(cfg *config.Config) {
		cfg.Budgets.MaxMessageSize = 64
	})
	server := httptest.NewServer(a.routes())
	defer server.Close()

	body := `[{"name": "x", "priority": "high", "payload": "` + strings.Repeat("a", 1024) + `"}]`
	response := post(t, server, "/v1/events", body)
	if response.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", response.StatusCode)
	}
}

func TestStatusReportsQueuesAndCounters(t *testing.T) {
	a, fakeClock := testAgent(t, nil)
	a.producerScheduler.RunPending(context.Background())
	fakeClock.Advance(42 * time.Second)

	server := httptest.NewServer(a.routes())
	defer server.Close()
	response, err := http.Get(server.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", response.StatusCode)
	}

	var status statusResponse
	if err := json.NewDecoder(response.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if status.AgentID != "test-agent" || status.UptimeSeconds != 42 {
		t.Fatalf("agent_id=%q uptime=%d", status.AgentID, status.UptimeSeconds)
	}
	if status.Transport.Kind != config.TransportSpool || status.Transport.SpoolRows == nil || *status.Transport.SpoolRows != 0 {
		t.Fatalf("transport = %+v", status.Transport)
	}
	if len(status.Queues) != 3 || status.Queues[2].Priority != event.PriorityOperational || status.Queues[2].Events != 2 {
		t.Fatalf("queues = %+v", status.Queues)
	}
	if status.Counters["operational"].Enqueued != 2 {
		t.Fatalf("counters = %+v", status.Counters)
	}
	if len(status.Tasks) != 2 || status.Tasks[0].Name != "collect" || status.Tasks[0].Runs != 1 {
		t.Fatalf("tasks = %+v", status.Tasks)
	}
}

func TestResetDiscardsQueuesAndCounters(t *testing.T) {
	a, fakeClock := testAgent(t, nil)
	a.producerScheduler.RunPending(context.Background())
	if a.manager.AvailableDataSize() == 0 {
		t.Fatal("nothing collected")
	}

	server := httptest.NewServer(a.routes())
	defer server.Close()
	response := post(t, server, "/v1/reset", "")
	if response.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", response.StatusCode)
	}
	if a.manager.AvailableDataSize() != 0 {
		t.Fatalf("AvailableDataSize = %d after reset", a.manager.AvailableDataSize())
	}
	if snapshot := a.counters.Snapshot(); len(snapshot) != 0 {
		t.Fatalf("counters after reset = %+v", snapshot)
	}

	// Counting continues against the new sinks.
	fakeClock.Advance(a.config.Current().Intervals.Collection)
	a.producerScheduler.RunPending(context.Background())
	if a.counters.Snapshot()["operational"].Enqueued == 0 {
		t.Fatal("counters not rebound after reset")
	}
}

func TestMetricsExposesCounters(t *testing.T) {
	a, _ := testAgent(t, nil)
	a.producerScheduler.RunPending(context.Background())

	server := httptest.NewServer(a.routes())
	defer server.Close()
	response, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatal(err)
	}
	if want := `telemetry_agent_events_enqueued_total{priority="operational"} 2`; !strings.Contains(string(body), want) {
		t.Fatalf("metrics missing %q:\n%s", want, body)
	}
}
