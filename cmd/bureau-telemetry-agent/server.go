// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bureau-foundation/telemetry-agent/lib/codec"
	"github.com/bureau-foundation/telemetry-agent/lib/counters"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/eventqueue"
	"github.com/bureau-foundation/telemetry-agent/lib/scheduler"
	"github.com/bureau-foundation/telemetry-agent/lib/source"
	"github.com/bureau-foundation/telemetry-agent/lib/version"
)

// maxIngestEvents bounds a single POST /v1/events request.
const maxIngestEvents = 1000

// ingestEvent is one element of the POST /v1/events body.
type ingestEvent struct {
	Name     string          `json:"name"`
	Priority event.Priority  `json:"priority"`
	Time     *time.Time      `json:"time,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// statusResponse is the GET /status body.
type statusResponse struct {
	AgentID       string                  `json:"agent_id"`
	Version       string                  `json:"version"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Transport     transportStatus         `json:"transport"`
	Queues        []eventqueue.QueueStats `json:"queues"`
	Counters      counters.Snapshot       `json:"counters"`
	InFlightSends int                     `json:"in_flight_sends"`
	InboxPending  int                     `json:"inbox_pending"`
	Tasks         []scheduler.TaskStatus  `json:"tasks"`
}

type transportStatus struct {
	Kind         string `json:"kind"`
	BreakerState string `json:"breaker_state,omitempty"`
	SpoolRows    *int   `json:"spool_rows,omitempty"`
}

func (a *agent) routes() http.Handler {
	router := chi.NewRouter()
	router.Post("/v1/events", a.handleIngest)
	router.Post("/v1/reset", a.handleReset)
	router.Get("/status", a.handleStatus)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	return router
}

func (a *agent) handleIngest(w http.ResponseWriter, r *http.Request) {
	maxBody := int64(a.config.MaxMessageSize()) * 4
	var batch []ingestEvent
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&batch); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding events: %w", err))
		return
	}
	if len(batch) == 0 {
		writeError(w, http.StatusBadRequest, errors.New("no events"))
		return
	}
	if len(batch) > maxIngestEvents {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("%d events exceeds the limit of %d", len(batch), maxIngestEvents))
		return
	}

	now := a.clock.Now()
	events := make([]event.Event, 0, len(batch))
	for i, incoming := range batch {
		ev, err := incoming.toEvent(now)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("event %d: %w", i, err))
			return
		}
		events = append(events, ev)
	}

	if err := a.inbox.Push(events...); err != nil {
		if errors.Is(err, source.ErrInboxFull) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"accepted": len(events)})
}

// toEvent converts the JSON payload to CBOR and builds the event.
// A missing time means now.
func (e ingestEvent) toEvent(now time.Time) (event.Event, error) {
	timestamp := now
	if e.Time != nil {
		timestamp = *e.Time
	}
	payload, err := decodePayload(e.Payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("payload: %w", err)
	}
	encoded, err := codec.Marshal(payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("payload: %w", err)
	}
	if e.Name == "" {
		return event.Event{}, errors.New("name is required")
	}
	if e.Priority == event.PriorityOff {
		return event.Event{}, errors.New("priority is required (high, low, or operational)")
	}
	return event.FromEncoded(e.Name, e.Priority, timestamp, encoded)
}

// decodePayload decodes a JSON payload keeping integers exact: numbers
// become int64 or uint64 when they are integral and in range, float64
// otherwise.
func decodePayload(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, err
	}
	return convertNumbers(payload)
}

func convertNumbers(value any) (any, error) {
	switch v := value.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		if n, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", v, err)
		}
		return f, nil
	case map[string]any:
		for key, element := range v {
			converted, err := convertNumbers(element)
			if err != nil {
				return nil, err
			}
			v[key] = converted
		}
	case []any:
		for i, element := range v {
			converted, err := convertNumbers(element)
			if err != nil {
				return nil, err
			}
			v[i] = converted
		}
	}
	return value, nil
}

func (a *agent) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := a.reset(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	a.logger.Warn("queues and counters reset via local http surface", "remote", r.RemoteAddr)
	w.WriteHeader(http.StatusNoContent)
}

func (a *agent) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := statusResponse{
		AgentID:       a.identity.AgentID,
		Version:       version.Info(),
		UptimeSeconds: int64(a.clock.Now().Sub(a.started) / time.Second),
		Transport:     transportStatus{Kind: a.transportKind},
		Queues:        a.manager.Stats(),
		Counters:      a.counters.Snapshot(),
		InFlightSends: a.builder.InFlight(),
		InboxPending:  a.inbox.Len(),
		Tasks:         append(a.producerScheduler.Tasks(), a.batchScheduler.Tasks()...),
	}
	if a.httpClient != nil {
		status.Transport.BreakerState = a.httpClient.BreakerState()
	}
	if a.spool != nil {
		if rows, err := a.spool.Count(r.Context()); err == nil {
			status.Transport.SpoolRows = &rows
		}
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
