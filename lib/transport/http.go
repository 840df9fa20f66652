// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
	"github.com/bureau-foundation/telemetry-agent/lib/envelope"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/netutil"
	"github.com/bureau-foundation/telemetry-agent/lib/retry"
	"github.com/bureau-foundation/telemetry-agent/lib/version"
)

// BreakerConfig tunes the HTTP client's circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens
	// the circuit.
	MaxFailures uint32 `yaml:"max_failures"`

	// OpenTimeout is how long the circuit stays open before a single
	// trial request is allowed through.
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// HTTPConfig holds the parameters for [NewHTTPClient].
type HTTPConfig struct {
	// Endpoint is the collector base URL, e.g.
	// "https://collector.example.com". Required.
	Endpoint string

	// AgentID is sent in HeaderAgentID. Required.
	AgentID string

	// Compression is requested for every envelope. The encoder falls
	// back to none for incompressible bodies.
	Compression envelope.Compression

	// Breaker tunes the circuit breaker. Zero MaxFailures means 5;
	// zero OpenTimeout means 30s.
	Breaker BreakerConfig

	// HTTPClient performs the requests. Nil means a client with no
	// timeout of its own; per-send deadlines come from the caller's
	// context.
	HTTPClient *http.Client

	// Clock paces Connect's retries. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives breaker state changes and connect progress.
	Logger *slog.Logger
}

// HTTPClient delivers envelopes to a collector over HTTP.
type HTTPClient struct {
	envelopeURL string
	healthURL   string
	agentID     string
	compression envelope.Compression
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	clock       clock.Clock
	logger      *slog.Logger
}

// StatusError is returned when the collector answers with a non-2xx
// status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("collector returned HTTP %d: %s", e.StatusCode, e.Body)
}

// NewHTTPClient validates config and creates the client. No network
// traffic happens until Send or Connect.
func NewHTTPClient(config HTTPConfig) (*HTTPClient, error) {
	if config.Endpoint == "" {
		return nil, errors.New("http transport: Endpoint is required")
	}
	if config.AgentID == "" {
		return nil, errors.New("http transport: AgentID is required")
	}
	base := strings.TrimRight(config.Endpoint, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, fmt.Errorf("http transport: Endpoint %q must be an http or https URL", config.Endpoint)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	maxFailures := config.Breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	openTimeout := config.Breaker.OpenTimeout
	if openTimeout == 0 {
		openTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "collector",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("collector circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &HTTPClient{
		envelopeURL: base + EnvelopePath,
		healthURL:   base + HealthPath,
		agentID:     config.AgentID,
		compression: config.Compression,
		httpClient:  httpClient,
		breaker:     breaker,
		clock:       clk,
		logger:      logger,
	}, nil
}

// Send encodes env and POSTs it. Any non-2xx response is an error.
func (c *HTTPClient) Send(ctx context.Context, env *envelope.Envelope, priority event.Priority) error {
	encoded, err := envelope.Encode(env, c.compression)
	if err != nil {
		return err
	}
	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.post(ctx, encoded, priority)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: envelope %s not sent", ErrCircuitOpen, encoded.ID)
	}
	if err != nil {
		return fmt.Errorf("sending envelope %s: %w", encoded.ID, err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, encoded *envelope.Encoded, priority event.Priority) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.envelopeURL, bytes.NewReader(encoded.Body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", ContentType)
	if encoded.Compression != envelope.CompressionNone {
		request.Header.Set("Content-Encoding", encoded.Compression.String())
	}
	request.Header.Set(HeaderEnvelopeID, encoded.ID.String())
	request.Header.Set(HeaderPriority, priority.String())
	request.Header.Set(HeaderSchemaVersion, strconv.Itoa(envelope.SchemaVersion))
	request.Header.Set(HeaderDigest, encoded.Digest.String())
	request.Header.Set(HeaderUncompressedSize, strconv.Itoa(encoded.UncompressedSize))
	request.Header.Set(HeaderAgentID, c.agentID)
	request.Header.Set("User-Agent", version.UserAgent())
	request.Header.Set(HeaderEventCount, strconv.Itoa(encoded.Events))
	return c.do(request)
}

func (c *HTTPClient) do(request *http.Request) error {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if response.StatusCode/100 == 2 {
		netutil.Discard(response.Body)
		return nil
	}
	return &StatusError{StatusCode: response.StatusCode, Body: netutil.ErrorBody(response.Body)}
}

// Ping checks the collector's health endpoint once. It bypasses the
// circuit breaker.
func (c *HTTPClient) Ping(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return err
	}
	request.Header.Set(HeaderAgentID, c.agentID)
	return c.do(request)
}

// Connect pings the collector until it answers, waiting between
// attempts as policy dictates. It returns nil once the collector is
// reachable, or the context error if ctx ends first.
func (c *HTTPClient) Connect(ctx context.Context, policy *retry.Policy) error {
	return policy.Forever(ctx, c.clock, c.logger, "collector connect", c.Ping)
}

// BreakerState returns the circuit breaker's current state name.
func (c *HTTPClient) BreakerState() string {
	return c.breaker.State().String()
}

// ReadEnvelope decodes the envelope carried by a request built by
// HTTPClient.Send, verifying its digest.
func ReadEnvelope(request *http.Request, maxBytes int64) (*envelope.Envelope, error) {
	compression, err := envelope.ParseCompression(request.Header.Get("Content-Encoding"))
	if err != nil {
		return nil, err
	}
	digest, err := envelope.ParseDigest(request.Header.Get(HeaderDigest))
	if err != nil {
		return nil, err
	}
	uncompressedSize, err := strconv.Atoi(request.Header.Get(HeaderUncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", HeaderUncompressedSize, err)
	}
	if int64(uncompressedSize) > maxBytes {
		return nil, fmt.Errorf("envelope of %d bytes exceeds limit %d", uncompressedSize, maxBytes)
	}
	body, err := io.ReadAll(io.LimitReader(request.Body, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("body exceeds limit %d", maxBytes)
	}
	return envelope.Decode(&envelope.Encoded{
		Body:             body,
		Compression:      compression,
		UncompressedSize: uncompressedSize,
		Digest:           digest,
	})
}
