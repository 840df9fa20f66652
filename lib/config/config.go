// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/telemetry-agent/lib/envelope"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/retry"
	"github.com/bureau-foundation/telemetry-agent/lib/transport"
)

// EnvironmentVariable names the config file for [Load].
const EnvironmentVariable = "BUREAU_TELEMETRY_CONFIG"

// OperationalFraction is the share of the cache byte budget given to
// the Operational queue. It is not configurable.
const OperationalFraction = 0.10

// Transport kinds.
const (
	TransportHTTP  = "http"
	TransportSpool = "spool"
)

// Config is the complete agent configuration.
type Config struct {
	// Agent identifies this installation.
	Agent AgentConfig `yaml:"agent"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`

	// Budgets bounds memory use and message size.
	Budgets BudgetConfig `yaml:"budgets"`

	// Intervals sets collection and flush cadence.
	Intervals IntervalConfig `yaml:"intervals"`

	// Transport selects and tunes delivery to the collector.
	Transport TransportConfig `yaml:"transport"`

	// Sources overrides the priority of named event sources. A source
	// mapped to "off" is not polled. Sources not listed use their
	// built-in priority.
	Sources map[string]event.Priority `yaml:"sources"`

	// Listen is the address of the local HTTP surface (event ingest,
	// status, metrics). Empty disables it.
	Listen string `yaml:"listen"`
}

// AgentConfig identifies the agent.
type AgentConfig struct {
	// ID is the agent identifier sent with every envelope. Empty
	// means a UUID generated once and persisted under StateDir.
	ID string `yaml:"id"`

	// StateDir holds the persisted agent ID and the spool database.
	StateDir string `yaml:"state_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// BudgetConfig bounds buffering.
type BudgetConfig struct {
	// MaxMessageSize is the largest batch, in estimated event bytes,
	// sent in one envelope. Also the size at which a High flush is
	// forced.
	MaxMessageSize ByteSize `yaml:"max_message_size"`

	// CacheByteBudget is the total memory available to the queues.
	CacheByteBudget ByteSize `yaml:"cache_byte_budget"`

	// HighPriorityFraction is the High queue's share of
	// CacheByteBudget.
	HighPriorityFraction float64 `yaml:"high_priority_fraction"`

	// LowPriorityFraction is the Low queue's share of
	// CacheByteBudget.
	LowPriorityFraction float64 `yaml:"low_priority_fraction"`
}

// IntervalConfig sets cadence.
type IntervalConfig struct {
	// Collection is how often event sources are polled.
	Collection time.Duration `yaml:"collection"`

	// HighPriority is the maximum age of the last High flush.
	HighPriority time.Duration `yaml:"high_priority"`

	// LowPriority is the maximum age of the last Low flush.
	LowPriority time.Duration `yaml:"low_priority"`

	// SchedulerPoll is how often the schedulers look for due tasks.
	SchedulerPoll time.Duration `yaml:"scheduler_poll"`
}

// TransportConfig configures delivery.
type TransportConfig struct {
	// Kind is "http" or "spool".
	Kind string `yaml:"kind"`

	// Endpoint is the collector base URL for the http transport.
	Endpoint string `yaml:"endpoint"`

	// Compression is none, lz4, or zstd.
	Compression envelope.Compression `yaml:"compression"`

	// SendTimeout bounds one delivery attempt.
	SendTimeout time.Duration `yaml:"send_timeout"`

	// DrainTimeout bounds the wait for in-flight sends at shutdown.
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	// SpoolPath is the spool database. Empty means
	// ${STATE_DIR}/spool.db.
	SpoolPath string `yaml:"spool_path"`

	// SpoolMaxRows caps the spool. Zero means unbounded.
	SpoolMaxRows int `yaml:"spool_max_rows"`

	// Retry is the backoff schedule for connecting to the collector.
	Retry []retry.Stage `yaml:"retry"`

	// Breaker tunes the http transport's circuit breaker.
	Breaker transport.BreakerConfig `yaml:"breaker"`
}

// Default returns a Config with every value set.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			StateDir: "/var/lib/bureau-telemetry",
		},
		Log: LogConfig{Level: "info"},
		Budgets: BudgetConfig{
			MaxMessageSize:       256 << 10,
			CacheByteBudget:      16 << 20,
			HighPriorityFraction: 0.60,
			LowPriorityFraction:  0.30,
		},
		Intervals: IntervalConfig{
			Collection:    10 * time.Second,
			HighPriority:  30 * time.Second,
			LowPriority:   5 * time.Minute,
			SchedulerPoll: 250 * time.Millisecond,
		},
		Transport: TransportConfig{
			Kind:         TransportHTTP,
			Compression:  envelope.CompressionZstd,
			SendTimeout:  30 * time.Second,
			DrainTimeout: 5 * time.Second,
			SpoolPath:    "${STATE_DIR}/spool.db",
			Retry: []retry.Stage{
				{Tries: 5, Backoff: time.Second},
				{Tries: 10, Backoff: 10 * time.Second},
				{Backoff: time.Minute},
			},
			Breaker: transport.BreakerConfig{
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
			},
		},
		Sources: map[string]event.Priority{},
	}
}

// Load reads the file named by BUREAU_TELEMETRY_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of the agent config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads path over Default, expands path variables, and
// validates the result.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Parse decodes data over Default. ext selects the format: ".json"
// and ".jsonc" are JSON with comments, anything else is YAML.
func Parse(data []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".json", ".jsonc":
		converted, err := jsoncToYAML(data)
		if err != nil {
			return nil, err
		}
		data = converted
	}

	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding: %w", err)
	}
	config.expandVariables()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// jsoncToYAML strips comments and re-encodes as YAML so that both
// formats share one decoder and its duration and byte-size handling.
func jsoncToYAML(data []byte) ([]byte, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.UseNumber()
	var document any
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	return yaml.Marshal(normalizeNumbers(document))
}

// normalizeNumbers replaces json.Number with int64 or float64 so that
// large integers are not re-encoded in exponent form.
func normalizeNumbers(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, element := range typed {
			typed[key] = normalizeNumbers(element)
		}
	case []any:
		for i, element := range typed {
			typed[i] = normalizeNumbers(element)
		}
	case json.Number:
		if integer, err := typed.Int64(); err == nil {
			return integer
		}
		if float, err := typed.Float64(); err == nil {
			return float
		}
		return typed.String()
	}
	return value
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVariables expands ${HOME}, ${STATE_DIR}, and ${VAR:-default}
// in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Agent.StateDir = expandVars(c.Agent.StateDir, vars)
	vars["STATE_DIR"] = c.Agent.StateDir
	c.Transport.SpoolPath = expandVars(c.Transport.SpoolPath, vars)
}

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration and reports every problem.
func (c *Config) Validate() error {
	var errs []error

	if c.Agent.ID == "" && c.Agent.StateDir == "" {
		errs = append(errs, errors.New("agent.state_dir is required when agent.id is not set"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	budgets := c.Budgets
	if budgets.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("budgets.max_message_size must be positive"))
	}
	if budgets.CacheByteBudget <= 0 {
		errs = append(errs, errors.New("budgets.cache_byte_budget must be positive"))
	}
	if budgets.HighPriorityFraction <= 0 || budgets.HighPriorityFraction > 1 {
		errs = append(errs, fmt.Errorf("budgets.high_priority_fraction must be in (0, 1], got %g", budgets.HighPriorityFraction))
	}
	if budgets.LowPriorityFraction <= 0 || budgets.LowPriorityFraction > 1 {
		errs = append(errs, fmt.Errorf("budgets.low_priority_fraction must be in (0, 1], got %g", budgets.LowPriorityFraction))
	}
	if total := budgets.HighPriorityFraction + budgets.LowPriorityFraction + OperationalFraction; total > 1.0000001 {
		errs = append(errs, fmt.Errorf("budgets: high and low fractions plus the operational %g exceed 1 (%g)", OperationalFraction, total))
	}

	intervals := map[string]time.Duration{
		"intervals.collection":     c.Intervals.Collection,
		"intervals.high_priority":  c.Intervals.HighPriority,
		"intervals.low_priority":   c.Intervals.LowPriority,
		"intervals.scheduler_poll": c.Intervals.SchedulerPoll,
		"transport.send_timeout":   c.Transport.SendTimeout,
	}
	for _, name := range slices.Sorted(maps.Keys(intervals)) {
		if intervals[name] <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if c.Transport.DrainTimeout < 0 {
		errs = append(errs, errors.New("transport.drain_timeout must not be negative"))
	}

	switch c.Transport.Kind {
	case TransportHTTP:
		if c.Transport.Endpoint == "" {
			errs = append(errs, errors.New("transport.endpoint is required for the http transport"))
		}
	case TransportSpool:
		if c.Transport.SpoolPath == "" {
			errs = append(errs, errors.New("transport.spool_path is required for the spool transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.kind must be %q or %q, got %q", TransportHTTP, TransportSpool, c.Transport.Kind))
	}
	if c.Transport.SpoolMaxRows < 0 {
		errs = append(errs, errors.New("transport.spool_max_rows must not be negative"))
	}
	if err := retry.Validate(c.Transport.Retry); err != nil {
		errs = append(errs, fmt.Errorf("transport.retry: %w", err))
	}

	return errors.Join(errs...)
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level must be debug, info, warn, or error, got %q", name)
	}
}

// QueueBudget returns the byte budget of the queue for priority.
func (c *Config) QueueBudget(priority event.Priority) int {
	var fraction float64
	switch priority {
	case event.PriorityHigh:
		fraction = c.Budgets.HighPriorityFraction
	case event.PriorityLow:
		fraction = c.Budgets.LowPriorityFraction
	case event.PriorityOperational:
		fraction = OperationalFraction
	default:
		return 0
	}
	return int(fraction * float64(c.Budgets.CacheByteBudget))
}
