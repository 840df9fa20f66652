// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/telemetry-agent/lib/clock"
	"github.com/bureau-foundation/telemetry-agent/lib/envelope"
	"github.com/bureau-foundation/telemetry-agent/lib/event"
	"github.com/bureau-foundation/telemetry-agent/lib/sqlitepool"
)

// spoolMigrations create the outbox. Append only.
var spoolMigrations = []string{`
CREATE TABLE envelopes (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT    NOT NULL UNIQUE,
	priority          TEXT    NOT NULL,
	compression       TEXT    NOT NULL,
	uncompressed_size INTEGER NOT NULL,
	digest            TEXT    NOT NULL,
	events            INTEGER NOT NULL,
	body              BLOB    NOT NULL,
	spooled_at        INTEGER NOT NULL
);
CREATE INDEX envelopes_priority ON envelopes (priority, seq);
`}

// SpoolConfig holds the parameters for [OpenSpool].
type SpoolConfig struct {
	// Path is the SQLite database file. Required.
	Path string

	// Compression is requested for every envelope.
	Compression envelope.Compression

	// MaxRows caps the outbox. After each Send the oldest rows beyond
	// MaxRows are deleted. Zero means unbounded.
	MaxRows int

	// Clock stamps spooled_at. Nil means clock.Real().
	Clock clock.Clock

	// Logger receives pool lifecycle and prune messages.
	Logger *slog.Logger
}

// Spool is a [Client] that stores envelopes in a local SQLite outbox.
type Spool struct {
	pool        *sqlitepool.Pool
	compression envelope.Compression
	maxRows     int
	clock       clock.Clock
	logger      *slog.Logger
}

// SpooledEnvelope is one outbox row.
type SpooledEnvelope struct {
	Encoded   envelope.Encoded
	SpooledAt time.Time
}

// OpenSpool opens (creating if needed) the outbox database.
func OpenSpool(config SpoolConfig) (*Spool, error) {
	if config.Path == "" {
		return nil, errors.New("spool transport: Path is required")
	}
	if config.MaxRows < 0 {
		return nil, fmt.Errorf("spool transport: MaxRows must not be negative, got %d", config.MaxRows)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:       config.Path,
		Migrations: spoolMigrations,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("spool transport: %w", err)
	}
	return &Spool{
		pool:        pool,
		compression: config.Compression,
		maxRows:     config.MaxRows,
		clock:       clk,
		logger:      logger,
	}, nil
}

// Close closes the database.
func (s *Spool) Close() error {
	return s.pool.Close()
}

// Send encodes env and appends it to the outbox, then enforces
// MaxRows.
func (s *Spool) Send(ctx context.Context, env *envelope.Envelope, priority event.Priority) error {
	encoded, err := envelope.Encode(env, s.compression)
	if err != nil {
		return err
	}
	pruned := 0
	err = s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, `
			INSERT INTO envelopes
				(id, priority, compression, uncompressed_size, digest, events, body, spooled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				encoded.ID.String(),
				priority.String(),
				encoded.Compression.String(),
				encoded.UncompressedSize,
				encoded.Digest.String(),
				encoded.Events,
				encoded.Body,
				s.clock.Now().UnixNano(),
			}})
		if err != nil {
			return fmt.Errorf("inserting envelope %s: %w", encoded.ID, err)
		}
		if s.maxRows > 0 {
			pruned, err = prune(conn, s.maxRows)
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("spool transport: %w", err)
	}
	if pruned > 0 {
		s.logger.Warn("spool full, discarded oldest envelopes", "discarded", pruned, "max_rows", s.maxRows)
	}
	return nil
}

func prune(conn *sqlite.Conn, maxRows int) (int, error) {
	err := sqlitex.Execute(conn, `
		DELETE FROM envelopes WHERE seq NOT IN (
			SELECT seq FROM envelopes ORDER BY seq DESC LIMIT ?
		)`, &sqlitex.ExecOptions{Args: []any{maxRows}})
	if err != nil {
		return 0, fmt.Errorf("pruning spool: %w", err)
	}
	return conn.Changes(), nil
}

// Prune deletes the oldest rows beyond maxRows and returns how many
// were deleted.
func (s *Spool) Prune(ctx context.Context, maxRows int) (int, error) {
	if maxRows < 0 {
		return 0, fmt.Errorf("spool transport: maxRows must not be negative, got %d", maxRows)
	}
	var deleted int
	err := s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		var err error
		deleted, err = prune(conn, maxRows)
		return err
	})
	return deleted, err
}

// Pending returns up to limit of the oldest envelopes, oldest first.
// PriorityOff returns every priority; any other value restricts the
// result to that priority.
func (s *Spool) Pending(ctx context.Context, priority event.Priority, limit int) ([]SpooledEnvelope, error) {
	query := `SELECT id, priority, compression, uncompressed_size, digest, events, body, spooled_at
		FROM envelopes ORDER BY seq LIMIT ?`
	args := []any{limit}
	if priority != event.PriorityOff {
		query = `SELECT id, priority, compression, uncompressed_size, digest, events, body, spooled_at
			FROM envelopes WHERE priority = ? ORDER BY seq LIMIT ?`
		args = []any{priority.String(), limit}
	}

	var results []SpooledEnvelope
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				row, err := scanEnvelope(stmt)
				if err != nil {
					return err
				}
				results = append(results, row)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("spool transport: reading pending: %w", err)
	}
	return results, nil
}

func scanEnvelope(stmt *sqlite.Stmt) (SpooledEnvelope, error) {
	id, err := uuid.Parse(stmt.ColumnText(0))
	if err != nil {
		return SpooledEnvelope{}, fmt.Errorf("row id: %w", err)
	}
	priority, err := event.ParsePriority(stmt.ColumnText(1))
	if err != nil {
		return SpooledEnvelope{}, fmt.Errorf("row %s: %w", id, err)
	}
	compression, err := envelope.ParseCompression(stmt.ColumnText(2))
	if err != nil {
		return SpooledEnvelope{}, fmt.Errorf("row %s: %w", id, err)
	}
	digest, err := envelope.ParseDigest(stmt.ColumnText(4))
	if err != nil {
		return SpooledEnvelope{}, fmt.Errorf("row %s: %w", id, err)
	}
	body := make([]byte, stmt.ColumnLen(6))
	stmt.ColumnBytes(6, body)

	return SpooledEnvelope{
		Encoded: envelope.Encoded{
			ID:               id,
			Priority:         priority,
			Body:             body,
			Compression:      compression,
			UncompressedSize: stmt.ColumnInt(3),
			Digest:           digest,
			Events:           stmt.ColumnInt(5),
		},
		SpooledAt: time.Unix(0, stmt.ColumnInt64(7)).UTC(),
	}, nil
}

// Acknowledge removes delivered envelopes from the outbox. Unknown
// IDs are ignored.
func (s *Spool) Acknowledge(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.pool.Write(ctx, func(conn *sqlite.Conn) error {
		for _, id := range ids {
			if err := sqlitex.Execute(conn, "DELETE FROM envelopes WHERE id = ?", &sqlitex.ExecOptions{
				Args: []any{id.String()},
			}); err != nil {
				return fmt.Errorf("spool transport: acknowledging %s: %w", id, err)
			}
		}
		return nil
	})
}

// Count returns the number of envelopes in the outbox.
func (s *Spool) Count(ctx context.Context) (int, error) {
	var count int
	err := s.pool.Read(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT COUNT(*) FROM envelopes", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				count = stmt.ColumnInt(0)
				return nil
			},
		})
	})
	if err != nil {
		return 0, fmt.Errorf("spool transport: counting: %w", err)
	}
	return count, nil
}
