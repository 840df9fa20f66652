// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the agent's local SQLite databases.
//
// It wraps zombiezen.com/go/sqlite's sqlitex.Pool with the pragmas an
// on-device agent wants (WAL, NORMAL synchronous, a busy timeout, and
// a small page cache) and with ordered schema migrations tracked in
// PRAGMA user_version. Callers write SQL directly against the
// zombiezen connection types.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:       filepath.Join(stateDir, "spool.db"),
//	    Migrations: []string{createEnvelopesTable},
//	    Logger:     logger,
//	})
//	...
//	err = pool.Write(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "INSERT ...", &sqlitex.ExecOptions{Args: args})
//	})
//
// Connections are not safe for concurrent use. [Pool.Read] and
// [Pool.Write] borrow one for the duration of the callback.
package sqlitepool
