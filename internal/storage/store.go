/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	applog "slatedeck/internal/log"
	"slatedeck/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// StoreDirName keeps all per-project record data under the project root.
	StoreDirName  = ".slate"
	StoreFileName = "store.sqlite"
	LockFileName  = "store.lock"

	// schemaVersion tracks the local SQLite schema for the embedded store.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// ErrStoreLocked means another process holds the store's file lock. Merges
// serialize on this lock; a second writer must wait or give up.
var ErrStoreLocked = errors.New("scene store is locked by another process")

// StorePath returns the full path to the project's embedded record database.
func StorePath(projectRoot string) string {
	return filepath.Join(projectRoot, StoreDirName, StoreFileName)
}

// Store is the per-project scene record database plus its cross-process
// file lock. One Store per open project; Close releases both.
type Store struct {
	DB   *sql.DB
	lock *flock.Flock
}

// OpenStore ensures the per-project SQLite store exists at
// .slate/store.sqlite, takes the store file lock, opens the database,
// enables WAL mode, and brings the schema up to date. The single-connection
// pool plus the flock give merges their single-writer discipline.
func OpenStore(projectRoot string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "store_open").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if err := os.MkdirAll(filepath.Join(projectRoot, StoreDirName), 0o755); err != nil {
		l.Error("create .slate dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .slate dir: %w", err)
	}

	lock := flock.New(filepath.Join(projectRoot, StoreDirName, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		l.Error("store lock failed", slog.Any("err", err))
		return nil, fmt.Errorf("acquire store lock: %w", err)
	}
	if !locked {
		return nil, ErrStoreLocked
	}

	path := StorePath(projectRoot)
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = lock.Unlock()
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureStoreSchema(ctx, db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		l.Error("ensure store schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("store ready", slog.String("path", path))
	return &Store{DB: db, lock: lock}, nil
}

// Close releases the database and the file lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	err := s.DB.Close()
	if uerr := s.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations.
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureStoreSchema creates the record tables if they do not exist.
func ensureStoreSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per scene per consumer module. Timestamps are RFC3339Nano
		// text; empty string means the zero time.
		`CREATE TABLE IF NOT EXISTS scene_records (
			id               TEXT PRIMARY KEY,
			module           TEXT    NOT NULL,
			number           TEXT    NOT NULL,
			scene_slug       TEXT    NOT NULL DEFAULT '',
			location_type    TEXT    NOT NULL DEFAULT '',
			script_location  TEXT    NOT NULL DEFAULT '',
			time_of_day      TEXT    NOT NULL DEFAULT '',
			sort_index       INTEGER NOT NULL DEFAULT 0,
			display_order    INTEGER NOT NULL DEFAULT 0,
			page_number      INTEGER NOT NULL DEFAULT 0,
			page_eighths     INTEGER NOT NULL DEFAULT 0,
			imported_at      TEXT    NOT NULL DEFAULT '',
			last_local_edit  TEXT    NOT NULL DEFAULT '',
			updated_at       TEXT    NOT NULL DEFAULT '',
			flags            INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scene_records_module ON scene_records(module, sort_index);`,

		// Registry blobs and other small persisted values.
		`CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value BLOB NOT NULL
		);`,

		// One row per successful merge, oldest first.
		`CREATE TABLE IF NOT EXISTS sync_log (
			id          INTEGER PRIMARY KEY,
			revision_id TEXT    NOT NULL,
			module      TEXT    NOT NULL,
			added       INTEGER NOT NULL DEFAULT 0,
			removed     INTEGER NOT NULL DEFAULT 0,
			modified    INTEGER NOT NULL DEFAULT 0,
			conflicts   INTEGER NOT NULL DEFAULT 0,
			ts          TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sync_log_ts ON sync_log(ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure store schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade; just continue.
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Number lookups drive the merge join; give them an index.
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_scene_records_number ON scene_records(module, number);`,
				`CREATE INDEX IF NOT EXISTS idx_sync_log_revision ON sync_log(revision_id);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
		default:
			// Unknown future step; break
		}
		cur = next
	}
	return nil
}
