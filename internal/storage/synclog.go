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
	"fmt"

	"slatedeck/internal/domain"
	"slatedeck/internal/reconcile"
)

// SyncLog records one row per successful merge. It satisfies the
// reconciliation engine's history sink.
type SyncLog struct {
	db *sql.DB
}

func NewSyncLog(s *Store) *SyncLog {
	return &SyncLog{db: s.DB}
}

func (l *SyncLog) AppendSync(ctx context.Context, entry reconcile.SyncEntry) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO sync_log (revision_id, module, added, removed, modified, conflicts, ts)
		VALUES (?,?,?,?,?,?,?)`,
		entry.RevisionID, string(entry.Module), entry.Added, entry.Removed,
		entry.Modified, entry.Conflicts, encodeTime(entry.At))
	if err != nil {
		return fmt.Errorf("append sync log: %w", err)
	}
	return nil
}

// List returns the sync history, most recent first, capped at limit rows
// (limit <= 0 means all).
func (l *SyncLog) List(ctx context.Context, limit int) ([]reconcile.SyncEntry, error) {
	q := `SELECT revision_id, module, added, removed, modified, conflicts, ts
		FROM sync_log ORDER BY id DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = l.db.QueryContext(ctx, q+` LIMIT ?`, limit)
	} else {
		rows, err = l.db.QueryContext(ctx, q)
	}
	if err != nil {
		return nil, fmt.Errorf("list sync log: %w", err)
	}
	defer rows.Close()

	var out []reconcile.SyncEntry
	for rows.Next() {
		var (
			e      reconcile.SyncEntry
			module string
			ts     string
		)
		if err := rows.Scan(&e.RevisionID, &module, &e.Added, &e.Removed,
			&e.Modified, &e.Conflicts, &ts); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		e.Module = domain.ConsumerModule(module)
		if e.At, err = decodeTime(ts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
