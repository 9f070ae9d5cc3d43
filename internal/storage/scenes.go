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
	"time"

	"slatedeck/internal/domain"
	"slatedeck/internal/reconcile"
)

// SceneStore exposes the scene_records table as the reconciliation engine's
// record store. One merge maps to one SQLite transaction.
type SceneStore struct {
	db *sql.DB
}

func NewSceneStore(s *Store) *SceneStore {
	return &SceneStore{db: s.DB}
}

func (s *SceneStore) Begin(ctx context.Context) (reconcile.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin scene tx: %w", err)
	}
	return &sceneTx{tx: tx}, nil
}

// ListScenes returns module's records in display order, outside any merge.
func (s *SceneStore) ListScenes(ctx context.Context, module domain.ConsumerModule) ([]domain.SceneRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectScenes, string(module))
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()
	return scanScenes(rows)
}

// MarkLocalEdit stamps a record's last_local_edit, which shields its content
// fields from the next merge.
func (s *SceneStore) MarkLocalEdit(ctx context.Context, id string, ts time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scene_records SET last_local_edit=?, updated_at=? WHERE id=?`,
		encodeTime(ts), encodeTime(ts), id)
	if err != nil {
		return fmt.Errorf("mark local edit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark local edit: no record with id %s", id)
	}
	return nil
}

const selectScenes = `SELECT id, module, number, scene_slug, location_type, script_location,
	time_of_day, sort_index, display_order, page_number, page_eighths,
	imported_at, last_local_edit, updated_at, flags
	FROM scene_records WHERE module=? ORDER BY sort_index, number`

type sceneTx struct {
	tx *sql.Tx
}

func (t *sceneTx) Scenes(ctx context.Context, module domain.ConsumerModule) ([]domain.SceneRecord, error) {
	rows, err := t.tx.QueryContext(ctx, selectScenes, string(module))
	if err != nil {
		return nil, fmt.Errorf("fetch scenes: %w", err)
	}
	defer rows.Close()
	return scanScenes(rows)
}

func (t *sceneTx) Insert(ctx context.Context, rec domain.SceneRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO scene_records (id, module, number, scene_slug, location_type,
			script_location, time_of_day, sort_index, display_order, page_number,
			page_eighths, imported_at, last_local_edit, updated_at, flags)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, string(rec.Module), rec.Number, rec.SceneSlug, rec.LocationType,
		rec.ScriptLocation, rec.TimeOfDay, rec.SortIndex, rec.DisplayOrder,
		rec.PageNumber, rec.PageEighths, encodeTime(rec.ImportedAt),
		encodeTime(rec.LastLocalEdit), encodeTime(rec.UpdatedAt), int(rec.Flags))
	if err != nil {
		return fmt.Errorf("insert scene %s: %w", rec.ID, err)
	}
	return nil
}

func (t *sceneTx) Update(ctx context.Context, rec domain.SceneRecord) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE scene_records SET module=?, number=?, scene_slug=?, location_type=?,
			script_location=?, time_of_day=?, sort_index=?, display_order=?,
			page_number=?, page_eighths=?, imported_at=?, last_local_edit=?,
			updated_at=?, flags=?
		WHERE id=?`,
		string(rec.Module), rec.Number, rec.SceneSlug, rec.LocationType,
		rec.ScriptLocation, rec.TimeOfDay, rec.SortIndex, rec.DisplayOrder,
		rec.PageNumber, rec.PageEighths, encodeTime(rec.ImportedAt),
		encodeTime(rec.LastLocalEdit), encodeTime(rec.UpdatedAt), int(rec.Flags),
		rec.ID)
	if err != nil {
		return fmt.Errorf("update scene %s: %w", rec.ID, err)
	}
	return nil
}

func (t *sceneTx) Commit() error   { return t.tx.Commit() }
func (t *sceneTx) Rollback() error { return t.tx.Rollback() }

func scanScenes(rows *sql.Rows) ([]domain.SceneRecord, error) {
	var out []domain.SceneRecord
	for rows.Next() {
		var (
			rec                          domain.SceneRecord
			module                       string
			imported, localEdit, updated string
			flags                        int
		)
		if err := rows.Scan(&rec.ID, &module, &rec.Number, &rec.SceneSlug,
			&rec.LocationType, &rec.ScriptLocation, &rec.TimeOfDay,
			&rec.SortIndex, &rec.DisplayOrder, &rec.PageNumber, &rec.PageEighths,
			&imported, &localEdit, &updated, &flags); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		rec.Module = domain.ConsumerModule(module)
		rec.Flags = domain.Provenance(flags)
		var err error
		if rec.ImportedAt, err = decodeTime(imported); err != nil {
			return nil, err
		}
		if rec.LastLocalEdit, err = decodeTime(localEdit); err != nil {
			return nil, err
		}
		if rec.UpdatedAt, err = decodeTime(updated); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// encodeTime stores timestamps as RFC3339Nano text; the zero time becomes
// the empty string so zero survives a roundtrip.
func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t, nil
}
