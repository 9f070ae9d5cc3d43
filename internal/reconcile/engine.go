/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package reconcile merges an incoming script revision's scene strips into a
// consumer module's existing scene records. Scenes are joined by scene
// number; locally edited records keep their content and surface as
// conflicts, while page position always follows the incoming script. One
// merge runs as one record-store transaction, so concurrent merges against
// the same store serialize on the transaction and never observe partial
// state.
package reconcile

import (
	"context"
	"log/slog"
	"time"

	"slatedeck/internal/domain"
	applog "slatedeck/internal/log"
	"slatedeck/internal/notify"
)

// RecordStore opens merge transactions against a module's scene records.
type RecordStore interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is one merge transaction. Either Commit or Rollback must be called;
// Rollback after Commit is a no-op.
type Tx interface {
	Scenes(ctx context.Context, module domain.ConsumerModule) ([]domain.SceneRecord, error)
	Insert(ctx context.Context, rec domain.SceneRecord) error
	Update(ctx context.Context, rec domain.SceneRecord) error
	Commit() error
	Rollback() error
}

// StripLoader resolves a revision id to its ordered scene strips. It must
// return ErrRevisionNotFound (possibly wrapped) when the revision's backing
// document does not exist.
type StripLoader interface {
	LoadStrips(ctx context.Context, revisionID string) ([]domain.SceneStrip, error)
}

// Marker is the slice of the revision registry the engine needs: it marks a
// revision loaded only after the merge transaction committed.
type Marker interface {
	MarkLoaded(ctx context.Context, revisionID string, module domain.ConsumerModule) error
	LatestUnloaded(module domain.ConsumerModule) (domain.SentRevision, bool)
}

// SyncEntry is one line of the persisted sync history.
type SyncEntry struct {
	RevisionID string
	Module     domain.ConsumerModule
	Added      int
	Removed    int
	Modified   int
	Conflicts  int
	At         time.Time
}

// History receives one SyncEntry per successful merge. Append failures are
// logged, not surfaced; history is advisory.
type History interface {
	AppendSync(ctx context.Context, entry SyncEntry) error
}

// Engine wires loader, store, and registry into the load operation. History
// and Bus may be nil.
type Engine struct {
	Store    RecordStore
	Loader   StripLoader
	Registry Marker
	Bus      *notify.Bus
	History  History

	log *slog.Logger
	now func() time.Time
}

func NewEngine(store RecordStore, loader StripLoader, registry Marker, bus *notify.Bus) *Engine {
	return &Engine{
		Store:    store,
		Loader:   loader,
		Registry: registry,
		Bus:      bus,
		log:      applog.WithComponent("reconcile"),
		now:      time.Now,
	}
}

// Load merges revisionID into module's scene records and, on success, marks
// the revision loaded. A SaveError or ErrRevisionNotFound leaves the load
// flag untouched.
func (e *Engine) Load(ctx context.Context, revisionID string, module domain.ConsumerModule) (domain.MergeResult, error) {
	strips, err := e.Loader.LoadStrips(ctx, revisionID)
	if err != nil {
		return domain.MergeResult{}, err
	}

	tx, err := e.Store.Begin(ctx)
	if err != nil {
		return domain.MergeResult{}, &SaveError{Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := tx.Scenes(ctx, module)
	if err != nil {
		return domain.MergeResult{}, &SaveError{Err: err}
	}

	plan := e.plan(module, strips, existing)
	for _, rec := range plan.inserts {
		if err := tx.Insert(ctx, rec); err != nil {
			return domain.MergeResult{}, &SaveError{Err: err}
		}
	}
	for _, rec := range plan.updates {
		if err := tx.Update(ctx, rec); err != nil {
			return domain.MergeResult{}, &SaveError{Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.MergeResult{}, &SaveError{Err: err}
	}
	committed = true

	if err := e.Registry.MarkLoaded(ctx, revisionID, module); err != nil {
		return plan.result, err
	}
	e.log.Info("revision merged",
		slog.String("revision", revisionID),
		slog.String("module", string(module)),
		slog.Int("added", len(plan.result.ScenesAdded)),
		slog.Int("removed", len(plan.result.ScenesRemoved)),
		slog.Int("modified", len(plan.result.ScenesModified)),
		slog.Int("conflicts", len(plan.result.Conflicts)))
	if module == domain.ModuleBreakdowns {
		e.Bus.BreakdownSyncCompleted(len(plan.result.ScenesAdded))
	}
	if e.History != nil {
		entry := SyncEntry{
			RevisionID: revisionID,
			Module:     module,
			Added:      len(plan.result.ScenesAdded),
			Removed:    len(plan.result.ScenesRemoved),
			Modified:   len(plan.result.ScenesModified),
			Conflicts:  len(plan.result.Conflicts),
			At:         e.now(),
		}
		if herr := e.History.AppendSync(ctx, entry); herr != nil {
			e.log.Warn("sync history append failed", slog.Any("err", herr))
		}
	}
	return plan.result, nil
}

// LoadLatest merges the most recent revision module has not loaded yet.
func (e *Engine) LoadLatest(ctx context.Context, module domain.ConsumerModule) (string, domain.MergeResult, error) {
	rev, ok := e.Registry.LatestUnloaded(module)
	if !ok {
		return "", domain.MergeResult{}, ErrNoPendingRevision
	}
	res, err := e.Load(ctx, rev.RevisionID, module)
	return rev.RevisionID, res, err
}

type mergePlan struct {
	result  domain.MergeResult
	inserts []domain.SceneRecord
	updates []domain.SceneRecord
}

// plan computes the full merge against a snapshot of the existing records.
// Additions and removals are decided before any record is mutated, so a
// scene renumbered in the incoming script shows up as one removal plus one
// addition rather than a modification.
func (e *Engine) plan(module domain.ConsumerModule, strips []domain.SceneStrip, existing []domain.SceneRecord) mergePlan {
	now := e.now()
	var p mergePlan

	existingByNumber := map[string][]*domain.SceneRecord{}
	for i := range existing {
		rec := &existing[i]
		if rec.Number == "" {
			continue
		}
		if len(existingByNumber[rec.Number]) == 1 {
			e.log.Warn("duplicate scene number in store; first record wins",
				slog.String("number", rec.Number), slog.String("module", string(module)))
		}
		existingByNumber[rec.Number] = append(existingByNumber[rec.Number], rec)
	}

	incoming := map[string]domain.SceneStrip{}
	var incomingOrder []string
	for _, s := range strips {
		if s.SceneNumber == "" {
			continue
		}
		if _, dup := incoming[s.SceneNumber]; dup {
			e.log.Warn("duplicate scene number in incoming script; first strip wins",
				slog.String("number", s.SceneNumber))
			continue
		}
		incoming[s.SceneNumber] = s
		incomingOrder = append(incomingOrder, s.SceneNumber)
	}

	dirty := map[*domain.SceneRecord]struct{}{}

	// Additions.
	for _, num := range incomingOrder {
		if _, ok := existingByNumber[num]; ok {
			continue
		}
		s := incoming[num]
		rec := domain.SceneRecord{
			ID:             s.ID,
			Module:         module,
			Number:         s.SceneNumber,
			SceneSlug:      s.Slugline,
			LocationType:   s.IntExt,
			ScriptLocation: s.Location,
			TimeOfDay:      s.DayNight,
			SortIndex:      s.Index,
			DisplayOrder:   s.Index,
			PageNumber:     s.StartPage,
			PageEighths:    s.PageEighths,
			ImportedAt:     now,
			UpdatedAt:      now,
			Flags:          domain.ProvNew,
		}
		p.inserts = append(p.inserts, rec)
		p.result.ScenesAdded = append(p.result.ScenesAdded, rec.ID)
	}

	// Soft removals. Every record in a vanished group is flagged; the flag
	// is OR'd so earlier facets survive, and the record itself stays in the
	// store.
	for i := range existing {
		rec := &existing[i]
		if rec.Number == "" {
			continue
		}
		if _, ok := incoming[rec.Number]; ok {
			continue
		}
		rec.Flags |= domain.ProvRemoved
		rec.UpdatedAt = now
		dirty[rec] = struct{}{}
		p.result.ScenesRemoved = append(p.result.ScenesRemoved, rec.ID)
	}

	// Modifications with conflict detection. Only the first record of a
	// duplicate-number group receives incoming content; page fields follow
	// the incoming script unconditionally.
	for _, num := range incomingOrder {
		group, ok := existingByNumber[num]
		if !ok {
			continue
		}
		s := incoming[num]
		rec := group[0]
		switch {
		case rec.HasLocalEdits():
			p.result.Conflicts = append(p.result.Conflicts, domain.MergeConflict{
				SceneID:        rec.ID,
				SceneNumber:    rec.Number,
				LocalChange:    "Local edits exist",
				IncomingChange: "Script content updated",
			})
			p.result.PreservedLocalEdits++
		case rec.SceneSlug != s.Slugline || rec.LocationType != s.IntExt ||
			rec.ScriptLocation != s.Location || rec.TimeOfDay != s.DayNight:
			rec.SceneSlug = s.Slugline
			rec.LocationType = s.IntExt
			rec.ScriptLocation = s.Location
			rec.TimeOfDay = s.DayNight
			rec.UpdatedAt = now
			rec.Flags |= domain.ProvModified
			dirty[rec] = struct{}{}
			p.result.ScenesModified = append(p.result.ScenesModified, rec.ID)
		default:
			p.result.Unchanged++
		}
		if rec.PageNumber != s.StartPage || rec.PageEighths != s.PageEighths {
			rec.PageNumber = s.StartPage
			rec.PageEighths = s.PageEighths
			dirty[rec] = struct{}{}
		}
	}

	// Reorder. The position map is built from document order over all
	// strips, so unnumbered scenes still occupy positions; every record
	// with a matching number follows the incoming order, conflicted or not.
	position := map[string]int{}
	for _, s := range strips {
		if s.SceneNumber == "" {
			continue
		}
		if _, ok := position[s.SceneNumber]; !ok {
			position[s.SceneNumber] = s.Index
		}
	}
	for i := range existing {
		rec := &existing[i]
		pos, ok := position[rec.Number]
		if !ok {
			continue
		}
		if rec.SortIndex != pos || rec.DisplayOrder != pos {
			rec.SortIndex = pos
			rec.DisplayOrder = pos
			dirty[rec] = struct{}{}
		}
	}

	for i := range existing {
		rec := &existing[i]
		if _, ok := dirty[rec]; ok {
			p.updates = append(p.updates, *rec)
		}
	}
	return p
}
