/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package revision tracks which script revisions have been published and
// which consumer modules have loaded them. The registry is a dependency-
// injected service object, not a global: one instance per open project.
package revision

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"slatedeck/internal/domain"
	applog "slatedeck/internal/log"
	"slatedeck/internal/notify"
)

// KV is the durable key-value slot the registry persists into. Get reports
// ok=false for missing keys; callers treat corrupt values as missing.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

const (
	keySentRevisions = "revisions/sent"
	keyLatestLoaded  = "revisions/latest_loaded"
)

// ErrUnknownRevision is returned by MarkLoaded for a revision id that was
// never sent.
var ErrUnknownRevision = errors.New("revision not present in registry")

// Registry holds the sent-revision list (most recent first) and the latest
// loaded revision id per module. All mutations persist both JSON blobs
// before returning, so a crash never loses an acknowledged send or load.
type Registry struct {
	mu  sync.Mutex
	kv  KV
	bus *notify.Bus
	log *slog.Logger
	now func() time.Time

	revisions    []domain.SentRevision
	latestLoaded map[domain.ConsumerModule]string
}

// Open loads registry state from kv. Missing or corrupt blobs yield an
// empty registry rather than an error; the sync history is rebuildable by
// re-sending.
func Open(ctx context.Context, kv KV, bus *notify.Bus) *Registry {
	r := &Registry{
		kv:           kv,
		bus:          bus,
		log:          applog.WithComponent("revision"),
		now:          time.Now,
		latestLoaded: map[domain.ConsumerModule]string{},
	}
	if raw, ok, err := kv.Get(ctx, keySentRevisions); err == nil && ok {
		var revs []domain.SentRevision
		if uerr := json.Unmarshal(raw, &revs); uerr == nil {
			r.revisions = revs
		} else {
			r.log.Warn("discarding corrupt sent-revisions blob", slog.Any("err", uerr))
		}
	}
	if raw, ok, err := kv.Get(ctx, keyLatestLoaded); err == nil && ok {
		var latest map[domain.ConsumerModule]string
		if uerr := json.Unmarshal(raw, &latest); uerr == nil && latest != nil {
			r.latestLoaded = latest
		} else if uerr != nil {
			r.log.Warn("discarding corrupt latest-loaded blob", slog.Any("err", uerr))
		}
	}
	return r
}

// Send publishes a revision. Re-sending a known RevisionID resets every
// module's load flag (forcing a re-sync) instead of inserting a duplicate;
// a new RevisionID is prepended so the list stays most-recent-first.
func (r *Registry) Send(ctx context.Context, rev domain.SentRevision) (domain.SentRevision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := r.now()
	if idx := r.indexOf(rev.RevisionID); idx >= 0 {
		existing := &r.revisions[idx]
		existing.ResetLoads()
		existing.SentDate = sent
		if rev.FileName != "" {
			existing.FileName = rev.FileName
		}
		existing.SceneCount = rev.SceneCount
		existing.PageCount = rev.PageCount
		if err := r.persist(ctx); err != nil {
			return domain.SentRevision{}, err
		}
		r.log.Info("revision re-sent", slog.String("revision", rev.RevisionID),
			slog.String("color", existing.ColorName))
		r.bus.RevisionSent(rev.RevisionID)
		return *existing, nil
	}

	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	if rev.ColorName == "" {
		rev.ColorName = domain.ColorForRevision(len(r.revisions)).String()
	}
	rev.SentDate = sent
	rev.ResetLoads()
	r.revisions = append([]domain.SentRevision{rev}, r.revisions...)
	if err := r.persist(ctx); err != nil {
		return domain.SentRevision{}, err
	}
	r.log.Info("revision sent", slog.String("revision", rev.RevisionID),
		slog.String("color", rev.ColorName), slog.Int("scenes", rev.SceneCount))
	r.bus.RevisionSent(rev.RevisionID)
	return rev, nil
}

// HasUpdatesAvailable reports whether module has a revision left to load:
// true when nothing was ever loaded and at least one revision exists, or
// when an unloaded revision is strictly newer than the one most recently
// loaded into module.
func (r *Registry) HasUpdatesAvailable(module domain.ConsumerModule) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	// The comparison base is the most recently loaded revision whose load
	// flag is still set; a re-send clears flags, which drops the module
	// back to the never-loaded case.
	var (
		loadedSent time.Time
		anyLoaded  bool
		lastLoad   time.Time
	)
	for i := range r.revisions {
		rev := &r.revisions[i]
		if !rev.LoadedIn(module) {
			continue
		}
		if ld := rev.LoadDate(module); ld != nil && (!anyLoaded || ld.After(lastLoad)) {
			anyLoaded = true
			lastLoad = *ld
			loadedSent = rev.SentDate
		}
	}
	if !anyLoaded {
		return len(r.revisions) > 0
	}
	for i := range r.revisions {
		rev := &r.revisions[i]
		if !rev.LoadedIn(module) && rev.SentDate.After(loadedSent) {
			return true
		}
	}
	return false
}

// LatestUnloaded returns the most recent revision not yet loaded into
// module.
func (r *Registry) LatestUnloaded(module domain.ConsumerModule) (domain.SentRevision, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.revisions {
		if !r.revisions[i].LoadedIn(module) {
			return r.revisions[i], true
		}
	}
	return domain.SentRevision{}, false
}

// MarkLoaded records that module has loaded revisionID, with a fresh
// timestamp, and persists. Called by the reconciliation engine only after
// its merge transaction committed.
func (r *Registry) MarkLoaded(ctx context.Context, revisionID string, module domain.ConsumerModule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(revisionID)
	if idx < 0 {
		return ErrUnknownRevision
	}
	r.revisions[idx].SetLoaded(module, r.now())
	r.latestLoaded[module] = revisionID
	if err := r.persist(ctx); err != nil {
		return err
	}
	r.log.Info("revision loaded", slog.String("revision", revisionID),
		slog.String("module", string(module)))
	r.bus.RevisionLoaded(module, revisionID)
	return nil
}

// List returns a copy of the sent revisions, most recent first.
func (r *Registry) List() []domain.SentRevision {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SentRevision, len(r.revisions))
	copy(out, r.revisions)
	return out
}

func (r *Registry) indexOf(revisionID string) int {
	for i := range r.revisions {
		if r.revisions[i].RevisionID == revisionID {
			return i
		}
	}
	return -1
}

func (r *Registry) persist(ctx context.Context) error {
	revs, err := json.Marshal(r.revisions)
	if err != nil {
		return err
	}
	latest, err := json.Marshal(r.latestLoaded)
	if err != nil {
		return err
	}
	if err := r.kv.Set(ctx, keySentRevisions, revs); err != nil {
		return err
	}
	return r.kv.Set(ctx, keyLatestLoaded, latest)
}
