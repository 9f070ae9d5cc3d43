/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package revision

import (
	"context"
	"testing"
	"time"

	"slatedeck/internal/domain"
	"slatedeck/internal/notify"
)

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: map[string][]byte{}} }

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.data[key] = append([]byte(nil), value...)
	return nil
}

// fixedClock hands out strictly increasing timestamps so sentDate ordering
// is deterministic in tests.
func fixedClock() func() time.Time {
	t := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Minute)
		return t
	}
}

func newTestRegistry(t *testing.T) (*Registry, *memKV) {
	t.Helper()
	kv := newMemKV()
	r := Open(context.Background(), kv, notify.NewBus())
	r.now = fixedClock()
	return r, kv
}

func TestSendIsIdempotentPerRevisionID(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	if _, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-1", FileName: "draft.fdx"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-1", FileName: "draft.fdx"}); err != nil {
		t.Fatalf("re-send: %v", err)
	}
	if got := len(r.List()); got != 1 {
		t.Fatalf("expected exactly one registry entry after re-send, got %d", got)
	}
}

func TestResendResetsLoadFlags(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	if _, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := r.MarkLoaded(ctx, "rev-1", domain.ModuleShots); err != nil {
		t.Fatalf("mark loaded: %v", err)
	}
	if r.HasUpdatesAvailable(domain.ModuleShots) {
		t.Fatalf("no updates expected after load")
	}
	if _, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-1"}); err != nil {
		t.Fatalf("re-send: %v", err)
	}
	if !r.HasUpdatesAvailable(domain.ModuleShots) {
		t.Fatalf("re-send must make updates available again")
	}
	rev := r.List()[0]
	if rev.LoadedInShots || rev.ShotsLoadDate != nil {
		t.Fatalf("re-send must clear the shots load flag: %+v", rev)
	}
}

func TestHasUpdatesAvailableSemantics(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	if r.HasUpdatesAvailable(domain.ModuleScheduler) {
		t.Fatalf("empty registry has no updates")
	}
	if _, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-1"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !r.HasUpdatesAvailable(domain.ModuleScheduler) {
		t.Fatalf("never-loaded module with one revision should see updates")
	}
	if err := r.MarkLoaded(ctx, "rev-1", domain.ModuleScheduler); err != nil {
		t.Fatalf("mark loaded: %v", err)
	}
	if r.HasUpdatesAvailable(domain.ModuleScheduler) {
		t.Fatalf("everything loaded; no updates expected")
	}
	if _, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-2"}); err != nil {
		t.Fatalf("send rev-2: %v", err)
	}
	if !r.HasUpdatesAvailable(domain.ModuleScheduler) {
		t.Fatalf("newer unloaded revision should surface as update")
	}
	// Other modules never loaded anything.
	if !r.HasUpdatesAvailable(domain.ModuleBreakdowns) {
		t.Fatalf("breakdowns never loaded; should see updates")
	}
}

func TestLatestUnloadedIsMostRecentFirst(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	for _, id := range []string{"rev-1", "rev-2", "rev-3"} {
		if _, err := r.Send(ctx, domain.SentRevision{RevisionID: id}); err != nil {
			t.Fatalf("send %s: %v", id, err)
		}
	}
	rev, ok := r.LatestUnloaded(domain.ModuleShots)
	if !ok || rev.RevisionID != "rev-3" {
		t.Fatalf("latest unloaded = %+v, %v; want rev-3", rev, ok)
	}
	if err := r.MarkLoaded(ctx, "rev-3", domain.ModuleShots); err != nil {
		t.Fatalf("mark loaded: %v", err)
	}
	rev, ok = r.LatestUnloaded(domain.ModuleShots)
	if !ok || rev.RevisionID != "rev-2" {
		t.Fatalf("latest unloaded after load = %+v, %v; want rev-2", rev, ok)
	}
}

func TestColorAssignmentFollowsCycle(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()
	first, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-1"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if first.ColorName != "White" {
		t.Fatalf("first revision color = %q, want White", first.ColorName)
	}
	second, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-2"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if second.ColorName != "Blue" {
		t.Fatalf("second revision color = %q, want Blue", second.ColorName)
	}
}

func TestRegistryPersistsAndReloads(t *testing.T) {
	kv := newMemKV()
	ctx := context.Background()
	r := Open(ctx, kv, nil)
	r.now = fixedClock()
	if _, err := r.Send(ctx, domain.SentRevision{RevisionID: "rev-1", FileName: "blue.fdx", SceneCount: 12}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := r.MarkLoaded(ctx, "rev-1", domain.ModuleBreakdowns); err != nil {
		t.Fatalf("mark loaded: %v", err)
	}

	reloaded := Open(ctx, kv, nil)
	revs := reloaded.List()
	if len(revs) != 1 || revs[0].RevisionID != "rev-1" || revs[0].SceneCount != 12 {
		t.Fatalf("reloaded registry lost state: %+v", revs)
	}
	if !revs[0].LoadedInBreakdowns {
		t.Fatalf("load flag must survive reload: %+v", revs[0])
	}
	if reloaded.HasUpdatesAvailable(domain.ModuleBreakdowns) {
		t.Fatalf("latest-loaded map must survive reload")
	}
}

func TestCorruptPersistedDataYieldsEmptyRegistry(t *testing.T) {
	kv := newMemKV()
	kv.data["revisions/sent"] = []byte("{not json")
	kv.data["revisions/latest_loaded"] = []byte("also bad")
	r := Open(context.Background(), kv, nil)
	if got := len(r.List()); got != 0 {
		t.Fatalf("corrupt blob should yield empty registry, got %d entries", got)
	}
	if r.HasUpdatesAvailable(domain.ModuleShots) {
		t.Fatalf("empty registry has no updates")
	}
}

func TestMarkLoadedUnknownRevision(t *testing.T) {
	r, _ := newTestRegistry(t)
	if err := r.MarkLoaded(context.Background(), "ghost", domain.ModuleShots); err != ErrUnknownRevision {
		t.Fatalf("expected ErrUnknownRevision, got %v", err)
	}
}

func TestSendEmitsSignal(t *testing.T) {
	kv := newMemKV()
	bus := notify.NewBus()
	ch, cancel := bus.Subscribe(4)
	defer cancel()
	r := Open(context.Background(), kv, bus)
	r.now = fixedClock()
	if _, err := r.Send(context.Background(), domain.SentRevision{RevisionID: "rev-9"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	ev, ok := (<-ch).(notify.RevisionSent)
	if !ok || ev.RevisionID != "rev-9" {
		t.Fatalf("expected RevisionSent signal, got %#v", ev)
	}
}
