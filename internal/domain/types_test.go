/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"testing"
	"time"
)

func TestRevisionColorCycle(t *testing.T) {
	if ColorForRevision(0) != ColorWhite {
		t.Fatalf("revision 0 should be White, got %s", ColorForRevision(0))
	}
	if ColorForRevision(11) != ColorWhite {
		t.Fatalf("revision 11 should wrap to White, got %s", ColorForRevision(11))
	}
	if ColorForRevision(10) != ColorIvory {
		t.Fatalf("revision 10 should be Ivory, got %s", ColorForRevision(10))
	}
	if ColorIvory.Next() != ColorWhite {
		t.Fatalf("Ivory.Next() should be White, got %s", ColorIvory.Next())
	}
	if ColorWhite.Next() != ColorBlue {
		t.Fatalf("White.Next() should be Blue, got %s", ColorWhite.Next())
	}
}

func TestEighthsString(t *testing.T) {
	cases := []struct {
		in   int
		want string
	}{
		{0, "0"}, {3, "3/8"}, {8, "1"}, {19, "2 3/8"}, {24, "3"},
	}
	for _, c := range cases {
		if got := EighthsString(c.in); got != c.want {
			t.Fatalf("EighthsString(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestProvenanceFacets(t *testing.T) {
	var p Provenance
	if p.IsNew() || p.IsModified() || p.IsRemoved() {
		t.Fatalf("zero provenance should have no facets set")
	}
	p |= ProvNew
	p |= ProvRemoved
	if !p.IsNew() || !p.IsRemoved() {
		t.Fatalf("expected new+removed facets, got %b", p)
	}
	if p.IsModified() {
		t.Fatalf("modified facet should be untouched, got %b", p)
	}
}

func TestHasLocalEdits(t *testing.T) {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := SceneRecord{ImportedAt: t0, LastLocalEdit: t0}
	if rec.HasLocalEdits() {
		t.Fatalf("equal timestamps must not count as local edits")
	}
	rec.LastLocalEdit = t0.Add(time.Minute)
	if !rec.HasLocalEdits() {
		t.Fatalf("later local edit should count as local edits")
	}
}

func TestSentRevisionLoadState(t *testing.T) {
	r := SentRevision{RevisionID: "rev-1"}
	ts := time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC)
	r.SetLoaded(ModuleShots, ts)
	if !r.LoadedIn(ModuleShots) || r.ShotsLoadDate == nil || !r.ShotsLoadDate.Equal(ts) {
		t.Fatalf("shots load state not recorded: %+v", r)
	}
	if r.LoadedIn(ModuleScheduler) || r.LoadedIn(ModuleBreakdowns) {
		t.Fatalf("other modules should remain unloaded")
	}
	r.ResetLoads()
	if r.LoadedIn(ModuleShots) || r.ShotsLoadDate != nil {
		t.Fatalf("ResetLoads should clear flags and timestamps: %+v", r)
	}
}

func TestParseModule(t *testing.T) {
	if m, ok := ParseModule("shots"); !ok || m != ModuleShots {
		t.Fatalf("ParseModule(shots) = %v, %v", m, ok)
	}
	if _, ok := ParseModule("editorial"); ok {
		t.Fatalf("unknown module should not parse")
	}
}
