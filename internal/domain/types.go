/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the core data model for script revision tracking and
// reconciliation: screenplay elements and documents, derived scene strips,
// parsed FDX scenes, sent revisions, and the per-module scene records that
// the reconciliation engine merges into.

import "time"

// ElementType classifies one paragraph-level unit of screenplay text.
type ElementType int

const (
	ElementGeneral ElementType = iota
	ElementSceneHeading
	ElementAction
	ElementCharacter
	ElementDialogue
	ElementParenthetical
	ElementTransition
	ElementShot
	ElementTitlePage
)

// String returns the lowercase name used in logs and serialized records.
func (t ElementType) String() string {
	switch t {
	case ElementSceneHeading:
		return "sceneHeading"
	case ElementAction:
		return "action"
	case ElementCharacter:
		return "character"
	case ElementDialogue:
		return "dialogue"
	case ElementParenthetical:
		return "parenthetical"
	case ElementTransition:
		return "transition"
	case ElementShot:
		return "shot"
	case ElementTitlePage:
		return "titlePage"
	default:
		return "general"
	}
}

// ScriptElement is one paragraph of a screenplay. SceneNumber is only
// meaningful on scene heading elements.
type ScriptElement struct {
	ID          string      `json:"id"`
	Type        ElementType `json:"type"`
	Text        string      `json:"text"`
	SceneNumber string      `json:"sceneNumber,omitempty"`
	IsOmitted   bool        `json:"isOmitted,omitempty"`
}

// ScreenplayDocument is an ordered sequence of script elements. Element
// order is the canonical reading order; scene boundaries are defined exactly
// by elements of type ElementSceneHeading. Scene strips are derived from the
// element sequence on demand (see internal/paginate) and never stored.
type ScreenplayDocument struct {
	Elements []ScriptElement `json:"elements"`
}

// SceneStrip is a derived, read-only summary of one scene's boundaries.
// Index is the 1-based ordinal of the scene within the document.
type SceneStrip struct {
	ID          string `json:"id"`
	Index       int    `json:"index"`
	Slugline    string `json:"slugline"`
	Location    string `json:"location"`
	IntExt      string `json:"intExt"`
	DayNight    string `json:"dayNight"`
	StartPage   int    `json:"startPage"`
	EndPage     int    `json:"endPage"`
	SceneNumber string `json:"sceneNumber,omitempty"`
	IsOmitted   bool   `json:"isOmitted,omitempty"`
	RawHeading  string `json:"rawHeading"`
	PageEighths int    `json:"pageEighths"`
}

// FDXScene is the output unit of the FDX parser. PageLengthEighths of 0
// means the document did not specify a length for the scene.
type FDXScene struct {
	Number            string
	Heading           string
	PageLengthEighths int
}

// ConsumerModule names a module that independently consumes sent revisions.
type ConsumerModule string

const (
	ModuleScheduler  ConsumerModule = "scheduler"
	ModuleShots      ConsumerModule = "shots"
	ModuleBreakdowns ConsumerModule = "breakdowns"
)

// Modules lists every consumer module in canonical order.
func Modules() []ConsumerModule {
	return []ConsumerModule{ModuleScheduler, ModuleShots, ModuleBreakdowns}
}

// ParseModule resolves a user-supplied module name.
func ParseModule(s string) (ConsumerModule, bool) {
	switch ConsumerModule(s) {
	case ModuleScheduler, ModuleShots, ModuleBreakdowns:
		return ConsumerModule(s), true
	}
	return "", false
}

// SentRevision records one published script revision and its per-module
// load state. At most one live SentRevision exists per RevisionID; a re-send
// resets the load flags instead of creating a duplicate entry.
type SentRevision struct {
	ID         string    `json:"id"`
	RevisionID string    `json:"revisionId"`
	ColorName  string    `json:"colorName"`
	FileName   string    `json:"fileName"`
	SentDate   time.Time `json:"sentDate"`
	SceneCount int       `json:"sceneCount"`
	PageCount  int       `json:"pageCount"`

	LoadedInScheduler  bool       `json:"loadedInScheduler"`
	SchedulerLoadDate  *time.Time `json:"schedulerLoadDate,omitempty"`
	LoadedInShots      bool       `json:"loadedInShots"`
	ShotsLoadDate      *time.Time `json:"shotsLoadDate,omitempty"`
	LoadedInBreakdowns bool       `json:"loadedInBreakdowns"`
	BreakdownsLoadDate *time.Time `json:"breakdownsLoadDate,omitempty"`
}

// LoadedIn reports whether the revision has been loaded into module.
func (r *SentRevision) LoadedIn(module ConsumerModule) bool {
	switch module {
	case ModuleScheduler:
		return r.LoadedInScheduler
	case ModuleShots:
		return r.LoadedInShots
	case ModuleBreakdowns:
		return r.LoadedInBreakdowns
	}
	return false
}

// LoadDate returns the module's load timestamp, or nil when not loaded.
func (r *SentRevision) LoadDate(module ConsumerModule) *time.Time {
	switch module {
	case ModuleScheduler:
		return r.SchedulerLoadDate
	case ModuleShots:
		return r.ShotsLoadDate
	case ModuleBreakdowns:
		return r.BreakdownsLoadDate
	}
	return nil
}

// SetLoaded marks the revision loaded for module at ts.
func (r *SentRevision) SetLoaded(module ConsumerModule, ts time.Time) {
	t := ts
	switch module {
	case ModuleScheduler:
		r.LoadedInScheduler = true
		r.SchedulerLoadDate = &t
	case ModuleShots:
		r.LoadedInShots = true
		r.ShotsLoadDate = &t
	case ModuleBreakdowns:
		r.LoadedInBreakdowns = true
		r.BreakdownsLoadDate = &t
	}
}

// ResetLoads clears every module load flag and timestamp. Used when the
// same revision is sent again, which invalidates prior loads.
func (r *SentRevision) ResetLoads() {
	r.LoadedInScheduler = false
	r.SchedulerLoadDate = nil
	r.LoadedInShots = false
	r.ShotsLoadDate = nil
	r.LoadedInBreakdowns = false
	r.BreakdownsLoadDate = nil
}

// Provenance is a small bitset of per-record sync facets.
type Provenance uint8

const (
	ProvNew Provenance = 1 << iota
	ProvModified
	ProvRemoved
)

func (p Provenance) IsNew() bool      { return p&ProvNew != 0 }
func (p Provenance) IsModified() bool { return p&ProvModified != 0 }
func (p Provenance) IsRemoved() bool  { return p&ProvRemoved != 0 }

// SceneRecord is one consumer module's view of a scene. Number is the join
// key used by reconciliation; content fields are subject to overwrite, page
// fields always follow the incoming script, and the two timestamps gate
// conflict detection.
type SceneRecord struct {
	ID             string         `json:"id"`
	Module         ConsumerModule `json:"module"`
	Number         string         `json:"number"`
	SceneSlug      string         `json:"sceneSlug"`
	LocationType   string         `json:"locationType"`
	ScriptLocation string         `json:"scriptLocation"`
	TimeOfDay      string         `json:"timeOfDay"`
	SortIndex      int            `json:"sortIndex"`
	DisplayOrder   int            `json:"displayOrder"`
	PageNumber     int            `json:"pageNumber"`
	PageEighths    int            `json:"pageEighths"`
	ImportedAt     time.Time      `json:"importedAt"`
	LastLocalEdit  time.Time      `json:"lastLocalEdit"`
	UpdatedAt      time.Time      `json:"updatedAt"`
	Flags          Provenance     `json:"flags"`
}

// HasLocalEdits reports whether the record carries local edits that have
// not been reconciled: the last local edit is strictly newer than the last
// import.
func (r *SceneRecord) HasLocalEdits() bool {
	return r.LastLocalEdit.After(r.ImportedAt)
}

// ConflictResolution is reserved for a future manual-resolution surface.
// The automatic engine never sets it; conflicts always resolve in favor of
// local edits.
type ConflictResolution string

const (
	ResolveKeepLocal   ConflictResolution = "keepLocal"
	ResolveUseIncoming ConflictResolution = "useIncoming"
	ResolveKeepBoth    ConflictResolution = "keepBoth"
)

// MergeConflict describes one scene where local edits blocked an incoming
// content change.
type MergeConflict struct {
	SceneID        string             `json:"sceneId"`
	SceneNumber    string             `json:"sceneNumber"`
	LocalChange    string             `json:"localChange"`
	IncomingChange string             `json:"incomingChange"`
	Resolution     ConflictResolution `json:"resolution,omitempty"`
}

// MergeResult summarizes one reconciliation pass. The slices hold scene
// record identities. It is returned synchronously and never persisted.
type MergeResult struct {
	ScenesAdded         []string        `json:"scenesAdded"`
	ScenesRemoved       []string        `json:"scenesRemoved"`
	ScenesModified      []string        `json:"scenesModified"`
	Conflicts           []MergeConflict `json:"conflicts"`
	PreservedLocalEdits int             `json:"preservedLocalEdits"`
	Unchanged           int             `json:"unchanged"`
}
