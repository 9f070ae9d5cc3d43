/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package notify carries the sync engine's signals to interested observers
// (UI surfaces, other modules). Delivery is fire-and-forget, at most once
// per logical event: a slow subscriber loses events rather than blocking a
// merge. A nil *Bus is a valid no-op sink, so components can take a bus
// without nil checks.
package notify

import (
	"sync"

	"slatedeck/internal/domain"
)

// RevisionSent is emitted when a revision is published to the registry.
type RevisionSent struct {
	RevisionID string
}

// RevisionLoaded is emitted after a module successfully loads a revision.
type RevisionLoaded struct {
	Module     domain.ConsumerModule
	RevisionID string
}

// BreakdownSyncCompleted is emitted after a breakdown merge, with the
// number of scene records it created.
type BreakdownSyncCompleted struct {
	CreatedScenes int
}

// Event is one of the signal payload types above.
type Event any

// Bus fans events out to subscribers over buffered channels.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

func NewBus() *Bus { return &Bus{} }

// Subscribe registers a new observer. The returned cancel function closes
// the channel and stops delivery.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

// Emit delivers ev to every subscriber without blocking; full buffers drop.
func (b *Bus) Emit(ev Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber is behind; drop
		}
	}
}

// RevisionSent emits the "revision sent" signal.
func (b *Bus) RevisionSent(revisionID string) {
	b.Emit(RevisionSent{RevisionID: revisionID})
}

// RevisionLoaded emits the "revision loaded" signal.
func (b *Bus) RevisionLoaded(module domain.ConsumerModule, revisionID string) {
	b.Emit(RevisionLoaded{Module: module, RevisionID: revisionID})
}

// BreakdownSyncCompleted emits the "breakdown sync completed" signal.
func (b *Bus) BreakdownSyncCompleted(created int) {
	b.Emit(BreakdownSyncCompleted{CreatedScenes: created})
}
