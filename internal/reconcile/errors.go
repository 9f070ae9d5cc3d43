/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reconcile

import (
	"errors"
	"fmt"
)

// ErrRevisionNotFound indicates the revision's backing document could not
// be located. Registry state is untouched when this occurs.
var ErrRevisionNotFound = errors.New("revision document not found")

// ErrNoPendingRevision is returned by LoadLatest when every sent revision
// has already been loaded into the module.
var ErrNoPendingRevision = errors.New("no pending revision to load")

// SaveError wraps a record-store failure during the merge transaction. The
// revision's load flag is not set when a SaveError occurs; nothing from the
// failed merge is visible to other readers.
type SaveError struct {
	Err error
}

func (e *SaveError) Error() string { return fmt.Sprintf("merge save failed: %v", e.Err) }

func (e *SaveError) Unwrap() error { return e.Err }
