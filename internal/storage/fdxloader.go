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
	"fmt"
	"os"

	"slatedeck/internal/domain"
	"slatedeck/internal/fdx"
	"slatedeck/internal/paginate"
	"slatedeck/internal/reconcile"
)

// ScriptLoader resolves revision ids against the project's scripts/ folder,
// where each sent revision's FDX document is filed under its revision id.
type ScriptLoader struct {
	Handle *ProjectHandle
}

func (l ScriptLoader) LoadStrips(_ context.Context, revisionID string) ([]domain.SceneStrip, error) {
	path := l.Handle.ScriptPath(revisionID)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("revision %s at %s: %w", revisionID, path, reconcile.ErrRevisionNotFound)
	}
	return paginate.StripsFromScenes(fdx.ParseFile(path)), nil
}
