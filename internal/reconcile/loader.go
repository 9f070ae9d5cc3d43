/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package reconcile

import (
	"context"

	"slatedeck/internal/domain"
	"slatedeck/internal/paginate"
)

// DocumentSource resolves a revision id to a screenplay document.
type DocumentSource interface {
	LoadDocument(ctx context.Context, revisionID string) (domain.ScreenplayDocument, error)
}

// DocumentLoader adapts a DocumentSource into a StripLoader by running the
// pagination pass over the loaded document.
type DocumentLoader struct {
	Source DocumentSource
}

func (l DocumentLoader) LoadStrips(ctx context.Context, revisionID string) ([]domain.SceneStrip, error) {
	doc, err := l.Source.LoadDocument(ctx, revisionID)
	if err != nil {
		return nil, err
	}
	return paginate.Strips(&doc), nil
}
