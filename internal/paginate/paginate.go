/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package paginate derives scene strips from screenplay documents using
// fixed layout constants. All functions are stateless between calls and
// safe for concurrent use on independent inputs.
package paginate

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"slatedeck/internal/domain"
)

const (
	// CharsPerLine is the fixed character budget of one screenplay line.
	CharsPerLine = 60
	// LinesPerPage is the fixed line budget of one screenplay page.
	LinesPerPage = 55
)

// DecomposeHeading splits a raw scene heading into its INT/EXT prefix,
// location, and day/night parts. The same decomposition feeds both strip
// derivation and reconciliation's scene-creation path.
func DecomposeHeading(raw string) (intExt, location, dayNight string) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	// Longest recognized prefixes first so INT./EXT. wins over INT.
	prefixes := []string{"INT./EXT.", "INT/EXT.", "INT.", "EXT.", "I/E."}
	rest := upper
	for _, p := range prefixes {
		if strings.HasPrefix(upper, p) {
			intExt = p
			rest = strings.TrimSpace(upper[len(p):])
			break
		}
	}
	parts := strings.Split(rest, " - ")
	if len(parts) >= 2 {
		dayNight = strings.TrimSpace(parts[len(parts)-1])
		location = strings.TrimSpace(strings.Join(parts[:len(parts)-1], " - "))
	} else {
		location = strings.TrimSpace(rest)
	}
	return intExt, location, dayNight
}

// lineCount estimates the rendered line contribution of one element: the
// wrapped text lines plus a type-dependent spacing bonus.
func lineCount(el domain.ScriptElement) int {
	lines := len(el.Text)/CharsPerLine + 1
	if lines < 1 {
		lines = 1
	}
	switch el.Type {
	case domain.ElementSceneHeading:
		lines += 2
	case domain.ElementCharacter:
		lines++
	case domain.ElementDialogue, domain.ElementParenthetical:
		// dialogue blocks pack tight
	default:
		lines++
	}
	return lines
}

// pageNumber maps a cumulative line count onto a 1-based page number.
func pageNumber(lines int) int {
	p := lines/LinesPerPage + 1
	if p < 1 {
		p = 1
	}
	return p
}

// eighths converts a scene's line count to page-eighths, rounded, with a
// floor of one eighth for any scene that has at least one line.
func eighths(sceneLines int) int {
	if sceneLines <= 0 {
		return 0
	}
	e := int(math.Round(float64(sceneLines) * 8.0 / float64(LinesPerPage)))
	if e < 1 {
		e = 1
	}
	return e
}

// Strips computes scene strips for the document: boundaries at every scene
// heading element, page positions from the running line count, and lengths
// in page-eighths. The result is recomputed in full on every call.
func Strips(doc *domain.ScreenplayDocument) []domain.SceneStrip {
	if doc == nil || len(doc.Elements) == 0 {
		return nil
	}
	var (
		strips     []domain.SceneStrip
		cumLines   int
		sceneStart int
		open       bool
		current    domain.SceneStrip
	)
	finalize := func() {
		if !open {
			return
		}
		current.EndPage = pageNumber(cumLines)
		current.PageEighths = eighths(cumLines - sceneStart)
		strips = append(strips, current)
		open = false
	}
	for _, el := range doc.Elements {
		if el.Type == domain.ElementSceneHeading {
			finalize()
			intExt, location, dayNight := DecomposeHeading(el.Text)
			current = domain.SceneStrip{
				ID:          el.ID,
				Index:       len(strips) + 1,
				Slugline:    location,
				Location:    location,
				IntExt:      intExt,
				DayNight:    dayNight,
				StartPage:   pageNumber(cumLines),
				SceneNumber: el.SceneNumber,
				IsOmitted:   el.IsOmitted,
				RawHeading:  strings.TrimSpace(el.Text),
			}
			sceneStart = cumLines
			open = true
		}
		cumLines += lineCount(el)
	}
	finalize()
	return strips
}

// StripsFromScenes derives strips directly from FDX parser output, using
// the explicit page-eighths lengths carried by the document where present.
// Scenes without a stated length are assumed to run one eighth.
func StripsFromScenes(scenes []domain.FDXScene) []domain.SceneStrip {
	strips := make([]domain.SceneStrip, 0, len(scenes))
	cumEighths := 0
	for i, sc := range scenes {
		length := sc.PageLengthEighths
		if length < 1 {
			length = 1
		}
		intExt, location, dayNight := DecomposeHeading(sc.Heading)
		strips = append(strips, domain.SceneStrip{
			ID:          uuid.NewString(),
			Index:       i + 1,
			Slugline:    location,
			Location:    location,
			IntExt:      intExt,
			DayNight:    dayNight,
			StartPage:   cumEighths/8 + 1,
			EndPage:     (cumEighths+length-1)/8 + 1,
			SceneNumber: sc.Number,
			RawHeading:  strings.TrimSpace(sc.Heading),
			PageEighths: length,
		})
		cumEighths += length
	}
	return strips
}
