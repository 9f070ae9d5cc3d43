/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "fmt"

// RevisionColor is the industry-standard color assigned to successive
// script revisions. The vocabulary cycles every 11 values.
type RevisionColor int

const (
	ColorWhite RevisionColor = iota
	ColorBlue
	ColorPink
	ColorYellow
	ColorGreen
	ColorGoldenrod
	ColorBuff
	ColorSalmon
	ColorCherry
	ColorTan
	ColorIvory

	revisionColorCount = 11
)

var revisionColorNames = [revisionColorCount]string{
	"White", "Blue", "Pink", "Yellow", "Green", "Goldenrod",
	"Buff", "Salmon", "Cherry", "Tan", "Ivory",
}

// ColorForRevision maps a 0-based revision number onto the color cycle.
func ColorForRevision(n int) RevisionColor {
	if n < 0 {
		n = -n
	}
	return RevisionColor(n % revisionColorCount)
}

// Next returns the color that follows c in the cycle, wrapping Ivory back
// to White.
func (c RevisionColor) Next() RevisionColor {
	return RevisionColor((int(c) + 1) % revisionColorCount)
}

func (c RevisionColor) String() string {
	if c < 0 || int(c) >= revisionColorCount {
		return revisionColorNames[0]
	}
	return revisionColorNames[c]
}

// EighthsString renders a page-eighths count in the conventional
// "W F/8" script-timing form, e.g. 19 -> "2 3/8".
func EighthsString(e int) string {
	if e <= 0 {
		return "0"
	}
	whole := e / 8
	frac := e % 8
	switch {
	case frac == 0:
		return fmt.Sprintf("%d", whole)
	case whole == 0:
		return fmt.Sprintf("%d/8", frac)
	default:
		return fmt.Sprintf("%d %d/8", whole, frac)
	}
}
