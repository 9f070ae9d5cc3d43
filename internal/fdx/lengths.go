/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fdx

import (
	"math"
	"strconv"
	"strings"
)

// parseEighths parses the length strings found on FDX scene attributes and
// SceneProperties elements into page-eighths. Accepted forms:
//
//	"3"      whole pages            -> 24
//	"3/8"    fraction               -> round(3*8/8) = 3
//	"2 3/8"  whole plus fraction    -> 19
//	"1.5"    decimal pages          -> 12
//
// Empty or unparseable strings report ok=false rather than zero, so a
// missing length is distinguishable from a zero-length scene.
func parseEighths(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// "whole frac" space-separated form
	if fields := strings.Fields(s); len(fields) == 2 {
		whole, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, false
		}
		frac, ok := parseFraction(fields[1])
		if !ok {
			return 0, false
		}
		return whole*8 + frac, true
	}
	if strings.Contains(s, "/") {
		return parseFraction(s)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n * 8, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(math.Round(f * 8)), true
	}
	return 0, false
}

// parseFraction converts "N/M" to the nearest whole eighth.
func parseFraction(s string) (int, bool) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, false
	}
	num, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	den, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || den == 0 {
		return 0, false
	}
	return int(math.Round(float64(num) * 8.0 / float64(den))), true
}
