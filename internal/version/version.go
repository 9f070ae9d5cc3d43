/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version carries the application version, overridable at link time
// via -ldflags "-X slatedeck/internal/version.Version=... -X slatedeck/internal/version.Commit=...".
package version

var (
	// Version is the semantic version of the build.
	Version = "0.1.0"
	// Commit is the short VCS revision, if known.
	Commit = ""
)

// String returns the human-readable version, including the commit when set.
func String() string {
	if Commit != "" {
		return Version + "+" + Commit
	}
	return Version
}
