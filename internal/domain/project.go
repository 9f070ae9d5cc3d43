/*
 * Copyright (c) 2025 by the SlateDeck authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// Project represents a production project and its metadata. It serializes
// to a human-readable JSON manifest at the project root.
type Project struct {
	Name     string   `json:"name"`
	Metadata Metadata `json:"metadata,omitempty"`
	Modules  []string `json:"modules"`
}

// Metadata contains optional descriptive metadata for a production.
type Metadata struct {
	Production string `json:"production,omitempty"`
	Company    string `json:"company,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// DefaultModules returns the consumer module names enabled for a fresh
// project.
func DefaultModules() []string {
	ms := Modules()
	out := make([]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, string(m))
	}
	return out
}
