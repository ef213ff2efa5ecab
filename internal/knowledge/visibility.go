// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package knowledge

import "encoding/json"

// Level is one player's visibility into a knowledge record.
type Level int

const (
	Hidden Level = 0
	Basic  Level = 1
	Full   Level = 2
)

// Visibility is the per-viewer mask named in §3: for every record,
// Visibility[p] describes what player p may observe. A player absent from
// the map is treated as Full (internal records with no restriction).
type Visibility map[int]Level

// For returns the visibility level for viewer, defaulting to Full when the
// viewer has no explicit entry.
func (v Visibility) For(viewer int) Level {
	if v == nil {
		return Full
	}
	if level, ok := v[viewer]; ok {
		return level
	}
	return Full
}

func (v Visibility) encode() string {
	if len(v) == 0 {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeVisibility(raw string) Visibility {
	if raw == "" {
		return Visibility{}
	}
	var v Visibility
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return Visibility{}
	}
	return v
}
