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

package gamedb

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// txtKeyPattern matches the strict TXT_KEY_* token shape. Per the Open
// Question in spec.md §9, non-TXT_KEY_ uppercase tokens are never
// localized — the original source had conflicting behavior here, and the
// spec names strict matching as canonical.
var txtKeyPattern = regexp.MustCompile(`TXT_KEY_[A-Z_]+`)

// Localize resolves a single text key to its localized string for the
// gateway's active language. A missing key returns the key unchanged,
// per §3's Localization catalog invariant.
func (g *Gateway) Localize(ctx context.Context, key string) (string, error) {
	texts, err := g.localizeBatch(ctx, []string{key})
	if err != nil {
		return key, err
	}
	return texts[key], nil
}

// localizeBatch resolves every key in one query, filling the cache.
func (g *Gateway) localizeBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))

	g.mu.RLock()
	var missing []string
	for _, k := range keys {
		if cached, ok := g.locCache[k]; ok {
			result[k] = cached
		} else {
			missing = append(missing, k)
		}
	}
	g.mu.RUnlock()

	if len(missing) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(missing))
	args := make([]any, 0, len(missing)+1)
	args = append(args, g.language)
	for i, k := range missing {
		placeholders[i] = "?"
		args = append(args, k)
	}

	query := fmt.Sprintf(
		`SELECT Tag, Text FROM Language_%s WHERE Tag IN (%s)`,
		sanitizeLanguageTable(g.language), strings.Join(placeholders, ","),
	)

	rows, err := g.loc.QueryContext(ctx, query, args[1:]...)
	found := make(map[string]string, len(missing))
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var tag, text string
			if scanErr := rows.Scan(&tag, &text); scanErr == nil {
				found[tag] = text
			}
		}
	}

	g.mu.Lock()
	for _, k := range missing {
		text, ok := found[k]
		if !ok {
			text = k // fall back to the key itself, per the catalog invariant
		}
		g.locCache[k] = text
		result[k] = text
	}
	g.mu.Unlock()

	return result, err
}

func sanitizeLanguageTable(language string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '_'
	}, language)
}

// LocalizeRecursive walks any JSON-like value (the output of json.Unmarshal
// into `any`: map[string]any, []any, string, numeric, bool, nil) and
// replaces every string that matches a TXT_KEY_* token with its localized
// text, preserving container shape and key order per §4.L1's invariant.
//
// Strings are scanned for embedded tokens (not just exact-match whole
// strings), since rules-DB text frequently embeds a key inside a longer
// value (e.g. tooltip templates).
func (g *Gateway) LocalizeRecursive(ctx context.Context, value any) (any, error) {
	keys := collectTokens(value, nil)
	if len(keys) == 0 {
		return value, nil
	}

	texts, err := g.localizeBatch(ctx, keys)
	if err != nil {
		// Per §4.L1 failure semantics: the recursive localizer falls back
		// to the original keys and proceeds rather than failing the call.
		texts = make(map[string]string, len(keys))
		for _, k := range keys {
			texts[k] = k
		}
	}

	return substituteTokens(value, texts), nil
}

func collectTokens(value any, into []string) []string {
	switch v := value.(type) {
	case string:
		for _, m := range txtKeyPattern.FindAllString(v, -1) {
			into = append(into, m)
		}
	case map[string]any:
		for _, k := range sortedKeys(v) {
			into = collectTokens(v[k], into)
		}
	case []any:
		for _, item := range v {
			into = collectTokens(item, into)
		}
	}
	return into
}

func substituteTokens(value any, texts map[string]string) any {
	switch v := value.(type) {
	case string:
		return txtKeyPattern.ReplaceAllStringFunc(v, func(tok string) string {
			if text, ok := texts[tok]; ok {
				return text
			}
			return tok
		})
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = substituteTokens(val, texts)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = substituteTokens(val, texts)
		}
		return out
	default:
		return v
	}
}

// sortedKeys gives collectTokens a deterministic traversal order; Go map
// iteration order is randomized and would otherwise make the batched
// localization query non-deterministic across runs (§8 determinism spirit).
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
