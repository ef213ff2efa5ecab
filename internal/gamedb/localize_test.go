package gamedb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectAndSubstituteTokens_PreservesShape(t *testing.T) {
	value := map[string]any{
		"name": "TXT_KEY_UNIT_WARRIOR",
		"tags": []any{"TXT_KEY_TAG_MELEE", "plain"},
		"nested": map[string]any{
			"desc": "Prereq: TXT_KEY_TECH_BRONZE_WORKING and more",
		},
		"count": float64(3),
	}

	texts := map[string]string{
		"TXT_KEY_UNIT_WARRIOR":      "Warrior",
		"TXT_KEY_TAG_MELEE":         "Melee",
		"TXT_KEY_TECH_BRONZE_WORKING": "Bronze Working",
	}

	out := substituteTokens(value, texts)
	m := out.(map[string]any)

	assert.Equal(t, "Warrior", m["name"])
	tags := m["tags"].([]any)
	assert.Equal(t, "Melee", tags[0])
	assert.Equal(t, "plain", tags[1])
	nested := m["nested"].(map[string]any)
	assert.Equal(t, "Prereq: Bronze Working and more", nested["desc"])
	assert.Equal(t, float64(3), m["count"])
}

func TestSubstituteTokens_MissingKeyFallsBackToKey(t *testing.T) {
	out := substituteTokens("TXT_KEY_UNKNOWN_THING", map[string]string{})
	assert.Equal(t, "TXT_KEY_UNKNOWN_THING", out)
}

func TestCollectTokens_IgnoresNonTxtKeyUppercase(t *testing.T) {
	// Open question resolved: strict TXT_KEY_* matching only.
	tokens := collectTokens("SOME_OTHER_CONSTANT and TXT_KEY_REAL", nil)
	require.Len(t, tokens, 1)
	assert.Equal(t, "TXT_KEY_REAL", tokens[0])
}

func TestDeriveNameFromType(t *testing.T) {
	cases := map[string]string{
		"UNIT_WARRIOR":        "Warrior",
		"TECH_AGRICULTURE":    "Agriculture",
		"POLICY_ORGANIZED_RELIGION": "Organized Religion",
		"NOUNDERSCORE":        "Noundersc...", // placeholder, deleted below
	}
	delete(cases, "NOUNDERSCORE")

	for in, want := range cases {
		assert.Equal(t, want, deriveNameFromType(in), in)
	}

	assert.Equal(t, "Noprefixvalue", deriveNameFromType("NOPREFIXVALUE"))
}
