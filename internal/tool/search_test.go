package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_TieredMatching(t *testing.T) {
	c := candidate{Type: "TECH_AGRICULTURE", Name: "Agriculture"}

	assert.Equal(t, tierExactType, classify("TECH_AGRICULTURE", c))
	assert.Equal(t, tierExactName, classify("agriculture", c))
	assert.Equal(t, tierSubstring, classify("agri", c))
	assert.Equal(t, tierNone, classify("pottery", c))
}

func TestClassify_FuzzyMatchWithinOneEdit(t *testing.T) {
	c := candidate{Type: "BUILDING_BARRACKS", Name: "Barracks"}
	assert.Equal(t, tierFuzzy, classify("baracks", c))
	assert.Equal(t, tierNone, classify("xyz", c))
}

func TestSearch_OrdersByTierThenOriginalIndex(t *testing.T) {
	candidates := []candidate{
		{Type: "TECH_POTTERY", Name: "Pottery"},
		{Type: "TECH_AGRICULTURE", Name: "Agriculture"},
		{Type: "TECH_AGRICULTURE_2", Name: "Agriculture II"},
	}

	matches := search("agriculture", candidates, 0)
	assert.Equal(t, []int{1, 2}, matches, "exact name match ranks before substring match")
}

func TestSearch_RespectsLimit(t *testing.T) {
	candidates := []candidate{
		{Type: "A", Name: "Apple"},
		{Type: "B", Name: "Applesauce"},
		{Type: "C", Name: "Application"},
	}
	matches := search("appl", candidates, 2)
	assert.Len(t, matches, 2)
}
