package ranking

import (
	"testing"

	"placement-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(cs []models.Community) []int {
	out := make([]int, len(cs))
	for i, c := range cs {
		out[i] = c.CommunityID
	}
	return out
}

// ranked gives community i+1 the rank ranks[i] in one dimension.
func ranked(dimension string, ranks ...float64) []RankResult {
	out := make([]RankResult, len(ranks))
	for i, r := range ranks {
		out[i] = RankResult{Dimension: dimension, CommunityID: i + 1, Rank: r}
	}
	return out
}

func TestPrefilter_KeepsLowestMeans(t *testing.T) {
	cs := communities(6)
	results := Results{
		"a": ranked("a", 6, 5, 4, 3, 2, 1),
		"b": ranked("b", 5, 6, 3, 4, 1, 2),
	}

	shortlist := Prefilter(cs, results, 3)

	// means 5.5 5.5 3.5 3.5 1.5 1.5, returned in input order
	assert.Equal(t, []int{3, 5, 6}, ids(shortlist))
}

func TestPrefilter_TiesKeepInputOrder(t *testing.T) {
	cs := communities(4)
	results := Results{"a": ranked("a", 1.5, 1.5, 3.5, 3.5)}

	assert.Equal(t, []int{1, 2, 3}, ids(Prefilter(cs, results, 3)))
}

func TestPrefilter_SmallPoolIsCopied(t *testing.T) {
	cs := communities(4)

	shortlist := Prefilter(cs, Results{}, 10)
	require.Equal(t, []int{1, 2, 3, 4}, ids(shortlist))

	shortlist[0].CommunityID = 99
	assert.Equal(t, 1, cs[0].CommunityID)
}

func TestPrefilter_MissingDimensionsAreExcludedFromMean(t *testing.T) {
	cs := communities(3)
	results := Results{
		"a": ranked("a", 3, 2, 1),
		// community 1 only has "a"; a rank of 3 in "b" would otherwise pull it down
		"b": {{Dimension: "b", CommunityID: 2, Rank: 3}, {Dimension: "b", CommunityID: 3, Rank: 3}},
	}

	// means: 3, 2.5, 2
	assert.Equal(t, []int{2, 3}, ids(Prefilter(cs, results, 2)))
}

func TestPrefilter_UnrankedSortLast(t *testing.T) {
	cs := communities(4)
	results := Results{"a": {
		{Dimension: "a", CommunityID: 1, Rank: 3},
		{Dimension: "a", CommunityID: 3, Rank: 2},
		{Dimension: "a", CommunityID: 4, Rank: 1},
	}}

	assert.Equal(t, []int{1, 3, 4}, ids(Prefilter(cs, results, 3)))
}

func TestPrefilter_Idempotent(t *testing.T) {
	cs := communities(12)
	results := Results{
		"a": ranked("a", 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1),
		"b": ranked("b", 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12),
		"c": ranked("c", 1, 12, 2, 11, 3, 10, 4, 9, 5, 8, 6, 7),
	}

	once := Prefilter(cs, results, 10)
	twice := Prefilter(once, results, 10)

	require.Len(t, once, 10)
	assert.Equal(t, ids(once), ids(twice))
}

func TestPrefilter_ExactlyK(t *testing.T) {
	for _, n := range []int{11, 15, 40} {
		cs := communities(n)
		ranks := make([]float64, n)
		for i := range ranks {
			ranks[i] = float64(n - i)
		}

		shortlist := Prefilter(cs, Results{"a": ranked("a", ranks...)}, 10)

		require.Len(t, shortlist, 10)
		assert.Equal(t, n-9, shortlist[0].CommunityID)
		assert.Equal(t, n, shortlist[9].CommunityID)
	}
}
