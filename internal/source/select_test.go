package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Magalhaes24/scout/internal/model"
)

func TestSelect_PrefersAffiliation(t *testing.T) {
	t.Parallel()

	candidates := []model.Candidate{
		{ProfileURL: "u1", DisplayName: "Lionel Messi", Labels: []string{"Newell's Old Boys"}, RawValue: "€1.00m"},
		{ProfileURL: "u2", DisplayName: "Lionel Messi", Labels: []string{"Inter Miami CF"}, RawValue: "€30.00m"},
	}

	best := Select("Lionel Messi", "Inter Miami", candidates)
	require.NotNil(t, best)
	assert.Equal(t, "u2", best.ProfileURL)
	assert.Equal(t, "Inter Miami CF", best.MatchedLabel)
	assert.Equal(t, 3*10+2*4+1, best.Composite())
}

func TestSelect_DropsZeroNameScore(t *testing.T) {
	t.Parallel()

	candidates := []model.Candidate{
		{ProfileURL: "u1", DisplayName: "Kevin De Bruyne", Labels: []string{"Inter Miami CF"}, RawValue: "€30.00m"},
	}
	assert.Nil(t, Select("Lionel Messi", "Inter Miami", candidates))
	assert.Nil(t, Select("Lionel Messi", "Inter Miami", nil))
}

func TestSelect_TieKeepsFirst(t *testing.T) {
	t.Parallel()

	candidates := []model.Candidate{
		{ProfileURL: "first", DisplayName: "Pedri", RawValue: "€80.00m"},
		{ProfileURL: "second", DisplayName: "Pedri", RawValue: "€90.00m"},
	}
	best := Select("Pedri", "", candidates)
	require.NotNil(t, best)
	assert.Equal(t, "first", best.ProfileURL)
}

func TestSelect_ClubOutweighsValue(t *testing.T) {
	t.Parallel()

	// 2*10 + 0*4 + 1 = 21 against 2*10 + 3*4 + 0 = 32.
	candidates := []model.Candidate{
		{ProfileURL: "substring", DisplayName: "Rodrigo Hernandez Cascante", RawValue: "€110.00m"},
		{ProfileURL: "club", DisplayName: "Rodrigo Hernandez Cascante Jr", Labels: []string{"Manchester City"}},
	}
	best := Select("Rodrigo Hernandez", "Manchester City", candidates)
	require.NotNil(t, best)
	assert.Equal(t, "club", best.ProfileURL)
	assert.Equal(t, 2, best.NameScore)
	assert.Equal(t, 3, best.AffiliationScore)
}

func TestScored_Beats(t *testing.T) {
	t.Parallel()

	a := Scored{NameScore: 1, AffiliationScore: 2} // 18
	b := Scored{NameScore: 1, AffiliationScore: 2, Candidate: model.Candidate{RawValue: "x"}}
	assert.True(t, b.beats(a))
	assert.False(t, a.beats(b))
	assert.False(t, a.beats(a))
}

func TestAnyLabeled(t *testing.T) {
	t.Parallel()

	candidates := []model.Candidate{
		{DisplayName: "Someone Else", Labels: []string{"Inter Miami CF"}},
		{DisplayName: "Lionel Messi"},
	}
	assert.False(t, anyLabeled("Lionel Messi", candidates))

	candidates[1].Labels = []string{"Inter Miami CF"}
	assert.True(t, anyLabeled("Lionel Messi", candidates))
}
