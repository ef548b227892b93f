package services

import (
	"context"
	"testing"

	"competitor-watch/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleRoster = `
competitors:
  - name: "Johnson & Johnson"
    aliases: ["Johnson & Johnson", "Janssen", "Johnson"]
  - name: "UCB"
    aliases: [" UCB ", "UCB"]
molecules:
  - name: guselkumab
    synonyms: [guselkumab, Tremfya]
`

func TestParseRoster(t *testing.T) {
	r, err := ParseRoster([]byte(sampleRoster))
	require.NoError(t, err)
	require.Len(t, r.Competitors, 2)
	require.Len(t, r.Molecules, 1)

	assert.Equal(t, []string{"Johnson & Johnson", "Janssen", "Johnson"}, r.Competitors[0].AliasesOf())
	assert.Equal(t, []string{"UCB"}, r.Competitors[1].AliasesOf())
	assert.Equal(t, []string{"guselkumab", "Tremfya"}, r.Molecules[0].Synonyms)
}

func TestParseRoster_Errors(t *testing.T) {
	_, err := ParseRoster([]byte("competitors: [unclosed"))
	assert.ErrorContains(t, err, "invalid YAML")

	_, err = ParseRoster([]byte("competitors:\n  - aliases: [X]\n"))
	assert.ErrorContains(t, err, "competitor #1 has no name")

	_, err = ParseRoster([]byte("molecules:\n  - name: \"  \"\n"))
	assert.ErrorContains(t, err, "molecule #1 has no name")
}

func TestRedundantAliases(t *testing.T) {
	r, err := ParseRoster([]byte(sampleRoster))
	require.NoError(t, err)

	got := r.RedundantAliases()
	require.Len(t, got, 1)
	assert.Equal(t, RedundantAlias{Competitor: "Johnson & Johnson", Alias: "Johnson & Johnson", CoveredBy: "Johnson"}, got[0])
}

func TestLoadRoster_Shipped(t *testing.T) {
	r, err := LoadRoster("../config/roster.yaml")
	require.NoError(t, err)
	assert.NotEmpty(t, r.Competitors)
	assert.NotEmpty(t, r.Molecules)

	byName := map[string]RosterCompetitor{}
	for _, c := range r.Competitors {
		byName[c.Name] = c
	}
	assert.Contains(t, byName["Johnson & Johnson"].AliasesOf(), "Janssen")
	assert.Contains(t, byName, "UCB")
}

func TestLoadRoster_Missing(t *testing.T) {
	_, err := LoadRoster("does-not-exist.yaml")
	assert.ErrorContains(t, err, "roster:")
}

func TestSeedRoster_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := ParseRoster([]byte(sampleRoster))
	require.NoError(t, err)

	require.NoError(t, SeedRoster(ctx, env.Store, r, zap.NewNop()))
	require.NoError(t, SeedRoster(ctx, env.Store, r, zap.NewNop()))

	assert.EqualValues(t, 2, env.count(t, &models.Competitor{}))
	assert.EqualValues(t, 4, env.count(t, &models.CompetitorAlias{}))
	assert.EqualValues(t, 1, env.count(t, &models.Molecule{}))

	var mol models.Molecule
	require.NoError(t, env.DB.Where("name = ?", "guselkumab").Take(&mol).Error)
	assert.Equal(t, "guselkumab|Tremfya", mol.Synonyms)

	lookup, err := env.Store.LoadAliases(ctx)
	require.NoError(t, err)
	assert.Len(t, lookup, 4)
}
