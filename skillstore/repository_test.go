package skillstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/skillcore/config"
	"github.com/agentflow/skillcore/skillstore"
	"github.com/agentflow/skillcore/smcerr"
)

func newTestRepository(t *testing.T) *skillstore.Repository {
	t.Helper()
	dir := t.TempDir()
	repo, err := skillstore.Open(skillstore.Config{
		StorageDir: dir,
		Dialect:    config.DialectSQLite,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestAddSkillAndGetSkillRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	id, err := repo.AddSkill(ctx, skillstore.AddSkillParams{
		Name:      "parse_json",
		Content:   "# Parse JSON\n\nSteps…",
		SkillType: skillstore.SkillTypeBasic,
		Tags:      []string{"json"},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)

	rec, err := repo.GetSkill(ctx, "parse_json")
	require.NoError(t, err)
	assert.Equal(t, "parse_json", rec.Name)
	assert.Equal(t, "# Parse JSON\n\nSteps…", rec.Content)
	assert.Equal(t, []string{"json"}, rec.Tags)
	assert.Equal(t, 1, rec.Version)
}

func TestAddSkillDuplicateName(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "s", Content: "v1", SkillType: skillstore.SkillTypeBasic})
	require.NoError(t, err)

	_, err = repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "s", Content: "v1-again", SkillType: skillstore.SkillTypeBasic})
	require.Error(t, err)
	assert.Equal(t, smcerr.CodeDuplicateName, smcerr.GetCode(err))
}

func TestAddSkillUnknownDependency(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AddSkill(ctx, skillstore.AddSkillParams{
		Name: "b", Content: "v1", SkillType: skillstore.SkillTypeBasic,
		Dependencies: []string{"missing"},
	})
	require.Error(t, err)
	assert.Equal(t, smcerr.CodeUnknownDependency, smcerr.GetCode(err))
}

func TestAddSkillInvalidType(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "x", Content: "v1", SkillType: "bogus"})
	require.Error(t, err)
	assert.Equal(t, smcerr.CodeInvalidType, smcerr.GetCode(err))
}

func TestUpdateSkillVersionsMonotonic(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "s", Content: "v1", SkillType: skillstore.SkillTypeBasic})
	require.NoError(t, err)

	v, err := repo.UpdateSkill(ctx, "s", "v2", "fix")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	rec, err := repo.GetSkill(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)

	history, err := repo.GetHistory("s", 0)
	require.NoError(t, err)
	assert.Empty(t, history) // execution history, not version history

	_, err = repo.UpdateSkill(ctx, "does-not-exist", "v2", "fix")
	require.Error(t, err)
	assert.Equal(t, smcerr.CodeUnknownSkill, smcerr.GetCode(err))
}

func TestDeleteSkillIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "s", Content: "v1", SkillType: skillstore.SkillTypeBasic})
	require.NoError(t, err)

	deleted, err := repo.DeleteSkill(ctx, "s")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.DeleteSkill(ctx, "s")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = repo.GetSkill(ctx, "s")
	require.Error(t, err)
	assert.Equal(t, smcerr.CodeUnknownSkill, smcerr.GetCode(err))
}

func TestDeleteSkillRemovesDependencyEdges(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "a", Content: "v1", SkillType: skillstore.SkillTypeBasic})
	require.NoError(t, err)
	_, err = repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "b", Content: "v1", SkillType: skillstore.SkillTypeBasic, Dependencies: []string{"a"}})
	require.NoError(t, err)

	_, err = repo.DeleteSkill(ctx, "a")
	require.NoError(t, err)

	rec, err := repo.GetSkill(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, rec.Dependencies)
}

func TestRecordExecutionCountersAndEMA(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "x", Content: "v1", SkillType: skillstore.SkillTypeBasic})
	require.NoError(t, err)

	ms := func(v float64) *float64 { return &v }
	var stats *skillstore.Stats
	for _, e := range []struct {
		success bool
		elapsed float64
	}{
		{true, 10}, {false, 20}, {true, 30}, {true, 40},
	} {
		stats, err = repo.RecordExecution(ctx, "x", e.success, ms(e.elapsed), nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 4, stats.UsageCount)
	assert.Equal(t, 3, stats.SuccessCount)
	assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)

	// avg after 10,20,30,40 with alpha=0.2, seeded by the first sample:
	// a1=10; a2=0.2*20+0.8*10=12; a3=0.2*30+0.8*12=15.6; a4=0.2*40+0.8*15.6=20.48
	assert.InDelta(t, 20.48, stats.AvgExecutionMs, 1e-9)

	history, err := repo.GetHistory("x", 0)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestListSkillsEmptyStoreNeverErrors(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	records, err := repo.ListSkills(ctx, skillstore.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestListSkillsFilterByTypeAndTags(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "a", Content: "v1", SkillType: skillstore.SkillTypeBasic, Tags: []string{"json"}})
	require.NoError(t, err)
	_, err = repo.AddSkill(ctx, skillstore.AddSkillParams{Name: "b", Content: "v1", SkillType: skillstore.SkillTypeComposite, Tags: []string{"json", "io"}})
	require.NoError(t, err)

	basics, err := repo.ListSkills(ctx, skillstore.ListFilter{SkillType: skillstore.SkillTypeBasic})
	require.NoError(t, err)
	require.Len(t, basics, 1)
	assert.Equal(t, "a", basics[0].Name)

	withIO, err := repo.ListSkills(ctx, skillstore.ListFilter{Tags: []string{"io"}})
	require.NoError(t, err)
	require.Len(t, withIO, 1)
	assert.Equal(t, "b", withIO[0].Name)
}
