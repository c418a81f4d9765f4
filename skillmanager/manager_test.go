package skillmanager_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/skillcore/config"
	"github.com/agentflow/skillcore/skillmanager"
	"github.com/agentflow/skillcore/skillstore"
	"github.com/agentflow/skillcore/smcerr"
)

func newTestManager(t *testing.T) *skillmanager.Manager {
	t.Helper()
	cfg := config.Default()
	cfg.StorageDir = t.TempDir()
	cfg.EmbeddingDim = 32

	m, err := skillmanager.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// TestCreateSearchDelete covers scenario 1: a skill added with auto_sync on
// is immediately findable by SearchSkills and disappears from search results
// once deleted.
func TestCreateSearchDelete(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddSkill(ctx, skillstore.AddSkillParams{
		Name:        "parse-csv",
		Content:     "Parses CSV files into row structs.",
		SkillType:   skillstore.SkillTypeBasic,
		Description: "CSV parsing helper",
		Tags:        []string{"io", "csv"},
	})
	require.NoError(t, err)

	results, err := m.SearchSkills(ctx, "parse CSV rows", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "parse-csv", results[0].Skill.Name)

	deleted, err := m.DeleteSkill(ctx, "parse-csv")
	require.NoError(t, err)
	require.True(t, deleted)

	results, err = m.SearchSkills(ctx, "parse CSV rows", 5, "")
	require.NoError(t, err)
	require.Empty(t, results)

	_, err = m.GetSkill(ctx, "parse-csv")
	require.Equal(t, smcerr.CodeUnknownSkill, smcerr.GetCode(err))
}

// TestVersioning covers scenario 2: updating a skill's content advances its
// version monotonically and the latest content is what GetSkill returns.
func TestVersioning(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddSkill(ctx, skillstore.AddSkillParams{
		Name:      "format-date",
		Content:   "v1 body",
		SkillType: skillstore.SkillTypeBasic,
	})
	require.NoError(t, err)

	v2, err := m.UpdateSkill(ctx, "format-date", "v2 body", "fix timezone handling")
	require.NoError(t, err)
	require.Equal(t, 2, v2)

	v3, err := m.UpdateSkill(ctx, "format-date", "v3 body", "add locale support")
	require.NoError(t, err)
	require.Equal(t, 3, v3)

	rec, err := m.GetSkill(ctx, "format-date")
	require.NoError(t, err)
	require.Equal(t, 3, rec.Version)
	require.Equal(t, "v3 body", rec.Content)
}

// TestDependencyComposition covers scenario 3: compose_for_task orders a
// skill's dependencies strictly before it.
func TestDependencyComposition(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddSkill(ctx, skillstore.AddSkillParams{
		Name: "a", Content: "fetch raw data", SkillType: skillstore.SkillTypeBasic,
	})
	require.NoError(t, err)
	_, err = m.AddSkill(ctx, skillstore.AddSkillParams{
		Name: "b", Content: "normalize fetched data", SkillType: skillstore.SkillTypeComposite, Dependencies: []string{"a"},
	})
	require.NoError(t, err)
	_, err = m.AddSkill(ctx, skillstore.AddSkillParams{
		Name: "c", Content: "summarize normalized data", SkillType: skillstore.SkillTypeMeta, Dependencies: []string{"b"},
	})
	require.NoError(t, err)

	entries, warnings, err := m.ComposeForTask(ctx, "fetch normalize and summarize data", 10)
	require.NoError(t, err)
	require.Empty(t, warnings)

	step := make(map[string]int, len(entries))
	for _, e := range entries {
		step[e.Skill.Name] = e.StepIndex
	}
	require.Less(t, step["a"], step["b"])
	require.Less(t, step["b"], step["c"])

	result := m.ValidateComposition(entries, warnings)
	require.True(t, result.Valid)
}

// TestCoverageRecommendation covers scenario 4: an empty store reports an
// insufficient recommendation, and adding matching skills raises coverage.
func TestCoverageRecommendation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	cov, err := m.AnalyzeCoverage(ctx, "translate documents between languages")
	require.NoError(t, err)
	require.Equal(t, "insufficient: existing skills do not adequately cover this task", cov.Recommendation)

	_, err = m.AddSkill(ctx, skillstore.AddSkillParams{
		Name:        "translate-text",
		Content:     "translate documents between languages using a dictionary",
		SkillType:   skillstore.SkillTypeBasic,
		Description: "translate documents between languages",
	})
	require.NoError(t, err)

	cov, err = m.AnalyzeCoverage(ctx, "translate documents between languages")
	require.NoError(t, err)
	require.Greater(t, cov.OverallCoverage, 0.0)
}

// TestExecutionStats covers scenario 5: RecordExecution updates counters and
// GetSkillStats/GetSystemStats reflect them.
func TestExecutionStats(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddSkill(ctx, skillstore.AddSkillParams{
		Name: "send-email", Content: "sends an email", SkillType: skillstore.SkillTypeBasic,
	})
	require.NoError(t, err)

	elapsed := 50.0
	_, err = m.RecordExecution(ctx, "send-email", true, &elapsed, nil)
	require.NoError(t, err)
	elapsed2 := 100.0
	stats, err := m.RecordExecution(ctx, "send-email", false, &elapsed2, map[string]string{"reason": "timeout"})
	require.NoError(t, err)

	require.Equal(t, 2, stats.UsageCount)
	require.Equal(t, 1, stats.SuccessCount)
	require.InDelta(t, 0.5, stats.SuccessRate, 1e-9)

	history, err := m.GetHistory("send-email", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.NotEmpty(t, history[0].ID)
	require.NotEqual(t, history[0].ID, history[1].ID)

	sys, err := m.GetSystemStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, sys.TotalUsage)
	require.Equal(t, 1, sys.TotalSuccess)
}

// TestAutoSyncDisabledRequiresExplicitSync: with auto_sync off, a newly
// added skill is invisible to search until Sync or RebuildIndex is called.
func TestAutoSyncDisabledRequiresExplicitSync(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.StorageDir = t.TempDir()
	cfg.EmbeddingDim = 32
	cfg.AutoSync = false

	m, err := skillmanager.New(cfg, nil)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.AddSkill(ctx, skillstore.AddSkillParams{
		Name: "compress-archive", Content: "compress files into an archive", SkillType: skillstore.SkillTypeBasic,
	})
	require.NoError(t, err)

	results, err := m.SearchSkills(ctx, "compress files into an archive", 5, "")
	require.NoError(t, err)
	require.Empty(t, results)

	require.NoError(t, m.Sync(ctx))

	results, err = m.SearchSkills(ctx, "compress files into an archive", 5, "")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "compress-archive", results[0].Skill.Name)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddSkill(ctx, skillstore.AddSkillParams{
		Name:        "hash-file",
		Content:     "computes a sha256 digest of a file",
		SkillType:   skillstore.SkillTypeBasic,
		Description: "file hashing helper",
		Tags:        []string{"crypto"},
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "hash-file.md")
	require.NoError(t, m.ExportSkill(ctx, "hash-file", path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "hash-file")

	_, err = m.DeleteSkill(ctx, "hash-file")
	require.NoError(t, err)

	id, err := m.ImportSkillFromFile(ctx, path)
	require.NoError(t, err)
	require.NotZero(t, id)

	rec, err := m.GetSkill(ctx, "hash-file")
	require.NoError(t, err)
	require.Equal(t, skillstore.SkillTypeBasic, rec.SkillType)
	require.Contains(t, rec.Content, "sha256")
}

// TestImportFallbackNameCollisionFailsWithDuplicateName: when a
// front-matter-less import derives its name from
// the filename stem and that name is already taken, the import must fail
// with DuplicateName rather than silently overwriting the existing skill.
func TestImportFallbackNameCollisionFailsWithDuplicateName(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	_, err := m.AddSkill(ctx, skillstore.AddSkillParams{
		Name: "notes", Content: "original content", SkillType: skillstore.SkillTypeBasic,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("no front matter here, just body text"), 0o644))

	_, err = m.ImportSkillFromFile(ctx, path)
	require.Equal(t, smcerr.CodeDuplicateName, smcerr.GetCode(err))
}
