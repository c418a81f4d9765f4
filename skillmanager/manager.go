package skillmanager

import (
	"context"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/agentflow/skillcore/composer"
	"github.com/agentflow/skillcore/config"
	"github.com/agentflow/skillcore/skillstore"
	"github.com/agentflow/skillcore/smcerr"
	"github.com/agentflow/skillcore/vectorindex"
)

// Manager is the single entry point into the skills management core. It
// owns the Repository and the VectorIndex, instantiates the Composer on
// demand, and enforces cross-component invariants.
type Manager struct {
	cfg      *config.Config
	repo     *skillstore.Repository
	index    *vectorindex.Index
	logger   *zap.Logger
	autoSync bool

	composerOnce sync.Once
	composer     *composer.Composer
}

// New opens (or creates) a Manager over the given configuration. Each
// distinct storage_dir yields an independent Manager with independent
// Repository and VectorIndex handles; two Managers must never share a
// storage_dir within the same process.
func New(cfg *config.Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "skillmanager"))

	repo, err := skillstore.Open(skillstore.Config{
		StorageDir: cfg.StorageDir,
		Dialect:    cfg.Dialect,
		DSN:        cfg.DSN,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	idx := vectorindex.New(vectorindex.Config{
		Dim:         cfg.EmbeddingDim,
		MaxElements: cfg.MaxElements,
		HNSW: vectorindex.HNSWConfig{
			M:              cfg.M,
			EfConstruction: cfg.EfConstruction,
			EfSearch:       cfg.EfSearch,
			MaxLevel:       vectorindex.DefaultHNSWConfig().MaxLevel,
			Ml:             vectorindex.DefaultHNSWConfig().Ml,
		},
		IndexPath:   filepath.Join(cfg.StorageDir, "index", "skills.index"),
		MappingPath: filepath.Join(cfg.StorageDir, "index", "skills_mapping"),
		Logger:      logger,
	})
	if err := idx.Load(); err != nil {
		logger.Warn("failed to load existing vector index, starting empty", zap.Error(err))
	}

	return &Manager{cfg: cfg, repo: repo, index: idx, logger: logger, autoSync: cfg.AutoSync}, nil
}

// Close releases the Repository's underlying connection.
func (m *Manager) Close() error {
	return m.repo.Close()
}

func (m *Manager) getComposer() *composer.Composer {
	m.composerOnce.Do(func() {
		m.composer = composer.New(m.repo, m.index, m.logger)
	})
	return m.composer
}

// AddSkill creates a skill atomically in the Repository, then — if
// auto_sync is enabled — upserts it into the VectorIndex before returning.
// A VectorIndex failure is logged but does not fail the call; a subsequent
// RebuildIndex repairs the divergence.
func (m *Manager) AddSkill(ctx context.Context, p skillstore.AddSkillParams) (uint, error) {
	id, err := m.repo.AddSkill(ctx, p)
	if err != nil {
		return 0, err
	}

	if m.autoSync {
		entry := vectorindex.SkillText{Name: p.Name, SkillType: string(p.SkillType), Text: p.Name + "\n" + p.Description + "\n" + p.Content}
		if err := m.index.Add(ctx, entry); err != nil {
			m.logger.Warn("vector sync failed after add_skill", zap.String("name", p.Name), zap.Error(err))
		}
	}
	return id, nil
}

// UpdateSkill records a new version and re-upserts the vector entry under
// the same synchronization policy as AddSkill.
func (m *Manager) UpdateSkill(ctx context.Context, name, newContent, changeDescription string) (int, error) {
	version, err := m.repo.UpdateSkill(ctx, name, newContent, changeDescription)
	if err != nil {
		return 0, err
	}

	if m.autoSync {
		rec, err := m.repo.GetSkill(ctx, name)
		if err != nil {
			m.logger.Warn("failed to re-hydrate skill for vector sync", zap.String("name", name), zap.Error(err))
			return version, nil
		}
		entry := vectorindex.SkillText{Name: name, SkillType: string(rec.SkillType), Text: name + "\n" + rec.Description + "\n" + newContent}
		if err := m.index.Update(ctx, entry); err != nil {
			m.logger.Warn("vector sync failed after update_skill", zap.String("name", name), zap.Error(err))
		}
	}
	return version, nil
}

// DeleteSkill removes a skill and its dependent rows, then removes its
// vector entry when auto_sync is enabled.
func (m *Manager) DeleteSkill(ctx context.Context, name string) (bool, error) {
	deleted, err := m.repo.DeleteSkill(ctx, name)
	if err != nil {
		return false, err
	}
	if deleted && m.autoSync {
		m.index.Remove(name)
	}
	return deleted, nil
}

// GetSkill returns the hydrated record for name.
func (m *Manager) GetSkill(ctx context.Context, name string) (*skillstore.Record, error) {
	return m.repo.GetSkill(ctx, name)
}

// ListSkills returns hydrated records matching the optional filter.
func (m *Manager) ListSkills(ctx context.Context, filter skillstore.ListFilter) ([]*skillstore.Record, error) {
	return m.repo.ListSkills(ctx, filter)
}

// SearchResult pairs a hydrated skill with its vector match score.
type SearchResult struct {
	Skill *skillstore.Record
	Score float64
}

// SearchSkills queries the VectorIndex and hydrates hits from the
// Repository, dropping any hit that is no longer present in the store.
func (m *Manager) SearchSkills(ctx context.Context, query string, k int, skillTypeFilter skillstore.SkillType) ([]SearchResult, error) {
	if k <= 0 {
		return nil, nil
	}
	hits, err := m.index.Query(ctx, query, k, string(skillTypeFilter))
	if err != nil {
		return nil, err
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		rec, err := m.repo.GetSkill(ctx, h.Name)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{Skill: rec, Score: h.Score})
	}
	return results, nil
}

// RecordExecution updates a skill's usage/success counters and appends a
// diagnostic history line.
func (m *Manager) RecordExecution(ctx context.Context, name string, success bool, elapsedMs *float64, execCtx any) (*skillstore.Stats, error) {
	return m.repo.RecordExecution(ctx, name, success, elapsedMs, execCtx)
}

// GetSkillStats returns get_skill_stats-style totals for a single skill.
func (m *Manager) GetSkillStats(ctx context.Context, name string) (*skillstore.Stats, error) {
	return m.repo.GetSkillStats(ctx, name)
}

// GetHistory reads the tail of a skill's execution log, defaulting the
// limit from configuration when limit is zero.
func (m *Manager) GetHistory(name string, limit int) ([]skillstore.ExecutionRecord, error) {
	if limit == 0 {
		limit = m.cfg.HistoryTailDefault
	}
	return m.repo.GetHistory(name, limit)
}

// Sync is the explicit catch-up path when auto_sync is disabled for a bulk
// import: it upserts every skill currently in the Repository into the
// VectorIndex without discarding the index first (unlike RebuildIndex).
func (m *Manager) Sync(ctx context.Context) error {
	records, err := m.repo.AllNames(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		entry := embedTextFor(rec)
		if err := m.index.Add(ctx, entry); err != nil && smcerr.GetCode(err) != smcerr.CodeVectorUnavailable {
			return err
		}
	}
	return nil
}

// RebuildIndex discards the current VectorIndex and reconstructs it from
// scratch using current Repository contents. This is the canonical catch-up
// path after a period of auto_sync=false bulk writes.
func (m *Manager) RebuildIndex(ctx context.Context) error {
	records, err := m.repo.AllNames(ctx)
	if err != nil {
		return err
	}
	entries := make([]vectorindex.SkillText, 0, len(records))
	for _, rec := range records {
		entries = append(entries, embedTextFor(rec))
	}
	if err := m.index.Rebuild(ctx, entries); err != nil {
		return err
	}
	if err := m.index.Save(); err != nil {
		m.logger.Warn("failed to persist rebuilt vector index", zap.Error(err))
	}
	return nil
}

func embedTextFor(rec *skillstore.Record) vectorindex.SkillText {
	return vectorindex.SkillText{
		Name:      rec.Name,
		SkillType: string(rec.SkillType),
		Text:      rec.Name + "\n" + rec.Description + "\n" + rec.Content,
	}
}

// ComposeForTask delegates to the Composer, instantiated lazily on first use.
func (m *Manager) ComposeForTask(ctx context.Context, task string, maxSkills int) ([]composer.PlanEntry, []string, error) {
	return m.getComposer().ComposeForTask(ctx, task, maxSkills)
}

// ValidateComposition delegates to the Composer's plan validator.
func (m *Manager) ValidateComposition(entries []composer.PlanEntry, warnings []string) composer.ValidationResult {
	return composer.ValidateComposition(entries, warnings)
}

// AnalyzeCoverage delegates to the Composer's coverage analysis.
func (m *Manager) AnalyzeCoverage(ctx context.Context, task string) (composer.Coverage, error) {
	return m.getComposer().AnalyzeCoverage(ctx, task)
}

// SuggestCompositions delegates to the Composer's multi-strategy suggestion.
func (m *Manager) SuggestCompositions(ctx context.Context, task string, n int) ([]composer.Suggestion, error) {
	return m.getComposer().SuggestCompositions(ctx, task, n)
}

// HierarchicalSearch delegates to the Composer's per-tier partitioned search.
func (m *Manager) HierarchicalSearch(ctx context.Context, query string, perLevel int) (composer.HierarchicalResult, error) {
	return m.getComposer().HierarchicalSearch(ctx, query, perLevel)
}
