package skillstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/agentflow/skillcore/config"
	"github.com/agentflow/skillcore/smcerr"
)

// executionEMAWeight is the α used by the exponential moving average over
// per-execution latency: new_avg = α·sample + (1-α)·old_avg.
const executionEMAWeight = 0.2

// Config configures a Repository instance.
type Config struct {
	// StorageDir is the directory the relational store and history logs
	// live under. Required when Dialect is config.DialectSQLite.
	StorageDir string
	Dialect    config.Dialect
	DSN        string
	Pool       PoolConfig
	Logger     *zap.Logger
}

// Repository is the sole owner of SMC's structured persistent state.
type Repository struct {
	db         *gorm.DB
	pool       *pool
	historyDir string
	logger     *zap.Logger

	// mu serializes writers; the Repository supports concurrent readers and
	// a single writer per process, matching the store's concurrency model.
	mu sync.Mutex
}

// Open opens (creating if necessary) the Repository's backing store and runs
// AutoMigrate to bring the schema up to date.
func Open(cfg Config) (*Repository, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "skillstore"))

	dialector, err := openDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, smcerr.New(smcerr.CodeIOFailure, "open skill store").WithCause(err)
	}

	if err := db.AutoMigrate(&Skill{}, &SkillVersion{}, &SkillDependency{}, &SkillTag{}, &SkillMetadata{}); err != nil {
		return nil, smcerr.New(smcerr.CodeIOFailure, "migrate skill store schema").WithCause(err)
	}

	poolCfg := cfg.Pool
	if poolCfg == (PoolConfig{}) {
		poolCfg = DefaultPoolConfig()
	}
	p, err := newPool(db, poolCfg, logger)
	if err != nil {
		return nil, smcerr.New(smcerr.CodeIOFailure, "initialize connection pool").WithCause(err)
	}

	historyDir := filepath.Join(cfg.StorageDir, "history")
	if cfg.StorageDir != "" {
		if err := os.MkdirAll(historyDir, 0o755); err != nil {
			return nil, smcerr.New(smcerr.CodeIOFailure, "create history directory").WithCause(err)
		}
	}

	logger.Info("skill store opened", zap.String("dialect", string(cfg.Dialect)))

	return &Repository{db: db, pool: p, historyDir: historyDir, logger: logger}, nil
}

func openDialector(cfg Config) (gorm.Dialector, error) {
	switch cfg.Dialect {
	case "", config.DialectSQLite:
		if cfg.StorageDir == "" {
			return nil, smcerr.New(smcerr.CodeIOFailure, "storage_dir is required for the sqlite dialect")
		}
		return sqlite.Open(filepath.Join(cfg.StorageDir, "skills.db")), nil
	case config.DialectPostgres:
		if cfg.DSN == "" {
			return nil, smcerr.New(smcerr.CodeIOFailure, "dsn is required for the postgres dialect")
		}
		return postgres.Open(cfg.DSN), nil
	case config.DialectMySQL:
		if cfg.DSN == "" {
			return nil, smcerr.New(smcerr.CodeIOFailure, "dsn is required for the mysql dialect")
		}
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, smcerr.Newf(smcerr.CodeIOFailure, "unknown dialect %q", cfg.Dialect)
	}
}

// Close releases the underlying database connection.
func (r *Repository) Close() error {
	return r.pool.Close()
}

// Ping verifies the store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// AddSkillParams bundles the arguments to AddSkill.
type AddSkillParams struct {
	Name         string
	Content      string
	SkillType    SkillType
	Description  string
	Tags         []string
	Dependencies []string
}

// AddSkill inserts a new Skill at version 1 along with its initial version
// snapshot, dependency edges, tags and an empty metadata row, all in one
// transaction.
func (r *Repository) AddSkill(ctx context.Context, p AddSkillParams) (uint, error) {
	if p.Name == "" {
		return 0, smcerr.New(smcerr.CodeInvalidType, "skill name must not be empty")
	}
	if !p.SkillType.Valid() {
		return 0, smcerr.Newf(smcerr.CodeInvalidType, "invalid skill_type %q", p.SkillType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var id uint
	err := r.pool.withTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var existing Skill
		err := tx.Where("name = ?", p.Name).First(&existing).Error
		if err == nil {
			return smcerr.Newf(smcerr.CodeDuplicateName, "skill %q already exists", p.Name)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		depIDs, err := resolveDependencyIDs(tx, p.Dependencies)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		skill := Skill{
			Name:        p.Name,
			SkillType:   p.SkillType,
			Description: p.Description,
			Content:     p.Content,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&skill).Error; err != nil {
			return smcerr.New(smcerr.CodeIntegrityViolation, "insert skill").WithCause(err)
		}
		id = skill.ID

		version := SkillVersion{
			SkillID:           skill.ID,
			Version:           1,
			Content:           p.Content,
			ChangeDescription: "Initial version",
			CreatedAt:         now,
		}
		if err := tx.Create(&version).Error; err != nil {
			return smcerr.New(smcerr.CodeIntegrityViolation, "insert initial version").WithCause(err)
		}

		for _, depID := range depIDs {
			edge := SkillDependency{SkillID: skill.ID, DependsOnSkillID: depID, Type: "required"}
			if err := tx.Create(&edge).Error; err != nil {
				return smcerr.New(smcerr.CodeIntegrityViolation, "insert dependency edge").WithCause(err)
			}
		}

		for _, tag := range dedupTags(p.Tags) {
			if err := tx.Create(&SkillTag{SkillID: skill.ID, Tag: tag}).Error; err != nil {
				return smcerr.New(smcerr.CodeIntegrityViolation, "insert tag").WithCause(err)
			}
		}

		if err := tx.Create(&SkillMetadata{SkillID: skill.ID}).Error; err != nil {
			return smcerr.New(smcerr.CodeIntegrityViolation, "insert metadata row").WithCause(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("skill added", zap.String("name", p.Name), zap.String("skill_type", string(p.SkillType)))
	return id, nil
}

// resolveDependencyIDs looks up dependency names, failing with
// UnknownDependency if any is missing.
func resolveDependencyIDs(tx *gorm.DB, names []string) ([]uint, error) {
	ids := make([]uint, 0, len(names))
	for _, name := range names {
		var dep Skill
		if err := tx.Where("name = ?", name).First(&dep).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, smcerr.Newf(smcerr.CodeUnknownDependency, "dependency %q does not exist", name)
			}
			return nil, err
		}
		ids = append(ids, dep.ID)
	}
	return ids, nil
}

func dedupTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// UpdateSkill appends a new version row and overwrites the skill's live
// content, version and updated_at.
func (r *Repository) UpdateSkill(ctx context.Context, name, newContent, changeDescription string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newVersion int
	err := r.pool.withTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var skill Skill
		if err := tx.Where("name = ?", name).First(&skill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return smcerr.Newf(smcerr.CodeUnknownSkill, "skill %q does not exist", name)
			}
			return err
		}

		newVersion = skill.Version + 1
		now := time.Now().UTC()

		version := SkillVersion{
			SkillID:           skill.ID,
			Version:           newVersion,
			Content:           newContent,
			ChangeDescription: changeDescription,
			CreatedAt:         now,
		}
		if err := tx.Create(&version).Error; err != nil {
			return smcerr.New(smcerr.CodeIntegrityViolation, "insert version snapshot").WithCause(err)
		}

		skill.Content = newContent
		skill.Version = newVersion
		skill.UpdatedAt = now
		if err := tx.Save(&skill).Error; err != nil {
			return smcerr.New(smcerr.CodeIntegrityViolation, "update skill").WithCause(err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.Info("skill updated", zap.String("name", name), zap.Int("version", newVersion))
	return newVersion, nil
}

// DeleteSkill cascades to all dependent rows for name. It is idempotent on
// absent names, returning false without error.
func (r *Repository) DeleteSkill(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted bool
	err := r.pool.withTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var skill Skill
		if err := tx.Where("name = ?", name).First(&skill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := tx.Where("skill_id = ?", skill.ID).Delete(&SkillVersion{}).Error; err != nil {
			return err
		}
		if err := tx.Where("skill_id = ? OR depends_on_skill_id = ?", skill.ID, skill.ID).Delete(&SkillDependency{}).Error; err != nil {
			return err
		}
		if err := tx.Where("skill_id = ?", skill.ID).Delete(&SkillTag{}).Error; err != nil {
			return err
		}
		if err := tx.Where("skill_id = ?", skill.ID).Delete(&SkillMetadata{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&skill).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, smcerr.New(smcerr.CodeIntegrityViolation, "delete skill").WithCause(err)
	}

	if deleted {
		if err := r.deleteHistory(name); err != nil {
			r.logger.Warn("failed to remove history log on delete", zap.String("name", name), zap.Error(err))
		}
		r.logger.Info("skill deleted", zap.String("name", name))
	}
	return deleted, nil
}

// GetSkill returns the hydrated record for name, or UnknownSkill.
func (r *Repository) GetSkill(ctx context.Context, name string) (*Record, error) {
	var skill Skill
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&skill).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, smcerr.Newf(smcerr.CodeUnknownSkill, "skill %q does not exist", name)
		}
		return nil, err
	}
	return r.hydrate(ctx, skill)
}

func (r *Repository) hydrate(ctx context.Context, skill Skill) (*Record, error) {
	var tagRows []SkillTag
	if err := r.db.WithContext(ctx).Where("skill_id = ?", skill.ID).Find(&tagRows).Error; err != nil {
		return nil, err
	}
	tags := make([]string, 0, len(tagRows))
	for _, t := range tagRows {
		tags = append(tags, t.Tag)
	}

	var depRows []SkillDependency
	if err := r.db.WithContext(ctx).Where("skill_id = ?", skill.ID).Find(&depRows).Error; err != nil {
		return nil, err
	}
	deps := make([]string, 0, len(depRows))
	for _, d := range depRows {
		var target Skill
		if err := r.db.WithContext(ctx).First(&target, d.DependsOnSkillID).Error; err != nil {
			continue
		}
		deps = append(deps, target.Name)
	}
	sort.Strings(deps)
	sort.Strings(tags)

	return &Record{
		ID:           skill.ID,
		Name:         skill.Name,
		SkillType:    skill.SkillType,
		Description:  skill.Description,
		Content:      skill.Content,
		Version:      skill.Version,
		UsageCount:   skill.UsageCount,
		SuccessCount: skill.SuccessCount,
		CreatedAt:    skill.CreatedAt,
		UpdatedAt:    skill.UpdatedAt,
		Tags:         tags,
		Dependencies: deps,
	}, nil
}

// ListFilter narrows ListSkills to a tier and/or a set of required tags.
type ListFilter struct {
	SkillType SkillType
	Tags      []string
}

// ListSkills returns hydrated records matching the optional filter.
func (r *Repository) ListSkills(ctx context.Context, filter ListFilter) ([]*Record, error) {
	q := r.db.WithContext(ctx).Model(&Skill{})
	if filter.SkillType != "" {
		q = q.Where("skill_type = ?", filter.SkillType)
	}
	var skills []Skill
	if err := q.Order("name").Find(&skills).Error; err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(skills))
	for _, s := range skills {
		rec, err := r.hydrate(ctx, s)
		if err != nil {
			return nil, err
		}
		if len(filter.Tags) > 0 && !hasAllTags(rec.Tags, filter.Tags) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func hasAllTags(have, want []string) bool {
	set := make(map[string]struct{}, len(have))
	for _, t := range have {
		set[t] = struct{}{}
	}
	for _, w := range want {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}

// SetDependencies atomically replaces the dependency edge set for name.
func (r *Repository) SetDependencies(ctx context.Context, name string, deps []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pool.withTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var skill Skill
		if err := tx.Where("name = ?", name).First(&skill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return smcerr.Newf(smcerr.CodeUnknownSkill, "skill %q does not exist", name)
			}
			return err
		}

		depIDs, err := resolveDependencyIDs(tx, deps)
		if err != nil {
			return err
		}
		for _, id := range depIDs {
			if id == skill.ID {
				return smcerr.Newf(smcerr.CodeIntegrityViolation, "skill %q cannot depend on itself", name)
			}
		}

		if err := tx.Where("skill_id = ?", skill.ID).Delete(&SkillDependency{}).Error; err != nil {
			return err
		}
		for _, id := range depIDs {
			if err := tx.Create(&SkillDependency{SkillID: skill.ID, DependsOnSkillID: id, Type: "required"}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordExecution atomically bumps usage/success counters and the execution
// EMA, then appends a diagnostic history line. History append failures are
// logged but never roll back the counter update.
func (r *Repository) RecordExecution(ctx context.Context, name string, success bool, elapsedMs *float64, execCtx any) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stats *Stats
	err := r.pool.withTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		var skill Skill
		if err := tx.Where("name = ?", name).First(&skill).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return smcerr.Newf(smcerr.CodeUnknownSkill, "skill %q does not exist", name)
			}
			return err
		}

		skill.UsageCount++
		if success {
			skill.SuccessCount++
		}
		now := time.Now().UTC()
		skill.UpdatedAt = now
		if err := tx.Save(&skill).Error; err != nil {
			return err
		}

		var meta SkillMetadata
		if err := tx.Where("skill_id = ?", skill.ID).First(&meta).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				meta = SkillMetadata{SkillID: skill.ID}
			} else {
				return err
			}
		}
		if elapsedMs != nil {
			if meta.AverageExecutionTimeMs == 0 && skill.UsageCount == 1 {
				meta.AverageExecutionTimeMs = *elapsedMs
			} else {
				meta.AverageExecutionTimeMs = executionEMAWeight**elapsedMs + (1-executionEMAWeight)*meta.AverageExecutionTimeMs
			}
		}
		meta.LastExecutionAt = &now
		if err := tx.Save(&meta).Error; err != nil {
			return err
		}

		successRate := 0.0
		if skill.UsageCount > 0 {
			successRate = float64(skill.SuccessCount) / float64(skill.UsageCount)
		}
		stats = &Stats{
			Name:            name,
			UsageCount:      skill.UsageCount,
			SuccessCount:    skill.SuccessCount,
			SuccessRate:     successRate,
			AvgExecutionMs:  meta.AverageExecutionTimeMs,
			LastExecutionAt: meta.LastExecutionAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rec := ExecutionRecord{ID: newExecutionRecordID(), Timestamp: time.Now().UTC(), Success: success, ExecutionTimeMs: elapsedMs, Context: execCtx}
	if err := r.appendHistory(name, rec); err != nil {
		r.logger.Warn("failed to append execution history", zap.String("name", name), zap.Error(err))
	}

	return stats, nil
}

// GetSkillStats returns get_skill_stats-style totals for a single skill.
func (r *Repository) GetSkillStats(ctx context.Context, name string) (*Stats, error) {
	var skill Skill
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&skill).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, smcerr.Newf(smcerr.CodeUnknownSkill, "skill %q does not exist", name)
		}
		return nil, err
	}
	var meta SkillMetadata
	_ = r.db.WithContext(ctx).Where("skill_id = ?", skill.ID).First(&meta).Error

	successRate := 0.0
	if skill.UsageCount > 0 {
		successRate = float64(skill.SuccessCount) / float64(skill.UsageCount)
	}
	return &Stats{
		Name:            name,
		UsageCount:      skill.UsageCount,
		SuccessCount:    skill.SuccessCount,
		SuccessRate:     successRate,
		AvgExecutionMs:  meta.AverageExecutionTimeMs,
		LastExecutionAt: meta.LastExecutionAt,
	}, nil
}

// SystemTotals aggregates counters across the whole store for get_system_stats.
type SystemTotals struct {
	CountByType map[SkillType]int
	TotalUsage  int
	TotalSuccess int
	SuccessRate float64
}

// GetSystemTotals returns aggregate counts across all skills.
func (r *Repository) GetSystemTotals(ctx context.Context) (*SystemTotals, error) {
	var skills []Skill
	if err := r.db.WithContext(ctx).Find(&skills).Error; err != nil {
		return nil, err
	}
	totals := &SystemTotals{CountByType: map[SkillType]int{}}
	for _, s := range skills {
		totals.CountByType[s.SkillType]++
		totals.TotalUsage += s.UsageCount
		totals.TotalSuccess += s.SuccessCount
	}
	if totals.TotalUsage > 0 {
		totals.SuccessRate = float64(totals.TotalSuccess) / float64(totals.TotalUsage)
	}
	return totals, nil
}

// AllNames returns the hydrated record of every skill currently in the
// store, used by rebuild_index to reconstruct the vector index from scratch.
func (r *Repository) AllNames(ctx context.Context) ([]*Record, error) {
	return r.ListSkills(ctx, ListFilter{})
}
