package skillstore

import "time"

// SkillType is the tier a skill occupies in a composition plan.
type SkillType string

const (
	SkillTypeBasic     SkillType = "basic"
	SkillTypeComposite SkillType = "composite"
	SkillTypeMeta      SkillType = "meta"
)

// Valid reports whether t is one of the three recognized tiers.
func (t SkillType) Valid() bool {
	switch t {
	case SkillTypeBasic, SkillTypeComposite, SkillTypeMeta:
		return true
	default:
		return false
	}
}

// Rank orders tiers so dependencies (basic) sort before their consumers
// (composite, meta) when tie-breaking a topological order.
func (t SkillType) Rank() int {
	switch t {
	case SkillTypeBasic:
		return 0
	case SkillTypeComposite:
		return 1
	case SkillTypeMeta:
		return 2
	default:
		return 3
	}
}

// Skill is the principal persisted entity.
type Skill struct {
	ID           uint      `gorm:"primaryKey"`
	Name         string    `gorm:"uniqueIndex;not null"`
	SkillType    SkillType `gorm:"not null"`
	Description  string
	Content      string `gorm:"not null"`
	Version      int    `gorm:"not null;default:1"`
	UsageCount   int    `gorm:"not null;default:0"`
	SuccessCount int    `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SkillVersion is an immutable historical snapshot of a Skill's content.
type SkillVersion struct {
	ID                uint `gorm:"primaryKey"`
	SkillID           uint `gorm:"uniqueIndex:idx_skill_version,priority:1;not null"`
	Version           int  `gorm:"uniqueIndex:idx_skill_version,priority:2;not null"`
	Content           string
	ChangeDescription string
	CreatedAt         time.Time
}

// SkillDependency is a directed "skill depends on" edge.
type SkillDependency struct {
	SkillID          uint   `gorm:"primaryKey"`
	DependsOnSkillID uint   `gorm:"primaryKey"`
	Type             string `gorm:"not null;default:required"`
}

// SkillTag is a membership row (skill_id, tag).
type SkillTag struct {
	SkillID uint   `gorm:"primaryKey"`
	Tag     string `gorm:"primaryKey"`
}

// SkillMetadata carries per-skill extended counters outside the hot Skill row.
type SkillMetadata struct {
	SkillID                uint `gorm:"primaryKey"`
	EmbeddingsUpdatedAt    *time.Time
	LastExecutionAt        *time.Time
	AverageExecutionTimeMs float64
	MetadataJSON           string
}

// Record is a fully hydrated Skill including its tags and dependency names,
// as returned by GetSkill and ListSkills.
type Record struct {
	ID           uint
	Name         string
	SkillType    SkillType
	Description  string
	Content      string
	Version      int
	UsageCount   int
	SuccessCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Tags         []string
	Dependencies []string
}

// Stats summarizes a single skill's execution history for get_skill_stats.
type Stats struct {
	Name          string
	UsageCount    int
	SuccessCount  int
	SuccessRate   float64
	AvgExecutionMs float64
	LastExecutionAt *time.Time
}
