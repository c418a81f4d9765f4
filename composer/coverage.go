package composer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/agentflow/skillcore/skillstore"
)

const (
	metaWeight      = 0.4
	compositeWeight = 0.35
	basicWeight     = 0.25
)

// Coverage is the outcome of analyzing how well existing skills cover a
// natural-language task.
type Coverage struct {
	OverallCoverage   float64
	MetaCoverage      float64
	CompositeCoverage float64
	BasicCoverage     float64
	Recommendation    string
}

// AnalyzeCoverage computes a weighted mean of the top vector match score per
// tier for task. The three tier queries run concurrently since they are
// independent reads against the VectorIndex.
func (c *Composer) AnalyzeCoverage(ctx context.Context, task string) (Coverage, error) {
	var meta, composite, basic float64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.topScore(gctx, task, string(skillstore.SkillTypeMeta))
		meta = v
		return err
	})
	g.Go(func() error {
		v, err := c.topScore(gctx, task, string(skillstore.SkillTypeComposite))
		composite = v
		return err
	})
	g.Go(func() error {
		v, err := c.topScore(gctx, task, string(skillstore.SkillTypeBasic))
		basic = v
		return err
	})
	if err := g.Wait(); err != nil {
		return Coverage{}, err
	}

	overall := metaWeight*clip01(meta) + compositeWeight*clip01(composite) + basicWeight*clip01(basic)

	return Coverage{
		OverallCoverage:   overall,
		MetaCoverage:      clip01(meta),
		CompositeCoverage: clip01(composite),
		BasicCoverage:     clip01(basic),
		Recommendation:    recommendation(overall),
	}, nil
}

func (c *Composer) topScore(ctx context.Context, task, skillType string) (float64, error) {
	hits, err := c.index.Query(ctx, task, 1, skillType)
	if err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 0, nil
	}
	return hits[0].Score, nil
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func recommendation(overall float64) string {
	switch {
	case overall > 0.7:
		return "good: existing skills plausibly cover this task"
	case overall >= 0.4:
		return "partial: existing skills partially cover this task, consider adding more"
	default:
		return "insufficient: existing skills do not adequately cover this task"
	}
}
