package composer

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/agentflow/skillcore/skillstore"
	"github.com/agentflow/skillcore/vectorindex"
)

// HierarchicalResult is the per-tier result set of a hierarchical search.
type HierarchicalResult struct {
	Meta      []vectorindex.SearchResult
	Composite []vectorindex.SearchResult
	Basic     []vectorindex.SearchResult
}

// HierarchicalSearch runs three independent filtered queries against the
// VectorIndex, one per tier, concurrently.
func (c *Composer) HierarchicalSearch(ctx context.Context, query string, perLevel int) (HierarchicalResult, error) {
	var result HierarchicalResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := c.index.Query(gctx, query, perLevel, string(skillstore.SkillTypeMeta))
		result.Meta = hits
		return err
	})
	g.Go(func() error {
		hits, err := c.index.Query(gctx, query, perLevel, string(skillstore.SkillTypeComposite))
		result.Composite = hits
		return err
	})
	g.Go(func() error {
		hits, err := c.index.Query(gctx, query, perLevel, string(skillstore.SkillTypeBasic))
		result.Basic = hits
		return err
	})
	if err := g.Wait(); err != nil {
		return HierarchicalResult{}, err
	}
	return result, nil
}
