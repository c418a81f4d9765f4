package composer

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/agentflow/skillcore/skillstore"
	"github.com/agentflow/skillcore/vectorindex"
)

// RepositoryReader is the read surface Composer needs from the Repository.
type RepositoryReader interface {
	GetSkill(ctx context.Context, name string) (*skillstore.Record, error)
	ListSkills(ctx context.Context, filter skillstore.ListFilter) ([]*skillstore.Record, error)
}

// VectorSearcher is the read surface Composer needs from the VectorIndex.
type VectorSearcher interface {
	Query(ctx context.Context, text string, k int, skillTypeFilter string) ([]vectorindex.SearchResult, error)
}

// Composer produces task-driven compositions of skills.
type Composer struct {
	repo   RepositoryReader
	index  VectorSearcher
	logger *zap.Logger
}

// New returns a Composer over the given Repository and VectorIndex reader
// interfaces.
func New(repo RepositoryReader, index VectorSearcher, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{repo: repo, index: index, logger: logger.With(zap.String("component", "composer"))}
}

// PlanEntry is one step of a composition plan.
type PlanEntry struct {
	Skill          *skillstore.Record
	RelevanceScore float64
	StepIndex      int
}

// candidate tracks a skill under consideration during closure/ordering,
// before it becomes a final PlanEntry.
type candidate struct {
	record    *skillstore.Record
	relevance float64
	rank      int // position in the original vector-search candidate list
}

// ComposeForTask retrieves candidates for task, closes over their
// dependencies, orders them topologically and truncates to maxSkills.
//
// When the VectorIndex is unavailable, this degrades gracefully to an empty
// plan rather than an error, per the propagation policy for vector failures.
func (c *Composer) ComposeForTask(ctx context.Context, task string, maxSkills int) ([]PlanEntry, []string, error) {
	k := maxSkills * 3
	if k < 15 {
		k = 15
	}

	hits, err := c.index.Query(ctx, task, k, "")
	if err != nil {
		return nil, nil, err
	}
	if len(hits) == 0 {
		return nil, nil, nil
	}

	candidates := make(map[string]*candidate, len(hits))
	order := make([]string, 0, len(hits))
	for i, h := range hits {
		rec, err := c.repo.GetSkill(ctx, h.Name)
		if err != nil {
			continue // dropped: not present in the Repository
		}
		if _, exists := candidates[rec.Name]; exists {
			continue
		}
		candidates[rec.Name] = &candidate{record: rec, relevance: h.Score, rank: i}
		order = append(order, rec.Name)
	}

	closure, warnings, err := c.closeDependencies(ctx, candidates, order)
	if err != nil {
		return nil, nil, err
	}

	ordered, orderWarnings, err := topoOrder(closure)
	if err != nil {
		return nil, warnings, err
	}
	warnings = append(warnings, orderWarnings...)

	entries := truncate(ordered, maxSkills)
	return entries, warnings, nil
}

// closeDependencies pulls in each candidate's declared dependencies via BFS
// over the edge set, adding newly discovered skills as zero-relevance
// candidates ranked after all originally retrieved ones. It does not itself
// detect cycles among candidates already present in the closure — that is
// topoOrder's job, since only topoOrder has the full edge set needed to
// decide which edge to omit.
func (c *Composer) closeDependencies(ctx context.Context, candidates map[string]*candidate, order []string) (map[string]*candidate, []string, error) {
	var warnings []string
	queue := append([]string(nil), order...)
	nextRank := len(order)

	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		cand, ok := candidates[name]
		if !ok {
			continue
		}

		for _, depName := range cand.record.Dependencies {
			if _, exists := candidates[depName]; exists {
				continue
			}
			depRec, err := c.repo.GetSkill(ctx, depName)
			if err != nil {
				warnings = append(warnings, "dependency "+depName+" of "+name+" not found in repository; skipped")
				continue
			}
			candidates[depName] = &candidate{record: depRec, relevance: 0, rank: nextRank}
			nextRank++
			queue = append(queue, depName)
		}
	}
	return candidates, warnings, nil
}

// topoOrder runs Kahn's algorithm over the closure subgraph, breaking ties
// by (skill_type_rank, relevance_rank, name) so dependencies (basic) sort
// ahead of their consumers. When the subgraph contains a cycle, Kahn's
// algorithm alone would leave the cyclic nodes permanently at a non-zero
// in-degree; instead, once the ready queue runs dry with unprocessed nodes
// remaining, the lowest tie-key remaining node is forced through, the edges
// from its still-unsatisfied dependencies are treated as omitted, and a
// warning is recorded for each one.
func topoOrder(candidates map[string]*candidate) ([]PlanEntry, []string, error) {
	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}

	inDegree := make(map[string]int, len(names))
	dependents := make(map[string][]string, len(names))
	for _, name := range names {
		cand := candidates[name]
		for _, dep := range cand.record.Dependencies {
			if _, ok := candidates[dep]; !ok {
				continue // dependency outside the closure (already warned about)
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	tieKey := func(name string) (int, int, string) {
		c := candidates[name]
		return c.record.SkillType.Rank(), c.rank, name
	}
	sortByTieKey := func(queue []string) {
		sort.Slice(queue, func(i, j int) bool {
			ri, ranki, ni := tieKey(queue[i])
			rj, rankj, nj := tieKey(queue[j])
			if ri != rj {
				return ri < rj
			}
			if ranki != rankj {
				return ranki < rankj
			}
			return ni < nj
		})
	}

	processed := make(map[string]bool, len(names))
	ready := make([]string, 0, len(names))
	for _, name := range names {
		if inDegree[name] == 0 {
			ready = append(ready, name)
		}
	}

	var out []PlanEntry
	var warnings []string
	step := 0
	for len(out) < len(names) {
		if len(ready) == 0 {
			var stuck []string
			for _, name := range names {
				if !processed[name] {
					stuck = append(stuck, name)
				}
			}
			if len(stuck) == 0 {
				break
			}
			sortByTieKey(stuck)
			victim := stuck[0]

			for _, dep := range candidates[victim].record.Dependencies {
				if _, ok := candidates[dep]; ok && !processed[dep] {
					warnings = append(warnings, "cycle detected: omitting edge "+dep+" -> "+victim+" to keep the plan acyclic")
				}
			}
			ready = append(ready, victim)
		}

		sortByTieKey(ready)
		name := ready[0]
		ready = ready[1:]
		if processed[name] {
			continue
		}
		processed[name] = true

		cand := candidates[name]
		out = append(out, PlanEntry{Skill: cand.record, RelevanceScore: cand.relevance, StepIndex: step})
		step++

		for _, dependent := range dependents[name] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 && !processed[dependent] {
				ready = append(ready, dependent)
			}
		}
	}

	return out, warnings, nil
}

// truncate keeps at most maxSkills entries, preserving order; if truncation
// would drop a dependency of a retained skill, the retained skill is also
// dropped.
func truncate(entries []PlanEntry, maxSkills int) []PlanEntry {
	if maxSkills <= 0 || len(entries) <= maxSkills {
		return renumber(entries)
	}

	kept := make(map[string]bool, maxSkills)
	var candidates []PlanEntry
	for _, e := range entries[:maxSkills] {
		candidates = append(candidates, e)
		kept[e.Skill.Name] = true
	}

	changed := true
	for changed {
		changed = false
		var next []PlanEntry
		for _, e := range candidates {
			ok := true
			for _, dep := range e.Skill.Dependencies {
				if containsName(entries, dep) && !kept[dep] {
					ok = false
					break
				}
			}
			if ok {
				next = append(next, e)
			} else {
				delete(kept, e.Skill.Name)
				changed = true
			}
		}
		candidates = next
	}

	return renumber(candidates)
}

func containsName(entries []PlanEntry, name string) bool {
	for _, e := range entries {
		if e.Skill.Name == name {
			return true
		}
	}
	return false
}

func renumber(entries []PlanEntry) []PlanEntry {
	for i := range entries {
		entries[i].StepIndex = i
	}
	return entries
}
