package composer

import (
	"context"
	"strings"

	"github.com/agentflow/skillcore/skillstore"
)

// Suggestion is one alternative composition plan with the strategy that
// produced it.
type Suggestion struct {
	Strategy string
	Entries  []PlanEntry
	Warnings []string
}

// SuggestCompositions returns up to n alternative plans generated by three
// strategies applied in order — meta-first, composite-first, basic-first —
// and deduplicated by the sequence of skill names. Fewer than n may be
// returned if strategies coincide.
func (c *Composer) SuggestCompositions(ctx context.Context, task string, n int) ([]Suggestion, error) {
	strategies := []struct {
		name string
		tier skillstore.SkillType
	}{
		{"meta-first", skillstore.SkillTypeMeta},
		{"composite-first", skillstore.SkillTypeComposite},
		{"basic-first", skillstore.SkillTypeBasic},
	}

	seenSequences := make(map[string]bool)
	var suggestions []Suggestion

	for _, s := range strategies {
		if len(suggestions) >= n {
			break
		}
		entries, warnings, err := c.composeFiltered(ctx, task, n, s.tier)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			continue
		}
		key := sequenceKey(entries)
		if seenSequences[key] {
			continue
		}
		seenSequences[key] = true
		suggestions = append(suggestions, Suggestion{Strategy: s.name, Entries: entries, Warnings: warnings})
	}

	return suggestions, nil
}

// composeFiltered mirrors ComposeForTask but seeds candidate retrieval with
// a single-tier filtered query before closing over dependencies.
func (c *Composer) composeFiltered(ctx context.Context, task string, maxSkills int, tier skillstore.SkillType) ([]PlanEntry, []string, error) {
	k := maxSkills * 3
	if k < 15 {
		k = 15
	}

	hits, err := c.index.Query(ctx, task, k, string(tier))
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
			continue
		}
		if _, exists := candidates[rec.Name]; exists {
			continue
		}
		candidates[rec.Name] = &candidate{record: rec, relevance: h.Score, rank: i}
		order = append(order, rec.Name)
	}
	if len(candidates) == 0 {
		return nil, nil, nil
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

	return truncate(ordered, maxSkills), warnings, nil
}

func sequenceKey(entries []PlanEntry) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Skill.Name
	}
	return strings.Join(names, ">")
}
