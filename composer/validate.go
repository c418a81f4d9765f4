package composer

import "strings"

// ValidationResult is the outcome of validating a composition plan.
type ValidationResult struct {
	Valid      bool
	Issues     []string
	Warnings   []string
	SkillCount int
}

// ValidateComposition checks that every dependency of every included skill
// appears earlier in the plan (or is explicitly named in warnings), that
// there are no duplicate entries, and that every skill's type is known.
func ValidateComposition(entries []PlanEntry, priorWarnings []string) ValidationResult {
	result := ValidationResult{Valid: true, SkillCount: len(entries), Warnings: append([]string(nil), priorWarnings...)}

	stepOf := make(map[string]int, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Skill.Name] {
			result.Valid = false
			result.Issues = append(result.Issues, "duplicate skill in plan: "+e.Skill.Name)
			continue
		}
		seen[e.Skill.Name] = true
		stepOf[e.Skill.Name] = e.StepIndex

		if !e.Skill.SkillType.Valid() {
			result.Valid = false
			result.Issues = append(result.Issues, "unknown skill_type for "+e.Skill.Name)
		}
	}

	for _, e := range entries {
		for _, dep := range e.Skill.Dependencies {
			depStep, ok := stepOf[dep]
			if !ok {
				// Not included at all: acceptable only if a warning already
				// flagged this omission during dependency closure.
				if !hasWarningFor(result.Warnings, dep, e.Skill.Name) {
					result.Valid = false
					result.Issues = append(result.Issues, "dependency "+dep+" of "+e.Skill.Name+" is missing from the plan and no warning explains why")
				}
				continue
			}
			if depStep >= e.StepIndex {
				// Placed after its dependent: acceptable only if a warning
				// names this edge (a cycle broken during ordering).
				if !hasWarningFor(result.Warnings, dep, e.Skill.Name) {
					result.Valid = false
					result.Issues = append(result.Issues, "dependency "+dep+" of "+e.Skill.Name+" does not precede it in the plan")
				}
			}
		}
	}

	return result
}

// hasWarningFor reports whether warnings already documents the omission of
// the dep -> skillName edge from the plan, whether via a missing-in-
// repository warning or a cycle-breaking warning naming the same edge.
func hasWarningFor(warnings []string, dep, skillName string) bool {
	needles := []string{
		"dependency " + dep + " of " + skillName,
		"omitting edge " + dep + " -> " + skillName,
	}
	for _, w := range warnings {
		for _, needle := range needles {
			if strings.Contains(w, needle) {
				return true
			}
		}
	}
	return false
}
