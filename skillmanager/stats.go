package skillmanager

import "context"

// SystemStats is get_system_stats: totals by skill_type, overall usage and
// success sums, and the overall success rate.
type SystemStats struct {
	CountByType map[string]int
	TotalUsage  int
	TotalSuccess int
	SuccessRate float64
}

// GetSystemStats aggregates counters across every skill in the store.
func (m *Manager) GetSystemStats(ctx context.Context) (*SystemStats, error) {
	totals, err := m.repo.GetSystemTotals(ctx)
	if err != nil {
		return nil, err
	}
	byType := make(map[string]int, len(totals.CountByType))
	for k, v := range totals.CountByType {
		byType[string(k)] = v
	}
	return &SystemStats{
		CountByType:  byType,
		TotalUsage:   totals.TotalUsage,
		TotalSuccess: totals.TotalSuccess,
		SuccessRate:  totals.SuccessRate,
	}, nil
}
