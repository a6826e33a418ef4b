package pipeline

import (
	"sort"

	"go-etl-scheduler/internal/model"
	"go-etl-scheduler/pkg/utils"
)

const missingGroupKey = "unknown"

// Summarize groups records by groupBy and sums the numeric sumFields per
// group. Groups come back sorted by key. It returns nil when groupBy is empty.
func Summarize(records []model.Record, groupBy string, sumFields []string) *model.RunSummary {
	if groupBy == "" {
		return nil
	}

	groups := make(map[string]*model.GroupSummary)
	for _, rec := range records {
		key := missingGroupKey
		if v, ok := rec.Get(groupBy); ok && v != nil {
			if s := utils.Text(v); s != "" {
				key = s
			}
		}

		g, ok := groups[key]
		if !ok {
			g = &model.GroupSummary{Key: key, Sums: make(map[string]float64, len(sumFields))}
			for _, f := range sumFields {
				g.Sums[f] = 0
			}
			groups[key] = g
		}
		g.Count++

		for _, f := range sumFields {
			v, ok := rec.Get(f)
			if !ok {
				continue
			}
			if n, ok := utils.Numeric(v); ok {
				g.Sums[f] = round2(g.Sums[f] + n)
			}
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	summary := &model.RunSummary{GroupBy: groupBy, Groups: make([]model.GroupSummary, 0, len(keys))}
	for _, k := range keys {
		summary.Groups = append(summary.Groups, *groups[k])
	}
	return summary
}
