package matching

import (
	"sort"

	"github.com/spigell/rozgar/internal/jobs"
)

// Rank orders jobs urgent first, then newest first, then by id.
// The input is sorted in place and returned.
func Rank(v *jobs.Jobs) *jobs.Jobs {
	if v == nil {
		return &jobs.Jobs{}
	}
	sort.SliceStable(v.Items, func(i, j int) bool {
		a, b := v.Items[i], v.Items[j]
		if a.Urgent != b.Urgent {
			return a.Urgent
		}
		if !a.PostedAt.Equal(b.PostedAt) {
			return a.PostedAt.After(b.PostedAt)
		}
		return a.ID < b.ID
	})
	return v
}
