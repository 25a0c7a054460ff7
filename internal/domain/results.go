package domain

import (
	"sort"
	"strings"
)

// SortResults orders results for ranking: score desc, elapsed asc, earliest first.
func SortResults(results []ResultRecord) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].ElapsedSeconds != results[j].ElapsedSeconds {
			return results[i].ElapsedSeconds < results[j].ElapsedSeconds
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
}

// NormalizeUsername strips a leading @ and lowercases for comparisons.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}
