package analysis

import "math"

// Summary holds aggregate statistics over a finished result set.
type Summary struct {
	TotalDomains int     `json:"total_domains"`
	SuccessRate  float64 `json:"success_rate"`
	AverageScore float64 `json:"average_score"`
}

// Summarize reduces results into a Summary. Failed results count as a zero
// score. An empty input yields a zero Summary.
func Summarize(results []Result) Summary {
	total := len(results)
	if total == 0 {
		return Summary{}
	}

	var succeeded int
	var scoreSum float64
	for i := range results {
		if results[i].Succeeded() {
			succeeded++
		}
		scoreSum += results[i].Score
	}

	return Summary{
		TotalDomains: total,
		SuccessRate:  Round1(100 * float64(succeeded) / float64(total)),
		AverageScore: Round1(scoreSum / float64(total)),
	}
}

// Round1 rounds a non-negative value half-up to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
