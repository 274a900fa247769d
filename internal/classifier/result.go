package classifier

import (
	"fmt"
	"sort"
)

const topN = 5

// Result is the categorical answer for one report.
type Result struct {
	PredictedCategory    string             `json:"predicted_category"`
	PredictedIndex       int                `json:"predicted_index"`
	Confidence           float64            `json:"confidence"`
	ConfidencePercentage string             `json:"confidence_percentage"`
	AllProbabilities     map[string]float64 `json:"all_probabilities,omitempty"`
	Top5                 []Ranked           `json:"top_5,omitempty"`
}

// Ranked is one entry of the top-5 list.
type Ranked struct {
	Category    string  `json:"category"`
	Probability float64 `json:"probability"`
}

func newResult(labels []string, probs []float64, includeDistribution bool) *Result {
	idx := Argmax(probs)
	res := &Result{
		PredictedCategory:    labels[idx],
		PredictedIndex:       idx,
		Confidence:           probs[idx],
		ConfidencePercentage: fmt.Sprintf("%.2f%%", probs[idx]*100),
	}
	if !includeDistribution {
		return res
	}

	res.AllProbabilities = make(map[string]float64, len(labels))
	ranked := make([]Ranked, len(labels))
	for i, label := range labels {
		res.AllProbabilities[label] = probs[i]
		ranked[i] = Ranked{Category: label, Probability: probs[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Probability > ranked[j].Probability })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	res.Top5 = ranked
	return res
}
