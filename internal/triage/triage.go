// Package triage derives risk labels from classification results. It is
// caller policy layered on top of the classifier: category sets and
// confidence thresholds come from configuration.
package triage

import (
	"math"
	"sort"

	"github.com/samber/lo"
)

// Level is a coarse risk label.
type Level string

const (
	LevelHigh   Level = "High"
	LevelMedium Level = "Medium"
	LevelLow    Level = "Low"
)

// NoneType is reported when no High-risk report exists.
const NoneType = "None"

// Policy decides risk levels.
type Policy struct {
	HighRisk         []string `yaml:"high_risk_categories"`
	MediumRisk       []string `yaml:"medium_risk_categories"`
	HighConfidence   float64  `yaml:"high_confidence"`
	MediumConfidence float64  `yaml:"medium_confidence"`
	PriorityLimit    int      `yaml:"priority_limit"`
}

// DefaultPolicy returns the policy the report dashboards were built around.
func DefaultPolicy() Policy {
	return Policy{
		HighRisk:         []string{"Assault/Harassment", "Drugs Addiction", "Scam/Fraud", "Missing Person"},
		MediumRisk:       []string{"Theft", "Property Damage/Incident", "Verbal Abuse and Threats", "Alarm and Scandal"},
		HighConfidence:   0.8,
		MediumConfidence: 0.5,
		PriorityLimit:    10,
	}
}

var recommendations = map[Level][]string{
	LevelHigh:   {"Immediate attention required", "Priority investigation", "Alert relevant authorities", "Monitor closely"},
	LevelMedium: {"Elevated attention", "Additional verification", "Community notification", "Follow standard protocol"},
	LevelLow:    {"Standard processing", "Regular monitoring", "Document properly"},
}

// Assessment is the risk verdict for one classified report.
type Assessment struct {
	Level                Level    `json:"risk_level"`
	Score                float64  `json:"risk_score"`
	Category             string   `json:"predicted_category"`
	Confidence           float64  `json:"category_confidence"`
	ConfidencePercentage float64  `json:"confidence_percentage"`
	Recommendations      []string `json:"recommendations"`
}

// Assess grades one prediction. Membership in the high set, or confidence
// above HighConfidence, is High; otherwise the medium set or confidence above
// MediumConfidence is Medium; everything else is Low.
func (p Policy) Assess(category string, confidence float64) Assessment {
	level, score := p.grade(category, confidence)
	return Assessment{
		Level:                level,
		Score:                round(score, 3),
		Category:             category,
		Confidence:           round(confidence, 3),
		ConfidencePercentage: round(confidence*100, 1),
		Recommendations:      append([]string(nil), recommendations[level]...),
	}
}

func (p Policy) grade(category string, confidence float64) (Level, float64) {
	switch {
	case lo.Contains(p.HighRisk, category) || confidence > p.HighConfidence:
		return LevelHigh, math.Min(0.9, 0.6+confidence*0.3)
	case lo.Contains(p.MediumRisk, category) || confidence > p.MediumConfidence:
		return LevelMedium, 0.3 + confidence*0.4
	default:
		return LevelLow, confidence * 0.3
	}
}

// Item is one classified report fed to Summarize.
type Item struct {
	ReportID     string
	IncidentType string
	Category     string
	Confidence   float64
}

// PriorityReport is a High or Medium report in a summary.
type PriorityReport struct {
	ID                 string  `json:"id"`
	IncidentType       string  `json:"incident_type"`
	PredictedCategory  string  `json:"predicted_category"`
	CategoryConfidence float64 `json:"category_confidence"`
	RiskScore          float64 `json:"risk_score"`
	RiskLevel          Level   `json:"risk_level"`
}

// Insights are the headline numbers of a summary.
type Insights struct {
	HighRiskPercentage     float64 `json:"high_risk_percentage"`
	RequiresAttention      int     `json:"requires_attention"`
	MostCommonHighRiskType string  `json:"most_common_high_risk_type"`
}

// Summary aggregates the risk of a batch of reports.
type Summary struct {
	TotalAnalyzed       int              `json:"total_analyzed"`
	RiskDistribution    map[Level]int    `json:"risk_distribution"`
	HighPriorityReports []PriorityReport `json:"high_priority_reports"`
	Insights            Insights         `json:"ai_insights"`
}

// Summarize grades every item. High and Medium reports are ranked by score,
// ties keeping input order, and capped at PriorityLimit. The most common High
// type is the caller-supplied incident type; ties go to the first seen.
func (p Policy) Summarize(items []Item) Summary {
	counts := map[Level]int{LevelHigh: 0, LevelMedium: 0, LevelLow: 0}
	var flagged []PriorityReport
	for _, it := range items {
		level, score := p.grade(it.Category, it.Confidence)
		counts[level]++
		if level == LevelLow {
			continue
		}
		flagged = append(flagged, PriorityReport{
			ID:                 it.ReportID,
			IncidentType:       it.IncidentType,
			PredictedCategory:  it.Category,
			CategoryConfidence: round(it.Confidence, 3),
			RiskScore:          round(score, 3),
			RiskLevel:          level,
		})
	}
	sort.SliceStable(flagged, func(i, j int) bool { return flagged[i].RiskScore > flagged[j].RiskScore })

	high := lo.Filter(flagged, func(r PriorityReport, _ int) bool { return r.RiskLevel == LevelHigh })

	summary := Summary{
		TotalAnalyzed:    len(items),
		RiskDistribution: counts,
		Insights: Insights{
			RequiresAttention:      counts[LevelHigh] + counts[LevelMedium],
			MostCommonHighRiskType: mostCommonType(high),
		},
	}
	if len(items) > 0 {
		summary.Insights.HighRiskPercentage = round(float64(counts[LevelHigh])/float64(len(items))*100, 1)
	}
	limit := p.PriorityLimit
	if limit <= 0 || limit > len(flagged) {
		limit = len(flagged)
	}
	summary.HighPriorityReports = append([]PriorityReport{}, flagged[:limit]...)
	return summary
}

func mostCommonType(reports []PriorityReport) string {
	if len(reports) == 0 {
		return NoneType
	}
	types := lo.Map(reports, func(r PriorityReport, _ int) string { return r.IncidentType })
	counts := lo.CountValues(types)
	uniq := lo.Uniq(types)
	best := uniq[0]
	for _, t := range uniq[1:] {
		if counts[t] > counts[best] {
			best = t
		}
	}
	return best
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
