// Package features turns the free-text fields of an incident report into the
// fixed-width numeric vector consumed by the incident classifier.
//
// The vector is partitioned into bands with fixed offsets. Band boundaries are
// part of the model contract: a trained model reads position i as the same
// feature regardless of input, so offsets must never shift.
package features

import "math"

// Dim is the length of every feature vector.
const Dim = 544

// Band offsets and widths.
const (
	StatsOffset = 0
	StatsWidth  = 20

	IncidentTypeOffset = 20
	IncidentTypeWidth  = 15

	KeywordOffset = 35
	KeywordWidth  = 100

	NGramOffset = 135
	NGramWidth  = 200

	LanguageOffset = 335
	LanguageWidth  = 50

	// SeverityWidth is the reserved width; only len(severityTerms) slots are written.
	SeverityOffset = 385
	SeverityWidth  = 100

	AggregateOffset = 485
	AggregateWidth  = 3

	FillerOffset = 488
	FillerWidth  = 56
)

// Slots inside the statistics band.
const (
	statLength = iota
	statWords
	statUniqueWords
	statPeriods
	statExclamations
	statQuestions
	statUpperRatio
	statDigitRatio
	statTitleWords
	statDescriptionWords
)

// Band names a contiguous region of the vector.
type Band struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Width  int    `json:"width"`
}

// End returns the first index past the band.
func (b Band) End() int { return b.Offset + b.Width }

// Bands lists every band in vector order.
var Bands = []Band{
	{Name: "stats", Offset: StatsOffset, Width: StatsWidth},
	{Name: "incident_type", Offset: IncidentTypeOffset, Width: IncidentTypeWidth},
	{Name: "keywords", Offset: KeywordOffset, Width: KeywordWidth},
	{Name: "ngrams", Offset: NGramOffset, Width: NGramWidth},
	{Name: "language", Offset: LanguageOffset, Width: LanguageWidth},
	{Name: "severity", Offset: SeverityOffset, Width: SeverityWidth},
	{Name: "aggregate", Offset: AggregateOffset, Width: AggregateWidth},
	{Name: "filler", Offset: FillerOffset, Width: FillerWidth},
}

// Vector is one encoded report. It is an array so the length is part of the type.
type Vector [Dim]float32

// Slice returns a copy of the vector as a slice, ready to hand to the classifier.
func (v *Vector) Slice() []float32 {
	out := make([]float32, Dim)
	copy(out, v[:])
	return out
}

// Band returns a view of one band. The view aliases the vector.
func (v *Vector) Band(b Band) []float32 {
	return v[b.Offset:b.End()]
}

// Finite reports whether every element is a finite number.
func (v *Vector) Finite() bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
