package features

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

const (
	maxNGrams = NGramWidth

	// fillerModulus and fillerPeriod shape the hash-derived filler values.
	fillerModulus = 100000
	fillerPeriod  = 1000
)

// FromText encodes a single free-text field, using it as both the title and
// the translated text.
func FromText(text string) Vector {
	return Extract(text, "", "", text)
}

// Extract builds the feature vector for one report. It never fails: empty
// fields produce zero-valued features, and the result always has Dim finite
// elements. Identical inputs produce bit-identical vectors.
func Extract(title, description, incidentType, translatedText string) Vector {
	var v Vector

	original := strings.TrimSpace(title + " " + description + " " + translatedText)
	text := strings.ToLower(original)
	words := strings.Fields(text)

	writeStats(&v, original, text, words, title, description)
	v[IncidentTypeOffset+incidentTypeSlot(incidentType)] = 1.0
	writeTermCounts(v[KeywordOffset:KeywordOffset+KeywordWidth], keywordTerms[:], text, len(words), true)
	writeNGrams(v[NGramOffset:NGramOffset+NGramWidth], text)
	writeTermCounts(v[LanguageOffset:LanguageOffset+LanguageWidth], tagalogTerms[:], text, len(words), false)
	writeTermCounts(v[SeverityOffset:SeverityOffset+len(severityTerms)], severityTerms, text, len(words), false)
	writeAggregates(&v, words)
	writeFiller(&v, text)

	return v
}

func writeStats(v *Vector, original, text string, words []string, title, description string) {
	length := utf8.RuneCountInString(text)
	denom := float64(max(length, 1))

	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}

	var upper, digits int
	for _, r := range original {
		if unicode.IsUpper(r) {
			upper++
		}
	}
	for _, r := range text {
		if unicode.IsDigit(r) {
			digits++
		}
	}

	s := v[StatsOffset : StatsOffset+StatsWidth]
	s[statLength] = float32(length)
	s[statWords] = float32(len(words))
	s[statUniqueWords] = float32(len(unique))
	s[statPeriods] = float32(strings.Count(text, "."))
	s[statExclamations] = float32(strings.Count(text, "!"))
	s[statQuestions] = float32(strings.Count(text, "?"))
	s[statUpperRatio] = float32(float64(upper) / denom)
	s[statDigitRatio] = float32(float64(digits) / denom)
	s[statTitleWords] = float32(len(strings.Fields(title)))
	s[statDescriptionWords] = float32(len(strings.Fields(description)))
}

// incidentTypeSlot returns the one-hot slot for the caller's incident type.
// The first category that contains, or is contained in, the lowercased type
// wins, so overlapping names resolve to the earliest entry. An empty type is
// treated as "others".
func incidentTypeSlot(incidentType string) int {
	kind := "others"
	if incidentType != "" {
		kind = strings.ToLower(incidentType)
	}
	for i, name := range incidentTypeNames {
		if strings.Contains(kind, name) || strings.Contains(name, kind) {
			return i
		}
	}
	return IncidentTypeWidth - 1
}

// writeTermCounts stores non-overlapping substring counts of each term divided
// by the word count (at least 1). clamp caps each value at 1.
func writeTermCounts(dst []float32, terms []string, text string, wordCount int, clamp bool) {
	denom := float64(max(wordCount, 1))
	for i, term := range terms {
		if i >= len(dst) {
			return
		}
		n := strings.Count(text, term)
		if n == 0 {
			continue
		}
		ratio := float64(n) / denom
		if clamp && ratio > 1 {
			ratio = 1
		}
		dst[i] = float32(ratio)
	}
}

func writeAggregates(v *Vector, words []string) {
	if len(words) == 0 {
		return
	}
	var long, short, total int
	for _, w := range words {
		n := utf8.RuneCountInString(w)
		total += n
		switch {
		case n > 6:
			long++
		case n <= 3:
			short++
		}
	}
	count := float64(len(words))
	v[AggregateOffset] = float32(float64(long) / count)
	v[AggregateOffset+1] = float32(float64(short) / count)
	v[AggregateOffset+2] = float32(float64(total) / count)
}

// writeFiller derives the tail of the vector from xxHash64 (seed 0) of the
// normalized text, so it is stable across processes and platforms.
func writeFiller(v *Vector, text string) {
	h := xxhash.Sum64String(text) % fillerModulus
	for i := FillerOffset; i < Dim; i++ {
		v[i] = float32(float64((h+uint64(i))%fillerPeriod) / fillerPeriod)
	}
}
