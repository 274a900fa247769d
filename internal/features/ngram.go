package features

import (
	"sort"
	"strings"
	"unicode"
)

type ngramCount struct {
	gram  string
	count int
}

// writeNGrams stores the relative frequency of the most common character
// bigrams and trigrams of the alphanumeric text. All bigrams are counted
// before all trigrams, and ties keep first-seen order.
func writeNGrams(dst []float32, text string) {
	ranked, total := rankNGrams(cleanForNGrams(text))
	if total == 0 {
		return
	}
	for i, nc := range ranked {
		if i >= len(dst) || i >= maxNGrams {
			break
		}
		dst[i] = float32(float64(nc.count) / float64(total))
	}
}

// cleanForNGrams keeps ASCII letters, digits and whitespace.
func cleanForNGrams(text string) []rune {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return []rune(b.String())
}

// rankNGrams returns distinct grams ordered by count descending and the total
// number of grams counted.
func rankNGrams(runes []rune) ([]ngramCount, int) {
	index := make(map[string]int)
	var grams []ngramCount
	total := 0

	add := func(g string) {
		total++
		if i, ok := index[g]; ok {
			grams[i].count++
			return
		}
		index[g] = len(grams)
		grams = append(grams, ngramCount{gram: g, count: 1})
	}

	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(runes); i++ {
			add(string(runes[i : i+n]))
		}
	}

	sort.SliceStable(grams, func(i, j int) bool { return grams[i].count > grams[j].count })
	return grams, total
}
