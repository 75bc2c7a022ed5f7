package selectors

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Similarity scores are in [0,100]. Score combines plain, partial and
// token-order-insensitive ratios, weighting partial matches down as the
// length difference between the strings grows.

var dmp = diffmatchpatch.New()

// normalize lowercases, maps punctuation to spaces and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			space = false
			continue
		}
		if !space && b.Len() > 0 {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Ratio is 100 * 2M / T where M is the number of characters in equal diff
// runs and T the combined length.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la+lb == 0 {
		return 100
	}
	if la == 0 || lb == 0 {
		return 0
	}
	matched := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(d.Text)
		}
	}
	return 100 * float64(2*matched) / float64(la+lb)
}

// PartialRatio is the best Ratio of the shorter string against every window
// of the longer string with the same length.
func PartialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	if len(short) == len(long) {
		return Ratio(a, b)
	}
	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		if r := Ratio(s, string(long[i:i+len(short)])); r > best {
			best = r
			if best == 100 {
				break
			}
		}
	}
	return best
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// TokenSortRatio compares the strings after sorting their tokens.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortedTokens(a), sortedTokens(b))
}

// TokenSetRatio compares the shared token set against each side's remainder.
func TokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	var common, onlyA, onlyB []string
	for t := range setA {
		if _, ok := setB[t]; ok {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	withA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	withB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))
	if base != "" && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 100
	}
	best := Ratio(withA, withB)
	if base != "" {
		best = math.Max(best, Ratio(base, withA))
		best = math.Max(best, Ratio(base, withB))
	}
	return best
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range strings.Fields(s) {
		out[t] = struct{}{}
	}
	return out
}

// Score is the weighted similarity of query against candidate in [0,100].
func Score(query, candidate string) int {
	a, b := normalize(query), normalize(candidate)
	if a == "" || b == "" {
		return 0
	}
	la, lb := float64(utf8.RuneCountInString(a)), float64(utf8.RuneCountInString(b))
	lenRatio := math.Max(la, lb) / math.Min(la, lb)

	best := Ratio(a, b)
	tokenBest := math.Max(TokenSortRatio(a, b), TokenSetRatio(a, b))
	if lenRatio < 1.5 {
		return clampScore(math.Max(best, tokenBest*0.95))
	}
	partialScale := 0.9
	if lenRatio >= 8 {
		partialScale = 0.6
	}
	best = math.Max(best, PartialRatio(a, b)*partialScale)
	best = math.Max(best, PartialRatio(sortedTokens(a), sortedTokens(b))*0.95*partialScale)
	best = math.Max(best, tokenBest*0.95*partialScale)
	return clampScore(best)
}

func clampScore(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
