package util

import (
	"strings"
	"unicode"
)

var labelReplacer = strings.NewReplacer("#", " no ", "№", " no ", "&", " and ")

// NormalizeLabel folds a column label to lowercase letters and digits only,
// so "Claim #", "claim_no" and "ClaimNo" compare equal.
func NormalizeLabel(input string) string {
	s := labelReplacer.Replace(strings.ToLower(input))
	out := strings.Builder{}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// CleanCell trims a cell value and collapses inner whitespace runs.
func CleanCell(input string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(input, "\u00A0", " ")), " ")
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}
