package model

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText produces the form used for substring search: NFC composed,
// then Unicode case folded. Stored search text and queries both pass through
// here so that visually identical strings match.
func NormalizeText(s string) string {
	// cases.Caser keeps state; one per call.
	return cases.Fold().String(norm.NFC.String(s))
}
