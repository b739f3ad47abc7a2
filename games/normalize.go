/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package games

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const closeGuessDistance = 2

// Decorations like "(feat. X)", "[Remastered 2011]" or "(Live)" are not
// part of the title players are expected to type.
var decoration = regexp.MustCompile(`(?i)\s*[(\[][^)\]]*\b(feat|ft|with|remix|remaster|remastered|live|edit|version|deluxe|mono|stereo)\b[^)\]]*[)\]]`)

// Normalize folds a title or guess into the form used for comparison:
// lowercase, no diacritics, no decorations, no trailing " - suffix",
// only letters, digits and single spaces.
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}

	s = strings.ToLower(s)
	s = decoration.ReplaceAllString(s, "")

	if i := strings.Index(s, " - "); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// Matches reports whether guess names the answer once both are normalized.
func Matches(guess, answer string) bool {
	g := Normalize(guess)

	return g != "" && g == Normalize(answer)
}

// IsClose reports whether a wrong guess is within a couple of edits of the answer.
func IsClose(guess, answer string) bool {
	g, a := Normalize(guess), Normalize(answer)
	if g == "" || g == a {
		return false
	}

	return levenshtein.ComputeDistance(g, a) <= closeGuessDistance
}
