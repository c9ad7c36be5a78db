package utils

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"d2sedit/errors"
)

// smash smashes "funny characters" (which includes anything that's remotely tricky to type into a command line) in a string into the '_' character
func smash(in string) string {
	var out strings.Builder
	for _, c := range in {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			out.WriteRune(unicode.ToUpper(c))
		} else {
			out.WriteRune('_')
		}
	}
	return out.String()
}

// squash drops the funny characters altogether, so "gold stash", "gold-stash" and "GoldStash" all agree.
func squash(in string) string {
	return strings.ReplaceAll(smash(in), "_", "")
}

// string matching functions, in strictly increasing order of desperation
var fuzzy = []func(input string, candidate string) bool{
	func(i string, c string) bool { return i == c },
	func(i string, c string) bool { return strings.EqualFold(i, c) },
	func(i string, c string) bool { return squash(i) == squash(c) },
	func(i string, c string) bool { return strings.HasPrefix(squash(c), squash(i)) },
	func(i string, c string) bool { return strings.Contains(squash(c), squash(i)) },
}

// FuzzyReverseLookup looks up "backwards" in a translation map: from a name the user typed to the key it names.
//
// what: type of thing to be looked up, as a human-readable string.  Used only in error construction.
//
// Returns the key and the matched name (not necessarily equal to "to" due to fuzzy matching).
func FuzzyReverseLookup[K comparable](trans map[K]string, to string, what string) (K, string, error) {
	var k0 K

	if squash(to) == "" {
		return k0, "", errors.NewContract(fmt.Sprintf("empty name for %v", what))
	}

	for _, match := range fuzzy {
		matches := []K{}
		names := []string{}
		for k, v := range trans {
			if match(to, v) {
				matches = append(matches, k)
				names = append(names, v)
			}
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			sort.Strings(names)
			e := errors.NewContract(fmt.Sprintf("ambiguous %v %q could be anything from {%v}", what, to, strings.Join(names, ", ")))
			e.Details = map[string]any{"candidates": names}
			return k0, "", e
		}

		return matches[0], names[0], nil
	}

	return k0, "", errors.NewContract(fmt.Sprintf("%q could not be matched to a valid value for %v", to, what))
}
