// Package version parses and compares the version strings found in LOOT
// metadata and in executable version resources.
//
// The dialect is SemVer relaxed in both directions: any number of release
// identifiers, comma separators, four-tuple "N, N, N, N" forms as written
// by script extenders, and mixed numeric/alphanumeric identifiers compared
// case-insensitively. Build metadata after '+' is parsed and discarded.
package version

import (
	"regexp"
	"strconv"
	"strings"
)

/*
 * Identifier model.
 *
 * Identifiers are classified at comparison time: an identifier that parses
 * wholly as a decimal uint32 is numeric, anything else is alphanumeric.
 * The heterogeneous comparison rule compares a numeric identifier against
 * the maximal leading-digit prefix of an alphanumeric one, so that
 * "78b" < "86" and "5" < "5a". A version with no pre-release identifiers
 * is greater than an otherwise-equal version with some.
 */

type identifier struct {
	numeric bool
	number  uint32
	text    string
}

func makeIdentifier(s string) identifier {
	trimmed := strings.TrimSpace(s)
	if n, err := strconv.ParseUint(trimmed, 10, 32); err == nil {
		return identifier{numeric: true, number: uint32(n)}
	}
	return identifier{text: strings.ToLower(s)}
}

// leadingNumber extracts the maximal leading-digit prefix of s as a uint32.
// The second result is false when s has no leading digits or the prefix
// overflows.
func leadingNumber(s string) (uint32, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.ParseUint(s[:i], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// compareNumberToText compares a numeric identifier against an
// alphanumeric one, from the numeric side.
func compareNumberToText(n uint32, text string) int {
	prefix, ok := leadingNumber(text)
	if !ok {
		// No digits to compare: numeric values sort below alphanumeric
		// ones.
		return -1
	}
	switch {
	case n < prefix:
		return -1
	case n > prefix:
		return 1
	default:
		if hasNonDigitSuffix(text) {
			// Equal prefix with a suffix left over, e.g. 86 vs "86b".
			return -1
		}
		return 0
	}
}

func hasNonDigitSuffix(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return true
		}
	}
	return false
}

func compareIdentifiers(a, b identifier) int {
	switch {
	case a.numeric && b.numeric:
		switch {
		case a.number < b.number:
			return -1
		case a.number > b.number:
			return 1
		default:
			return 0
		}
	case !a.numeric && !b.numeric:
		return strings.Compare(a.text, b.text)
	case a.numeric:
		return compareNumberToText(a.number, b.text)
	default:
		return -compareNumberToText(b.number, a.text)
	}
}

// Version is a parsed version literal: release identifiers and optional
// pre-release identifiers.
type Version struct {
	release    []identifier
	preRelease []identifier
}

// fourTuple matches the "0, 1, 2, 3" form written by OBSE, SKSE and
// similar script extenders, which reads as "0.1.2.3".
var fourTuple = regexp.MustCompile(`\d+, \d+, \d+, \d+`)

func isReleaseSeparator(r rune) bool {
	return r == '-' || r == ' ' || r == ':' || r == '_'
}

func isPreReleaseSeparator(r rune) bool {
	return r == '.' || isReleaseSeparator(r)
}

// Parse builds a Version from a raw string. Parsing is total: every string
// yields a Version, with the empty string reading as "0".
func Parse(s string) Version {
	s = trimMetadata(s)

	release, preRelease := splitVersionString(s)

	v := Version{}
	for _, id := range strings.FieldsFunc(release, func(r rune) bool { return r == '.' || r == ',' }) {
		v.release = append(v.release, makeIdentifier(id))
	}
	if len(v.release) == 0 {
		v.release = append(v.release, makeIdentifier(release))
	}
	if preRelease != "" {
		for _, id := range strings.FieldsFunc(preRelease, isPreReleaseSeparator) {
			v.preRelease = append(v.preRelease, makeIdentifier(id))
		}
	}
	return v
}

func trimMetadata(s string) string {
	if s == "" {
		return "0"
	}
	if prefix, _, found := strings.Cut(s, "+"); found {
		return prefix
	}
	return s
}

func splitVersionString(s string) (release, preRelease string) {
	if fourTuple.MatchString(s) {
		return s, ""
	}
	i := strings.IndexFunc(s, isReleaseSeparator)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i+1:]
}

// Compare returns -1, 0 or 1 ordering v against other. Release identifiers
// compare pairwise with missing positions reading as zero; an absent
// pre-release sorts above any present one; pre-release identifiers compare
// pairwise with the shorter prefix sorting first.
func (v Version) Compare(other Version) int {
	n := len(v.release)
	if len(other.release) > n {
		n = len(other.release)
	}
	zero := identifier{numeric: true}
	for i := 0; i < n; i++ {
		a, b := zero, zero
		if i < len(v.release) {
			a = v.release[i]
		}
		if i < len(other.release) {
			b = other.release[i]
		}
		if c := compareIdentifiers(a, b); c != 0 {
			return c
		}
	}

	switch {
	case len(v.preRelease) == 0 && len(other.preRelease) == 0:
		return 0
	case len(v.preRelease) == 0:
		return 1
	case len(other.preRelease) == 0:
		return -1
	}

	for i := 0; i < len(v.preRelease) && i < len(other.preRelease); i++ {
		if c := compareIdentifiers(v.preRelease[i], other.preRelease[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(v.preRelease) < len(other.preRelease):
		return -1
	case len(v.preRelease) > len(other.preRelease):
		return 1
	default:
		return 0
	}
}

// FromParts builds a Version from numeric release parts, as decoded from a
// VS_FIXEDFILEINFO block.
func FromParts(parts ...uint32) Version {
	v := Version{}
	for _, p := range parts {
		v.release = append(v.release, identifier{numeric: true, number: p})
	}
	return v
}
