// Package extract turns free text into confirmed ticker symbols using the
// reference word sets. Extraction is pure: identical text and reference
// data always yield identical output.
package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/greyotoc/tickerwatch/pkg/reference"
)

// Candidate core: 1-5 letters, optionally a single separator and 1-2 more
// letters, so formats like BRK.A, BRK-A, and BRK/A all match. Adjacency
// rules are enforced separately since RE2 has no lookaround.
var candidatePattern = regexp.MustCompile(`[a-zA-Z]{1,5}(?:[./^-][a-zA-Z]{1,2})?`)

var separatorNormalizer = strings.NewReplacer(".", "/", "-", "/")

// Engine validates candidate spans against reference data.
type Engine struct {
	ref *reference.Data
}

// New creates an extraction engine over the given reference data.
func New(ref *reference.Data) *Engine {
	return &Engine{ref: ref}
}

// Extract returns the confirmed ticker symbols mentioned in text as a
// sorted, deduplicated slice. Multiplicity within one text is not tracked.
func (e *Engine) Extract(text string) []string {
	if text == "" {
		return nil
	}

	found := make(map[string]struct{})
	for _, loc := range candidatePattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		if !precededOK(text, start) {
			continue
		}
		if !followedOK(text, end) {
			// A trailing alphanumeric invalidates a separator suffix but
			// can leave the bare letter run valid, e.g. "BRK.A1" -> "BRK".
			sep := strings.IndexAny(text[start:end], "./^-")
			if sep < 0 {
				continue
			}
			end = start + sep
		}

		if sym, ok := e.confirm(text[start:end]); ok {
			found[sym] = struct{}{}
		}
	}

	if len(found) == 0 {
		return nil
	}
	symbols := make([]string, 0, len(found))
	for sym := range found {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// confirm applies normalization, the blacklist, universe membership, and
// the casing rule to one candidate token.
func (e *Engine) confirm(token string) (string, bool) {
	sym := strings.ToUpper(separatorNormalizer.Replace(token))

	if _, blocked := e.ref.Blacklist[sym]; blocked {
		return "", false
	}
	if _, known := e.ref.Universe[sym]; !known {
		return "", false
	}

	// Tickers that double as ordinary words or lowercased slang only
	// count when the author wrote them in all caps.
	if _, sensitive := e.ref.CaseSensitive[sym]; sensitive && token != strings.ToUpper(token) {
		return "", false
	}
	return sym, true
}

// A candidate must not directly follow a letter, digit, apostrophe, or
// ampersand (prevents matching inside longer words and after possessives).
func precededOK(text string, start int) bool {
	if start == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:start])
	return !isAlnum(r) && r != '\'' && r != '’' && r != '&'
}

// A candidate must not directly precede a letter, digit, or ampersand. An
// apostrophe is allowed so tickers in possessive form still match.
func followedOK(text string, end int) bool {
	if end >= len(text) {
		return true
	}
	r := rune(text[end])
	return !isAlnum(r) && r != '&'
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
