package kb

import (
	"regexp"
	"strings"
	"sync"

	apperrors "github.com/tanakritw/sheetqna-linebot-go/internal/errors"
	"golang.org/x/text/unicode/norm"
)

// Match holds the result of a successful keyword match.
type Match struct {
	Full     string // full matched substring
	Group    string // first capture group, if the pattern has one
	HasGroup bool
}

// patternCache holds compiled keyword patterns. Sheets change rarely and
// carry at most a few hundred rows, so the cache is never evicted.
var patternCache sync.Map // pattern string -> *regexp.Regexp

// compilePattern compiles a keyword pattern case-insensitively, caching
// successful compilations.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, apperrors.NewPatternError(pattern, err)
	}

	patternCache.Store(pattern, re)
	return re, nil
}

// ValidatePattern reports whether a keyword pattern compiles. Used by
// offline table verification.
func ValidatePattern(pattern string) error {
	_, err := compilePattern(pattern)
	return err
}

// MatchKeyword runs an unanchored, case-insensitive search of pattern
// over text. On a hit it returns the match details and true. A malformed
// pattern returns an error so the caller can skip the row.
func MatchKeyword(pattern, text string) (Match, bool, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return Match{}, false, err
	}

	groups := re.FindStringSubmatch(text)
	if groups == nil {
		return Match{}, false, nil
	}

	m := Match{Full: groups[0]}
	if len(groups) > 1 {
		m.Group = groups[1]
		m.HasGroup = true
	}
	return m, true, nil
}

// NormalizeText prepares an inbound message for matching: trims
// surrounding whitespace and applies NFKC normalization so full-width
// and composed variants match the same patterns.
func NormalizeText(text string) string {
	return strings.TrimSpace(norm.NFKC.String(text))
}
