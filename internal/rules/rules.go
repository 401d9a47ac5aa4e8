package rules

import (
	"regexp"
	"strings"
)

// DescriptionHandler is a secondary expression tested against the Description
// field of a matched line. Timeline marks matching records for inclusion in
// the merged timeline.
type DescriptionHandler struct {
	Timeline bool
	Regex    *regexp.Regexp
}

// AccessType is a semantic event category (Logon, User_activity, ...) holding
// the handlers evaluated for lines that carry this category.
type AccessType struct {
	Name     string
	Handlers []DescriptionHandler
}

// ContentPattern recognizes the structure of a log line via named capture
// groups. Every pattern must define at least Timestamp and Description.
type ContentPattern struct {
	Regex       *regexp.Regexp
	AccessTypes []AccessType
}

// Columns returns the pattern's named capture groups in declaration order.
func (cp *ContentPattern) Columns() []string {
	var cols []string
	for _, name := range cp.Regex.SubexpNames() {
		if name != "" {
			cols = append(cols, name)
		}
	}
	return cols
}

// LogIdentifier describes one log family: the prefix used for content-pattern
// lookup, the anchored expression matching all on-disk names for the family
// (rotated and gzipped variants included), and the ordered content patterns.
type LogIdentifier struct {
	FilenameStart   string
	FilenamePattern *regexp.Regexp
	ContentPatterns []ContentPattern
}

// Table is an ordered set of log identifiers. It is immutable after
// construction and safe for concurrent readers.
type Table []LogIdentifier

// UnionFilenamePattern compiles the case-insensitive alternation of all
// filename patterns in the table. Archive extraction uses it to decide which
// members are worth keeping.
func (t Table) UnionFilenamePattern() *regexp.Regexp {
	patterns := make([]string, 0, len(t))
	for i := range t {
		patterns = append(patterns, t[i].FilenamePattern.String())
	}
	return regexp.MustCompile("(?i)" + strings.Join(patterns, "|"))
}

// ForFile returns the identifier whose FilenameStart prefixes baseName, or
// false when the file belongs to no known family.
func (t Table) ForFile(baseName string) (*LogIdentifier, bool) {
	for i := range t {
		if strings.HasPrefix(baseName, t[i].FilenameStart) {
			return &t[i], true
		}
	}
	return nil, false
}

// MatchesFilename reports whether baseName is a valid on-disk name for any
// family in the table.
func (t Table) MatchesFilename(baseName string) bool {
	for i := range t {
		if t[i].FilenamePattern.MatchString(baseName) {
			return true
		}
	}
	return false
}
