package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nlukyanov/mailbox-sizes/directory"
)

// DefaultMinUserID is the lowest id belonging to a regular person in the
// directory; ids below it are reserved for service accounts.
const DefaultMinUserID = 1130000000000000

// Options captures the eligibility configuration.
type Options struct {
	IncludeEmail []string
	ExcludeEmail []string
	MinUserID    int64
}

// Filter decides which directory users get a mailbox walk.
type Filter struct {
	includeMode  bool
	excludeMode  bool
	includeEmail []*regexp.Regexp
	excludeEmail []*regexp.Regexp
	minUserID    int64
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	includeEmail, err := compilePatterns(opts.IncludeEmail)
	if err != nil {
		return nil, fmt.Errorf("compile include-email pattern: %w", err)
	}
	excludeEmail, err := compilePatterns(opts.ExcludeEmail)
	if err != nil {
		return nil, fmt.Errorf("compile exclude-email pattern: %w", err)
	}

	if len(includeEmail) > 0 && len(excludeEmail) > 0 {
		return nil, fmt.Errorf("include and exclude filters are mutually exclusive")
	}

	minUserID := opts.MinUserID
	if minUserID == 0 {
		minUserID = DefaultMinUserID
	}

	return &Filter{
		includeMode:  len(includeEmail) > 0,
		excludeMode:  len(excludeEmail) > 0,
		includeEmail: includeEmail,
		excludeEmail: excludeEmail,
		minUserID:    minUserID,
	}, nil
}

// Eligible returns true if the user's mailbox should be walked. Disabled
// users and service accounts are never eligible.
func (f *Filter) Eligible(user directory.User) bool {
	if !user.IsEnabled || user.ID < f.minUserID {
		return false
	}

	if f.includeMode {
		return matchAny(f.includeEmail, user.Email)
	}
	if f.excludeMode {
		return !matchAny(f.excludeEmail, user.Email)
	}
	return true
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
