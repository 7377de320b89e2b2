package filter

import (
	"strings"

	"github.com/klemens/imagehaul/internal/domain"
)

// Keywords matches captions against a configured keyword list.
// Matching is case-insensitive substring containment: a caption matches
// when at least one keyword occurs anywhere in it. The zero-keyword set
// matches everything.
type Keywords struct {
	terms []string // lowercased, trimmed, non-empty
}

// NewKeywords builds a matcher from raw keyword strings. Blank entries
// are dropped.
func NewKeywords(terms []string) *Keywords {
	k := &Keywords{terms: make([]string, 0, len(terms))}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			k.terms = append(k.terms, t)
		}
	}
	return k
}

// ParseKeywords builds a matcher from a comma-separated list.
func ParseKeywords(s string) *Keywords {
	if strings.TrimSpace(s) == "" {
		return NewKeywords(nil)
	}
	return NewKeywords(strings.Split(s, ","))
}

// Match reports whether the caption contains at least one keyword.
func (k *Keywords) Match(caption string) bool {
	if len(k.terms) == 0 {
		return true
	}
	caption = strings.ToLower(caption)
	for _, t := range k.terms {
		if strings.Contains(caption, t) {
			return true
		}
	}
	return false
}

// Terms returns the normalized keyword list.
func (k *Keywords) Terms() []string {
	return k.terms
}

// MinDimensions reports whether the row's declared dimensions meet the
// minimum edge size. A minimum of zero or less disables the check; rows
// with absent dimensions fail it when enabled.
func MinDimensions(row *domain.MetadataRow, min int) bool {
	if min <= 0 {
		return true
	}
	return row.Width >= min && row.Height >= min
}
