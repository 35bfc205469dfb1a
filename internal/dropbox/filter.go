package dropbox

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// Filterer decides whether a remote file is skipped.
type Filterer interface {
	ShouldIgnore(e Entry) bool
}

// ShouldIgnore reports whether any of the filters rejects e.
func ShouldIgnore(e Entry, filters []Filterer) bool {
	for _, f := range filters {
		if f.ShouldIgnore(e) {
			return true
		}
	}
	return false
}

// SampleFilter keeps a file when a uniform draw in [0,1) is at most
// Probability, so 1 keeps everything and 0 keeps almost nothing.
type SampleFilter struct {
	Probability float64
	Rand        func() float64 // Defaults to math/rand/v2
}

func (f *SampleFilter) ShouldIgnore(Entry) bool {
	r := f.Rand
	if r == nil {
		r = rand.Float64
	}
	return r() > f.Probability
}

// ExtensionFilter keeps files by extension. Include and Exclude are mutually
// exclusive; an empty filter keeps everything.
type ExtensionFilter struct {
	include map[string]struct{}
	exclude map[string]struct{}
}

// ErrIncludeExclude is returned when both extension lists are set.
var ErrIncludeExclude = errors.New("include and exclude extensions are mutually exclusive")

// NewExtensionFilter normalises extensions to lower case without a leading
// dot.
func NewExtensionFilter(include, exclude []string) (*ExtensionFilter, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return nil, ErrIncludeExclude
	}
	return &ExtensionFilter{
		include: extensionSet(include),
		exclude: extensionSet(exclude),
	}, nil
}

func (f *ExtensionFilter) ShouldIgnore(e Entry) bool {
	ext := Extension(e.Name)
	if len(f.include) > 0 {
		_, ok := f.include[ext]
		return !ok
	}
	_, ok := f.exclude[ext]
	return ok
}

// Extension returns the lower-cased text after the last dot of name, or ""
// when name has no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			set[ext] = struct{}{}
		}
	}
	return set
}

// ValidateProbability checks p is within [0,1].
func ValidateProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("probability %v must be between 0 and 1", p)
	}
	return nil
}
