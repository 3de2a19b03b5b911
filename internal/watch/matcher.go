package watch

import (
	"os"
	"path/filepath"
	"sort"

	"dcmview/internal/config"
	"dcmview/internal/errors"

	"github.com/gobwas/glob"
)

// Matcher decides by file name whether a path looks like a DICOM file
type Matcher struct {
	patterns []string
	globs    []glob.Glob
	sniff    bool
}

// NewMatcher compiles filename patterns such as "*.dcm" or "IM_*"
func NewMatcher(patterns []string) (*Matcher, error) {
	m := &Matcher{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.NewConfigError("invalid pattern "+p, "watch.patterns", errors.InvalidConfig, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// NewMatcherFromConfig builds the matcher described by the watch section
func NewMatcherFromConfig(cfg *config.Config) (*Matcher, error) {
	m, err := NewMatcher(cfg.Watch.Patterns)
	if err != nil {
		return nil, err
	}
	m.sniff = cfg.Watch.SniffContent
	return m, nil
}

// SetSniffing turns header sniffing for directory entries on or off
func (m *Matcher) SetSniffing(on bool) {
	m.sniff = on
}

// MatchAll returns a matcher that accepts every name
func MatchAll() *Matcher {
	return &Matcher{}
}

// Match reports whether the base name of path matches any pattern.
// A matcher without patterns matches everything.
func (m *Matcher) Match(path string) bool {
	if len(m.globs) == 0 {
		return true
	}
	name := filepath.Base(path)
	for _, g := range m.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Patterns returns the source patterns
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.patterns...)
}

// Expand turns command line arguments into file paths. Files are kept as
// given whatever their name; directories contribute their accepted regular
// files (not recursively) sorted by name.
func Expand(args []string, m *Matcher) ([]string, error) {
	if m == nil {
		m = MatchAll()
	}
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			kind := errors.FileAccessDenied
			if os.IsNotExist(err) {
				kind = errors.FileNotFound
			}
			return nil, errors.NewFileError("cannot open", arg, kind, err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, errors.NewFileError("cannot read directory", arg, errors.FileAccessDenied, err)
		}
		var names []string
		for _, e := range entries {
			if e.Type().IsRegular() && m.Accept(filepath.Join(arg, e.Name())) {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(arg, n))
		}
	}
	return out, nil
}
