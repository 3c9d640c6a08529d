package syncstate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/syncthing/syncthing/lib/fs"
	"github.com/syncthing/syncthing/lib/ignore"
)

// patternMatcher evaluates ignore patterns with the daemon's own matcher.
type patternMatcher struct {
	m *ignore.Matcher
}

// newPatternMatcher returns nil when there is nothing to match. #include
// lines are dropped since the referenced files live on the daemon's host.
func newPatternMatcher(lines []string) (*patternMatcher, error) {
	patterns := make([]string, 0, len(lines))
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "" || strings.HasPrefix(t, "//") || strings.HasPrefix(t, "#include") {
			continue
		}
		patterns = append(patterns, l)
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	m := ignore.New(fs.NewFilesystem(fs.FilesystemTypeBasic, "."))
	if err := m.Parse(strings.NewReader(strings.Join(patterns, "\n")), ".stignore"); err != nil {
		return nil, fmt.Errorf("parse ignore patterns: %w", err)
	}
	return &patternMatcher{m: m}, nil
}

func (g *patternMatcher) ignored(p string) bool {
	if g == nil {
		return false
	}
	return g.m.Match(filepath.FromSlash(p)).IsIgnored()
}
