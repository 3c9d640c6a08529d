package selective

import (
	"context"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/stselect/stselect/internal/logging"
	"github.com/stselect/stselect/pkg/ignores"
)

// Mutation edits a parsed selection in place.
type Mutation func(sel *ignores.Selection) error

// Include returns a mutation selecting p and everything below it.
func Include(p string) Mutation {
	return func(sel *ignores.Selection) error {
		return sel.Include(p)
	}
}

// Exclude returns a mutation deselecting p. Fully selected ancestors are
// split using the directory listings from children.
func Exclude(p string, children ignores.ChildrenFunc) Mutation {
	return func(sel *ignores.Selection) error {
		return sel.Exclude(p, children)
	}
}

// Change describes a block rewrite.
type Change struct {
	Folder string
	Old    []string
	New    []string
}

// Changed reports whether the rewrite alters the block.
func (c *Change) Changed() bool {
	if len(c.Old) != len(c.New) {
		return true
	}
	for i := range c.Old {
		if c.Old[i] != c.New[i] {
			return true
		}
	}
	return false
}

// Diff renders the change line by line, prefixing removed lines with "-",
// added lines with "+" and unchanged ones with a space.
func (c *Change) Diff() string {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(joinLines(c.Old), joinLines(c.New))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Preview applies m to the folder's current selection without writing it.
func (s *Session) Preview(ctx context.Context, folder string, m Mutation) (*Change, error) {
	old, err := s.store.ReadSelective(ctx, folder)
	if err != nil {
		return nil, err
	}
	sel := ignores.ParseSelection(old)
	if err := m(sel); err != nil {
		return nil, err
	}
	return &Change{
		Folder: folder,
		Old:    ignores.Normalize(old),
		New:    ignores.Normalize(sel.Lines()),
	}, nil
}

// Apply applies m and writes the block back when it changed.
func (s *Session) Apply(ctx context.Context, folder string, m Mutation) (*Change, error) {
	c, err := s.Preview(ctx, folder, m)
	if err != nil {
		return nil, err
	}
	if !c.Changed() {
		logging.WithContext(logging.WithFolder(ctx, folder), s.log).Debug("selection unchanged")
		return c, nil
	}
	if err := s.store.WriteSelective(ctx, folder, c.New); err != nil {
		return nil, err
	}
	s.Invalidate(folder)
	return c, nil
}

// Select fully selects path in folder.
func (s *Session) Select(ctx context.Context, folder, path string) (*Change, error) {
	return s.Apply(ctx, folder, Include(path))
}

// Unselect deselects path in folder.
func (s *Session) Unselect(ctx context.Context, folder, path string) (*Change, error) {
	return s.Apply(ctx, folder, Exclude(path, s.Children(ctx, folder)))
}
