package ignores

import (
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/gobwas/glob/syntax"
)

// Mark is the selection state recorded for a path in the block.
type Mark int

const (
	Unmarked Mark = iota
	Full          // the path and everything below it is synced
	Partial       // the directory is synced, its contents only where marked
)

// ErrRootPath is returned when selecting or deselecting the folder root.
var ErrRootPath = errors.New("the folder root cannot be selected individually")

// ChildrenFunc lists the entry names directly inside dir ("" is the folder root).
type ChildrenFunc func(dir string) ([]string, error)

// Selection is the block interior parsed into per-path marks.
//
// Lines renders it so that Syncthing's first-match evaluation reproduces the
// marks: every `!/p` for fully selected paths first, then for each partial
// directory, deepest first, `/d/**` followed by `!/d`.
type Selection struct {
	marks map[string]Mark
	extra []string
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{marks: make(map[string]Mark)}
}

// ParseSelection parses block interior lines. Lines that are neither a
// literal include (`!/p`) nor a literal partial marker (`/p/**`) are kept
// verbatim. Escaped metacharacters count as literal.
func ParseSelection(interior []string) *Selection {
	s := NewSelection()
	var full []string
	for _, raw := range interior {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "!/") {
			if p, ok := literal(line[2:]); ok {
				full = append(full, p)
				continue
			}
		}
		if len(line) > 4 && strings.HasPrefix(line, "/") && strings.HasSuffix(line, "/**") {
			if p, ok := literal(line[1 : len(line)-3]); ok {
				s.marks[p] = Partial
				continue
			}
		}
		s.extra = append(s.extra, raw)
	}
	for _, p := range full {
		if s.marks[p] != Partial {
			s.marks[p] = Full
		}
	}
	return s
}

// Escape quotes the glob metacharacters in p so the daemon matches it
// verbatim.
func Escape(p string) string {
	return glob.QuoteMeta(p)
}

// literal unescapes a pattern body and cleans it. ok is false for the root
// and for bodies holding an unescaped metacharacter.
func literal(pattern string) (p string, ok bool) {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\':
			if i+1 == len(pattern) {
				return "", false
			}
			i++
			b.WriteByte(pattern[i])
		case syntax.Special(c):
			return "", false
		default:
			b.WriteByte(c)
		}
	}
	p = cleanSlash(b.String())
	return p, p != ""
}

// Clean normalizes a folder-relative path: forward slashes, no leading or
// trailing slash, "" for the root.
func Clean(p string) string {
	return cleanSlash(strings.ReplaceAll(p, "\\", "/"))
}

// cleanSlash is Clean for paths already using forward slashes, where a
// backslash is part of a name.
func cleanSlash(p string) string {
	return strings.Trim(path.Clean("/"+p), "/")
}

// Mark returns the mark recorded for p itself.
func (s *Selection) Mark(p string) Mark {
	return s.marks[Clean(p)]
}

// Extra returns the block lines that are neither includes nor partial markers.
func (s *Selection) Extra() []string {
	return s.extra
}

// Len returns the number of marked paths.
func (s *Selection) Len() int {
	return len(s.marks)
}

// Paths returns the marked paths, sorted.
func (s *Selection) Paths() []string {
	out := make([]string, 0, len(s.marks))
	for p := range s.marks {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Covered reports whether p is synced because of its own Full mark or
// the nearest marked ancestor's Full mark.
func (s *Selection) Covered(p string) bool {
	p = Clean(p)
	if m, ok := s.marks[p]; ok {
		return m == Full
	}
	for a := parent(p); a != ""; a = parent(a) {
		switch s.marks[a] {
		case Full:
			return true
		case Partial:
			return false
		}
	}
	return false
}

// HasMarkedDescendant reports whether any path below p carries a mark.
func (s *Selection) HasMarkedDescendant(p string) bool {
	prefix := Clean(p) + "/"
	for q := range s.marks {
		if strings.HasPrefix(q, prefix) {
			return true
		}
	}
	return false
}

// Include selects p and everything below it. Ancestors that are not
// already covered become partial.
func (s *Selection) Include(p string) error {
	p = Clean(p)
	if p == "" {
		return ErrRootPath
	}
	if s.coveredByAncestor(p) {
		s.dropSubtree(p)
		return nil
	}

	s.dropSubtree(p)
	s.marks[p] = Full
	for a := parent(p); a != ""; a = parent(a) {
		if s.marks[a] != Full {
			s.marks[a] = Partial
		}
	}
	return nil
}

// Exclude deselects p and everything below it. A fully selected ancestor
// is split into partial directories whose other children, as listed by
// children, stay selected.
func (s *Selection) Exclude(p string, children ChildrenFunc) error {
	p = Clean(p)
	if p == "" {
		return ErrRootPath
	}

	if top := s.fullAncestor(p); top != "" {
		for d := top; d != p; {
			next := childOnPath(d, p)
			names, err := children(d)
			if err != nil {
				return err
			}
			s.marks[d] = Partial
			for _, name := range names {
				c := join(d, name)
				if c != next {
					s.marks[c] = Full
				}
			}
			d = next
		}
	}

	s.dropSubtree(p)
	for a := parent(p); a != ""; a = parent(a) {
		if s.marks[a] != Partial || s.HasMarkedDescendant(a) {
			break
		}
		delete(s.marks, a)
	}
	return nil
}

// Lines renders the selection as block interior lines, without the
// trailing blank line added by Normalize.
func (s *Selection) Lines() []string {
	var full, partial []string
	for p, m := range s.marks {
		if m == Full {
			full = append(full, p)
		} else {
			partial = append(partial, p)
		}
	}
	sort.Strings(full)
	sort.Slice(partial, func(i, j int) bool {
		di, dj := depth(partial[i]), depth(partial[j])
		if di != dj {
			return di > dj
		}
		return partial[i] < partial[j]
	})

	out := make([]string, 0, len(s.extra)+len(full)+2*len(partial))
	out = append(out, s.extra...)
	for _, p := range full {
		out = append(out, "!/"+Escape(p))
	}
	for _, p := range partial {
		e := Escape(p)
		out = append(out, "/"+e+"/**", "!/"+e)
	}
	return out
}

func (s *Selection) coveredByAncestor(p string) bool {
	return s.fullAncestor(p) != ""
}

// fullAncestor returns the nearest strict ancestor of p marked Full, or ""
// if a partial ancestor or the root is reached first.
func (s *Selection) fullAncestor(p string) string {
	for a := parent(p); a != ""; a = parent(a) {
		switch s.marks[a] {
		case Full:
			return a
		case Partial:
			return ""
		}
	}
	return ""
}

func (s *Selection) dropSubtree(p string) {
	prefix := p + "/"
	for q := range s.marks {
		if q == p || strings.HasPrefix(q, prefix) {
			delete(s.marks, q)
		}
	}
}

func parent(p string) string {
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return ""
	}
	return p[:i]
}

func join(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// childOnPath returns the child of dir that is p or an ancestor of p.
func childOnPath(dir, p string) string {
	rest := strings.TrimPrefix(p, dir+"/")
	if i := strings.Index(rest, "/"); i >= 0 {
		rest = rest[:i]
	}
	return join(dir, rest)
}

func depth(p string) int {
	return strings.Count(p, "/")
}
