// Package syncstate derives per-node selection state from a folder's ignore
// patterns.
package syncstate

import (
	"github.com/stselect/stselect/pkg/ignores"
	"github.com/stselect/stselect/pkg/models"
	"github.com/stselect/stselect/pkg/tree"
)

// Resolver answers selection questions for one folder's ignore list.
type Resolver struct {
	sel    *ignores.Selection
	global *patternMatcher

	// block evaluates hand-written block lines that are not plain
	// include or partial markers.
	block *patternMatcher

	// unmanaged is set when the ignore list has no block; nothing is
	// deselected then.
	unmanaged bool
}

// New builds a resolver from a folder's full ignore list. Lines inside the
// managed block drive the selection; the rest decide global ignores.
func New(lines []string, codec ignores.Codec) (*Resolver, error) {
	r, err := FromParts(codec.Read(lines), codec.Outside(lines))
	if err != nil {
		return nil, err
	}
	_, _, ok := codec.Find(lines)
	r.unmanaged = !ok
	return r, nil
}

// FromParts builds a resolver from the block interior and the patterns
// outside of it, for a folder that has the block.
func FromParts(selective, global []string) (*Resolver, error) {
	g, err := newPatternMatcher(global)
	if err != nil {
		return nil, err
	}
	r := &Resolver{sel: ignores.ParseSelection(selective), global: g}

	if len(r.sel.Extra()) > 0 {
		lines := append(append([]string{}, selective...), ignores.IgnoreRest)
		if r.block, err = newPatternMatcher(lines); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Selection returns the parsed block.
func (r *Resolver) Selection() *ignores.Selection {
	return r.sel
}

// GlobalIgnored reports whether p is ignored by patterns outside the block.
func (r *Resolver) GlobalIgnored(p string) bool {
	return r.global.ignored(p)
}

// PathState resolves p from the patterns alone.
func (r *Resolver) PathState(p string) models.SyncState {
	p = ignores.Clean(p)
	switch {
	case r.GlobalIgnored(p):
		return models.StateGlobalIgnore
	case r.unmanaged:
		return models.StateSyncing
	case r.sel.Mark(p) == ignores.Partial:
		return models.StatePartial
	case r.sel.Covered(p):
		return models.StateSyncing
	case r.sel.HasMarkedDescendant(p):
		return models.StatePartial
	case r.block != nil && !r.block.ignored(p):
		return models.StateSyncing
	default:
		return models.StateIgnored
	}
}

// Annotate sets Ignored, Partial and SyncState on every node. parent is the
// folder-relative path of the directory holding nodes, "" for the root.
//
// Children are resolved first. A directory with neither an explicit partial
// marker nor a covering include falls back to its children: partial when
// some are synced, syncing when all are.
func (r *Resolver) Annotate(nodes []*models.Node, parent string) {
	for _, n := range nodes {
		r.annotate(n, tree.ChildPath(parent, n.Name))
	}
}

func (r *Resolver) annotate(n *models.Node, p string) {
	if n.Children != nil {
		r.Annotate(n.Children, p)
	}

	state := r.PathState(p)
	if state == models.StateIgnored && n.IsDir() && len(n.Children) > 0 {
		state = fromChildren(n.Children)
	}
	setState(n, state)
}

func fromChildren(children []*models.Node) models.SyncState {
	synced, ignored := 0, 0
	for _, c := range children {
		switch c.SyncState {
		case models.StateSyncing:
			synced++
		case models.StatePartial:
			synced++
			ignored++
		default:
			ignored++
		}
	}
	switch {
	case synced == 0:
		return models.StateIgnored
	case ignored == 0:
		return models.StateSyncing
	default:
		return models.StatePartial
	}
}

func setState(n *models.Node, state models.SyncState) {
	n.SyncState = state
	n.Partial = state == models.StatePartial
	n.Ignored = state == models.StateIgnored || state == models.StateGlobalIgnore
}

// FileState combines db/file with the patterns. A path unknown to the
// daemon is unknown; a path only present locally is newlocal. A path the
// patterns select but the daemon flags as ignored is matched by a rule the
// resolver cannot see (an #include file, for instance) and counts as a
// global ignore.
func (r *Resolver) FileState(p string, fi *models.FileInfo) models.SyncState {
	if fi == nil || (!fi.Local.Exists() && !fi.Global.Exists()) {
		return models.StateUnknown
	}
	if fi.Local.Exists() && !fi.Global.Exists() {
		return models.StateNewLocal
	}
	state := r.PathState(p)
	if state == models.StateSyncing && fi.Global.Ignored {
		return models.StateGlobalIgnore
	}
	return state
}
