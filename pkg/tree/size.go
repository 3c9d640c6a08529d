package tree

import "github.com/stselect/stselect/pkg/models"

// AggregateSize sums sizes bottom-up and records on each node whether its
// sum is complete. A file without a size, a directory whose children were
// not loaded, or a node of unknown type makes every ancestor incomplete.
func AggregateSize(n *models.Node) (int64, bool) {
	switch n.Type {
	case models.TypeFile:
		if n.Size == nil {
			n.SizeComplete = false
			return 0, false
		}
		n.SizeComplete = true
		return *n.Size, true
	case models.TypeDirectory:
		if n.Children == nil {
			n.SizeComplete = false
			return 0, false
		}
		total, complete := AggregateAll(n.Children)
		n.SetSize(total)
		n.SizeComplete = complete
		return total, complete
	default:
		n.SizeComplete = false
		return 0, false
	}
}

// AggregateAll aggregates every node and returns the combined sum.
func AggregateAll(nodes []*models.Node) (int64, bool) {
	var total int64
	complete := true
	for _, n := range nodes {
		size, ok := AggregateSize(n)
		total += size
		complete = complete && ok
	}
	return total, complete
}

// MissingSizes returns the paths of files that have no size.
func MissingSizes(nodes []*models.Node) []string {
	var out []string
	Walk(nodes, "", func(path string, n *models.Node) bool {
		if n.Type == models.TypeFile && n.Size == nil {
			out = append(out, path)
		}
		return true
	})
	return out
}
