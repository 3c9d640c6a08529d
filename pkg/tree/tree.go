// Package tree provides utilities for working with folder trees returned by
// db/browse.
package tree

import (
	"strings"

	"github.com/stselect/stselect/pkg/models"
)

// Find resolves a folder-relative path in a list of top-level nodes.
func Find(nodes []*models.Node, path string) *models.Node {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	name, rest, more := strings.Cut(path, "/")
	for _, n := range nodes {
		if n.Name != name {
			continue
		}
		if !more {
			return n
		}
		return Find(n.Children, rest)
	}
	return nil
}

// ChildPath constructs a child path from parent + name. The folder root is "".
func ChildPath(parentPath, name string) string {
	if parentPath == "" {
		return name
	}
	return parentPath + "/" + name
}

// Walk calls fn for every node, parents before children, with the node's
// folder-relative path. Returning false from fn skips the node's children.
func Walk(nodes []*models.Node, parentPath string, fn func(path string, n *models.Node) bool) {
	for _, n := range nodes {
		p := ChildPath(parentPath, n.Name)
		if fn(p, n) {
			Walk(n.Children, p, fn)
		}
	}
}

// CountNodes counts all nodes in a tree.
func CountNodes(nodes []*models.Node) int {
	count := 0
	for _, n := range nodes {
		count += 1 + CountNodes(n.Children)
	}
	return count
}

// Names returns the names of the given nodes in order.
func Names(nodes []*models.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

// Flatten returns all nodes in a flat map keyed by path.
func Flatten(nodes []*models.Node) map[string]*models.Node {
	result := make(map[string]*models.Node)
	Walk(nodes, "", func(path string, n *models.Node) bool {
		result[path] = n
		return true
	})
	return result
}
