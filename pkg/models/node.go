// Package models contains the data types shared by the client, tree and session packages.
package models

import "time"

// NodeType is the kind of entry returned by db/browse.
type NodeType string

const (
	TypeFile      NodeType = "file"
	TypeDirectory NodeType = "directory"
)

// SyncState is the derived selection state of a node. It is never stored remotely.
type SyncState string

const (
	StateSyncing      SyncState = "syncing"
	StateIgnored      SyncState = "ignored"
	StatePartial      SyncState = "partial"
	StateGlobalIgnore SyncState = "globalignore"
	StateNewLocal     SyncState = "newlocal"
	StateUnknown      SyncState = "unknown"
)

// Node is a file or directory inside a Syncthing folder.
// Children is nil when the directory contents were not loaded.
type Node struct {
	Name         string     `json:"name"`
	Type         NodeType   `json:"type"`
	Size         *int64     `json:"size,omitempty"`
	ModTime      *time.Time `json:"modTime,omitempty"`
	Children     []*Node    `json:"children,omitempty"`
	Ignored      bool       `json:"ignored"`
	Partial      bool       `json:"partial"`
	SyncState    SyncState  `json:"syncstate,omitempty"`
	SizeComplete bool       `json:"sizeComplete"`
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.Type == TypeDirectory
}

// SetSize stores a known size on the node.
func (n *Node) SetSize(size int64) {
	n.Size = &size
}
