package models

import "time"

// Folder is a Syncthing folder merged from stats/folder and system/config.
type Folder struct {
	ID       string    `json:"id"`
	Label    string    `json:"label"`
	Path     string    `json:"path"`
	Type     string    `json:"type,omitempty"`
	LastScan time.Time `json:"lastScan"`
	LastFile LastFile  `json:"lastFile"`

	// Filled from db/status only when requested.
	GlobalBytes int64 `json:"globalBytes,omitempty"`
	GlobalFiles int64 `json:"globalFiles,omitempty"`
	LocalBytes  int64 `json:"localBytes,omitempty"`
	LocalFiles  int64 `json:"localFiles,omitempty"`
}

// DisplayName returns the label, or the ID when the folder has no label.
func (f Folder) DisplayName() string {
	if f.Label != "" {
		return f.Label
	}
	return f.ID
}

// LastFile is the most recently synced file reported by stats/folder.
type LastFile struct {
	At       time.Time `json:"at"`
	Filename string    `json:"filename"`
	Deleted  bool      `json:"deleted"`
}

// FolderStats is one entry of the stats/folder response.
type FolderStats struct {
	LastScan time.Time `json:"lastScan"`
	LastFile LastFile  `json:"lastFile"`
}

// FolderStatus is the subset of db/status used for aggregate counts.
type FolderStatus struct {
	GlobalBytes int64  `json:"globalBytes"`
	GlobalFiles int64  `json:"globalFiles"`
	LocalBytes  int64  `json:"localBytes"`
	LocalFiles  int64  `json:"localFiles"`
	NeedBytes   int64  `json:"needBytes"`
	NeedFiles   int64  `json:"needFiles"`
	State       string `json:"state"`
}
