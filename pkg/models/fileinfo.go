package models

import (
	"encoding/json"
	"time"
)

// FileRecord is a global or local entry of the db/file response.
type FileRecord struct {
	Name          string          `json:"name"`
	Type          json.RawMessage `json:"type"`
	Size          int64           `json:"size"`
	Modified      time.Time       `json:"modified"`
	Deleted       bool            `json:"deleted"`
	Ignored       bool            `json:"ignored"`
	Invalid       bool            `json:"invalid"`
	LocalFlags    int             `json:"localFlags"`
	NoPermissions bool            `json:"noPermissions"`
	Sequence      int64           `json:"sequence"`
}

// Exists reports whether the record carries a file at all. The daemon
// returns an empty object for the missing side.
func (r *FileRecord) Exists() bool {
	return r != nil && r.Name != ""
}

// FileInfo is the db/file response.
type FileInfo struct {
	Availability []json.RawMessage `json:"availability"`
	Global       *FileRecord       `json:"global"`
	Local        *FileRecord       `json:"local"`
}
