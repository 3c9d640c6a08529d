package client

import (
	"context"
	"net/url"
	"sort"

	"github.com/stselect/stselect/pkg/models"
)

// SystemConfig is the subset of system/config this client reads.
type SystemConfig struct {
	Version int            `json:"version"`
	Folders []FolderConfig `json:"folders"`
}

// FolderConfig is a folder entry of system/config.
type FolderConfig struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Path   string `json:"path"`
	Type   string `json:"type"`
	Paused bool   `json:"paused"`
}

// FolderStats returns stats/folder keyed by folder ID.
func (c *Client) FolderStats(ctx context.Context) (map[string]models.FolderStats, error) {
	stats := make(map[string]models.FolderStats)
	if err := c.get(ctx, "stats/folder", nil, &stats); err != nil {
		if absent(err) {
			return map[string]models.FolderStats{}, nil
		}
		return nil, err
	}
	return stats, nil
}

// FolderIDs returns the IDs of all folders known to stats/folder, sorted.
func (c *Client) FolderIDs(ctx context.Context) ([]string, error) {
	stats, err := c.FolderStats(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Config returns system/config.
func (c *Client) Config(ctx context.Context) (*SystemConfig, error) {
	cfg := &SystemConfig{}
	if err := c.get(ctx, "system/config", nil, cfg); err != nil {
		if absent(err) {
			return &SystemConfig{}, nil
		}
		return nil, err
	}
	return cfg, nil
}

// Folders merges stats/folder with the labels and paths from system/config.
// Folders missing from the config keep an empty label and path.
func (c *Client) Folders(ctx context.Context) ([]models.Folder, error) {
	stats, err := c.FolderStats(ctx)
	if err != nil {
		return nil, err
	}
	cfg, err := c.Config(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]FolderConfig, len(cfg.Folders))
	for _, f := range cfg.Folders {
		byID[f.ID] = f
	}

	folders := make([]models.Folder, 0, len(stats))
	for id, st := range stats {
		f := models.Folder{
			ID:       id,
			LastScan: st.LastScan,
			LastFile: st.LastFile,
		}
		if fc, ok := byID[id]; ok {
			f.Label = fc.Label
			f.Path = fc.Path
			f.Type = fc.Type
		}
		folders = append(folders, f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].ID < folders[j].ID })
	return folders, nil
}

// FolderStatus returns the aggregate counters from db/status.
func (c *Client) FolderStatus(ctx context.Context, folder string) (*models.FolderStatus, error) {
	status := &models.FolderStatus{}
	if err := c.get(ctx, "db/status", url.Values{"folder": {folder}}, status); err != nil {
		if absent(err) {
			return &models.FolderStatus{}, nil
		}
		return nil, err
	}
	return status, nil
}

// WithStatus fills the aggregate byte and file counts of each folder.
func (c *Client) WithStatus(ctx context.Context, folders []models.Folder) error {
	for i := range folders {
		st, err := c.FolderStatus(ctx, folders[i].ID)
		if err != nil {
			return err
		}
		folders[i].GlobalBytes = st.GlobalBytes
		folders[i].GlobalFiles = st.GlobalFiles
		folders[i].LocalBytes = st.LocalBytes
		folders[i].LocalFiles = st.LocalFiles
	}
	return nil
}
