package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/stselect/stselect/pkg/models"
)

// Browse returns the raw db/browse payload. Its shape depends on the daemon
// version; pkg/tree normalizes it. levels < 0 leaves the depth to the daemon.
// A missing folder yields an empty payload.
func (c *Client) Browse(ctx context.Context, folder, prefix string, levels int) (json.RawMessage, error) {
	q := url.Values{"folder": {folder}}
	if prefix != "" {
		q.Set("prefix", prefix)
	}
	if levels >= 0 {
		q.Set("levels", strconv.Itoa(levels))
	}

	var raw json.RawMessage
	if err := c.get(ctx, "db/browse", q, &raw); err != nil {
		if absent(err) {
			return json.RawMessage{}, nil
		}
		return nil, err
	}
	return raw, nil
}

// FileInfo returns db/file for a path relative to the folder root. A file
// unknown to the daemon yields an empty FileInfo.
func (c *Client) FileInfo(ctx context.Context, folder, path string) (*models.FileInfo, error) {
	fi := &models.FileInfo{}
	q := url.Values{"folder": {folder}, "file": {path}}
	if err := c.get(ctx, "db/file", q, fi); err != nil {
		if absent(err) {
			return &models.FileInfo{}, nil
		}
		return nil, err
	}
	return fi, nil
}
