package client

import (
	"context"
	"net/url"
)

// Ignores is the db/ignores payload. Expanded is only present in responses.
type Ignores struct {
	Ignore   []string `json:"ignore"`
	Expanded []string `json:"expanded,omitempty"`
}

// Ignores returns the raw and expanded ignore patterns of a folder.
func (c *Client) Ignores(ctx context.Context, folder string) (*Ignores, error) {
	ig := &Ignores{}
	if err := c.get(ctx, "db/ignores", url.Values{"folder": {folder}}, ig); err != nil {
		if !absent(err) {
			return nil, err
		}
	}
	if ig.Ignore == nil {
		ig.Ignore = []string{}
	}
	return ig, nil
}

// IgnoreList returns the ignore pattern lines of a folder. A null list is
// returned as an empty slice.
func (c *Client) IgnoreList(ctx context.Context, folder string) ([]string, error) {
	ig, err := c.Ignores(ctx, folder)
	if err != nil {
		return nil, err
	}
	return ig.Ignore, nil
}

// SetIgnoreList replaces the ignore pattern lines of a folder.
func (c *Client) SetIgnoreList(ctx context.Context, folder string, lines []string) error {
	if lines == nil {
		lines = []string{}
	}
	return c.post(ctx, "db/ignores", url.Values{"folder": {folder}}, Ignores{Ignore: lines})
}
