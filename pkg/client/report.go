package client

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Report is the subset of svc/report used here.
type Report struct {
	UniqueID    string `json:"uniqueID"`
	Version     string `json:"version"`
	LongVersion string `json:"longVersion"`
	Platform    string `json:"platform"`
	NumFolders  int    `json:"numFolders"`
	NumDevices  int    `json:"numDevices"`
	TotFiles    int    `json:"totFiles"`
	TotMiB      int    `json:"totMiB"`
}

// Report returns the daemon's usage report.
func (c *Client) Report(ctx context.Context) (*Report, error) {
	r := &Report{}
	if err := c.get(ctx, "svc/report", nil, r); err != nil {
		if absent(err) {
			return &Report{}, nil
		}
		return nil, err
	}
	return r, nil
}

// Version returns the daemon version from svc/report. It returns nil
// without error when the daemon does not report one, and an error wrapping
// ErrBadVersion when the reported string is not semver.
func (c *Client) Version(ctx context.Context) (*semver.Version, error) {
	r, err := c.Report(ctx)
	if err != nil {
		return nil, err
	}
	if r.Version == "" {
		return nil, nil
	}
	v, err := semver.NewVersion(r.Version)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadVersion, r.Version, err)
	}
	return v, nil
}
