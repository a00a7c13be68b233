package daemon

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/config"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
)

// Client talks to the robot daemon's HTTP API. Requests are single-shot:
// readiness polling owns its own cadence, so a failed poll must fail fast
// instead of retrying inside the transport.
type Client struct {
	http *resty.Client
	log  *logging.Logger
}

// NewClient creates a daemon API client.
func NewClient(cfg config.DaemonConfig, log *logging.Logger) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "reachy-mini-bridge/1.0")

	return &Client{http: rc, log: log.Named("daemon")}
}

// Status checks daemon liveness. A 200 from /daemon/status means alive;
// everything else, including transport errors, means not alive.
func (c *Client) Status(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/daemon/status")
	if err != nil {
		return fmt.Errorf("daemon status: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("daemon status: %s", resp.Status())
	}
	return nil
}

// FullState fetches the complete state document with every optional section
// requested. The document is shape-checked before it is returned.
func (c *Client) FullState(ctx context.Context) (FullState, error) {
	var state FullState
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"with_control_mode":      "true",
			"with_head_joints":       "true",
			"with_body_yaw":          "true",
			"with_antenna_positions": "true",
		}).
		SetResult(&state).
		Get("/state/full")
	if err != nil {
		return FullState{}, fmt.Errorf("full state: %w", err)
	}
	if resp.IsError() {
		return FullState{}, fmt.Errorf("full state: %s", resp.Status())
	}
	if err := state.Validate(); err != nil {
		return FullState{}, fmt.Errorf("full state: %w", err)
	}
	return state, nil
}

// CommunityApps fetches the daemon's community app catalog.
func (c *Client) CommunityApps(ctx context.Context) ([]AppInfo, error) {
	return c.appList(ctx, "/apps/community")
}

// InstalledApps fetches the apps installed on the robot.
func (c *Client) InstalledApps(ctx context.Context) ([]AppInfo, error) {
	return c.appList(ctx, "/apps/installed")
}

func (c *Client) appList(ctx context.Context, path string) ([]AppInfo, error) {
	var apps []AppInfo
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&apps).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("app list %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("app list %s: %s", path, resp.Status())
	}
	return apps, nil
}
