package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/config"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
)

// DaemonLister is the slice of the daemon client the catalog needs.
type DaemonLister interface {
	CommunityApps(ctx context.Context) ([]daemon.AppInfo, error)
	InstalledApps(ctx context.Context) ([]daemon.AppInfo, error)
}

// Sources aggregates the three catalog feeds: the remote curated index and
// the daemon's community and installed lists.
type Sources struct {
	http     *resty.Client
	indexURL string
	daemon   DaemonLister
	log      *logging.Logger
}

// NewSources creates the catalog source aggregator. The remote index fetch
// retries; one shot per startup should survive a flaky network.
func NewSources(cfg config.CatalogConfig, lister DaemonLister, log *logging.Logger) *Sources {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 2
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.Logger = nil

	rc := resty.New().
		SetTimeout(cfg.RequestTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("User-Agent", "reachy-mini-bridge/1.0")
	rc.SetTransport(retryClient.HTTPClient.Transport)

	return &Sources{
		http:     rc,
		indexURL: cfg.OfficialIndexURL,
		daemon:   lister,
		log:      log.Named("catalog"),
	}
}

// Official fetches the curated remote index.
func (s *Sources) Official(ctx context.Context) ([]OfficialEntry, error) {
	var entries []OfficialEntry
	resp, err := s.http.R().
		SetContext(ctx).
		SetResult(&entries).
		Get(s.indexURL)
	if err != nil {
		return nil, fmt.Errorf("official index: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("official index: %s", resp.Status())
	}
	return entries, nil
}

// Community fetches the daemon's community catalog.
func (s *Sources) Community(ctx context.Context) ([]daemon.AppInfo, error) {
	return s.daemon.CommunityApps(ctx)
}

// Installed fetches the apps installed on the robot.
func (s *Sources) Installed(ctx context.Context) ([]daemon.AppInfo, error) {
	return s.daemon.InstalledApps(ctx)
}
