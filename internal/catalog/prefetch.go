package catalog

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pollen-robotics/reachy-mini-bridge/internal/daemon"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/logging"
	"github.com/pollen-robotics/reachy-mini-bridge/internal/monitoring"
)

// Prefetcher assembles the app catalog once per startup so the home screen
// has zero-latency data.
type Prefetcher struct {
	sources *Sources
	store   *Store
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// Result reports what a prefetch assembled.
type Result struct {
	Entries       int
	FailedSources []string
}

// Partial reports whether any source failed.
func (r Result) Partial() bool {
	return len(r.FailedSources) > 0
}

// NewPrefetcher creates a prefetcher publishing into store.
func NewPrefetcher(sources *Sources, store *Store, log *logging.Logger, metrics *monitoring.Metrics) *Prefetcher {
	return &Prefetcher{
		sources: sources,
		store:   store,
		log:     log.Named("prefetch"),
		metrics: metrics,
	}
}

// Prefetch fetches all three sources concurrently and replaces the store
// snapshot. A failing source degrades to an empty list; the merge always
// completes and always replaces the previous catalog.
func (p *Prefetcher) Prefetch(ctx context.Context) Result {
	var (
		official  []OfficialEntry
		community []daemon.AppInfo
		installed []daemon.AppInfo

		mu     sync.Mutex
		failed []string
	)

	markFailed := func(source string, err error) {
		p.log.Warn("catalog source failed", zap.String("source", source), zap.Error(err))
		p.metrics.RecordCatalogFetch(source, "error")
		mu.Lock()
		failed = append(failed, source)
		mu.Unlock()
	}

	// Errors are reported per-source, never failing the group: a store
	// outage must not hide the robot's own apps.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := p.sources.Official(gctx)
		if err != nil {
			markFailed("official", err)
			return nil
		}
		p.metrics.RecordCatalogFetch("official", "ok")
		official = list
		return nil
	})
	g.Go(func() error {
		list, err := p.sources.Community(gctx)
		if err != nil {
			markFailed("community", err)
			return nil
		}
		p.metrics.RecordCatalogFetch("community", "ok")
		community = list
		return nil
	})
	g.Go(func() error {
		list, err := p.sources.Installed(gctx)
		if err != nil {
			markFailed("installed", err)
			return nil
		}
		p.metrics.RecordCatalogFetch("installed", "ok")
		installed = list
		return nil
	})
	_ = g.Wait()

	entries := merge(official, community, installed)
	p.store.Replace(entries)
	p.metrics.SetCatalogApps(len(entries))

	p.log.Info("catalog assembled",
		zap.Int("entries", len(entries)),
		zap.Int("official", len(official)),
		zap.Int("community", len(community)),
		zap.Int("installed", len(installed)),
		zap.Strings("failed_sources", failed),
	)

	return Result{Entries: len(entries), FailedSources: failed}
}

// merge builds the catalog snapshot: official then community, deduplicated
// by lower-cased name (first occurrence wins), installed-only apps appended
// as synthesized local entries, then metadata backfilled from the official
// index so an installed official app keeps its display metadata.
func merge(official []OfficialEntry, community, installed []daemon.AppInfo) []Entry {
	seen := make(map[string]int)
	out := make([]Entry, 0, len(official)+len(community))

	add := func(key string, e Entry) {
		seen[key] = len(out)
		out = append(out, e)
	}

	for _, o := range official {
		key := strings.ToLower(o.Name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		add(key, Entry{
			Name:        o.Name,
			ID:          o.SpaceID,
			Description: o.Description,
			URL:         o.URL,
			SourceKind:  SourceHFSpace,
			IsOfficial:  true,
		})
	}

	for _, c := range community {
		key := strings.ToLower(c.Name)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		add(key, Entry{
			Name:        c.Name,
			Description: c.Description,
			URL:         c.URL,
			SourceKind:  SourceHFSpace,
			Extra:       versionExtra(c.Version),
		})
	}

	for _, ins := range installed {
		key := strings.ToLower(ins.Name)
		if key == "" {
			continue
		}
		if idx, ok := seen[key]; ok {
			out[idx].IsInstalled = true
			continue
		}
		add(key, Entry{
			Name:        ins.Name,
			Description: ins.Description,
			URL:         ins.URL,
			SourceKind:  SourceLocal,
			IsInstalled: true,
			Extra:       versionExtra(ins.Version),
		})
	}

	enrich(out, official)
	return out
}

// enrich backfills metadata from the official index onto every entry that
// shares a name with an official app, whatever source it arrived from.
func enrich(entries []Entry, official []OfficialEntry) {
	if len(official) == 0 {
		return
	}
	byName := make(map[string]OfficialEntry, len(official))
	for _, o := range official {
		byName[strings.ToLower(o.Name)] = o
	}

	for i := range entries {
		o, ok := byName[strings.ToLower(entries[i].Name)]
		if !ok {
			continue
		}
		entries[i].IsOfficial = true
		if entries[i].ID == "" {
			entries[i].ID = o.SpaceID
		}
		if entries[i].Description == "" {
			entries[i].Description = o.Description
		}
		if entries[i].URL == "" {
			entries[i].URL = o.URL
		}
	}
}

func versionExtra(version string) map[string]any {
	if version == "" {
		return nil
	}
	return map[string]any{"version": version}
}
