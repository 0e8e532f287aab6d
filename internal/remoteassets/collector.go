package remoteassets

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

type collectorKey struct{}

// Collector gathers the remote assets referenced while serving one request so they
// can be synced with a single package once the request is done. The value maps an
// asset path to the renditions to leave out of that sync.
type Collector struct {
	mu       sync.Mutex
	assets   map[string]mapset.Set[string]
	isRemote func(p string) bool
}

type CollectorOption func(*Collector)

// WithRemoteCheck suppresses Add for paths the check reports as not remote.
func WithRemoteCheck(check func(p string) bool) CollectorOption {
	return func(c *Collector) {
		c.isRemote = check
	}
}

func NewCollector(opts ...CollectorOption) *Collector {
	c := &Collector{assets: map[string]mapset.Set[string]{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithCollector enables collection for everything running under ctx.
func WithCollector(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, collectorKey{}, c)
}

// CollectorFrom returns the collector of ctx, or nil when collection is not enabled.
func CollectorFrom(ctx context.Context) *Collector {
	c, _ := ctx.Value(collectorKey{}).(*Collector)
	return c
}

// IsEnabled reports whether c collects. A nil collector does not.
func (c *Collector) IsEnabled() bool {
	return c != nil
}

// Add registers an asset. An empty renditionName registers the asset only.
func (c *Collector) Add(p, renditionName string) {
	if !c.IsEnabled() {
		return
	}
	if c.isRemote != nil && !c.isRemote(p) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	names, ok := c.assets[p]
	if !ok {
		names = mapset.NewThreadUnsafeSet[string]()
		c.assets[p] = names
	}
	if renditionName != "" {
		names.Add(renditionName)
	}
}

func (c *Collector) Contains(p string) bool {
	if !c.IsEnabled() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.assets[p]
	return ok
}

// Get returns a copy of the collected assets with their excluded renditions.
func (c *Collector) Get() map[string][]string {
	if !c.IsEnabled() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]string, len(c.assets))
	for p, names := range c.assets {
		out[p] = names.ToSlice()
	}
	return out
}

func (c *Collector) Len() int {
	if !c.IsEnabled() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.assets)
}

// AcceptsCollection reports whether a request with this Accept header renders markup or
// images, the only requests worth batching for.
func AcceptsCollection(accept string) bool {
	for _, kind := range []string{"text/html", "application/xhtml", "image/"} {
		if strings.Contains(accept, kind) {
			return true
		}
	}
	return false
}

// SyncCollected syncs everything c gathered with a single rendition package.
func (s *Service) SyncCollected(ctx context.Context, c *Collector) {
	if c.Len() == 0 {
		return
	}
	assets := c.Get()

	session, err := s.ServiceSession()
	if err != nil {
		slog.Error("remote assets collected sync", "assets", len(assets), "error", err)
		for p := range assets {
			s.state.Remove(p)
		}
		return
	}
	defer session.Close()

	slog.Debug("remote assets collected sync", "assets", len(assets))
	s.SyncAssetRenditions(ctx, session, assets)
}

// RemoteCheck reports whether p is a remote asset, for WithRemoteCheck
func (s *Service) RemoteCheck(ctx context.Context) func(p string) bool {
	return func(p string) bool {
		session, err := s.ServiceSession()
		if err != nil {
			return true
		}
		defer session.Close()
		remote, err := IsRemoteAsset(ctx, session, p)
		return err != nil || remote
	}
}
