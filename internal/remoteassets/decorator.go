package remoteassets

import (
	"context"
	"log/slog"

	"github.com/openmined/remoteassets/internal/repository"
)

type decoratingKey struct{}

// Decorator turns a resolved remote asset into a local one before the caller sees it.
// Inside a request collection the asset is only registered for the end of the request.
type Decorator struct {
	svc *Service
}

var _ repository.Decorator = (*Decorator)(nil)

func (s *Service) Decorator() *Decorator {
	return &Decorator{svc: s}
}

// decorating reports whether ctx is already inside an eligibility check
func decorating(ctx context.Context) bool {
	v, _ := ctx.Value(decoratingKey{}).(bool)
	return v
}

func (d *Decorator) Decorate(ctx context.Context, res *repository.Resource) *repository.Resource {
	if !d.accepts(ctx, res) {
		return res
	}

	p := res.Path
	state := d.svc.state
	if state.Contains(p) {
		return res
	}
	state.Add(p)

	if c := CollectorFrom(ctx); c.IsEnabled() {
		c.Add(p, "")
		if !c.Contains(p) {
			state.Remove(p)
			return res
		}
		slog.Debug("remote asset collected", "path", p)
		return res
	}

	d.syncNow(ctx, res)

	if reloaded, err := res.Resolver().Reload(ctx, res); err == nil && reloaded != nil {
		return reloaded
	}
	return res
}

func (d *Decorator) syncNow(ctx context.Context, res *repository.Resource) {
	defer func() {
		d.svc.state.Remove(res.Path)
		res.Resolver().Refresh()
	}()

	session, err := d.svc.ServiceSession()
	if err != nil {
		slog.Error("remote asset sync", "path", res.Path, "error", err)
		return
	}
	defer session.Close()

	// failures are logged and stamped on the asset
	d.svc.syncRenditions(context.WithoutCancel(ctx), session, map[string][]string{res.Path: nil})
}

// accepts is the eligibility check. Resolutions it triggers itself are never eligible.
func (d *Decorator) accepts(ctx context.Context, res *repository.Resource) bool {
	if res == nil || decorating(ctx) {
		return false
	}
	ctx = context.WithValue(ctx, decoratingKey{}, true)

	resolver := res.Resolver()
	kind, err := ClassifyAsset(ctx, resolver.Session(), res.Node, d.svc.state, d.svc.cfg.RetryDelayDuration(), d.svc.now())
	if err != nil {
		slog.Error("remote asset classify", "path", res.Path, "error", err)
		return false
	}
	if kind != KindRemotePending {
		if kind == KindRemoteQuiet {
			slog.Debug("remote asset in quiet period", "path", res.Path)
		}
		return false
	}

	if !d.svc.cfg.IsSyncPath(res.Path) {
		return false
	}

	userID := resolver.UserID()
	if d.svc.cfg.IsWhitelisted(userID) {
		return true
	}
	if resolver.IsSystemUser() {
		slog.Debug("remote asset skipped for service user", "user", userID)
		return false
	}
	return true
}
