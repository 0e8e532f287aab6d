package remoteassets

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"slices"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/utils"
)

// RenditionBody is what the rendition handler writes back
type RenditionBody struct {
	Data        []byte
	ContentType string
	// Placeholder is set when Data is a stand-in binary
	Placeholder bool
}

// FetchRendition answers a request for a placeholder rendition. The first request for
// an asset fetches that rendition from the remote server, stores it and queues a sync
// of the remaining renditions. While the asset is syncing, the placeholder binary for
// its extension is returned instead.
func (s *Service) FetchRendition(ctx context.Context, renditionPath string) (*RenditionBody, error) {
	session, err := s.ServiceSession()
	if err != nil {
		return nil, err
	}
	defer func() {
		if session.HasChanges() {
			if err := session.Commit(ctx); err != nil {
				slog.Error("remote rendition save", "path", renditionPath, "error", err)
			}
		}
		session.Close()
	}()

	a, err := dam.ResolveToAsset(ctx, session, renditionPath)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoAsset, renditionPath)
	}

	if s.state.Contains(a.Path()) {
		return s.placeholderFor(ctx, a), nil
	}
	s.state.Add(a.Path())

	name := path.Base(renditionPath)
	excludes := slices.Clone(s.cfg.EagerRenditions)

	var body *RenditionBody
	done := s.metrics.begin(KindRendition)
	bin, err := s.client.FetchRendition(ctx, renditionPath)
	done(err)
	if err != nil {
		slog.Warn("remote rendition fetch", "path", renditionPath, "error", err)
	} else {
		if s.storeRendition(ctx, a, name, bin) {
			excludes = append(excludes, name)
		}
		body = &RenditionBody{Data: bin.Data, ContentType: bin.ContentType}
	}

	s.SyncAssetRenditions(ctx, session, map[string][]string{a.Path(): excludes})

	if body == nil {
		return s.placeholderFor(ctx, a), nil
	}
	return body, nil
}

// storeRendition replaces the placeholder node with the fetched binary and commits
func (s *Service) storeRendition(ctx context.Context, a *dam.Asset, name string, bin *packmgr.Binary) bool {
	session := a.Session()
	if err := a.RemoveRendition(ctx, name); err != nil {
		slog.Error("remote rendition store", "asset", a.Path(), "rendition", name, "error", err)
		return false
	}
	if _, err := a.AddRendition(ctx, name, bin.Data, bin.ContentType); err != nil {
		slog.Error("remote rendition store", "asset", a.Path(), "rendition", name, "error", err)
		session.Revert()
		return false
	}
	if err := session.Commit(ctx); err != nil {
		slog.Error("remote rendition store", "asset", a.Path(), "rendition", name, "error", err)
		session.Revert()
		return false
	}
	return true
}

func (s *Service) placeholderFor(ctx context.Context, a *dam.Asset) *RenditionBody {
	data, ext := s.renditions.Placeholders().ForExtension(a.Extension(ctx))
	return &RenditionBody{
		Data:        data,
		ContentType: utils.DetectContentType("remote_asset."+ext, data),
		Placeholder: true,
	}
}
