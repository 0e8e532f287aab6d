package remoteassets

import (
	"context"
	"log/slog"
	"strings"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/repository"
)

const (
	SyncingRenditionName = "Remote renditions synching"
	SyncingMimeType      = "image/jpeg"

	// PlaceholderResourceType marks a lazy rendition that has not been fetched yet
	PlaceholderResourceType = "remoteassets/remote-asset-rendition"

	extensionToken = "{extension}"
)

// Renditions manages the placeholder renditions of remote assets.
type Renditions struct {
	lazy         []string
	placeholders *Placeholders
}

func NewRenditions(lazy []string, placeholders *Placeholders) *Renditions {
	if placeholders == nil {
		placeholders = NewPlaceholders()
	}
	return &Renditions{lazy: lazy, placeholders: placeholders}
}

func (r *Renditions) Placeholders() *Placeholders {
	return r.placeholders
}

// LazyNames expands the lazy rendition names for an asset extension
func (r *Renditions) LazyNames(ext string) []string {
	out := make([]string, 0, len(r.lazy))
	for _, name := range r.lazy {
		out = append(out, strings.ReplaceAll(name, extensionToken, ext))
	}
	return out
}

// CreatePlaceholderRendition adds empty rendition nodes that the rendition handler
// answers for. Existing renditions are left alone, and nothing is created when the
// asset has no renditions folder.
func (r *Renditions) CreatePlaceholderRendition(ctx context.Context, a *dam.Asset, names ...string) error {
	s := a.Session()
	folder, err := s.Get(ctx, a.RenditionsPath())
	if err != nil || folder == nil {
		return err
	}

	for _, name := range names {
		p := a.RenditionsPath() + "/" + name
		exists, err := s.Exists(ctx, p)
		if err != nil {
			return err
		}
		if exists {
			slog.Debug("placeholder rendition exists", "path", p)
			continue
		}

		n := repository.NewNode(p, repository.TypeSlingFolder)
		n.ResourceType = PlaceholderResourceType
		if err := s.Put(ctx, n); err != nil {
			return err
		}
		slog.Debug("placeholder rendition created", "path", p)
	}
	return nil
}

// SetPlaceholderRenditions provisions the lazy renditions of an asset that has no
// original yet. The session is not committed.
func (r *Renditions) SetPlaceholderRenditions(ctx context.Context, a *dam.Asset) error {
	if a == nil {
		return nil
	}
	original, err := a.Rendition(ctx, dam.OriginalRendition)
	if err != nil {
		return err
	}
	if original != nil {
		return nil
	}

	for _, name := range r.LazyNames(a.Extension(ctx)) {
		if err := r.CreatePlaceholderRendition(ctx, a, name); err != nil {
			slog.Error("placeholder rendition", "asset", a.Path(), "rendition", name, "error", err)
		}
	}
	return nil
}

// IsPlaceholderRendition reports whether n stands in for a rendition not fetched yet
func IsPlaceholderRendition(n *repository.Node) bool {
	return n != nil && n.ResourceType == PlaceholderResourceType
}

func (r *Renditions) AddSyncingRendition(ctx context.Context, a *dam.Asset) error {
	if a == nil {
		return nil
	}
	_, err := a.AddRendition(ctx, SyncingRenditionName, r.placeholders.Syncing(), SyncingMimeType)
	return err
}

func (r *Renditions) RemoveSyncingRendition(ctx context.Context, a *dam.Asset) error {
	if a == nil {
		return nil
	}
	rendition, err := a.Rendition(ctx, SyncingRenditionName)
	if err != nil || rendition == nil {
		return err
	}
	return a.RemoveRendition(ctx, SyncingRenditionName)
}
