package remoteassets

import (
	"context"
	"embed"
	"log/slog"
	"path"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openmined/remoteassets/internal/dam"
)

//go:embed placeholders/*
var placeholderFS embed.FS

const (
	placeholderPrefix = "placeholders/remote_asset."
	defaultExtension  = "jpeg"
	unknownExtension  = "unknown"
	syncingExtension  = "syncing"
)

// mime types shared by several extensions; the first one is the default
var extensionGroups = map[string][]string{
	"application/postscript":        {"ai", "eps", "ps"},
	"image/jpeg":                    {"jpeg", "jpg"},
	"image/tiff":                    {"tif", "tiff"},
	"video/mpeg":                    {"m2v", "mpeg", "mpg"},
	"application/x-shockwave-flash": {"fla", "swf"},
}

// Placeholders serves the stand-in binaries shown until the real ones are synced.
type Placeholders struct {
	cache *lru.Cache[string, []byte]
}

func NewPlaceholders() *Placeholders {
	cache, err := lru.New[string, []byte](64)
	if err != nil {
		panic(err)
	}
	return &Placeholders{cache: cache}
}

func (p *Placeholders) load(ext string) ([]byte, bool) {
	if data, ok := p.cache.Get(ext); ok {
		return data, true
	}
	data, err := placeholderFS.ReadFile(placeholderPrefix + ext)
	if err != nil {
		return nil, false
	}
	p.cache.Add(ext, data)
	return data, true
}

// ForExtension returns the placeholder for a file extension, or the generic one, along
// with the extension actually served.
func (p *Placeholders) ForExtension(ext string) ([]byte, string) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext != "" && ext != syncingExtension {
		if data, ok := p.load(ext); ok {
			return data, ext
		}
	}
	data, _ := p.load(unknownExtension)
	return data, unknownExtension
}

// Syncing is the binary of the rendition shown while a sync is in flight
func (p *Placeholders) Syncing() []byte {
	data, _ := p.load(syncingExtension)
	return data
}

// ForMimeType picks the placeholder extension for an asset. When a mime type maps to
// several extensions, the one matching the asset name wins.
func ForMimeType(mimeType, assetName string) string {
	if group, ok := extensionGroups[mimeType]; ok {
		nameExt := strings.ToLower(strings.TrimPrefix(path.Ext(assetName), "."))
		for _, ext := range group {
			if ext == nameExt {
				return ext
			}
		}
		return group[0]
	}
	if ext := dam.ExtensionFor(mimeType); ext != "" {
		return ext
	}
	return defaultExtension
}

// SetOriginalRenditionPlaceholder gives an asset without an original rendition a
// placeholder original. The session is not committed.
func (p *Placeholders) SetOriginalRenditionPlaceholder(ctx context.Context, a *dam.Asset) error {
	if a == nil {
		return nil
	}
	original, err := a.Rendition(ctx, dam.OriginalRendition)
	if err != nil {
		return err
	}
	if original != nil {
		slog.Debug("asset already has an original rendition", "path", a.Path())
		return nil
	}

	mimeType := a.MimeType(ctx)
	data, ok := p.load(ForMimeType(mimeType, a.Name()))
	if !ok {
		data, _ = p.load(defaultExtension)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	if _, err := a.AddRendition(ctx, dam.OriginalRendition, data, mimeType); err != nil {
		return err
	}
	slog.Debug("original placeholder set", "path", a.Path())
	return nil
}
