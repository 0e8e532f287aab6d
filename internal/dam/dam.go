// Package dam models digital assets on top of the content repository: an asset node,
// its content node and its named renditions.
package dam

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/openmined/remoteassets/internal/repository"
)

const (
	MountPoint        = "/content/dam"
	TypeAsset         = "dam:Asset"
	TypeAssetContent  = "dam:AssetContent"
	JcrContent        = "jcr:content"
	RenditionsFolder  = "renditions"
	OriginalRendition = "original"
	MetadataNode      = "metadata"
	PropFormat        = "dc:format"
	SubassetsFolder   = "subassets"
)

// IsDamPath reports whether p lies under the asset mount point
func IsDamPath(p string) bool {
	return repository.IsAncestorOrSelf(MountPoint, p)
}

type Asset struct {
	session *repository.Session
	node    *repository.Node
}

// GetAsset returns the asset at p, or nil if p is not an asset node.
func GetAsset(ctx context.Context, s *repository.Session, p string) (*Asset, error) {
	n, err := s.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	if n == nil || n.PrimaryType != TypeAsset {
		return nil, nil
	}
	return &Asset{session: s, node: n}, nil
}

// ResolveToAsset finds the asset owning p: the asset itself, its content node or any
// node below it. Returns nil when no ancestor is an asset.
func ResolveToAsset(ctx context.Context, s *repository.Session, p string) (*Asset, error) {
	p = repository.CleanPath(p)
	for p != "" && p != "/" {
		a, err := GetAsset(ctx, s, p)
		if err != nil {
			return nil, err
		}
		if a != nil {
			return a, nil
		}
		p = repository.ParentPath(p)
	}
	return nil, nil
}

// CreateAsset writes an asset with its content node, metadata and original rendition.
// The session is not committed.
func CreateAsset(ctx context.Context, s *repository.Session, p string, original []byte, mimeType string) (*Asset, error) {
	p = repository.CleanPath(p)

	if _, err := s.EnsureNode(ctx, p, TypeAsset); err != nil {
		return nil, fmt.Errorf("create asset %s: %w", p, err)
	}
	if _, err := s.EnsureNode(ctx, p+"/"+JcrContent, TypeAssetContent); err != nil {
		return nil, err
	}
	meta, err := s.EnsureNode(ctx, p+"/"+JcrContent+"/"+MetadataNode, repository.TypeUnstructured)
	if err != nil {
		return nil, err
	}
	if err := s.SetProperties(ctx, meta.Path, map[string]any{PropFormat: mimeType}); err != nil {
		return nil, err
	}

	a, err := GetAsset(ctx, s, p)
	if err != nil {
		return nil, err
	}
	if original != nil {
		if _, err := a.AddRendition(ctx, OriginalRendition, original, mimeType); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Asset) Path() string {
	return a.node.Path
}

func (a *Asset) Name() string {
	return a.node.Name()
}

func (a *Asset) Node() *repository.Node {
	return a.node
}

func (a *Asset) Session() *repository.Session {
	return a.session
}

func (a *Asset) ContentPath() string {
	return a.node.Path + "/" + JcrContent
}

func (a *Asset) RenditionsPath() string {
	return a.ContentPath() + "/" + RenditionsFolder
}

// IsSubAsset reports whether the asset lives in another asset's subassets folder
func (a *Asset) IsSubAsset() bool {
	return strings.Contains(a.node.Path, "/"+JcrContent+"/"+SubassetsFolder+"/")
}

// MimeType is the dc:format metadata, falling back to the original rendition
func (a *Asset) MimeType(ctx context.Context) string {
	meta, err := a.session.Get(ctx, a.ContentPath()+"/"+MetadataNode)
	if err == nil && meta != nil {
		if format := meta.String(PropFormat); format != "" {
			return format
		}
	}

	if r, err := a.Rendition(ctx, OriginalRendition); err == nil && r != nil {
		return r.MimeType()
	}
	return ""
}

// Extension of the asset's binary without the dot, e.g. "png"
func (a *Asset) Extension(ctx context.Context) string {
	if ext := ExtensionFor(a.MimeType(ctx)); ext != "" {
		return ext
	}
	return strings.TrimPrefix(path.Ext(a.Name()), ".")
}

func (a *Asset) Rendition(ctx context.Context, name string) (*Rendition, error) {
	n, err := a.session.Get(ctx, a.RenditionsPath()+"/"+name)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, nil
	}
	return &Rendition{asset: a, node: n}, nil
}

func (a *Asset) Renditions(ctx context.Context) ([]*Rendition, error) {
	nodes, err := a.session.Children(ctx, a.RenditionsPath())
	if err != nil {
		return nil, err
	}
	out := make([]*Rendition, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &Rendition{asset: a, node: n})
	}
	return out, nil
}

// AddRendition creates or replaces a rendition. The session is not committed.
func (a *Asset) AddRendition(ctx context.Context, name string, data []byte, mimeType string) (*Rendition, error) {
	p := a.RenditionsPath() + "/" + name

	if _, err := a.session.EnsureNode(ctx, a.RenditionsPath(), repository.TypeFolder); err != nil {
		return nil, fmt.Errorf("add rendition %s: %w", p, err)
	}
	// a placeholder node with the same name is replaced, not merged
	if err := a.session.Delete(ctx, p); err != nil {
		return nil, err
	}
	if err := a.session.Put(ctx, repository.NewNode(p, repository.TypeFile)); err != nil {
		return nil, fmt.Errorf("add rendition %s: %w", p, err)
	}
	if err := a.session.SetBinary(ctx, p, data, mimeType); err != nil {
		return nil, fmt.Errorf("add rendition %s: %w", p, err)
	}
	return a.Rendition(ctx, name)
}

func (a *Asset) RemoveRendition(ctx context.Context, name string) error {
	return a.session.Delete(ctx, a.RenditionsPath()+"/"+name)
}

type Rendition struct {
	asset *Asset
	node  *repository.Node
}

func (r *Rendition) Name() string {
	return r.node.Name()
}

func (r *Rendition) Path() string {
	return r.node.Path
}

func (r *Rendition) MimeType() string {
	return r.node.MimeType
}

func (r *Rendition) Size() int64 {
	return r.node.Size
}

func (r *Rendition) Node() *repository.Node {
	return r.node
}

func (r *Rendition) HasBinary() bool {
	return r.node.HasBinary()
}

func (r *Rendition) Data(ctx context.Context) ([]byte, error) {
	return r.asset.session.Binary(ctx, r.node)
}

// ExtensionFor maps a mime type to its preferred file extension without the dot.
func ExtensionFor(mimeType string) string {
	if mimeType == "" {
		return ""
	}
	if m := mimetype.Lookup(mimeType); m != nil {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return ""
}
