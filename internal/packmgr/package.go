package packmgr

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

const (
	PackageGroup       = "remote-assets"
	PackageVersion     = "1.0.0"
	PackageDescription = "Remote Assets Sync"

	assetsPrefix     = "remote-assets__"
	tagsPrefix       = "remote-tags__"
	renditionsPrefix = "remote-asset-renditions__"

	// child of an asset's content node that holds the remote flags
	RemoteNodeName = "remote"
)

// Package describes a content package on the remote package manager.
// Path is assigned by the remote server on create.
type Package struct {
	Name        string
	Group       string
	Version     string
	Description string
	Path        string
	Filter      Filter
}

func newPackage(prefix string, filter Filter) *Package {
	return &Package{
		Name:        prefix + uuid.NewString(),
		Group:       PackageGroup,
		Version:     PackageVersion,
		Description: PackageDescription,
		Filter:      filter,
	}
}

func (p *Package) IsEmpty() bool {
	return len(p.Filter) == 0
}

func (p *Package) ID() string {
	return p.Group + ":" + p.Name + ":" + p.Version
}

// NewAssetsPackage covers whole DAM trees: asset nodes and metadata without renditions,
// except the eager ones.
func NewAssetsPackage(syncPaths []string, eagerRenditions []string) *Package {
	filter := make(Filter, 0, len(syncPaths))
	for _, root := range syncPaths {
		rules := []Rule{
			Exclude("/content/dam/.*/renditions/.*"),
			Exclude("/content/dam/.*/jcr:content/" + RemoteNodeName),
		}
		for _, rendition := range eagerRenditions {
			rules = append(rules, Include("/content/dam/.*/renditions/"+rendition))
		}
		rules = append(rules, Exclude("/content/dam/.*/subassets/.*"))
		filter = append(filter, FilterSet{Root: root, Rules: rules})
	}
	return newPackage(assetsPrefix, filter)
}

// NewTagsPackage covers whole tag trees.
func NewTagsPackage(tagPaths []string) *Package {
	filter := make(Filter, 0, len(tagPaths))
	for _, root := range tagPaths {
		filter = append(filter, FilterSet{Root: root, Rules: []Rule{}})
	}
	return newPackage(tagsPrefix, filter)
}

// NewRenditionsPackage covers the renditions folder of each asset, minus the excluded
// renditions of that asset and the eager renditions.
func NewRenditionsPackage(assets map[string][]string, eagerRenditions []string) *Package {
	paths := make([]string, 0, len(assets))
	for p := range assets {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	filter := make(Filter, 0, len(paths))
	for _, assetPath := range paths {
		renditionsPath := assetPath + "/jcr:content/renditions"

		seen := mapset.NewThreadUnsafeSet[string]()
		rules := []Rule{}
		for _, name := range append(slices.Clone(assets[assetPath]), eagerRenditions...) {
			if name == "" || !seen.Add(name) {
				continue
			}
			rules = append(rules, Exclude(renditionsPath+"/"+name))
		}
		filter = append(filter, FilterSet{Root: renditionsPath, Rules: rules})
	}
	return newPackage(renditionsPrefix, filter)
}
