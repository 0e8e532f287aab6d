package packmgr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"github.com/openmined/remoteassets/internal/repository"
)

const (
	metaPropertiesEntry = "META-INF/vault/properties.json"
	metaFilterEntry     = "META-INF/vault/filter.json"
	rootEntry           = "jcr_root"
	contentEntry        = ".content.json"
	binaryEntry         = ".binary"
)

var (
	nsNamePattern = regexp.MustCompile(`^_([A-Za-z0-9]+)_(.+)$`)
)

// Properties is the package metadata stored in the archive.
type Properties struct {
	Name        string    `json:"name"`
	Group       string    `json:"group"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Created     time.Time `json:"created"`
	CreatedBy   string    `json:"createdBy"`
}

// nodeEntry is the serialized form of one repository node
type nodeEntry struct {
	PrimaryType  string         `json:"jcr:primaryType"`
	ResourceType string         `json:"sling:resourceType,omitempty"`
	MimeType     string         `json:"jcr:mimeType,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// Archive is a package read from its zip form.
type Archive struct {
	Properties Properties
	Filter     Filter
	nodes      []archiveNode
}

type archiveNode struct {
	path   string
	entry  nodeEntry
	binary []byte
}

func (a *Archive) Paths() []string {
	out := make([]string, 0, len(a.nodes))
	for _, n := range a.nodes {
		out = append(out, n.path)
	}
	return out
}

// EscapeName maps a node name to its archive form: `jcr:content` -> `_jcr_content`.
// Names that already start with an underscore get a second one.
func EscapeName(name string) string {
	if prefix, local, ok := strings.Cut(name, ":"); ok {
		return "_" + prefix + "_" + local
	}
	if strings.HasPrefix(name, "_") {
		return "_" + name
	}
	return name
}

func UnescapeName(name string) string {
	if strings.HasPrefix(name, "__") {
		return name[1:]
	}
	if m := nsNamePattern.FindStringSubmatch(name); m != nil {
		return m[1] + ":" + m[2]
	}
	return name
}

// EscapePath escapes every segment of an absolute repository path.
func EscapePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(repository.CleanPath(p), "/"), "/")
	for i, s := range segments {
		segments[i] = EscapeName(s)
	}
	return "/" + strings.Join(segments, "/")
}

func UnescapePath(p string) string {
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	for i, s := range segments {
		segments[i] = UnescapeName(s)
	}
	return "/" + strings.Join(segments, "/")
}

// Export builds the zip form of pkg from the nodes its filter selects.
func Export(ctx context.Context, s *repository.Session, pkg *Package) ([]byte, error) {
	compiled, err := pkg.Filter.Compile()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	props := Properties{
		Name:        pkg.Name,
		Group:       pkg.Group,
		Version:     pkg.Version,
		Description: pkg.Description,
		Created:     time.Now().UTC(),
		CreatedBy:   s.UserID(),
	}
	if err := writeJSONEntry(zw, metaPropertiesEntry, props); err != nil {
		return nil, err
	}
	if err := writeJSONEntry(zw, metaFilterEntry, pkg.Filter); err != nil {
		return nil, err
	}

	written := mapset.NewThreadUnsafeSet[string]()
	for _, root := range pkg.Filter.Roots() {
		nodes, err := s.Subtree(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", root, err)
		}
		for _, n := range nodes {
			if !compiled.Contains(n.Path) || !written.Add(n.Path) {
				continue
			}
			if err := writeNode(ctx, zw, s, n); err != nil {
				return nil, err
			}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("export close: %w", err)
	}

	slog.Debug("package exported", "package", pkg.ID(), "nodes", written.Cardinality(), "size", humanize.Bytes(uint64(buf.Len())))
	return buf.Bytes(), nil
}

func writeNode(ctx context.Context, zw *zip.Writer, s *repository.Session, n *repository.Node) error {
	dir := rootEntry + EscapePath(n.Path)
	entry := nodeEntry{
		PrimaryType:  n.PrimaryType,
		ResourceType: n.ResourceType,
		MimeType:     n.MimeType,
		Properties:   n.Properties,
	}
	if err := writeJSONEntry(zw, dir+"/"+contentEntry, entry); err != nil {
		return err
	}

	if !n.HasBinary() {
		return nil
	}
	data, err := s.Binary(ctx, n)
	if err != nil {
		return fmt.Errorf("export binary %s: %w", n.Path, err)
	}
	w, err := zw.Create(dir + "/" + binaryEntry)
	if err != nil {
		return fmt.Errorf("export binary %s: %w", n.Path, err)
	}
	_, err = w.Write(data)
	return err
}

func writeJSONEntry(zw *zip.Writer, name string, v any) error {
	b, err := jsonMarshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	_, err = w.Write(b)
	return err
}

// ReadArchive parses a package zip. Nodes are ordered parents first.
func ReadArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open package: %w", err)
	}

	archive := &Archive{}
	byPath := map[string]*archiveNode{}
	binaries := map[string][]byte{}

	for _, f := range zr.File {
		switch {
		case f.Name == metaPropertiesEntry:
			if err := readJSONEntry(f, &archive.Properties); err != nil {
				return nil, err
			}
		case f.Name == metaFilterEntry:
			if err := readJSONEntry(f, &archive.Filter); err != nil {
				return nil, err
			}
		case strings.HasPrefix(f.Name, rootEntry+"/"):
			dir, file := path.Split(strings.TrimPrefix(f.Name, rootEntry))
			nodePath := UnescapePath(strings.TrimSuffix(dir, "/"))
			switch file {
			case contentEntry:
				var entry nodeEntry
				if err := readJSONEntry(f, &entry); err != nil {
					return nil, err
				}
				byPath[nodePath] = &archiveNode{path: nodePath, entry: entry}
			case binaryEntry:
				b, err := readEntry(f)
				if err != nil {
					return nil, err
				}
				binaries[nodePath] = b
			}
		}
	}

	for p, b := range binaries {
		if n, ok := byPath[p]; ok {
			n.binary = b
		}
	}

	archive.nodes = make([]archiveNode, 0, len(byPath))
	for _, n := range byPath {
		archive.nodes = append(archive.nodes, *n)
	}
	slices.SortFunc(archive.nodes, func(a, b archiveNode) int {
		if d := strings.Count(a.path, "/") - strings.Count(b.path, "/"); d != 0 {
			return d
		}
		return strings.Compare(a.path, b.path)
	})

	return archive, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func readJSONEntry(f *zip.File, v any) error {
	b, err := readEntry(f)
	if err != nil {
		return err
	}
	if err := jsonUnmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return nil
}
