package repository

import (
	"maps"
	"path"
	"strings"
	"time"
)

const (
	TypeFolder       = "nt:folder"
	TypeFile         = "nt:file"
	TypeUnstructured = "nt:unstructured"
	TypeSlingFolder  = "sling:Folder"
)

// Node is a single item of the content tree.
type Node struct {
	Path         string
	PrimaryType  string
	ResourceType string
	Properties   map[string]any
	MimeType     string
	BinaryKey    string
	Size         int64
	Modified     time.Time
	UserData     string
}

func NewNode(p, primaryType string) *Node {
	return &Node{
		Path:        CleanPath(p),
		PrimaryType: primaryType,
		Properties:  map[string]any{},
	}
}

func (n *Node) Name() string {
	return path.Base(n.Path)
}

func (n *Node) ParentPath() string {
	return ParentPath(n.Path)
}

func (n *Node) HasBinary() bool {
	return n.BinaryKey != ""
}

// IsResourceType matches either the resource type or the primary type
func (n *Node) IsResourceType(t string) bool {
	return n.ResourceType == t || n.PrimaryType == t
}

func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	c.Properties = maps.Clone(n.Properties)
	if c.Properties == nil {
		c.Properties = map[string]any{}
	}
	return &c
}

func (n *Node) Has(name string) bool {
	_, ok := n.Properties[name]
	return ok
}

func (n *Node) String(name string) string {
	if v, ok := n.Properties[name].(string); ok {
		return v
	}
	return ""
}

func (n *Node) Bool(name string) bool {
	switch v := n.Properties[name].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// Time reads a property written as a time.Time, which is stored as RFC3339.
func (n *Node) Time(name string) (time.Time, bool) {
	switch v := n.Properties[name].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func (n *Node) Strings(name string) []string {
	switch v := n.Properties[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				out = append(out, str)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

func ParentPath(p string) string {
	p = CleanPath(p)
	if p == "/" {
		return ""
	}
	return path.Dir(p)
}

// IsAncestorOrSelf reports whether p equals root or lies below it
func IsAncestorOrSelf(root, p string) bool {
	if root == "/" {
		return true
	}
	return p == root || strings.HasPrefix(p, root+"/")
}
