package content

type NodeView struct {
	Path         string         `json:"path"`
	PrimaryType  string         `json:"jcr:primaryType"`
	ResourceType string         `json:"sling:resourceType,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
	Children     []string       `json:"children"`
}
