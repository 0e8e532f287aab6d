package packmgr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_AssetsPackage(t *testing.T) {
	pkg := NewAssetsPackage([]string{"/content/dam/site"}, []string{"cq5dam.web.1280.1280.jpeg"})
	cf, err := pkg.Filter.Compile()
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"/content/dam/site", true},
		{"/content/dam/site/a.jpg", true},
		{"/content/dam/site/a.jpg/jcr:content", true},
		{"/content/dam/site/a.jpg/jcr:content/metadata", true},
		{"/content/dam/site/a.jpg/jcr:content/renditions/original", false},
		{"/content/dam/site/a.jpg/jcr:content/renditions/cq5dam.thumbnail.48.48.png", false},
		{"/content/dam/site/a.jpg/jcr:content/renditions/cq5dam.web.1280.1280.jpeg", true},
		{"/content/dam/site/a.jpg/jcr:content/remote", false},
		{"/content/dam/site/a.pdf/subassets/page1.pdf", false},
		{"/content/dam/other/b.jpg", false},
		{"/content/dam/sitefoo/b.jpg", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, cf.Contains(tt.path))
		})
	}
}

func TestFilter_LeadingIncludeDefaultsToExclude(t *testing.T) {
	f := Filter{{Root: "/content/a", Rules: []Rule{
		Include("/content/a/keep.*"),
		Exclude("/content/a/keep/drop"),
	}}}
	cf, err := f.Compile()
	require.NoError(t, err)

	assert.True(t, cf.Contains("/content/a/keep"))
	assert.True(t, cf.Contains("/content/a/keep/x"))
	assert.False(t, cf.Contains("/content/a/keep/drop"))
	assert.False(t, cf.Contains("/content/a/other"))
}

func TestFilter_PatternsAreAnchored(t *testing.T) {
	f := Filter{{Root: "/content", Rules: []Rule{Exclude("/content/x")}}}
	cf, err := f.Compile()
	require.NoError(t, err)

	assert.False(t, cf.Contains("/content/x"))
	assert.True(t, cf.Contains("/content/x/y"))
	assert.True(t, cf.Contains("/content/ax"))
}

func TestFilter_InvalidRules(t *testing.T) {
	_, err := Filter{{Root: "/a", Rules: []Rule{Exclude("(")}}}.Compile()
	assert.Error(t, err)

	_, err = Filter{{Root: "/a", Rules: []Rule{{Modifier: "maybe", Pattern: ".*"}}}}.Compile()
	assert.Error(t, err)
}

func TestFilter_JSON(t *testing.T) {
	f := Filter{
		{Root: "/content/cq:tags"},
		{Root: "/etc/tags", Rules: []Rule{Exclude("/etc/tags/x")}},
	}

	s, err := f.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"root":"/content/cq:tags","rules":[]},
		{"root":"/etc/tags","rules":[{"modifier":"exclude","pattern":"/etc/tags/x"}]}
	]`, s)

	parsed, err := ParseFilter(s)
	require.NoError(t, err)
	assert.Equal(t, f.Roots(), parsed.Roots())
	assert.Equal(t, f[1].Rules, parsed[1].Rules)

	empty, err := ParseFilter("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = ParseFilter("{")
	assert.Error(t, err)
}
