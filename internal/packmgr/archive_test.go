package packmgr

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *repository.Repository {
	t.Helper()
	repo, err := repository.Open(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// seedAuthor writes one image asset with an original and two renditions
func seedAuthor(t *testing.T, repo *repository.Repository) {
	t.Helper()
	ctx := context.Background()
	s := repo.Login(repository.AdminUser)
	defer s.Close()

	a, err := dam.CreateAsset(ctx, s, "/content/dam/site/a.jpg", []byte("original-bytes"), "image/jpeg")
	require.NoError(t, err)
	_, err = a.AddRendition(ctx, "web", []byte("web-bytes"), "image/jpeg")
	require.NoError(t, err)
	_, err = a.AddRendition(ctx, "thumb", []byte("thumb-bytes"), "image/png")
	require.NoError(t, err)

	_, err = s.EnsureNode(ctx, "/content/cq:tags/site/red", "cq:Tag")
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))
}

func TestEscapeName(t *testing.T) {
	tests := []struct {
		name    string
		escaped string
	}{
		{"jcr:content", "_jcr_content"},
		{"cq:tags", "_cq_tags"},
		{"plain", "plain"},
		{"_private", "__private"},
		{"a.jpg", "a.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.escaped, EscapeName(tt.name))
			assert.Equal(t, tt.name, UnescapeName(tt.escaped))
		})
	}

	assert.Equal(t, "/content/dam/a.jpg/_jcr_content/renditions", EscapePath("/content/dam/a.jpg/jcr:content/renditions"))
	assert.Equal(t, "/content/dam/a.jpg/jcr:content/renditions", UnescapePath("/content/dam/a.jpg/_jcr_content/renditions"))
}

func TestExportAndReadArchive(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	seedAuthor(t, repo)

	s := repo.Login(repository.AdminUser)
	defer s.Close()

	pkg := NewAssetsPackage([]string{"/content/dam/site"}, []string{"web"})
	data, err := Export(ctx, s, pkg)
	require.NoError(t, err)

	archive, err := ReadArchive(data)
	require.NoError(t, err)

	assert.Equal(t, pkg.Name, archive.Properties.Name)
	assert.Equal(t, PackageGroup, archive.Properties.Group)
	assert.Equal(t, repository.AdminUser, archive.Properties.CreatedBy)
	assert.Equal(t, pkg.Filter.Roots(), archive.Filter.Roots())

	paths := archive.Paths()
	assert.Contains(t, paths, "/content/dam/site/a.jpg")
	assert.Contains(t, paths, "/content/dam/site/a.jpg/jcr:content")
	assert.Contains(t, paths, "/content/dam/site/a.jpg/jcr:content/metadata")
	assert.Contains(t, paths, "/content/dam/site/a.jpg/jcr:content/renditions/web")
	assert.NotContains(t, paths, "/content/dam/site/a.jpg/jcr:content/renditions/original")
	assert.NotContains(t, paths, "/content/dam/site/a.jpg/jcr:content/renditions/thumb")
	assert.NotContains(t, paths, "/content/cq:tags/site/red")

	// parents first
	assert.Equal(t, "/content/dam/site", paths[0])
}

func TestReadArchive_Invalid(t *testing.T) {
	_, err := ReadArchive([]byte("not a zip"))
	assert.Error(t, err)
}
