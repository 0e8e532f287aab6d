package packmgr

import (
	"context"
	"testing"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingListener struct {
	messages map[string]string
}

func (l *recordingListener) OnMessage(action, path string) {
	if l.messages == nil {
		l.messages = map[string]string{}
	}
	l.messages[path] = action
}

func exportFrom(t *testing.T, repo *repository.Repository, pkg *Package) []byte {
	t.Helper()
	s := repo.Login(repository.AdminUser)
	defer s.Close()
	data, err := Export(context.Background(), s, pkg)
	require.NoError(t, err)
	return data
}

func TestInstall_Merge(t *testing.T) {
	ctx := context.Background()
	author := newTestRepo(t)
	seedAuthor(t, author)
	data := exportFrom(t, author, NewAssetsPackage([]string{"/content/dam/site"}, []string{"web"}))

	local := newTestRepo(t)
	s := local.Login(repository.AdminUser)
	defer s.Close()

	listener := &recordingListener{}
	result, err := Install(ctx, s, data, ImportOptions{Mode: ImportModeMerge, AutoSaveThreshold: 2, Listener: listener})
	require.NoError(t, err)
	assert.Positive(t, result.Installed)
	assert.False(t, s.HasChanges())
	assert.Equal(t, ActionAdded, listener.messages["/content/dam/site/a.jpg"])

	// committed and visible elsewhere
	other := local.Login(repository.AdminUser)
	defer other.Close()
	a, err := dam.GetAsset(ctx, other, "/content/dam/site/a.jpg")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "image/jpeg", a.MimeType(ctx))

	web, err := a.Rendition(ctx, "web")
	require.NoError(t, err)
	require.NotNil(t, web)
	b, err := web.Data(ctx)
	require.NoError(t, err)
	assert.Equal(t, "web-bytes", string(b))

	original, err := a.Rendition(ctx, dam.OriginalRendition)
	require.NoError(t, err)
	assert.Nil(t, original)

	// a second merge install leaves existing nodes alone
	listener = &recordingListener{}
	result, err = Install(ctx, s, data, ImportOptions{Mode: ImportModeMerge, Listener: listener})
	require.NoError(t, err)
	assert.Zero(t, result.Installed)
	assert.Empty(t, listener.messages)
}

func TestInstall_Update(t *testing.T) {
	ctx := context.Background()
	author := newTestRepo(t)
	seedAuthor(t, author)
	data := exportFrom(t, author, NewRenditionsPackage(map[string][]string{"/content/dam/site/a.jpg": {"web"}}, nil))

	local := newTestRepo(t)
	s := local.Login(repository.AdminUser)
	defer s.Close()

	a, err := dam.CreateAsset(ctx, s, "/content/dam/site/a.jpg", nil, "image/jpeg")
	require.NoError(t, err)
	_, err = a.AddRendition(ctx, "thumb", []byte("placeholder"), "image/png")
	require.NoError(t, err)
	_, err = a.AddRendition(ctx, "local-only", []byte("keep"), "text/plain")
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))

	listener := &recordingListener{}
	_, err = Install(ctx, s, data, ImportOptions{Mode: ImportModeUpdate, Listener: listener})
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, listener.messages["/content/dam/site/a.jpg/jcr:content/renditions/thumb"])
	assert.Equal(t, ActionAdded, listener.messages["/content/dam/site/a.jpg/jcr:content/renditions/original"])
	assert.NotContains(t, listener.messages, "/content/dam/site/a.jpg/jcr:content/renditions/web")

	thumb, err := a.Rendition(ctx, "thumb")
	require.NoError(t, err)
	b, err := thumb.Data(ctx)
	require.NoError(t, err)
	assert.Equal(t, "thumb-bytes", string(b))

	// update never removes
	kept, err := a.Rendition(ctx, "local-only")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestInstall_NonRecursiveSkipsNestedPackages(t *testing.T) {
	ctx := context.Background()
	author := newTestRepo(t)

	s := author.Login(repository.AdminUser)
	_, err := s.EnsureNode(ctx, "/etc/packages/nested/sub.zip", repository.TypeFile)
	require.NoError(t, err)
	_, err = s.EnsureNode(ctx, "/etc/tags/blue", "cq:Tag")
	require.NoError(t, err)
	require.NoError(t, s.Commit(ctx))
	s.Close()

	data := exportFrom(t, author, NewTagsPackage([]string{"/etc"}))

	local := newTestRepo(t)
	ls := local.Login(repository.AdminUser)
	defer ls.Close()

	result, err := Install(ctx, ls, data, ImportOptions{Mode: ImportModeMerge, NonRecursive: true})
	require.NoError(t, err)
	assert.Positive(t, result.Skipped)

	exists, err := ls.Exists(ctx, "/etc/packages/nested/sub.zip")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = ls.Exists(ctx, "/etc/tags/blue")
	require.NoError(t, err)
	assert.True(t, exists)
}
