package remoteassets

import (
	"context"
	"testing"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetTracker(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "local.db")
	s := repo.Login("admin")
	defer s.Close()

	_, err := dam.CreateAsset(ctx, s, fooPath, nil, "image/png")
	require.NoError(t, err)

	tracker := NewAssetTracker(ctx, s)
	tracker.OnMessage(packmgr.ActionAdded, "/content/dam/site")
	tracker.OnMessage(packmgr.ActionAdded, fooPath)
	tracker.OnMessage(packmgr.ActionAdded, fooPath)
	tracker.OnMessage(packmgr.ActionUpdated, fooPath)
	tracker.OnMessage(packmgr.ActionAdded, fooPath+"/jcr:content")
	tracker.OnMessage(packmgr.ActionAdded, fooPath+"/jcr:content/metadata")
	tracker.OnMessage(packmgr.ActionAdded, "/content/cq:tags/site/red")

	assert.Equal(t, []string{fooPath}, tracker.Paths())
}

func TestRenditionTracker(t *testing.T) {
	tracker := NewRenditionTracker()
	tracker.OnMessage(packmgr.ActionUpdated, fooPath+"/jcr:content/renditions")
	tracker.OnMessage(packmgr.ActionUpdated, fooPath+"/jcr:content/renditions/original")
	tracker.OnMessage(packmgr.ActionAdded, fooPath+"/jcr:content/renditions/web")
	tracker.OnMessage(packmgr.ActionAdded, "/content/other/a.png/jcr:content/renditions/web")

	assert.Equal(t, []string{
		fooPath + "/jcr:content/renditions/original",
		fooPath + "/jcr:content/renditions/web",
	}, tracker.Paths())
}

func TestTagTracker(t *testing.T) {
	tracker := NewTagTracker()
	tracker.OnMessage(packmgr.ActionAdded, "/content/cq:tags")
	tracker.OnMessage(packmgr.ActionAdded, "/content/cq:tags/site")
	tracker.OnMessage(packmgr.ActionAdded, "/content/cq:tags/site/red")
	tracker.OnMessage(packmgr.ActionAdded, "/content/cq:tags/site/.content.xml")
	tracker.OnMessage(packmgr.ActionAdded, "/content/cq:tags/site/red/jcr:content/x")
	tracker.OnMessage(packmgr.ActionUpdated, "/etc/tags/legacy")
	tracker.OnMessage(packmgr.ActionAdded, "/content/dam/site")

	assert.Equal(t, []string{
		"/content/cq:tags/site",
		"/content/cq:tags/site/red",
		"/etc/tags/legacy",
	}, tracker.Paths())
}
