package remoteassets

import (
	"context"
	"testing"

	"github.com/openmined/remoteassets/internal/dam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForMimeType(t *testing.T) {
	tests := []struct {
		mimeType string
		name     string
		want     string
	}{
		{"image/jpeg", "photo.jpg", "jpg"},
		{"image/jpeg", "photo.JPEG", "jpeg"},
		{"image/jpeg", "photo", "jpeg"},
		{"image/tiff", "scan.tif", "tif"},
		{"image/tiff", "scan.tiff", "tiff"},
		{"application/postscript", "logo.eps", "eps"},
		{"application/postscript", "logo.bin", "ai"},
		{"image/png", "a.png", "png"},
		{"application/pdf", "doc.pdf", "pdf"},
		{"", "whatever", "jpeg"},
		{"application/x-made-up", "x.bin", "jpeg"},
	}
	for _, tt := range tests {
		t.Run(tt.mimeType+" "+tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForMimeType(tt.mimeType, tt.name))
		})
	}
}

func TestPlaceholders_ForExtension(t *testing.T) {
	p := NewPlaceholders()

	png, ext := p.ForExtension("png")
	assert.Equal(t, "png", ext)
	assert.NotEmpty(t, png)

	again, _ := p.ForExtension(".PNG")
	assert.Equal(t, png, again)

	unknown, ext := p.ForExtension("docx")
	assert.Equal(t, unknownExtension, ext)
	assert.NotEmpty(t, unknown)

	_, ext = p.ForExtension("")
	assert.Equal(t, unknownExtension, ext)

	_, ext = p.ForExtension(syncingExtension)
	assert.Equal(t, unknownExtension, ext)

	assert.NotEmpty(t, p.Syncing())
}

func TestSetOriginalRenditionPlaceholder(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "local.db")
	s := repo.Login("admin")
	defer s.Close()
	p := NewPlaceholders()

	bare, err := dam.CreateAsset(ctx, s, "/content/dam/site/scan.tif", nil, "image/tiff")
	require.NoError(t, err)
	require.NoError(t, p.SetOriginalRenditionPlaceholder(ctx, bare))

	expected, _ := p.ForExtension("tif")
	original := renditionBytes(t, bare, dam.OriginalRendition)
	assert.Equal(t, expected, original)
	r, err := bare.Rendition(ctx, dam.OriginalRendition)
	require.NoError(t, err)
	assert.Equal(t, "image/tiff", r.MimeType())

	real, err := dam.CreateAsset(ctx, s, "/content/dam/site/real.png", []byte("real"), "image/png")
	require.NoError(t, err)
	require.NoError(t, p.SetOriginalRenditionPlaceholder(ctx, real))
	assert.Equal(t, []byte("real"), renditionBytes(t, real, dam.OriginalRendition))

	assert.NoError(t, p.SetOriginalRenditionPlaceholder(ctx, nil))
}

func TestRenditions_Placeholders(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "local.db")
	s := repo.Login("admin")
	defer s.Close()

	r := NewRenditions([]string{"cq5dam.web.1280.1280.{extension}", "cq5dam.zoom.{extension}"}, nil)
	assert.Equal(t, []string{"cq5dam.web.1280.1280.png", "cq5dam.zoom.png"}, r.LazyNames("png"))

	// no renditions folder yet, so nothing to hang placeholders on
	a, err := dam.CreateAsset(ctx, s, "/content/dam/site/a.png", nil, "image/png")
	require.NoError(t, err)
	require.NoError(t, r.SetPlaceholderRenditions(ctx, a))
	renditions, err := a.Renditions(ctx)
	require.NoError(t, err)
	assert.Empty(t, renditions)

	_, err = a.AddRendition(ctx, "cq5dam.zoom.png", []byte("zoom"), "image/png")
	require.NoError(t, err)
	require.NoError(t, r.SetPlaceholderRenditions(ctx, a))

	web, err := a.Rendition(ctx, "cq5dam.web.1280.1280.png")
	require.NoError(t, err)
	require.NotNil(t, web)
	assert.True(t, IsPlaceholderRendition(web.Node()))
	// existing renditions are kept
	assert.Equal(t, []byte("zoom"), renditionBytes(t, a, "cq5dam.zoom.png"))

	require.NoError(t, r.AddSyncingRendition(ctx, a))
	syncing, err := a.Rendition(ctx, SyncingRenditionName)
	require.NoError(t, err)
	require.NotNil(t, syncing)
	assert.Equal(t, SyncingMimeType, syncing.MimeType())

	require.NoError(t, r.RemoveSyncingRendition(ctx, a))
	require.NoError(t, r.RemoveSyncingRendition(ctx, a))
	syncing, err = a.Rendition(ctx, SyncingRenditionName)
	require.NoError(t, err)
	assert.Nil(t, syncing)
}

func TestRenditions_SkipsAssetWithOriginal(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t, "local.db")
	s := repo.Login("admin")
	defer s.Close()

	r := NewRenditions([]string{"cq5dam.web.{extension}"}, nil)
	a, err := dam.CreateAsset(ctx, s, "/content/dam/site/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	require.NoError(t, r.SetPlaceholderRenditions(ctx, a))

	web, err := a.Rendition(ctx, "cq5dam.web.png")
	require.NoError(t, err)
	assert.Nil(t, web)
}
