package content

import (
	"errors"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openmined/remoteassets/internal/remoteassets"
	"github.com/openmined/remoteassets/internal/repository"
	"github.com/openmined/remoteassets/internal/server/handlers/api"
	"github.com/openmined/remoteassets/internal/server/middlewares"
	"github.com/openmined/remoteassets/internal/utils"
)

const (
	Root = "/content"

	// PlaceholderHeader is set on responses that carry a stand-in binary
	PlaceholderHeader = "X-Remote-Placeholder"
)

type ContentHandler struct {
	repo *repository.Repository
	svc  *remoteassets.Service
}

func New(repo *repository.Repository, svc *remoteassets.Service) *ContentHandler {
	return &ContentHandler{
		repo: repo,
		svc:  svc,
	}
}

// Get resolves /content/*path as the requesting user, with remote assets decorated.
// Nodes with a binary are served as is, placeholder renditions are fetched from the
// remote server and anything else is described as JSON.
func (h *ContentHandler) Get(ctx *gin.Context) {
	reqCtx := ctx.Request.Context()
	p := repository.CleanPath(path.Join(Root, ctx.Param("path")))

	resolver := repository.NewResolver(h.repo.Login(middlewares.UserID(ctx)), h.svc.Decorator())
	defer resolver.Close()

	res, err := resolver.GetResource(reqCtx, p)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}
	if res == nil {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeNotFound, errors.New("not found: "+p))
		return
	}

	switch {
	case remoteassets.IsPlaceholderRendition(res.Node):
		h.serveRendition(ctx, p)
	case res.HasBinary():
		h.serveBinary(ctx, resolver.Session(), res.Node)
	default:
		h.serveNode(ctx, resolver.Session(), res.Node)
	}
}

func (h *ContentHandler) serveRendition(ctx *gin.Context, p string) {
	body, err := h.svc.FetchRendition(ctx.Request.Context(), p)
	if errors.Is(err, remoteassets.ErrNoAsset) {
		api.AbortWithError(ctx, http.StatusNotFound, api.CodeNoAsset, err)
		return
	} else if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	ctx.Header(PlaceholderHeader, strconv.FormatBool(body.Placeholder))
	ctx.Data(http.StatusOK, body.ContentType, body.Data)
}

func (h *ContentHandler) serveBinary(ctx *gin.Context, s *repository.Session, n *repository.Node) {
	data, err := s.Binary(ctx.Request.Context(), n)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	contentType := n.MimeType
	if contentType == "" {
		contentType = utils.DetectContentType(n.Name(), data)
	}
	ctx.Data(http.StatusOK, contentType, data)
}

func (h *ContentHandler) serveNode(ctx *gin.Context, s *repository.Session, n *repository.Node) {
	children, err := s.Children(ctx.Request.Context(), n.Path)
	if err != nil {
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeInternalError, err)
		return
	}

	view := &NodeView{
		Path:         n.Path,
		PrimaryType:  n.PrimaryType,
		ResourceType: n.ResourceType,
		Properties:   n.Properties,
		Children:     make([]string, 0, len(children)),
	}
	for _, child := range children {
		view.Children = append(view.Children, child.Name())
	}
	ctx.PureJSON(http.StatusOK, view)
}
