package management

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/remoteassets/internal/packmgr"
	"github.com/openmined/remoteassets/internal/remoteassets"
	"github.com/openmined/remoteassets/internal/server/handlers/api"
)

// ManagementHandler exposes the bulk sync job
type ManagementHandler struct {
	job *remoteassets.Job
}

func New(job *remoteassets.Job) *ManagementHandler {
	return &ManagementHandler{
		job: job,
	}
}

func (h *ManagementHandler) SyncAll(ctx *gin.Context) {
	result, err := h.job.SyncAll(ctx.Request.Context())
	h.respond(ctx, result, err)
}

func (h *ManagementHandler) SyncTags(ctx *gin.Context) {
	n, err := h.job.SyncTags(ctx.Request.Context())
	h.respond(ctx, &remoteassets.JobResult{Tags: n}, err)
}

func (h *ManagementHandler) SyncAssets(ctx *gin.Context) {
	n, err := h.job.SyncAssets(ctx.Request.Context())
	h.respond(ctx, &remoteassets.JobResult{Assets: n}, err)
}

func (h *ManagementHandler) Status(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, h.job.Status())
}

func (h *ManagementHandler) respond(ctx *gin.Context, result *remoteassets.JobResult, err error) {
	switch {
	case err == nil:
		ctx.PureJSON(http.StatusOK, result)
	case errors.Is(err, remoteassets.ErrJobRunning):
		api.AbortWithError(ctx, http.StatusConflict, api.CodeSyncRunning, err)
	case packmgr.IsRemoteError(err):
		api.AbortWithError(ctx, http.StatusBadGateway, api.CodeRemoteFailure, err)
	default:
		api.AbortWithError(ctx, http.StatusInternalServerError, api.CodeSyncFailed, err)
	}
}
