package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openmined/remoteassets/internal/remoteassets"
)

// Collector batches the remote assets resolved while rendering a page or image into
// one sync, run once the handler is done. The sync also runs when the handler panics.
func Collector(svc *remoteassets.Service) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		method := ctx.Request.Method
		if (method != http.MethodGet && method != http.MethodHead) ||
			!remoteassets.AcceptsCollection(ctx.GetHeader("Accept")) {
			ctx.Next()
			return
		}

		reqCtx := ctx.Request.Context()
		collector := remoteassets.NewCollector(remoteassets.WithRemoteCheck(svc.RemoteCheck(reqCtx)))
		ctx.Request = ctx.Request.WithContext(remoteassets.WithCollector(reqCtx, collector))
		defer svc.SyncCollected(context.WithoutCancel(reqCtx), collector)

		ctx.Next()
	}
}
