package middlewares

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

var (
	excludedPaths = []string{
		"/healthz",
		"/metrics",
	}
	// renditions are already compressed
	excludedExtensions = []string{
		".png", ".gif", ".jpeg", ".jpg", ".webp", ".tif", ".tiff",
		".mp4", ".mpeg", ".mpg", ".swf", ".pdf", ".zip",
	}
)

func GZIP() gin.HandlerFunc {
	return gzip.Gzip(
		gzip.BestSpeed,
		gzip.WithExcludedPaths(excludedPaths),
		gzip.WithExcludedExtensions(excludedExtensions),
	)
}
