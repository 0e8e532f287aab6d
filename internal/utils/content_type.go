package utils

import (
	"mime"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// DetectContentType picks a mime type from the file extension first and
// falls back to sniffing the content.
func DetectContentType(name string, data []byte) string {
	if mimeType := mime.TypeByExtension(filepath.Ext(name)); mimeType != "" {
		return mimeType
	}
	if len(data) > 0 {
		return mimetype.Detect(data).String()
	}
	return "application/octet-stream"
}
