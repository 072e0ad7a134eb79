package storage

import (
	"path/filepath"
	"strings"
)

var contentTypes = map[string]string{
	"txt":  "text/plain; charset=utf-8",
	"md":   "text/markdown; charset=utf-8",
	"html": "text/html; charset=utf-8",
	"css":  "text/css",
	"js":   "application/javascript",
	"json": "application/json",
	"xml":  "application/xml",
	"yaml": "application/x-yaml",
	"yml":  "application/x-yaml",
	"toml": "application/toml",
	"csv":  "text/csv",
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"mp3":  "audio/mpeg",
	"mp4":  "video/mp4",
	"zip":  "application/zip",
	"tar":  "application/x-tar",
	"gz":   "application/gzip",
	"go":   "text/x-go; charset=utf-8",
	"py":   "text/x-python; charset=utf-8",
	"sh":   "text/x-shellscript; charset=utf-8",
	"sql":  "text/plain; charset=utf-8",
}

// ContentTypeFor guesses a MIME type from the file extension.
func ContentTypeFor(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return "application/octet-stream"
}
