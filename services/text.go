package services

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"
)

// textExtensions lists the file extensions that the preview and in-place
// edit endpoints accept as editable text.
var textExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".json": true,
	".xml":  true,
	".yaml": true,
	".yml":  true,
	".toml": true,
	".ini":  true,
	".cfg":  true,
	".conf": true,
	".csv":  true,
	".log":  true,
	".html": true,
	".htm":  true,
	".css":  true,
	".js":   true,
	".ts":   true,
	".py":   true,
	".go":   true,
	".sh":   true,
	".sql":  true,
	".env":  true,
}

// IsTextFile reports whether a file qualifies for text preview and editing,
// by extension first and content type as a fallback.
func IsTextFile(name, contentType string) bool {
	ext := strings.ToLower(path.Ext(name))
	if textExtensions[ext] {
		return true
	}
	return strings.HasPrefix(contentType, "text/") ||
		contentType == "application/json" ||
		contentType == "application/xml"
}

// ETagFor derives a weak validator from a file's path, size, and
// modification time. Stable across replicas without hashing content.
func ETagFor(filePath string, size int64, modified time.Time) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%s:%d:%d", filePath, size, modified.UnixNano())))
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
