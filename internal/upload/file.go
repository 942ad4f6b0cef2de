package upload

import (
	"path/filepath"
	"strings"
)

// File is a clip selected for upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload size in bytes.
func (f File) Size() int64 {
	return int64(len(f.Data))
}

// Ext returns the lowercased filename extension including the dot.
func (f File) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// MediaType returns the content type without parameters, lowercased.
func (f File) MediaType() string {
	mt, _, _ := strings.Cut(f.ContentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}
