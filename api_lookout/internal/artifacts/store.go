// Package artifacts stores the files each workflow stage produces, keyed by
// session and relative name.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Info describes one stored artifact.
type Info struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

// Store persists session artifacts. Writes are all-or-nothing: a reader
// never observes a partially written artifact.
type Store interface {
	Put(ctx context.Context, sessionID, name string, data []byte) error
	Get(ctx context.Context, sessionID, name string) ([]byte, error)
	List(ctx context.Context, sessionID string) ([]Info, error)
	Ping(ctx context.Context) error
}

// cleanName validates a relative artifact name such as "modules/x.md".
func cleanName(sessionID, name string) (string, error) {
	if sessionID == "" || strings.ContainsAny(sessionID, `/\`) || sessionID == "." || sessionID == ".." {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	cleaned := path.Clean("/" + strings.ReplaceAll(name, `\`, "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return cleaned, nil
}

// typeOf maps an artifact name to the type label reported in listings.
func typeOf(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".md":
		return "markdown"
	case ".json":
		return "json"
	case ".png":
		return "image"
	case ".jpg", ".jpeg":
		return "image"
	case ".txt":
		return "text"
	default:
		return "file"
	}
}
