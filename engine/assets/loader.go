package assets

import (
	"context"
	"net/url"

	"github.com/spaghettifunk/anima-avatar/engine/scene"
)

// Loader turns downloaded bytes into a detached scene graph.
type Loader interface {
	Load(name string, data []byte) (*scene.Node, error)
}

// Provider fetches the raw bytes behind a URI.
type Provider interface {
	Download(ctx context.Context, uri *url.URL) (*Download, error)
}

// Fetcher is the capability the fetch orchestrator drives.
type Fetcher interface {
	// Load fetches and decodes location and attaches the decoded scene as the
	// last child of parent.
	Load(ctx context.Context, location string, parent *scene.Node) error
	// Request performs a single raw fetch without decoding or side effects.
	Request(ctx context.Context, uri *url.URL) (*Download, error)
}

// Download is the raw result of a single fetch.
type Download struct {
	URI         *url.URL
	Data        []byte
	ContentType string
	// HTTP status for http(s) sources, 0 otherwise.
	StatusCode int
}

func (d *Download) Success() bool {
	return d != nil && (d.StatusCode == 0 || (d.StatusCode >= 200 && d.StatusCode < 300))
}
