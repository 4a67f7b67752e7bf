package assets

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/spaghettifunk/anima-avatar/engine/assets/loaders"
	"github.com/spaghettifunk/anima-avatar/engine/core"
	"github.com/spaghettifunk/anima-avatar/engine/scene"
)

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	// Binary glTF container.
	AssetTypeGLB
	// glTF JSON with embedded buffers.
	AssetTypeGLTF
)

var glbMagic = []byte("glTF")

type AssetManagerConfig struct {
	Client *ClientConfig
	// Size limit for local files (0 = no limit).
	MaxFileBytes int64
}

// AssetManager implements Fetcher: providers are chosen by URI scheme and
// loaders by asset type.
type AssetManager struct {
	graph scene.Graph

	mutex     sync.RWMutex
	providers map[string]Provider
	loaders   map[AssetType]Loader

	requests singleflight.Group
}

func NewAssetManager(graph scene.Graph, config *AssetManagerConfig) *AssetManager {
	if config == nil {
		config = &AssetManagerConfig{}
	}
	am := &AssetManager{
		graph:     graph,
		providers: make(map[string]Provider),
		loaders:   make(map[AssetType]Loader),
	}

	httpProvider := NewHTTPProvider(config.Client)
	fileProvider := NewFileProvider(config.MaxFileBytes)
	am.RegisterProvider("http", httpProvider)
	am.RegisterProvider("https", httpProvider)
	am.RegisterProvider("file", fileProvider)
	am.RegisterProvider("", fileProvider)

	gltfLoader := &loaders.GLTFLoader{}
	am.RegisterLoader(AssetTypeGLB, gltfLoader)
	am.RegisterLoader(AssetTypeGLTF, gltfLoader)
	return am
}

// Register providers for each URI scheme
func (am *AssetManager) RegisterProvider(scheme string, provider Provider) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.providers[strings.ToLower(scheme)] = provider
}

// Register loaders for each asset type
func (am *AssetManager) RegisterLoader(assetType AssetType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[assetType] = loader
}

/**
 * @brief Performs one raw fetch. Concurrent requests for the same URI share a
 * single download; every caller still returns early if its own context ends.
 */
func (am *AssetManager) Request(ctx context.Context, uri *url.URL) (*Download, error) {
	if uri == nil {
		return nil, core.ErrEmptyLocation
	}
	am.mutex.RLock()
	provider, ok := am.providers[strings.ToLower(uri.Scheme)]
	am.mutex.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", core.ErrUnsupportedScheme, uri.Scheme)
	}

	ch := am.requests.DoChan(uri.String(), func() (interface{}, error) {
		return provider.Download(ctx, uri)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		d, _ := res.Val.(*Download)
		if res.Shared {
			core.LogDebug("shared download of '%s'", uri.Redacted())
		}
		return d, res.Err
	}
}

func (am *AssetManager) Load(ctx context.Context, location string, parent *scene.Node) error {
	uri, err := ParseLocation(location)
	if err != nil {
		return err
	}

	d, err := am.Request(ctx, uri)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	assetType := determineAssetType(uri.Path, d.ContentType, d.Data)
	am.mutex.RLock()
	loader, ok := am.loaders[assetType]
	am.mutex.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no loader for '%s'", core.ErrUnsupportedAsset, uri.Redacted())
	}

	root, err := loader.Load(assetName(uri), d.Data)
	if err != nil {
		return err
	}
	if parent == nil {
		return nil
	}
	return am.graph.SetParent(root, parent, false)
}

// ParseLocation accepts URLs and plain filesystem paths.
func ParseLocation(location string) (*url.URL, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, core.ErrEmptyLocation
	}
	if filepath.IsAbs(location) || filepath.VolumeName(location) != "" || !strings.Contains(location, "://") {
		return &url.URL{Path: filepath.ToSlash(location)}, nil
	}
	uri, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid source location '%s': %w", location, err)
	}
	return uri, nil
}

// IsLocalLocation reports whether location names a file on this machine.
func IsLocalLocation(location string) (string, bool) {
	uri, err := ParseLocation(location)
	if err != nil {
		return "", false
	}
	switch uri.Scheme {
	case "", "file":
		return filepath.FromSlash(localPath(uri)), true
	}
	return "", false
}

func assetName(uri *url.URL) string {
	name := path.Base(uri.Path)
	if name == "." || name == "/" || name == "" {
		return "Scene"
	}
	return strings.TrimSuffix(name, path.Ext(name))
}

func determineAssetType(p string, contentType string, data []byte) AssetType {
	switch strings.ToLower(path.Ext(p)) {
	case ".glb", ".vrm":
		return AssetTypeGLB
	case ".gltf":
		return AssetTypeGLTF
	}
	switch {
	case strings.HasPrefix(contentType, "model/gltf-binary"):
		return AssetTypeGLB
	case strings.HasPrefix(contentType, "model/gltf+json"):
		return AssetTypeGLTF
	}
	switch {
	case bytes.HasPrefix(data, glbMagic):
		return AssetTypeGLB
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")):
		return AssetTypeGLTF
	default:
		return AssetTypeNone
	}
}
