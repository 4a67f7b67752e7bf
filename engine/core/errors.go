package core

import (
	"errors"
)

var (
	ErrEmptyLocation     = errors.New("source location is empty")
	ErrFetchInProgress   = errors.New("a fetch is already in progress")
	ErrDownloadFailed    = errors.New("download failed")
	ErrUnsupportedAsset  = errors.New("unsupported asset")
	ErrUnsupportedScheme = errors.New("unsupported source scheme")
	ErrNoTransplantRoot  = errors.New("downloaded scene has no root object")
	ErrMappingFailed     = errors.New("bone mapping could not be built")
	ErrNodeDestroyed     = errors.New("node has been destroyed")
	ErrInvalidHierarchy  = errors.New("invalid hierarchy")
	ErrNotInitialized    = errors.New("system not initialized")
	ErrUnknown           = errors.New("unknown")
)
