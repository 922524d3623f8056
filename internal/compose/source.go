package compose

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/layerforge/internal/cache"
)

// LayerSource loads the raw bytes of a trait image
type LayerSource interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// FileSource reads layers from the filesystem, optionally through a cache so
// that layers shared by many artifacts are read once
type FileSource struct {
	cache cache.Cache // nil disables caching
}

// NewFileSource creates a file source; c may be nil
func NewFileSource(c cache.Cache) *FileSource {
	return &FileSource{cache: c}
}

// Load returns the bytes of the file at path
func (s *FileSource) Load(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cache.Key("layer", []byte(path))
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layer: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Set(key, data, 0)
	}
	return data, nil
}
