package traits

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/layerforge/internal/model"
)

// ScanDir lists the trait files of one category directory, sorted by file name.
// Hidden files and subdirectories are skipped.
func ScanDir(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read trait dir %s: %w", dir, err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		entries = append(entries, Entry{
			Name: Stem(name),
			Path: filepath.Join(dir, name),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})

	return entries, nil
}

// Stem returns a file name without its extension
func Stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// LoadPools scans every configured category under traitsDir and builds its pool
func LoadPools(traitsDir string, categories []model.CategoryConfig) ([]*Pool, error) {
	pools := make([]*Pool, 0, len(categories))
	for _, cat := range categories {
		listing, err := ScanDir(filepath.Join(traitsDir, cat.Directory()))
		if err != nil {
			return nil, err
		}

		pool, err := NewPool(cat.Name, listing, cat.WeightMap())
		if err != nil {
			return nil, err
		}
		pools = append(pools, pool)
	}
	return pools, nil
}
