package traits

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/layerforge/internal/model"
)

func entries(names ...string) []Entry {
	out := make([]Entry, len(names))
	for i, n := range names {
		out[i] = Entry{Name: n, Path: n + ".png"}
	}
	return out
}

func TestNewPool_DefaultsAndExclusions(t *testing.T) {
	pool, err := NewPool("Shape 2", entries("circle", "square", "star"), map[string]float64{
		"circle": 3,
		"star":   0,
	})
	require.NoError(t, err)

	require.Equal(t, 2, pool.Len())
	assert.Equal(t, "circle", pool.Options()[0].Name)
	assert.Equal(t, 3.0, pool.Options()[0].Weight)
	assert.Equal(t, "square", pool.Options()[1].Name)
	assert.Equal(t, model.DefaultWeight, pool.Options()[1].Weight)
	assert.Equal(t, 4.0, pool.TotalWeight())
	assert.Equal(t, "Shape 2", pool.Options()[1].Category)
}

func TestNewPool_EmptyCategory(t *testing.T) {
	_, err := NewPool("Eyes 3", nil, nil)
	require.ErrorIs(t, err, ErrEmptyCategory)

	_, err = NewPool("Eyes 3", entries("open"), map[string]float64{"open": 0})
	require.ErrorIs(t, err, ErrEmptyCategory)
	assert.Contains(t, err.Error(), "Eyes 3")
}

func TestNewPool_NegativeWeight(t *testing.T) {
	_, err := NewPool("Eyes 3", entries("open"), map[string]float64{"open": -1})
	require.Error(t, err)
}

func TestNewPool_DuplicateStem(t *testing.T) {
	_, err := NewPool("Background 1", []Entry{
		{Name: "red", Path: "bg/red.gif"},
		{Name: "red", Path: "bg/red.png"},
	}, nil)
	require.ErrorIs(t, err, ErrDuplicateOption)
	assert.Contains(t, err.Error(), "bg/red.gif")
	assert.Contains(t, err.Error(), "bg/red.png")
}

func TestNewPool_UnknownOverride(t *testing.T) {
	_, err := NewPool("Shape 2", entries("circle", "square"), map[string]float64{
		"circel": 3,
		"star":   0,
	})
	require.ErrorIs(t, err, ErrUnknownOption)
	assert.Contains(t, err.Error(), `"circel", "star"`)
	assert.Contains(t, err.Error(), "Shape 2")
}

func TestCardinality_ProductOfCounts(t *testing.T) {
	a, _ := NewPool("A 1", entries("a", "b", "c"), nil)
	b, _ := NewPool("B 2", entries("x", "y"), map[string]float64{"y": 0})
	c, _ := NewPool("C 3", entries("p", "q", "r", "s"), nil)

	assert.Equal(t, uint64(3*1*4), Cardinality([]*Pool{a, b, c}))
	assert.Equal(t, uint64(0), Cardinality(nil))

	space, err := NewSpace([]*Pool{a, b, c})
	require.NoError(t, err)
	assert.Equal(t, 12, space.Len())
}

func TestCardinality_Saturates(t *testing.T) {
	big := &Pool{category: "Big 1", options: make([]*model.TraitOption, 1<<22)}
	assert.Equal(t, uint64(math.MaxUint64), Cardinality([]*Pool{big, big, big}))
}

func TestNewSpace_RejectsOversizedSpace(t *testing.T) {
	big := &Pool{category: "Big 1", options: make([]*model.TraitOption, 1<<22)}
	pools := []*Pool{big, big, big}
	require.NoError(t, CheckFeasible(pools, 1))

	_, err := NewSpace(pools)
	require.ErrorIs(t, err, ErrSpaceTooLarge)

	var tooLarge *SpaceTooLargeError
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, uint64(math.MaxUint64), tooLarge.Size)
	assert.Equal(t, uint64(maxSpaceSize), tooLarge.Limit)

	// Just over the limit without saturating
	wide := &Pool{category: "Wide 2", options: make([]*model.TraitOption, maxSpaceSize/2+1)}
	two, _ := NewPool("Two 1", entries("a", "b"), nil)
	_, err = NewSpace([]*Pool{two, wide})
	require.ErrorAs(t, err, &tooLarge)
	assert.Equal(t, uint64(maxSpaceSize+2), tooLarge.Size)
}

func TestNewSpace_AdditiveWeights(t *testing.T) {
	bg, _ := NewPool("Background 1", entries("red", "blue"), nil)
	shape, _ := NewPool("Shape 2", entries("circle", "square"), map[string]float64{"circle": 3, "square": 1})

	space, err := NewSpace([]*Pool{bg, shape})
	require.NoError(t, err)
	require.Equal(t, 4, space.Len())

	got := make(map[string]float64)
	for _, c := range space.Combinations() {
		got[c.Key()] = c.Weight
	}
	assert.Equal(t, map[string]float64{
		"Background 1/red|Shape 2/circle":  4,
		"Background 1/red|Shape 2/square":  2,
		"Background 1/blue|Shape 2/circle": 4,
		"Background 1/blue|Shape 2/square": 2,
	}, got)

	// Options are shared with the pools
	assert.Same(t, bg.Options()[0], space.Combinations()[0].Options[0])
}

func TestNewSpace_NoDuplicates(t *testing.T) {
	a, _ := NewPool("A 1", entries("a", "b", "c"), nil)
	b, _ := NewPool("B 2", entries("x", "y", "z"), nil)

	space, err := NewSpace([]*Pool{a, b})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, c := range space.Combinations() {
		require.False(t, seen[c.Key()], "duplicate combination %s", c.Key())
		seen[c.Key()] = true
	}
	assert.Len(t, seen, 9)
}

func TestCheckFeasible(t *testing.T) {
	a, _ := NewPool("A 1", entries("a", "b"), nil)
	b, _ := NewPool("B 2", entries("x", "y"), nil)
	pools := []*Pool{a, b}

	require.NoError(t, CheckFeasible(pools, 4))

	err := CheckFeasible(pools, 5)
	require.ErrorIs(t, err, ErrInsufficientCombinations)

	var insufficient *InsufficientCombinationsError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 5, insufficient.Requested)
	assert.Equal(t, uint64(4), insufficient.Available)
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.png", ".DS_Store"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))

	got, err := ScanDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "a", Path: filepath.Join(dir, "a.png")},
		{Name: "b", Path: filepath.Join(dir, "b.png")},
	}, got)

	_, err = ScanDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestLoadPools(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"Background 1/red.png", "Background 1/blue.png", "shapes/circle.png"} {
		path := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}

	pools, err := LoadPools(root, []model.CategoryConfig{
		{Name: "Background 1", Weights: []model.WeightConfig{{Option: "blue", Weight: 0}}},
		{Name: "Shape 2", Dir: "shapes"},
	})
	require.NoError(t, err)
	require.Len(t, pools, 2)
	assert.Equal(t, 1, pools[0].Len())
	assert.Equal(t, "red", pools[0].Options()[0].Name)
	assert.Equal(t, "Shape 2", pools[1].Category())

	_, err = LoadPools(root, []model.CategoryConfig{
		{Name: "Background 1", Weights: []model.WeightConfig{{Option: "blue", Weight: 0}, {Option: "red", Weight: 0}}},
	})
	require.ErrorIs(t, err, ErrEmptyCategory)
}

func TestLoadPools_DuplicateStemAcrossFormats(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Background 1")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, name := range []string{"red.png", "red.gif", "blue.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	_, err := LoadPools(root, []model.CategoryConfig{{Name: "Background 1"}})
	require.ErrorIs(t, err, ErrDuplicateOption)
	assert.Contains(t, err.Error(), filepath.Join(dir, "red.gif"))
	assert.Contains(t, err.Error(), filepath.Join(dir, "red.png"))
}

func TestLoadPools_UnknownOverride(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "Background 1", "red.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	_, err := LoadPools(root, []model.CategoryConfig{
		{Name: "Background 1", Weights: []model.WeightConfig{{Option: "rde", Weight: 0}}},
	})
	require.ErrorIs(t, err, ErrUnknownOption)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "red", Stem("red.png"))
	assert.Equal(t, "gold.chain", Stem("dir/gold.chain.png"))
	assert.Equal(t, "plain", Stem("plain"))
}
