package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/layerforge/internal/compose"
	"github.com/ppiankov/layerforge/internal/ledger"
	"github.com/ppiankov/layerforge/internal/model"
	"github.com/ppiankov/layerforge/internal/traits"
	"github.com/ppiankov/layerforge/internal/upload"
)

func writeLayer(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

// testConfig lays out the red/blue x circle/square example under a temp dir
func testConfig(t *testing.T) *model.Config {
	t.Helper()
	root := t.TempDir()
	traitsDir := filepath.Join(root, "traits")
	writeLayer(t, filepath.Join(traitsDir, "Background 1", "red.png"), color.NRGBA{R: 255, A: 255})
	writeLayer(t, filepath.Join(traitsDir, "Background 1", "blue.png"), color.NRGBA{B: 255, A: 255})
	writeLayer(t, filepath.Join(traitsDir, "Shape 2", "circle.png"), color.NRGBA{G: 255, A: 128})
	writeLayer(t, filepath.Join(traitsDir, "Shape 2", "square.png"), color.NRGBA{})

	cfg := model.DefaultConfig()
	cfg.ProjectName = "Forge"
	cfg.Description = "Test <collection> & friends"
	cfg.Amount = 3
	cfg.Seed = 42
	cfg.TraitsDir = traitsDir
	cfg.OutputDir = filepath.Join(root, "out")
	cfg.Concurrency.Workers = 2
	cfg.Ledger.Enabled = false
	cfg.Categories = []model.CategoryConfig{
		{Name: "Background 1"},
		{Name: "Shape 2", Weights: []model.WeightConfig{{Option: "circle", Weight: 3}}},
	}
	return cfg
}

func TestRun_GeneratesUniqueArtifacts(t *testing.T) {
	cfg := testConfig(t)
	result, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(42), result.Seed)
	assert.Equal(t, uint64(4), result.SpaceSize)
	require.True(t, result.Store.Complete())

	seen := make(map[string]bool)
	for i, a := range result.Store.All() {
		assert.Equal(t, i, a.Number)
		assert.False(t, seen[a.Combination.Key()])
		seen[a.Combination.Key()] = true

		assert.FileExists(t, filepath.Join(cfg.OutputDir, "images", a.Metadata.Name[len("Forge#"):]+".png"))

		data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "metadata", a.Metadata.Name[len("Forge#"):]+".json"))
		require.NoError(t, err)
		var meta model.Metadata
		require.NoError(t, json.Unmarshal(data, &meta))
		assert.Equal(t, a.Metadata, meta)
		assert.Equal(t, a.Rarity, meta.Rarity)
		assert.Contains(t, string(data), "\n    \"description\": \"Test <collection> & friends\"")

		require.Len(t, meta.Attributes, 2)
		assert.Equal(t, "Background", meta.Attributes[0].TraitValue)
		assert.Equal(t, "Shape", meta.Attributes[1].TraitValue)
		if a.Combination.Options[1].Name == "circle" {
			assert.Equal(t, 66.67, a.Rarity)
		} else {
			assert.Equal(t, 33.33, a.Rarity)
		}
	}

	total := 0
	for _, o := range result.Report.Options {
		total += o.Appearances
	}
	assert.Equal(t, 3*2, total)
	assert.FileExists(t, filepath.Join(cfg.OutputDir, "rarity.json"))
}

func TestRun_SameSeedSameDraws(t *testing.T) {
	first, err := New(testConfig(t)).Run(context.Background())
	require.NoError(t, err)
	second, err := New(testConfig(t)).Run(context.Background())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		a, _ := first.Store.Get(i)
		b, _ := second.Store.Get(i)
		assert.Equal(t, a.Combination.Key(), b.Combination.Key())
	}
}

func TestRun_InfeasibleAmountCreatesNothing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Amount = 5

	_, err := New(cfg).Run(context.Background())
	require.ErrorIs(t, err, traits.ErrInsufficientCombinations)

	var insufficient *traits.InsufficientCombinationsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 5, insufficient.Requested)
	assert.Equal(t, uint64(4), insufficient.Available)
	assert.NoDirExists(t, cfg.OutputDir)
}

func TestRun_ExcludedOptionsShrinkSpace(t *testing.T) {
	cfg := testConfig(t)
	cfg.Categories[0].Weights = []model.WeightConfig{{Option: "blue", Weight: 0}}
	cfg.Amount = 2

	result, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.SpaceSize)
	for _, a := range result.Store.All() {
		assert.Equal(t, "red", a.Combination.Options[0].Name)
	}
}

func TestRun_CorruptLayerAborts(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TraitsDir, "Shape 2", "square.png"), []byte("nope"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TraitsDir, "Shape 2", "circle.png"), []byte("nope"), 0644))

	_, err := New(cfg).Run(context.Background())
	require.ErrorIs(t, err, compose.ErrLayerLoad)
}

func TestRun_CorruptLayerRemovesPartialOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Amount = 4
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TraitsDir, "Shape 2", "square.png"), []byte("nope"), 0644))

	_, err := New(cfg).Run(context.Background())
	require.ErrorIs(t, err, compose.ErrLayerLoad)

	// Circle artifacts may have been composited before the failure
	assert.NoFileExists(t, filepath.Join(cfg.OutputDir, "images", "0.png"))
	assert.NoDirExists(t, filepath.Join(cfg.OutputDir, "images"))
	assert.NoDirExists(t, filepath.Join(cfg.OutputDir, "metadata"))
	assert.NoDirExists(t, cfg.OutputDir)
}

func TestRun_CorruptLayerKeepsUnrelatedFiles(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.OutputDir, "images"), 0755))
	keep := filepath.Join(cfg.OutputDir, "images", "cover.png")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TraitsDir, "Shape 2", "square.png"), []byte("nope"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.TraitsDir, "Shape 2", "circle.png"), []byte("nope"), 0644))

	_, err := New(cfg).Run(context.Background())
	require.Error(t, err)
	assert.FileExists(t, keep)
}

func TestRun_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Amount = 0
	_, err := New(cfg).Run(context.Background())
	require.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestRun_RecordsLedger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ledger.Enabled = true

	result, err := New(cfg).Run(context.Background())
	require.NoError(t, err)
	require.NotZero(t, result.RunID)

	store, err := ledger.Open(cfg.OutputPath(cfg.Ledger.Path))
	require.NoError(t, err)
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, uint64(42), runs[0].Seed)

	entries, err := store.Artifacts(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

type fakePinner struct {
	calls int
}

func (p *fakePinner) Pin(ctx context.Context, files []upload.File, meta upload.PinMetadata) (*upload.Receipt, error) {
	p.calls++
	return &upload.Receipt{IpfsHash: "QmRun", Timestamp: "2024-05-01T12:00:00Z"}, nil
}

type fakeLedger struct {
	uris map[int]string
}

func (l *fakeLedger) RecordRun(ctx context.Context, run ledger.Run) (int64, error) { return 7, nil }

func (l *fakeLedger) RecordArtifacts(ctx context.Context, runID int64, entries []ledger.Entry) error {
	return nil
}

func (l *fakeLedger) UpdateImageURI(ctx context.Context, runID int64, number int, uri string) error {
	if l.uris == nil {
		l.uris = make(map[int]string)
	}
	l.uris[number] = uri
	return nil
}

func TestRun_UploadAndPreview(t *testing.T) {
	cfg := testConfig(t)
	cfg.Upload.Enabled = true
	cfg.Preview.Enabled = true

	pinner := &fakePinner{}
	led := &fakeLedger{}
	var log bytes.Buffer
	result, err := New(cfg, WithPinner(pinner), WithLedger(led), WithLog(&log)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, pinner.calls)
	require.NotNil(t, result.Publication)
	assert.Equal(t, int64(7), result.RunID)
	assert.Equal(t, "ipfs://QmRun/Forge%230.png", led.uris[0])

	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, "metadata", "0.json"))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"image": "ipfs://QmRun/Forge%230.png"`))

	assert.Equal(t, filepath.Join(cfg.OutputDir, "preview.gif"), result.PreviewPath)
	assert.FileExists(t, result.PreviewPath)
	assert.Empty(t, log.String())
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	RenderSummary(&buf, &model.RarityReport{
		Project: "Forge", Draws: 3, Seed: 9, SpaceSize: 4, TotalWeight: 6, Average: 50,
		Options: []model.OptionRarity{{Category: "Shape 2", Option: "circle", Weight: 3, Appearances: 2, Percentage: 66.67}},
	})
	out := buf.String()
	assert.Contains(t, out, "Forge: 3 artifacts")
	assert.Contains(t, out, "Shape 2/circle")
	assert.Contains(t, out, "66.67%")
	assert.Contains(t, out, "Average rarity:    50.00%")
}
