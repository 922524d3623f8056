// Package pipeline runs a complete generation: load trait pools, draw unique
// weighted combinations, composite them concurrently, account rarity, and
// hand the results to the metadata writer, ledger, uploader and preview.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ppiankov/layerforge/internal/cache"
	"github.com/ppiankov/layerforge/internal/compose"
	"github.com/ppiankov/layerforge/internal/ledger"
	"github.com/ppiankov/layerforge/internal/model"
	"github.com/ppiankov/layerforge/internal/preview"
	"github.com/ppiankov/layerforge/internal/random"
	"github.com/ppiankov/layerforge/internal/rarity"
	"github.com/ppiankov/layerforge/internal/sampler"
	"github.com/ppiankov/layerforge/internal/store"
	"github.com/ppiankov/layerforge/internal/traits"
	"github.com/ppiankov/layerforge/internal/upload"
	"github.com/ppiankov/layerforge/internal/worker"
)

const (
	imagesDirName   = "images"
	metadataDirName = "metadata"
	reportFileName  = "rarity.json"
)

// Ledger records runs. *ledger.Store satisfies it.
type Ledger interface {
	RecordRun(ctx context.Context, run ledger.Run) (int64, error)
	RecordArtifacts(ctx context.Context, runID int64, entries []ledger.Entry) error
	UpdateImageURI(ctx context.Context, runID int64, number int, uri string) error
}

// Pipeline orchestrates one generation run
type Pipeline struct {
	config *model.Config
	source compose.LayerSource
	ledger Ledger
	pinner upload.Pinner
	log    io.Writer
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithLayerSource replaces the filesystem layer source
func WithLayerSource(s compose.LayerSource) Option {
	return func(p *Pipeline) { p.source = s }
}

// WithLedger records runs in l instead of opening the configured database
func WithLedger(l Ledger) Option {
	return func(p *Pipeline) { p.ledger = l }
}

// WithPinner replaces the pinning client built from configuration
func WithPinner(pinner upload.Pinner) Option {
	return func(p *Pipeline) { p.pinner = pinner }
}

// WithLog sets where progress and warnings are written (default stderr)
func WithLog(w io.Writer) Option {
	return func(p *Pipeline) { p.log = w }
}

// New creates a pipeline for cfg
func New(cfg *model.Config, opts ...Option) *Pipeline {
	p := &Pipeline{config: cfg, log: os.Stderr}
	for _, opt := range opts {
		opt(p)
	}
	if p.source == nil {
		var layers cache.Cache
		if cfg.Cache.Enabled {
			layers = cache.NewMemoryCache(cfg.Cache.MemoryTTL, 10*time.Minute)
		}
		p.source = compose.NewFileSource(layers)
	}
	return p
}

// Result is the outcome of a run
type Result struct {
	Store       *store.Results
	Report      model.RarityReport
	Seed        uint64
	SpaceSize   uint64
	RunID       int64 // Zero when the ledger is disabled or failed
	Publication *upload.Publication
	PreviewPath string
}

// Run executes the whole generation. Nothing is written to the output
// directory unless the requested amount fits in the combination space.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	cfg := p.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// 1. Load pools and check feasibility before touching the filesystem
	pools, err := traits.LoadPools(cfg.TraitsDir, cfg.Categories)
	if err != nil {
		return nil, fmt.Errorf("load traits: %w", err)
	}
	if err := traits.CheckFeasible(pools, cfg.Amount); err != nil {
		return nil, err
	}
	space, err := traits.NewSpace(pools)
	if err != nil {
		return nil, err
	}
	p.logf("✓ Loaded %d categories, %d combinations\n", len(pools), space.Len())

	seed := cfg.Seed
	if seed == 0 {
		if seed, err = random.NewSeed(); err != nil {
			return nil, err
		}
	}

	// 2. Output directories
	imagesDir := filepath.Join(cfg.OutputDir, imagesDirName)
	metadataDir := filepath.Join(cfg.OutputDir, metadataDirName)
	for _, dir := range []string{imagesDir, metadataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}

	// 3. Sequential draws, scored as they are drawn
	accountant := rarity.NewAccountant(pools)
	draws, err := drawAll(sampler.New(space, random.New(seed)), accountant, cfg.Amount)
	if err != nil {
		return nil, err
	}
	p.logf("⚙️  Drew %d combinations (seed %d)\n", len(draws), seed)

	// 4. Concurrent compositing, one slot per artifact
	results := store.NewResults(cfg.Amount)
	compositor := compose.NewCompositor(p.source, imagesDir, cfg.ProjectName, cfg.Description)
	batch := worker.NewComposeBatch(compositor, cfg.Concurrency.Workers)
	if _, err := batch.Process(ctx, draws, results); err != nil {
		p.discardPartial(imagesDir, metadataDir, len(draws))
		return nil, fmt.Errorf("compose: %w", err)
	}
	p.logf("✓ Composited %d images\n", results.Len())

	// 5. Rarity reduction
	artifacts := results.All()
	for _, a := range artifacts {
		accountant.Observe(a.Combination)
	}
	report := accountant.Report()
	report.Project = cfg.ProjectName
	report.Seed = seed
	report.SpaceSize = uint64(space.Len())

	// 6. Metadata and rarity report
	renderer := NewRenderer(metadataDir)
	for _, a := range artifacts {
		if _, err := renderer.WriteMetadata(a); err != nil {
			return nil, err
		}
	}
	if err := renderer.RenderReport(&report, filepath.Join(cfg.OutputDir, reportFileName)); err != nil {
		return nil, err
	}
	p.logf("✓ Wrote metadata for %d artifacts\n", len(artifacts))

	result := &Result{
		Store:     results,
		Report:    report,
		Seed:      seed,
		SpaceSize: report.SpaceSize,
	}

	// 7. Ledger; failures here never fail the run
	closeLedger := p.openLedger()
	defer closeLedger()
	if p.ledger != nil {
		result.RunID = p.record(ctx, result)
	}

	if cfg.Upload.Enabled {
		pub, err := p.publish(ctx, renderer, artifacts)
		if err != nil {
			return nil, fmt.Errorf("upload: %w", err)
		}
		result.Publication = pub
		p.recordImageURIs(ctx, result.RunID, artifacts)
	}

	if cfg.Preview.Enabled {
		path := cfg.OutputPath(cfg.Preview.Path)
		if err := preview.Assemble(artifacts, path, cfg.Preview.Delay); err != nil {
			p.warnf("preview: %v\n", err)
		} else {
			result.PreviewPath = path
			p.logf("✓ Wrote preview: %s\n", path)
		}
	}

	return result, nil
}

func drawAll(s *sampler.Sampler, accountant *rarity.Accountant, amount int) ([]model.DrawResult, error) {
	draws := make([]model.DrawResult, amount)
	for i := range draws {
		c, err := s.Draw()
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", i, err)
		}
		draws[i] = model.DrawResult{
			Combination: c,
			Rarity:      accountant.Score(c),
			Number:      i,
		}
	}
	return draws, nil
}

// openLedger opens the configured database unless one was injected
func (p *Pipeline) openLedger() func() {
	if p.ledger != nil || !p.config.Ledger.Enabled {
		return func() {}
	}
	path := p.config.OutputPath(p.config.Ledger.Path)
	db, err := ledger.Open(path)
	if err != nil {
		p.warnf("ledger disabled: %v\n", err)
		return func() {}
	}
	p.ledger = db
	return func() {
		if err := db.Close(); err != nil {
			p.warnf("close ledger: %v\n", err)
		}
		p.ledger = nil
	}
}

func (p *Pipeline) record(ctx context.Context, result *Result) int64 {
	artifacts := result.Store.All()
	runID, err := p.ledger.RecordRun(ctx, ledger.Run{
		Project:     p.config.ProjectName,
		Seed:        result.Seed,
		Amount:      len(artifacts),
		SpaceSize:   result.SpaceSize,
		TotalWeight: result.Report.TotalWeight,
		Average:     result.Report.Average,
		OutputDir:   p.config.OutputDir,
		CreatedAt:   result.Report.GeneratedAt,
	})
	if err != nil {
		p.warnf("ledger: %v\n", err)
		return 0
	}

	entries := make([]ledger.Entry, len(artifacts))
	for i, a := range artifacts {
		entries[i] = ledger.EntryFor(a)
	}
	if err := p.ledger.RecordArtifacts(ctx, runID, entries); err != nil {
		p.warnf("ledger: %v\n", err)
		return runID
	}
	p.logf("✓ Recorded run %d in ledger\n", runID)
	return runID
}

func (p *Pipeline) publish(ctx context.Context, renderer *Renderer, artifacts []*model.Artifact) (*upload.Publication, error) {
	pinner := p.pinner
	if pinner == nil {
		creds, err := upload.LoadCredentials()
		if err != nil {
			return nil, err
		}
		var opts []upload.Option
		if p.config.Cache.Enabled {
			receipts := cache.NewLayeredCache(p.config.Cache.MemoryTTL, p.config.Cache.Dir, p.config.Cache.DiskTTL)
			opts = append(opts, upload.WithReceiptCache(receipts))
		}
		client, err := upload.NewClient(p.config.Upload, creds, opts...)
		if err != nil {
			return nil, err
		}
		pinner = client
	}

	p.logf("⚙️  Uploading %d images...\n", len(artifacts))
	pub, err := upload.NewPublisher(pinner, renderer, p.config.Upload.Gateway, p.config.ProjectName).Publish(ctx, artifacts)
	if err != nil {
		return nil, err
	}
	p.logf("✓ Pinned images %s, metadata %s\n", pub.Images.IpfsHash, pub.Metadata.IpfsHash)
	return pub, nil
}

func (p *Pipeline) recordImageURIs(ctx context.Context, runID int64, artifacts []*model.Artifact) {
	if p.ledger == nil || runID == 0 {
		return
	}
	for _, a := range artifacts {
		if err := p.ledger.UpdateImageURI(ctx, runID, a.Number, a.Metadata.Image); err != nil {
			p.warnf("ledger: %v\n", err)
			return
		}
	}
}

// discardPartial removes the images an aborted run wrote, then the output
// directories if nothing else is left in them
func (p *Pipeline) discardPartial(imagesDir, metadataDir string, amount int) {
	for i := 0; i < amount; i++ {
		path := filepath.Join(imagesDir, strconv.Itoa(i)+".png")
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			p.warnf("remove partial image: %v\n", err)
		}
	}
	for _, dir := range []string{imagesDir, metadataDir, p.config.OutputDir} {
		_ = os.Remove(dir)
	}
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.config.Output.Verbose {
		fmt.Fprintf(p.log, format, args...)
	}
}

func (p *Pipeline) warnf(format string, args ...any) {
	fmt.Fprintf(p.log, "Warning: "+format, args...)
}
