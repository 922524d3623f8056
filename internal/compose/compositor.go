// Package compose stacks the trait images of a drawn combination into a
// single PNG and derives the artifact's metadata.
//
// Layers are stacked in category-name order, not configuration order, so the
// visual result of a combination does not depend on how the config file is
// arranged.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ppiankov/layerforge/internal/model"
)

// Compositor produces artifacts from draw results
type Compositor struct {
	source      LayerSource
	imageDir    string // Empty skips writing PNG files
	project     string
	description string
}

// NewCompositor creates a compositor writing <imageDir>/<num>.png
func NewCompositor(source LayerSource, imageDir, project, description string) *Compositor {
	return &Compositor{
		source:      source,
		imageDir:    imageDir,
		project:     project,
		description: description,
	}
}

// Compose stacks a draw's layers and returns the finished artifact. Any layer
// that fails to load or does not match the canvas size aborts the artifact
// with a *LayerLoadError.
func (c *Compositor) Compose(ctx context.Context, d model.DrawResult) (*model.Artifact, error) {
	canvas, attributes, err := c.Stack(ctx, d.Combination)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode artifact %d: %w", d.Number, err)
	}

	artifact := &model.Artifact{
		DrawResult: d,
		PNG:        buf.Bytes(),
		Metadata: model.Metadata{
			Description: c.description,
			Name:        model.ArtifactName(c.project, d.Number),
			Rarity:      d.Rarity,
			Attributes:  attributes,
		},
	}

	if c.imageDir != "" {
		path := filepath.Join(c.imageDir, strconv.Itoa(d.Number)+".png")
		if err := os.WriteFile(path, artifact.PNG, 0644); err != nil {
			return nil, fmt.Errorf("write artifact %d: %w", d.Number, err)
		}
		artifact.ImagePath = path
	}

	return artifact, nil
}

// Stack alpha-composites the combination's layers onto a transparent canvas
// sized to the first layer and returns the attributes in stacking order
func (c *Compositor) Stack(ctx context.Context, combination model.Combination) (*image.RGBA, []model.Attribute, error) {
	options := combination.Sorted()
	attributes := make([]model.Attribute, 0, len(options))

	var canvas *image.RGBA
	for _, opt := range options {
		layer, err := c.decode(ctx, opt.Path)
		if err != nil {
			return nil, nil, &LayerLoadError{Path: opt.Path, Err: err}
		}

		size := layer.Bounds().Size()
		if canvas == nil {
			canvas = image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
		} else if size != canvas.Bounds().Size() {
			return nil, nil, &LayerLoadError{
				Path: opt.Path,
				Err:  fmt.Errorf("layer is %dx%d, canvas is %dx%d", size.X, size.Y, canvas.Bounds().Dx(), canvas.Bounds().Dy()),
			}
		}

		draw.Draw(canvas, canvas.Bounds(), layer, layer.Bounds().Min, draw.Over)

		attributes = append(attributes, model.Attribute{
			TraitValue: Humanize(opt.Category),
			Value:      opt.Name,
		})
	}

	if canvas == nil {
		return nil, nil, fmt.Errorf("combination has no layers")
	}
	return canvas, attributes, nil
}

func (c *Compositor) decode(ctx context.Context, path string) (image.Image, error) {
	data, err := c.source.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}
