// Package preview assembles a run's artifacts into an animated GIF.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/ppiankov/layerforge/internal/model"
)

// ErrNoFrames is returned when there is nothing to animate
var ErrNoFrames = errors.New("preview: no frames")

// Assemble writes every artifact, in the given order, as one frame of an
// animated GIF at path. delay is rounded to GIF's 10ms resolution.
func Assemble(artifacts []*model.Artifact, path string, delay time.Duration) error {
	if len(artifacts) == 0 {
		return ErrNoFrames
	}

	anim := &gif.GIF{}
	centis := int(delay / (10 * time.Millisecond))
	if centis < 1 {
		centis = 1
	}

	for _, a := range artifacts {
		img, err := frameSource(a)
		if err != nil {
			return fmt.Errorf("frame %d: %w", a.Number, err)
		}
		bounds := img.Bounds()
		frame := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(frame, bounds, img, bounds.Min)
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, centis)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preview dir: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	return nil
}

// frameSource decodes the in-memory PNG, falling back to the written file
func frameSource(a *model.Artifact) (image.Image, error) {
	data := a.PNG
	if len(data) == 0 {
		if a.ImagePath == "" {
			return nil, fmt.Errorf("artifact has no image")
		}
		var err error
		if data, err = os.ReadFile(a.ImagePath); err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
