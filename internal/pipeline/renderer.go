package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/layerforge/internal/model"
)

// Renderer writes metadata documents and rarity reports
type Renderer struct {
	metadataDir string
}

// NewRenderer creates a renderer writing <metadataDir>/<num>.json
func NewRenderer(metadataDir string) *Renderer {
	return &Renderer{metadataDir: metadataDir}
}

// WriteMetadata writes an artifact's metadata and returns the document
func (r *Renderer) WriteMetadata(a *model.Artifact) ([]byte, error) {
	data, err := encodeJSON(a.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata %d: %w", a.Number, err)
	}
	path := filepath.Join(r.metadataDir, strconv.Itoa(a.Number)+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write metadata %d: %w", a.Number, err)
	}
	return data, nil
}

// RenderReport writes the rarity report as JSON
func (r *Renderer) RenderReport(report *model.RarityReport, path string) error {
	data, err := encodeJSON(report)
	if err != nil {
		return fmt.Errorf("encode rarity report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write rarity report: %w", err)
	}
	return nil
}

// RenderSummary prints a human-readable rarity table
func RenderSummary(w io.Writer, report *model.RarityReport) {
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "  %s: %d artifacts\n", report.Project, report.Draws)
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Seed:              %d\n", report.Seed)
	fmt.Fprintf(w, "Combination space: %d\n", report.SpaceSize)
	fmt.Fprintf(w, "Total weight:      %s\n", formatFloat(report.TotalWeight))
	fmt.Fprintln(w)

	width := len("Option")
	for _, o := range report.Options {
		if n := len(o.Category) + len(o.Option) + 1; n > width {
			width = n
		}
	}

	fmt.Fprintf(w, "%-*s  %8s  %6s  %8s\n", width, "Option", "Weight", "Count", "Percent")
	fmt.Fprintf(w, "%s\n", strings.Repeat("─", width+30))
	for _, o := range report.Options {
		fmt.Fprintf(w, "%-*s  %8s  %6d  %7.2f%%\n", width, o.Category+"/"+o.Option, formatFloat(o.Weight), o.Appearances, o.Percentage)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Average rarity:    %.2f%%\n", report.Average)
}

// encodeJSON indents with four spaces and keeps non-ASCII and HTML characters as-is
func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
