// Package chart renders merged abundance tables as stacked bar charts.
package chart

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	wchart "github.com/wcharczuk/go-chart/v2"

	"github.com/seqlab/taxhist/internal/core/domain"
)

// StackedBarRenderer draws one stacked bar per sample column, one segment
// per taxon row. It implements port.ChartRenderer.
type StackedBarRenderer struct {
	Width  int
	Height int
}

// NewStackedBarRenderer creates a renderer with the given canvas size.
func NewStackedBarRenderer(width, height int) *StackedBarRenderer {
	return &StackedBarRenderer{Width: width, Height: height}
}

// Render draws the merged table to the file at path. The output format
// follows the file extension (.png or .svg). Non-numeric rows (appended
// metadata attributes) and absent cells are skipped.
func (r *StackedBarRenderer) Render(merged *domain.Frame, path string) error {
	bars, err := buildBars(merged)
	if err != nil {
		return err
	}

	provider, err := rendererFor(path)
	if err != nil {
		return err
	}

	sbc := wchart.StackedBarChart{
		Width:        r.Width,
		Height:       r.Height,
		XAxis:        wchart.Style{FontSize: 8},
		YAxis:        wchart.Style{Hidden: true},
		BarSpacing:   24,
		IsHorizontal: false,
		Bars:         bars,
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating chart file: %w", err)
	}
	if err := sbc.Render(provider, out); err != nil {
		out.Close()
		return fmt.Errorf("rendering chart: %w", err)
	}
	return out.Close()
}

// buildBars turns each sample column into one stacked bar whose segments
// are the taxon rows with numeric values.
func buildBars(merged *domain.Frame) ([]wchart.StackedBar, error) {
	if merged == nil {
		return nil, fmt.Errorf("%w", domain.ErrNilCollection)
	}

	keys := merged.Keys()
	bars := make([]wchart.StackedBar, 0, len(merged.Columns()))
	for _, sample := range merged.Columns() {
		var values []wchart.Value
		for _, key := range keys {
			cell, ok := merged.Cell(key, sample)
			if !ok {
				continue
			}
			v, numeric := cell.(float64)
			if !numeric || v <= 0 {
				continue
			}
			values = append(values, wchart.Value{
				Label: key.String(),
				Value: v,
			})
		}
		if len(values) == 0 {
			continue
		}
		bars = append(bars, wchart.StackedBar{Name: sample, Values: values})
	}

	if len(bars) == 0 {
		return nil, fmt.Errorf("nothing to plot: no sample column has numeric values")
	}
	return bars, nil
}

func rendererFor(path string) (func(int, int) (wchart.Renderer, error), error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return wchart.PNG, nil
	case ".svg":
		return wchart.SVG, nil
	default:
		return nil, fmt.Errorf("unsupported chart format %q: use .png or .svg", filepath.Ext(path))
	}
}
