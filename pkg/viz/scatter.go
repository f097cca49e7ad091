// Package viz renders cluster projections to image files.
package viz

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Scatter is everything needed to draw one clustering.
type Scatter struct {
	Algorithm string
	Points    [][]float64 // n x 2
	Labels    []int       // one per point
	NClusters int
	Variance  float64 // share of variance the projection keeps, in [0, 1]
	Centers   [][]float64
}

// Title returns the plot title.
func (s Scatter) Title() string {
	return fmt.Sprintf("Algorithm: %s Number of clusters: %d.\n%.2f%% of variance is preserved after PCA",
		s.Algorithm, s.NClusters, s.Variance*100)
}

// Renderer writes one PNG per scatter into Dir.
type Renderer struct {
	Dir    string
	Width  vg.Length
	Height vg.Length
}

// NewRenderer returns a Renderer writing 6x5 inch images into dir.
func NewRenderer(dir string) *Renderer {
	return &Renderer{Dir: dir, Width: 6 * vg.Inch, Height: 5 * vg.Inch}
}

// Path returns the file the scatter of algorithm is written to.
func (r *Renderer) Path(algorithm string) string {
	name := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(algorithm), " ", "_"))
	return filepath.Join(r.Dir, name+".png")
}

// Plot draws the points coloured by label and saves the image.
func (r *Renderer) Plot(s Scatter) error {
	if len(s.Points) != len(s.Labels) {
		return fmt.Errorf("viz: %d points for %d labels", len(s.Points), len(s.Labels))
	}
	if len(s.Points) == 0 {
		return errors.New("viz: nothing to plot")
	}

	p := plot.New()
	p.Title.Text = s.Title()
	p.X.Label.Text = "Principal Component 1"
	p.Y.Label.Text = "Principal Component 2"

	groups := make(map[int]plotter.XYs)
	maxLabel := 0
	for i, pt := range s.Points {
		if len(pt) < 2 {
			return fmt.Errorf("viz: point %d has %d coordinates, want 2", i, len(pt))
		}
		l := s.Labels[i]
		groups[l] = append(groups[l], plotter.XY{X: pt[0], Y: pt[1]})
		if l > maxLabel {
			maxLabel = l
		}
	}
	for l := 0; l <= maxLabel; l++ {
		pts, ok := groups[l]
		if !ok {
			continue
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("viz: cluster %d: %w", l, err)
		}
		sc.Color = plotutil.Color(l)
		sc.Shape = draw.CircleGlyph{}
		sc.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("cluster %d", l), sc)
	}

	if len(s.Centers) > 0 {
		centers := make(plotter.XYs, 0, len(s.Centers))
		for _, c := range s.Centers {
			if len(c) >= 2 {
				centers = append(centers, plotter.XY{X: c[0], Y: c[1]})
			}
		}
		if len(centers) > 0 {
			c, err := plotter.NewScatter(centers)
			if err != nil {
				return fmt.Errorf("viz: centers: %w", err)
			}
			c.Color = color.RGBA{A: 255}
			c.Shape = draw.CrossGlyph{}
			c.Radius = vg.Points(5)
			p.Add(c)
		}
	}

	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("viz: %w", err)
	}
	if err := p.Save(r.Width, r.Height, r.Path(s.Algorithm)); err != nil {
		return fmt.Errorf("viz: save: %w", err)
	}
	return nil
}
