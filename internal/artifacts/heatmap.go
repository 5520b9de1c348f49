package artifacts

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// cmGrid adapts a confusion matrix to plotter.GridXYZ. Row r is the actual
// class, column c the predicted one.
type cmGrid struct {
	cm [][]int
}

func (g cmGrid) Dims() (int, int)   { return len(g.cm), len(g.cm) }
func (g cmGrid) X(c int) float64    { return float64(c) }
func (g cmGrid) Y(r int) float64    { return float64(r) }
func (g cmGrid) Z(c, r int) float64 { return float64(g.cm[r][c]) }

// SaveConfusionMatrix renders the matrix as a heatmap with class-name tick
// labels on both axes.
func (w *Writer) SaveConfusionMatrix(cm [][]int, classes []string) error {
	p := plot.New()
	p.Title.Text = "Confusion Matrix"
	p.X.Label.Text = "Predicted Label"
	p.Y.Label.Text = "True Label"

	heatmap := plotter.NewHeatMap(cmGrid{cm: cm}, moreland.SmoothBlueRed().Palette(255))
	p.Add(heatmap)

	ticks := make([]plot.Tick, len(classes))
	for i, name := range classes {
		ticks[i] = plot.Tick{Value: float64(i), Label: name}
	}
	p.X.Tick.Marker = plot.ConstantTicks(ticks)
	p.Y.Tick.Marker = plot.ConstantTicks(ticks)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -0.9

	path := filepath.Join(w.dir, ConfusionMatrixFile)
	if err := p.Save(10*vg.Inch, 8*vg.Inch, path); err != nil {
		return fmt.Errorf("save confusion matrix plot: %w", err)
	}
	w.log.Info("saved artifact", "path", path)
	return nil
}
