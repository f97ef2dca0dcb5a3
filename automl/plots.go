package automl

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/automl/pkg/errors"
)

// cmGrid adapts a confusion matrix to plotter.GridXYZ. Columns are
// predicted labels, rows are true labels.
type cmGrid struct {
	m *mat.Dense
}

func (g cmGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g cmGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g cmGrid) X(c int) float64    { return float64(c) }
func (g cmGrid) Y(r int) float64    { return float64(r) }

// writeConfusionMatrixPNG renders cm as an annotated heat map.
func writeConfusionMatrixPNG(path, title string, cm *mat.Dense, labels []string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Predicted label"
	p.Y.Label.Text = "True label"

	hm := plotter.NewHeatMap(cmGrid{cm}, palette.Heat(12, 1))
	if hm.Min == hm.Max {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	r, c := cm.Dims()
	cells := plotter.XYLabels{
		XYs:    make(plotter.XYs, 0, r*c),
		Labels: make([]string, 0, r*c),
	}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(j), Y: float64(i)})
			cells.Labels = append(cells.Labels, strconv.FormatFloat(cm.At(i, j), 'f', -1, 64))
		}
	}
	text, err := plotter.NewLabels(cells)
	if err != nil {
		return errors.Wrap(err, "confusion matrix labels")
	}
	p.Add(text)
	p.NominalX(labels...)
	p.NominalY(labels...)

	side := vg.Length(2+len(labels)) * vg.Inch
	if side > 10*vg.Inch {
		side = 10 * vg.Inch
	}
	return errors.Wrap(p.Save(side, side, path), "save confusion matrix")
}

// FeatureImportance is one feature's share of the model's importance.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// rankImportances pairs names with importances, sorted descending. Ties keep
// feature order.
func rankImportances(names []string, values []float64) ([]FeatureImportance, error) {
	if len(names) != len(values) {
		return nil, errors.NewDimensionError("rankImportances", len(names), len(values), 1)
	}
	out := make([]FeatureImportance, len(names))
	for i := range names {
		out[i] = FeatureImportance{Feature: names[i], Importance: values[i]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

// writeImportancesCSV writes a feature,importance table.
func writeImportancesCSV(path string, ranked []FeatureImportance) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create importances csv")
	}
	w := csv.NewWriter(f)
	_ = w.Write([]string{"feature", "importance"})
	for _, fi := range ranked {
		_ = w.Write([]string{fi.Feature, strconv.FormatFloat(fi.Importance, 'g', -1, 64)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, "write importances csv")
	}
	return errors.Wrap(f.Close(), "close importances csv")
}

// writeImportancesPNG renders ranked importances as a horizontal bar chart,
// most important on top.
func writeImportancesPNG(path, title string, ranked []FeatureImportance) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Importance"

	n := len(ranked)
	values := make(plotter.Values, n)
	names := make([]string, n)
	for i, fi := range ranked {
		values[n-1-i] = fi.Importance
		names[n-1-i] = fi.Feature
	}
	bars, err := plotter.NewBarChart(values, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "importance bars")
	}
	bars.Horizontal = true
	bars.Color = palette.Heat(3, 1).Colors()[1]
	p.Add(bars)
	p.NominalY(names...)

	height := vg.Length(n)*vg.Points(18) + 2*vg.Inch
	return errors.Wrap(p.Save(6*vg.Inch, height, path), "save importance chart")
}
