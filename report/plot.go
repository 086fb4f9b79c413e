package report

import (
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xiyueyiwan/COMP551-Project4/nnet"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Plot size
var (
	PlotWidth  = 6 * vg.Inch
	PlotHeight = 4 * vg.Inch
)

// WritePlot draws the training and validation error in percent against epoch. The image
// format is taken from the file extension, e.g. svg or png.
func WritePlot(filePath, title string, stats []nnet.Stats, testScore float64) error {
	plt := newPlot(title)
	for i, name := range []string{"training error", "validation error"} {
		line, err := newLinePlot(stats, i, 100)
		if err != nil {
			return err
		}
		plt.Add(line)
		plt.Legend.Add(name+" % ", line)
	}
	if !math.IsNaN(testScore) && len(stats) > 0 {
		pts := plotter.XYs{{X: 1, Y: testScore * 100}, {X: float64(stats[len(stats)-1].Epoch), Y: testScore * 100}}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrap(err, "plot")
		}
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
		line.Color = plotutil.Color(2)
		plt.Add(line)
		plt.Legend.Add("best test error % ", line)
	}
	format := strings.TrimPrefix(filepath.Ext(filePath), ".")
	writer, err := plt.WriterTo(PlotWidth, PlotHeight, format)
	if err != nil {
		return errors.Wrap(err, "plot")
	}
	dir, name := filepath.Split(filePath)
	tmpPath := filepath.Join(dir, "."+name)
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if _, err = writer.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err = f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err = os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func newPlot(title string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "error %"
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = vg.Points(12)
	p.Add(plotter.NewGrid())
	return p
}

// line for one error column, epochs without a measurement are skipped
func newLinePlot(stats []nnet.Stats, ix int, scale float64) (linePlot, error) {
	var pts plotter.XYs
	xmax, ymax := 1.0, 0.0
	for _, s := range stats {
		y := s.TrainError
		if ix == 1 {
			y = s.ValidError
		}
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		pt := plotter.XY{X: float64(s.Epoch), Y: y * scale}
		pts = append(pts, pt)
		xmax = math.Max(xmax, pt.X)
		ymax = math.Max(ymax, pt.Y)
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return linePlot{}, errors.Wrap(err, "plot")
	}
	l.Width = 2
	l.Color = plotutil.Color(ix)
	return linePlot{Line: l, xmin: 1, xmax: xmax, ymin: 0, ymax: ymax}, nil
}

// modified plotter.Line with a fixed scale
type linePlot struct {
	*plotter.Line
	xmin, xmax, ymin, ymax float64
}

func (l linePlot) DataRange() (xmin, xmax, ymin, ymax float64) {
	return l.xmin, l.xmax, l.ymin, l.ymax
}
