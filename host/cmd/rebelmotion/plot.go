package main

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"rebelmotion/core"
	"rebelmotion/robot"
)

var plotKeys = []string{robot.ArmAngleKey, robot.ElevatorHeightKey, "drive/x", "drive/y", "drive/heading"}

// savePlot draws every recorded headline series against time.
func savePlot(rec *core.Recorder, filename string) error {
	p := plot.New()
	p.Title.Text = "rebelmotion"
	p.X.Label.Text = "time (s)"
	p.Legend.Top = true

	for i, key := range plotKeys {
		samples := rec.Series(key)
		if len(samples) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(samples))
		for j, s := range samples {
			pts[j].X = s.Time
			pts[j].Y = s.Value
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrap(err, key)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(key, line)
	}
	return savePNG(p, 8, 5, filename)
}

func savePNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.Wrap(err, "create plot directory")
	}
	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create plot")
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return errors.Wrap(err, "write plot")
	}
	return errors.Wrap(bw.Flush(), "write plot")
}
