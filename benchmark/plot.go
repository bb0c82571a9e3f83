//
// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package benchmark

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Curve is one labeled line of a chart.
type Curve struct {
	Label  string
	Points []Point
}

// Curves labels each series with its statistic.
func Curves(series []Series) []Curve {
	out := make([]Curve, len(series))
	for i, s := range series {
		out[i] = Curve{Label: s.Statistic.String(), Points: s.Points}
	}
	return out
}

// NoiseCurves labels each series with its noise kind.
func NoiseCurves(series []NoiseSeries) []Curve {
	out := make([]Curve, len(series))
	for i, s := range series {
		out[i] = Curve{Label: s.Kind.String(), Points: s.Points}
	}
	return out
}

// Plot draws one line per curve, RMSE against ε on a logarithmic ε axis,
// and saves it to output. The image format follows the file extension
// (.png, .svg, .pdf...).
func Plot(title string, curves []Curve, output string) error {
	if len(curves) == 0 {
		return fmt.Errorf("no curves to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "ε"
	p.Y.Label.Text = "RMSE"
	p.X.Scale = plot.LogScale{}
	p.X.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Legend.Top = true

	var lines []any
	for _, c := range curves {
		xys := make(plotter.XYs, len(c.Points))
		for i, pt := range c.Points {
			if pt.Epsilon <= 0 {
				return fmt.Errorf("cannot plot ε=%g on a log scale", pt.Epsilon)
			}
			xys[i].X, xys[i].Y = pt.Epsilon, pt.RMSE
		}
		lines = append(lines, c.Label, xys)
	}
	if err := plotutil.AddLinePoints(p, lines...); err != nil {
		return fmt.Errorf("could not add lines: %w", err)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, output); err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}
