// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package wordbin

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const maxticks = 40
const yticknum = 20

// ErrTooFewValues is returned by Graph when there is not enough data
// to draw a meaningful graph
var ErrTooFewValues = errors.New("Not enough values to graph")

type graphInk struct {
	n   float64
	id  string
	ink float64
}

// createLine creates a horizontal line with a particular y value for
// a graph
func createLine(xvalues []float64, y float64, c drawing.Color) chart.ContinuousSeries {
	var yvalues []float64
	for range xvalues {
		yvalues = append(yvalues, y)
	}
	return chart.ContinuousSeries{
		XValues: xvalues,
		YValues: yvalues,
		Style: chart.Style{
			StrokeColor:     c,
			StrokeDashArray: []float64{5.0, 5.0},
		},
	}
}

// Graph creates a graph of the ink percentage of each word, ordered
// by word id, with lines marking the lowest and highest 10%. Words
// outside of those lines are labelled, as they are the most likely
// to have been binarised badly.
func Graph(ratios map[string]float64, title string, w io.Writer) error {
	if len(ratios) < 2 {
		return ErrTooFewValues
	}

	var ids []string
	for id := range ratios {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var inks []graphInk
	for i, id := range ids {
		inks = append(inks, graphInk{n: float64(i + 1), id: id, ink: ratios[id] * 100})
	}

	var xvalues, yvalues []float64
	var ticks, yticks []chart.Tick
	tickevery := len(inks) / maxticks
	if tickevery < 1 {
		tickevery = 1
	}
	for i, c := range inks {
		xvalues = append(xvalues, c.n)
		yvalues = append(yvalues, c.ink)
		if i%tickevery == 0 {
			ticks = append(ticks, chart.Tick{Value: c.n, Label: c.id})
		}
	}
	final := inks[len(inks)-1]
	ticks[len(ticks)-1] = chart.Tick{Value: final.n, Label: final.id}
	for i := 0; i <= yticknum; i++ {
		n := float64(i*100) / yticknum
		yticks = append(yticks, chart.Tick{Value: n, Label: fmt.Sprintf("%.0f", n)})
	}

	mainSeries := chart.ContinuousSeries{
		Style: chart.Style{
			StrokeColor: chart.ColorBlue,
			FillColor:   chart.ColorAlternateBlue,
		},
		XValues: xvalues,
		YValues: yvalues,
	}

	sorted := make([]graphInk, len(inks))
	copy(sorted, inks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ink < sorted[j].ink })
	low := sorted[len(sorted)/10].ink
	high := sorted[(len(sorted)/10)*9].ink
	if len(sorted) < 10 {
		high = sorted[len(sorted)-1].ink
	}

	var annotations []chart.Value2
	for _, c := range inks {
		if c.ink > high || c.ink < low {
			annotations = append(annotations, chart.Value2{Label: c.id, XValue: c.n, YValue: c.ink})
		}
	}
	annotations = append(annotations, chart.Value2{Label: fmt.Sprintf("%.1f", low), XValue: final.n, YValue: low})
	annotations = append(annotations, chart.Value2{Label: fmt.Sprintf("%.1f", high), XValue: final.n, YValue: high})

	graph := chart.Chart{
		Title:  title,
		Width:  3840,
		Height: 2160,
		XAxis: chart.XAxis{
			Name: "Word",
			Range: &chart.ContinuousRange{
				Min: 0.0,
			},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name: "Ink %",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: 100.0,
			},
			Ticks: yticks,
		},
		Series: []chart.Series{
			mainSeries,
			createLine(xvalues, low, chart.ColorAlternateGray),
			createLine(xvalues, high, chart.ColorAlternateGray),
			chart.AnnotationSeries{
				Annotations: annotations,
			},
		},
	}
	return graph.Render(chart.PNG, w)
}
