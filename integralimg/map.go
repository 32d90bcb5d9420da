// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package integralimg

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Map is a grid of float values with the same dimensions as an
// image, such as a map of local means or a threshold surface.
// Coordinates are relative to the top left of the grid.
type Map struct {
	Values        []float64
	Width, Height int
}

// NewMap creates a Map of w by h zero values
func NewMap(w, h int) *Map {
	return &Map{Values: make([]float64, w*h), Width: w, Height: h}
}

func (m *Map) index(x, y int) int {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		panic(fmt.Sprintf("integralimg: point %d,%d outside of %dx%d map", x, y, m.Width, m.Height))
	}
	return y*m.Width + x
}

// At returns the value at x, y
func (m *Map) At(x, y int) float64 {
	return m.Values[m.index(x, y)]
}

// Set sets the value at x, y
func (m *Map) Set(x, y int, v float64) {
	m.Values[m.index(x, y)] = v
}

// Gray renders the map as a grayscale image, clamping values to
// the 0-255 range, which is useful for inspecting intermediate
// stages of thresholding.
func (m *Map) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			v := math.Round(m.At(x, y))
			if v < 0 || math.IsNaN(v) {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{uint8(v)})
		}
	}
	return img
}
