// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package binarize

import (
	"image"
	"math"

	"rescribe.xyz/wordbin/integralimg"
)

func meanstddev(i []int) (float64, float64) {
	sum := 0
	for _, n := range i {
		sum += n
	}
	m := float64(sum) / float64(len(i))

	var sq float64
	for _, n := range i {
		sq += (float64(n) - m) * (float64(n) - m)
	}
	return m, math.Sqrt(sq / float64(len(i)))
}

// gets the pixel values of the window with its top left at x, y
func surrounding(img *image.Gray, x int, y int, winx int, winy int) []int {
	var s []int
	for yi := y; yi < y+winy; yi++ {
		for xi := x; xi < x+winx; xi++ {
			s = append(s, int(img.GrayAt(xi, yi).Y))
		}
	}
	return s
}

// naiveSurface calculates interior thresholds by summing every
// window directly, leaving the border at zero
func naiveSurface(img *image.Gray, p Params) *integralimg.Map {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	wxh, wyh := p.WinX/2, p.WinY/2
	means := integralimg.NewMap(w, h)
	devs := integralimg.NewMap(w, h)
	var maxs float64
	for y := wyh; y <= h-wyh-1; y++ {
		for x := wxh; x <= w-wxh-1; x++ {
			m, s := meanstddev(surrounding(img, x-wxh, y-wyh, p.WinX, p.WinY))
			means.Set(x, y, m)
			devs.Set(x, y, s)
			if s > maxs {
				maxs = s
			}
		}
	}
	minI, _ := minMax(img)
	surf := integralimg.NewMap(w, h)
	for y := wyh; y <= h-wyh-1; y++ {
		for x := wxh; x <= w-wxh-1; x++ {
			th, _ := p.threshold(means.At(x, y), devs.At(x, y), maxs, float64(minI))
			surf.Set(x, y, th)
		}
	}
	return surf
}
