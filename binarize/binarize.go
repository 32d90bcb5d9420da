// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// Package binarize converts grayscale images to black and white with
// the Niblack family of local adaptive thresholding algorithms. See
// "Text Localization, Enhancement and Binarization in Multimedia
// Documents" (Wolf, Jolion, Chassaing, 2002) for the Wolf-Jolion
// variant, and "Adaptive document image binarization" (Sauvola,
// Pietikainen, 2000) for Sauvola's.
package binarize

import (
	"fmt"
	"image"

	"rescribe.xyz/wordbin/integralimg"
)

// Observer is called with images of intermediate stages of
// thresholding, for debugging. Stages are "mean", "stddev",
// "threshold" and "binary".
type Observer func(stage string, img image.Image)

// Params controls thresholding
type Params struct {
	Method Method
	// WinX and WinY are the window dimensions
	WinX, WinY int
	// K is the weight of the bias term
	K float64
	// DR is the dynamic range of standard deviation, used only by Sauvola
	DR float64
	// Observer, if set, is shown the intermediate stages
	Observer Observer
}

// DefaultParams returns the parameters used for word images
// normalised to a height of 120 pixels
func DefaultParams() Params {
	return Params{
		Method: WolfJolion,
		WinX:   20,
		WinY:   20,
		K:      0.5,
		DR:     128,
	}
}

func (p Params) observe(stage string, img image.Image) {
	if p.Observer != nil {
		p.Observer(stage, img)
	}
}

// Check returns an error if p can't be used to threshold an image
func (p Params) Check() error {
	if _, err := p.threshold(0, 0, 0, 0); err != nil {
		return err
	}
	if p.Method == Sauvola && p.DR <= 0 {
		return fmt.Errorf("%w: %v", ErrBadRange, p.DR)
	}
	return nil
}

// threshold returns the threshold of a single pixel given its local
// statistics and the image-wide values the formulas need
func (p Params) threshold(m, s, maxs, minI float64) (float64, error) {
	switch p.Method {
	case Niblack:
		return m + p.K*s, nil
	case Sauvola:
		return m * (1 + p.K*(s/p.DR-1)), nil
	case WolfJolion:
		// with no contrast anywhere s is 0 too, so s/maxs is taken as 0
		var rel float64
		if maxs > 0 {
			rel = s / maxs
		}
		return m + p.K*(rel-1)*(m-minI), nil
	}
	return 0, fmt.Errorf("%w: %v", ErrUnknownMethod, p.Method)
}

// minMax returns the lowest and highest intensity in img
func minMax(img *image.Gray) (uint8, uint8) {
	b := img.Bounds()
	lo, hi := uint8(255), uint8(0)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := img.GrayAt(x, y).Y
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	return lo, hi
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ThresholdSurface calculates the threshold for every pixel in img.
// Pixels too near the edge to centre a window on take the threshold
// of the nearest pixel that can: the same column or row for edges,
// and the nearest interior corner for corners.
//
// The window must fit inside img (see integralimg.CheckWindow).
func ThresholdSurface(img *image.Gray, p Params) (*integralimg.Map, error) {
	if err := p.Check(); err != nil {
		return nil, err
	}

	minI, _ := minMax(img)
	stats := integralimg.LocalStats(img, p.WinX, p.WinY)
	p.observe("mean", stats.Mean.Gray())
	p.observe("stddev", stats.StdDev.Gray())

	w, h := stats.Mean.Width, stats.Mean.Height
	surf := integralimg.NewMap(w, h)

	firstx, lastx := stats.FirstX(), stats.LastX()
	firsty, lasty := stats.FirstY(), stats.LastY()
	for y := firsty; y <= lasty; y++ {
		for x := firstx; x <= lastx; x++ {
			th, _ := p.threshold(stats.Mean.At(x, y), stats.StdDev.At(x, y), stats.MaxStdDev, float64(minI))
			surf.Set(x, y, th)
		}
	}

	for y := 0; y < h; y++ {
		ay := clamp(y, firsty, lasty)
		for x := 0; x < w; x++ {
			ax := clamp(x, firstx, lastx)
			if ax == x && ay == y {
				continue
			}
			surf.Set(x, y, surf.At(ax, ay))
		}
	}

	p.observe("threshold", surf.Gray())
	return surf, nil
}

// Binarize thresholds img into a new image the same size, where
// each pixel at or above its local threshold is 255 and every other
// pixel is 0.
//
// The window must fit inside img (see integralimg.CheckWindow).
func Binarize(img *image.Gray, p Params) (*image.Gray, error) {
	surf, err := ThresholdSurface(img, p)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	bin := image.NewGray(b)
	for y := 0; y < surf.Height; y++ {
		for x := 0; x < surf.Width; x++ {
			i := bin.PixOffset(b.Min.X+x, b.Min.Y+y)
			if float64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y) >= surf.At(x, y) {
				bin.Pix[i] = 255
			} else {
				bin.Pix[i] = 0
			}
		}
	}

	p.observe("binary", bin)
	return bin, nil
}

// Ink returns the proportion of pixels in a binarized image which
// are black
func Ink(bin *image.Gray) float64 {
	b := bin.Bounds()
	if b.Empty() {
		return 0
	}
	var n int
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if bin.GrayAt(x, y).Y == 0 {
				n++
			}
		}
	}
	return float64(n) / float64(b.Dx()*b.Dy())
}
