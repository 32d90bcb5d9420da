// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// Package integralimg contains integral image (summed-area table)
// operations, used to calculate the local mean and standard deviation
// of every window in an image without re-summing each window.
package integralimg

import (
	"fmt"
	"image"
	"math"
)

// I is the Integral Image. It has one more row and column than the
// image it was made from; row 0 and column 0 are always zero, so
// that sums of any rectangle never need special casing at the edges.
type I [][]uint64

// WithSq contains an Integral Image and its Square
type WithSq struct {
	Img I
	Sq  I
}

// ToIntegralImg creates an integral image
func ToIntegralImg(img *image.Gray) I {
	return toIntegral(img, func(p uint64) uint64 { return p })
}

// ToSqIntegralImg creates an integral image of the square of all
// pixel values
func ToSqIntegralImg(img *image.Gray) I {
	return toIntegral(img, func(p uint64) uint64 { return p * p })
}

// ToAllIntegralImg creates a WithSq containing a regular and
// squared Integral Image, in a single pass over the image
func ToAllIntegralImg(img *image.Gray) WithSq {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	s := WithSq{Img: newI(w, h), Sq: newI(w, h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := uint64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			s.Img[y+1][x+1] = p + s.Img[y][x+1] + s.Img[y+1][x] - s.Img[y][x]
			s.Sq[y+1][x+1] = p*p + s.Sq[y][x+1] + s.Sq[y+1][x] - s.Sq[y][x]
		}
	}
	return s
}

func newI(w, h int) I {
	i := make(I, h+1)
	for y := range i {
		i[y] = make([]uint64, w+1)
	}
	return i
}

func toIntegral(img *image.Gray, f func(uint64) uint64) I {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	i := newI(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := f(uint64(img.GrayAt(b.Min.X+x, b.Min.Y+y).Y))
			i[y+1][x+1] = p + i[y][x+1] + i[y+1][x] - i[y][x]
		}
	}
	return i
}

// Sum returns the sum of all pixels in r, which is in image
// coordinates relative to the top left of the image (so 0,0 is
// the first pixel)
func (i I) Sum(r image.Rectangle) uint64 {
	return i[r.Max.Y][r.Max.X] + i[r.Min.Y][r.Min.X] - i[r.Min.Y][r.Max.X] - i[r.Max.Y][r.Min.X]
}

// column returns the sum of pixels in column x between rows
// miny and maxy (exclusive)
func (i I) column(x, miny, maxy int) uint64 {
	return (i[maxy][x+1] - i[maxy][x]) - (i[miny][x+1] - i[miny][x])
}

// MeanWindow calculates the mean value of a section of an Integral
// Image
func (i I) MeanWindow(r image.Rectangle) float64 {
	return float64(i.Sum(r)) / float64(r.Dx()*r.Dy())
}

// MeanStdDevWindow calculates the mean and standard deviation of
// a section on an Integral Image
func (i WithSq) MeanStdDevWindow(r image.Rectangle) (float64, float64) {
	return meanStdDev(i.Img.Sum(r), i.Sq.Sum(r), float64(r.Dx()*r.Dy()))
}

func meanStdDev(sum, sumsq uint64, area float64) (float64, float64) {
	s := float64(sum)
	m := s / area
	v := (float64(sumsq) - m*s) / area
	// floating point cancellation can leave a tiny negative here
	if v < 0 {
		v = 0
	}
	return m, math.Sqrt(v)
}

// CheckWindow returns an error if a window of winx by winy can't
// be centred anywhere in an image with bounds b.
func CheckWindow(b image.Rectangle, winx, winy int) error {
	if b.Empty() {
		return fmt.Errorf("image is empty")
	}
	if winx < 1 || winy < 1 {
		return fmt.Errorf("window %dx%d is too small", winx, winy)
	}
	if winx > b.Dx() || winy > b.Dy() {
		return fmt.Errorf("window %dx%d is larger than image %dx%d", winx, winy, b.Dx(), b.Dy())
	}
	// an even window needs a spare pixel to be centred
	if FitWindow(winx, b.Dx()) != winx || FitWindow(winy, b.Dy()) != winy {
		return fmt.Errorf("window %dx%d can't be centred in image %dx%d", winx, winy, b.Dx(), b.Dy())
	}
	return nil
}

// FitWindow returns the largest window no bigger than win which can
// be centred somewhere along an axis of length n
func FitWindow(win, n int) int {
	if win > n {
		win = n
	}
	if (win/2)*2+1 > n {
		win--
	}
	return win
}
