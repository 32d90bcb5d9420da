// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package integralimg

import (
	"image"
)

// Stats holds the local mean and standard deviation of every
// position in an image where a full window can be centred.
type Stats struct {
	Mean, StdDev *Map
	// MaxStdDev is the largest local standard deviation found
	MaxStdDev  float64
	WinX, WinY int
}

// FirstX is the leftmost column with a full window around it
func (s Stats) FirstX() int { return s.WinX / 2 }

// LastX is the rightmost column with a full window around it
func (s Stats) LastX() int { return s.Mean.Width - s.WinX/2 - 1 }

// FirstY is the top row with a full window around it
func (s Stats) FirstY() int { return s.WinY / 2 }

// LastY is the bottom row with a full window around it
func (s Stats) LastY() int { return s.Mean.Height - s.WinY/2 - 1 }

// LocalStats calculates the mean and standard deviation of a winx by
// winy window centred on each pixel of img which has room for one.
// Positions nearer the edges than half a window are left at zero,
// so an even window gets the same margin on both sides of an axis.
//
// The window must fit inside the image; LocalStats panics otherwise,
// so callers should use CheckWindow first when in doubt.
func LocalStats(img *image.Gray, winx, winy int) Stats {
	b := img.Bounds()
	if err := CheckWindow(b, winx, winy); err != nil {
		panic("integralimg: " + err.Error())
	}
	w, h := b.Dx(), b.Dy()
	integrals := ToAllIntegralImg(img)

	s := Stats{
		Mean:   NewMap(w, h),
		StdDev: NewMap(w, h),
		WinX:   winx,
		WinY:   winy,
	}
	wxh := winx / 2
	area := float64(winx * winy)

	for y := s.FirstY(); y <= s.LastY(); y++ {
		top := y - s.FirstY()
		bottom := top + winy

		r := image.Rect(0, top, winx, bottom)
		sum := integrals.Img.Sum(r)
		sumsq := integrals.Sq.Sum(r)
		s.set(wxh, y, sum, sumsq, area)

		// slide the window right, removing the column leaving it
		// and adding the one entering it
		for left := 1; left+wxh <= s.LastX(); left++ {
			out, in := left-1, left+winx-1
			sum = sum - integrals.Img.column(out, top, bottom) + integrals.Img.column(in, top, bottom)
			sumsq = sumsq - integrals.Sq.column(out, top, bottom) + integrals.Sq.column(in, top, bottom)
			s.set(left+wxh, y, sum, sumsq, area)
		}
	}

	return s
}

func (s *Stats) set(x, y int, sum, sumsq uint64, area float64) {
	m, dev := meanStdDev(sum, sumsq, area)
	if dev > s.MaxStdDev {
		s.MaxStdDev = dev
	}
	s.Mean.Set(x, y, m)
	s.StdDev.Set(x, y, dev)
}
