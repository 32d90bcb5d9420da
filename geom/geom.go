// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// Package geom reduces word outline polygons to the rectangles
// used to crop word images from a page.
package geom

import (
	"image"
	"math"
	"sort"
)

// Point is a position in page coordinates, which may be fractional
type Point struct {
	X, Y float64
}

// Polygon is a closed outline; the last point joins the first
type Polygon []Point

// RotatedRect is a rectangle at an arbitrary angle
type RotatedRect struct {
	Center        Point
	Width, Height float64
	// Angle of the Width side from the x axis, in radians
	Angle float64
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// ConvexHull returns the convex hull of the points in p, in
// counter-clockwise order, using Andrew's monotone chain.
func ConvexHull(p Polygon) Polygon {
	pts := make(Polygon, len(p))
	copy(pts, p)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X == pts[j].X {
			return pts[i].Y < pts[j].Y
		}
		return pts[i].X < pts[j].X
	})
	if len(pts) < 3 {
		return pts
	}

	hull := make(Polygon, 0, 2*len(pts))
	for _, pt := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		pt := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], pt) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, pt)
	}
	return hull[:len(hull)-1]
}

// MinAreaRect finds the smallest rectangle enclosing p. One side of
// the smallest rectangle always lies along an edge of the convex
// hull, so each hull edge is tried in turn.
func MinAreaRect(p Polygon) RotatedRect {
	hull := ConvexHull(p)
	switch len(hull) {
	case 0:
		return RotatedRect{}
	case 1:
		return RotatedRect{Center: hull[0]}
	}

	best := RotatedRect{}
	bestArea := math.Inf(1)
	for i := range hull {
		a, b := hull[i], hull[(i+1)%len(hull)]
		angle := math.Atan2(b.Y-a.Y, b.X-a.X)
		cos, sin := math.Cos(angle), math.Sin(angle)

		minu, maxu := math.Inf(1), math.Inf(-1)
		minv, maxv := math.Inf(1), math.Inf(-1)
		for _, pt := range hull {
			u := pt.X*cos + pt.Y*sin
			v := -pt.X*sin + pt.Y*cos
			minu, maxu = math.Min(minu, u), math.Max(maxu, u)
			minv, maxv = math.Min(minv, v), math.Max(maxv, v)
		}

		area := (maxu - minu) * (maxv - minv)
		if area < bestArea {
			bestArea = area
			cu, cv := (minu+maxu)/2, (minv+maxv)/2
			best = RotatedRect{
				Center: Point{X: cu*cos - cv*sin, Y: cu*sin + cv*cos},
				Width:  maxu - minu,
				Height: maxv - minv,
				Angle:  angle,
			}
		}
	}
	return best
}

// Corners returns the four corners of the rectangle
func (r RotatedRect) Corners() [4]Point {
	cos, sin := math.Cos(r.Angle), math.Sin(r.Angle)
	hw, hh := r.Width/2, r.Height/2
	var c [4]Point
	for i, d := range [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}} {
		c[i] = Point{
			X: r.Center.X + d[0]*cos - d[1]*sin,
			Y: r.Center.Y + d[0]*sin + d[1]*cos,
		}
	}
	return c
}

// snap is how near a coordinate has to be to an integer to be
// treated as that integer, so rotation noise doesn't add a pixel
const snap = 1e-9

// BoundingRect returns the smallest upright pixel rectangle
// containing the corners. Like OpenCV's RotatedRect::boundingRect
// the far edge is the floor of the largest coordinate plus one.
func (r RotatedRect) BoundingRect() image.Rectangle {
	c := r.Corners()
	minx, miny := c[0].X, c[0].Y
	maxx, maxy := c[0].X, c[0].Y
	for _, pt := range c[1:] {
		minx, maxx = math.Min(minx, pt.X), math.Max(maxx, pt.X)
		miny, maxy = math.Min(miny, pt.Y), math.Max(maxy, pt.Y)
	}
	floor := func(v float64) int { return int(math.Floor(v + snap)) }
	return image.Rect(floor(minx), floor(miny), floor(maxx)+1, floor(maxy)+1)
}

// BoundingBox reduces a polygon to its minimum area rectangle, and
// that to an upright pixel rectangle
func BoundingBox(p Polygon) image.Rectangle {
	return MinAreaRect(p).BoundingRect()
}
