// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// Package locations parses word location files, which are SVG
// documents containing one closed <path> outline per word of a page,
// as found in the HistoGraph datasets:
//
//	<path fill="none" d="M 157.00 245.00 L 160.00 290.00 ... Z" id="270-01-01"/>
package locations

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"rescribe.xyz/wordbin/geom"
)

// Word is the outline of a single word on a page
type Word struct {
	ID      string
	Polygon geom.Polygon
}

// ParseFile parses the location file at path
func ParseFile(path string) ([]Word, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	words, err := Parse(f)
	if err != nil {
		return words, fmt.Errorf("Error parsing %s: %v", path, err)
	}
	return words, nil
}

// Parse reads every <path> element with an id from an SVG document.
// The vertices of each word are returned in the reverse of the order
// they appear in the path.
func Parse(r io.Reader) ([]Word, error) {
	var words []Word
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return words, err
		}
		el, ok := tok.(xml.StartElement)
		if !ok || el.Name.Local != "path" {
			continue
		}
		var id, path string
		for _, a := range el.Attr {
			switch a.Name.Local {
			case "id":
				id = a.Value
			case "d":
				path = a.Value
			}
		}
		if id == "" {
			continue
		}
		poly, err := ParsePath(path)
		if err != nil {
			return words, fmt.Errorf("Error parsing outline of word %s: %v", id, err)
		}
		for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
			poly[i], poly[j] = poly[j], poly[i]
		}
		words = append(words, Word{ID: id, Polygon: poly})
	}
	return words, nil
}

// pathTokens separates path commands from the numbers on either side
// of them, so "M157,245L160 290Z" and "M 157 245 L 160 290 Z" are
// read the same way
var pathTokens = strings.NewReplacer(
	",", " ",
	"M", " M ", "L", " L ", "Z", " Z ",
	"m", " m ", "l", " l ", "z", " z ",
)

// ParsePath parses the vertices of a closed path made of an absolute
// moveto followed by absolute linetos, like "M 1 2 L 3 4 L 5 6 Z", in
// the order they appear. Commands may be written with or without
// space around them. The relative forms "m" and "l" aren't supported,
// while "z" closes the path just like "Z". Anything after the closing
// Z is ignored.
func ParsePath(d string) (geom.Polygon, error) {
	fields := strings.Fields(pathTokens.Replace(d))
	var poly geom.Polygon
	closed := false

	for i := 0; i < len(fields) && !closed; {
		cmd := fields[i]
		i++
		switch cmd {
		case "M", "L":
			if i+1 >= len(fields) {
				return poly, fmt.Errorf("%s command missing coordinates", cmd)
			}
			x, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return poly, fmt.Errorf("bad x coordinate %q: %v", fields[i], err)
			}
			y, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return poly, fmt.Errorf("bad y coordinate %q: %v", fields[i+1], err)
			}
			if cmd == "M" && len(poly) > 0 {
				return poly, fmt.Errorf("more than one subpath")
			}
			if cmd == "L" && len(poly) == 0 {
				return poly, fmt.Errorf("line before any move")
			}
			poly = append(poly, geom.Point{X: x, Y: y})
			i += 2
		case "Z", "z":
			closed = true
		default:
			return poly, fmt.Errorf("unsupported path command %q", cmd)
		}
	}

	if !closed {
		return poly, fmt.Errorf("path is not closed")
	}
	if len(poly) < 3 {
		return poly, fmt.Errorf("path has only %d points", len(poly))
	}
	return poly, nil
}
