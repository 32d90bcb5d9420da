// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package locations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rescribe.xyz/wordbin/geom"
)

const page = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg xmlns="http://www.w3.org/2000/svg" width="2000" height="3000">
<path fill="none" d="M 157.00 245.00 L 300.00 245.00 L 300.00 290.00 L 157.00 290.00 Z" stroke-width="1" id="270-01-01" stroke="black"/>
<path fill="none" d="M310,240 L400,242 L398,295 Z" id="270-01-02"/>
<path fill="none" d="M 1 1 L 2 2 L 3 1 Z"/>
<rect x="0" y="0" width="10" height="10" id="notaword"/>
</svg>`

func TestParse(t *testing.T) {
	words, err := Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("Expected 2 words, got %d: %+v", len(words), words)
	}

	cases := []struct {
		id   string
		poly geom.Polygon
	}{
		{"270-01-01", geom.Polygon{{X: 157, Y: 290}, {X: 300, Y: 290}, {X: 300, Y: 245}, {X: 157, Y: 245}}},
		{"270-01-02", geom.Polygon{{X: 398, Y: 295}, {X: 400, Y: 242}, {X: 310, Y: 240}}},
	}
	for i, c := range cases {
		t.Run(c.id, func(t *testing.T) {
			w := words[i]
			if w.ID != c.id {
				t.Fatalf("Expected id %s, got %s", c.id, w.ID)
			}
			if len(w.Polygon) != len(c.poly) {
				t.Fatalf("Expected %d points, got %v", len(c.poly), w.Polygon)
			}
			for j := range c.poly {
				if w.Polygon[j] != c.poly[j] {
					t.Errorf("Point %d differs, expected %v, got %v", j, c.poly[j], w.Polygon[j])
				}
			}
		})
	}
}

func TestParsePath(t *testing.T) {
	cases := []struct {
		d   string
		n   int
		err string
	}{
		{"M 1 2 L 3 4 L 5 0 Z", 3, ""},
		{"M1 2 L3 4 L5 0 Z", 3, ""},
		{"M 1,2 L 3,4 L 5,0 L 0,0 z", 4, ""},
		{"M 1 2 L 3 4 L 5 0 Z M 9 9", 3, ""},
		{"M157 245L160 290L170 250Z", 3, ""},
		{"M157,245L160,290L170,250L157,250z", 4, ""},
		{"M 1 2 L 3 4 L 5 0Z", 3, ""},
		{"m 1 2 l 3 4 l 5 0 z", 0, "unsupported"},
		{"M 1 2 l 3 4 L 5 0 Z", 0, "unsupported"},
		{"M 1 2 L 3 4 L 5 0", 0, "not closed"},
		{"M 1 2 L 3 4 Z", 0, "only 2 points"},
		{"L 1 2 L 3 4 L 5 0 Z", 0, "line before any move"},
		{"M 1 2 C 3 4 5 6 7 8 Z", 0, "unsupported"},
		{"M 1 x L 3 4 L 5 0 Z", 0, "bad y coordinate"},
		{"M 1 2 L 3", 0, "missing coordinates"},
		{"M 1 2 L 3 4 M 5 0 Z", 0, "more than one subpath"},
	}
	for _, c := range cases {
		t.Run(c.d, func(t *testing.T) {
			poly, err := ParsePath(c.d)
			if c.err != "" {
				if err == nil || !strings.Contains(err.Error(), c.err) {
					t.Fatalf("Expected error containing '%s', got %v", c.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(poly) != c.n {
				t.Errorf("Expected %d points, got %d", c.n, len(poly))
			}
		})
	}
}

func TestParseBadWord(t *testing.T) {
	_, err := Parse(strings.NewReader(`<svg><path id="w1" d="M 1 2 Q 3 4"/></svg>`))
	if err == nil || !strings.Contains(err.Error(), "w1") {
		t.Errorf("Expected an error naming the word, got %v", err)
	}
}

func TestParseFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "270.svg")
	err := os.WriteFile(fn, []byte(page), 0644)
	if err != nil {
		t.Fatalf("Could not write test file: %v", err)
	}
	words, err := ParseFile(fn)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(words) != 2 {
		t.Errorf("Expected 2 words, got %d", len(words))
	}

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.svg"))
	if err == nil {
		t.Errorf("Expected an error for a missing file")
	}
}
