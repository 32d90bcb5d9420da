// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package extract

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// LocationsDir is where word location files are kept in a dataset
var LocationsDir = filepath.Join("gt", "locations", "01")

// PagesDir is where page images are kept in a dataset
var PagesDir = filepath.Join("data", "pages")

var pageSuffixes = []string{".jpg", ".png", ".tif", ".tiff", ".bmp"}

// PageFiles is a page image and the location file describing its words
type PageFiles struct {
	Name, Image, Locations string
}

// FindPages lists every location file in a dataset, along with the
// page image it describes
func FindPages(dataset string) ([]PageFiles, error) {
	locdir := filepath.Join(dataset, LocationsDir)
	entries, err := ioutil.ReadDir(locdir)
	if err != nil {
		return nil, fmt.Errorf("Failed to read directory %s: %v", locdir, err)
	}

	var pages []PageFiles
	for _, e := range entries {
		fn := e.Name()
		if e.IsDir() || len(fn) <= 4 || !strings.HasSuffix(fn, ".svg") {
			continue
		}
		name := strings.TrimSuffix(fn, ".svg")
		img := findImage(filepath.Join(dataset, PagesDir), name)
		if img == "" {
			return pages, fmt.Errorf("No page image found for %s", fn)
		}
		pages = append(pages, PageFiles{Name: name, Image: img, Locations: filepath.Join(locdir, fn)})
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Name < pages[j].Name })
	return pages, nil
}

func findImage(dir string, name string) string {
	for _, s := range pageSuffixes {
		for _, suffix := range []string{s, strings.ToUpper(s)} {
			p := filepath.Join(dir, name+suffix)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}
	return ""
}

// IsPageImage reports whether a file name has a suffix used for page images
func IsPageImage(fn string) bool {
	ext := strings.ToLower(filepath.Ext(fn))
	for _, s := range pageSuffixes {
		if ext == s {
			return true
		}
	}
	return false
}

// ReadStats parses a stats file written by Page, returning the ink
// proportion of each word by ID
func ReadStats(r io.Reader) (map[string]float64, error) {
	stats := make(map[string]float64)
	s := bufio.NewScanner(r)
	for n := 1; s.Scan(); n++ {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) != 2 {
			return stats, fmt.Errorf("Line %d has %d fields, expected 2", n, len(f))
		}
		v, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return stats, fmt.Errorf("Line %d has a bad ink value: %v", n, err)
		}
		stats[f[0]] = v
	}
	return stats, s.Err()
}
