// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// Package extract crops each word from a page image using its
// outline, normalises its height, and binarises it.
package extract

import (
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io/ioutil"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"

	"rescribe.xyz/wordbin/binarize"
	"rescribe.xyz/wordbin/geom"
	"rescribe.xyz/wordbin/integralimg"
	"rescribe.xyz/wordbin/locations"
)

// Config controls word extraction
type Config struct {
	Params binarize.Params
	// Height every word image is scaled to before binarisation
	Height int
	// SkipID marks words which should not be extracted
	SkipID string
	// DebugDir, if set, receives images of each thresholding stage
	DebugDir string
	Logger   *log.Logger
}

// DefaultConfig returns the standard extraction settings
func DefaultConfig() Config {
	return Config{
		Params: binarize.DefaultParams(),
		Height: 120,
		SkipID: "null",
	}
}

func (c Config) log(v ...interface{}) {
	if c.Logger != nil {
		c.Logger.Println(v...)
	}
}

// Result is a single extracted and binarised word
type Result struct {
	ID string
	// Rect is the area of the page the word was cropped from
	Rect image.Rectangle
	Bin  *image.Gray
	// Ink is the proportion of black pixels in Bin
	Ink float64
}

// Resize scales img to the given height, scaling the width by the
// same factor
func Resize(img *image.Gray, height int) *image.Gray {
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * float64(height) / float64(b.Dy())))
	if w < 1 {
		w = 1
	}
	scaled := image.NewGray(image.Rect(0, 0, w, height))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)
	return scaled
}

// DecodeGray opens and decodes an image, converting it to grayscale
func DecodeGray(path string) (*image.Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Could not open file %s: %v", path, err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("Could not decode image %s: %v", path, err)
	}
	if gray, ok := img.(*image.Gray); ok {
		return gray, nil
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray, nil
}

// Words extracts and binarises every word on page, other than those
// with an ID of c.SkipID. Words whose outline lies entirely outside
// the page are skipped.
func Words(page *image.Gray, words []locations.Word, c Config) ([]Result, error) {
	var results []Result
	for _, w := range words {
		if w.ID == c.SkipID {
			c.log("Skipping word", w.ID)
			continue
		}
		r := geom.BoundingBox(w.Polygon).Intersect(page.Bounds())
		if r.Empty() {
			c.log("Skipping word outside of page", w.ID)
			continue
		}

		scaled := Resize(page.SubImage(r).(*image.Gray), c.Height)

		// narrow words can be thinner than the window
		p := c.Params
		p.WinX = integralimg.FitWindow(p.WinX, scaled.Bounds().Dx())
		p.WinY = integralimg.FitWindow(p.WinY, scaled.Bounds().Dy())
		err := integralimg.CheckWindow(scaled.Bounds(), p.WinX, p.WinY)
		if err != nil {
			return results, fmt.Errorf("Can't binarise word %s: %v", w.ID, err)
		}
		if c.DebugDir != "" {
			p.Observer = debugObserver(c.DebugDir, w.ID, c)
		}

		bin, err := binarize.Binarize(scaled, p)
		if err != nil {
			return results, fmt.Errorf("Error binarising word %s: %v", w.ID, err)
		}
		results = append(results, Result{ID: w.ID, Rect: r, Bin: bin, Ink: binarize.Ink(bin)})
	}
	return results, nil
}

// FileName makes a word ID safe to use as a file name
func FileName(id string) string {
	return strings.NewReplacer("/", "_", "\\", "_").Replace(id)
}

func savePng(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Could not create file %s: %v", path, err)
	}
	defer f.Close()
	err = png.Encode(f, img)
	if err != nil {
		return fmt.Errorf("Could not encode image %s: %v", path, err)
	}
	return f.Close()
}

func debugObserver(dir string, id string, c Config) binarize.Observer {
	return func(stage string, img image.Image) {
		fn := filepath.Join(dir, fmt.Sprintf("%s_%s.png", FileName(id), stage))
		err := savePng(fn, img)
		if err != nil {
			c.log("Error saving debug image", err)
		}
	}
}

// Page extracts every word of a page, saving each binarised word as
// outDir/id.png, and the ink proportion of each in outDir/name.stats,
// where name is the page image name without its suffix. The paths of
// all saved files are returned.
func Page(pagePath string, svgPath string, outDir string, c Config) ([]string, error) {
	var done []string

	page, err := DecodeGray(pagePath)
	if err != nil {
		return done, err
	}
	words, err := locations.ParseFile(svgPath)
	if err != nil {
		return done, err
	}

	c.log("Extracting", len(words), "words from", pagePath)
	results, err := Words(page, words, c)
	if err != nil {
		return done, fmt.Errorf("Error extracting words from %s: %v", pagePath, err)
	}

	var stats strings.Builder
	for _, r := range results {
		fn := filepath.Join(outDir, FileName(r.ID)+".png")
		err = savePng(fn, r.Bin)
		if err != nil {
			return done, err
		}
		done = append(done, fn)
		fmt.Fprintf(&stats, "%s\t%0.4f\n", r.ID, r.Ink)
	}

	name := strings.TrimSuffix(filepath.Base(pagePath), filepath.Ext(pagePath))
	fn := filepath.Join(outDir, name+".stats")
	err = ioutil.WriteFile(fn, []byte(stats.String()), 0644)
	if err != nil {
		return done, fmt.Errorf("Could not write stats file %s: %v", fn, err)
	}
	done = append(done, fn)

	return done, nil
}
