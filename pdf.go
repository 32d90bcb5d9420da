// Copyright 2020 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package wordbin

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/nickjwhite/gofpdf"
)

const (
	sheetMargin    = 36.0 // half an inch, in pt
	sheetWordH     = 24.0 // height each word is drawn at, in pt
	sheetLabelSize = 5.0
	sheetGap       = 6.0
)

// ProofSheet is a PDF showing binarised words side by side, with a
// section for each page, so the output can be checked at a glance
type ProofSheet struct {
	fpdf  *gofpdf.Fpdf
	x, y  float64
	words int
}

// Setup creates a new PDF with appropriate settings and fonts
func (p *ProofSheet) Setup() error {
	p.fpdf = gofpdf.New("P", "pt", "A4", "")
	p.fpdf.SetMargins(sheetMargin, sheetMargin, sheetMargin)
	p.fpdf.SetAutoPageBreak(false, 0)
	p.fpdf.SetFont("Helvetica", "", 10)
	return p.fpdf.Error()
}

func (p *ProofSheet) newPage() {
	p.fpdf.AddPage()
	p.x, p.y = sheetMargin, sheetMargin
}

// AddWords starts a new sheet for a page, and draws each word image
// in paths on it, labelled with its file name, flowing onto further
// sheets as needed
func (p *ProofSheet) AddWords(page string, paths []string) error {
	pw, ph := p.fpdf.GetPageSize()
	maxw := pw - 2*sheetMargin
	rowh := sheetWordH + sheetLabelSize + sheetGap

	p.newPage()
	p.fpdf.SetFont("Helvetica", "B", 12)
	p.fpdf.Text(p.x, p.y+12, page)
	p.y += 12 + sheetGap
	p.fpdf.SetFont("Helvetica", "", sheetLabelSize)

	for _, path := range paths {
		info := p.fpdf.RegisterImageOptions(path, gofpdf.ImageOptions{})
		if !p.fpdf.Ok() {
			return fmt.Errorf("Could not add image %s to PDF: %v", path, p.fpdf.Error())
		}
		w := sheetWordH * info.Width() / info.Height()
		if w > maxw {
			w = maxw
		}

		if p.x+w > pw-sheetMargin {
			p.x = sheetMargin
			p.y += rowh
		}
		if p.y+rowh > ph-sheetMargin {
			p.newPage()
		}

		p.fpdf.ImageOptions(path, p.x, p.y, w, sheetWordH, false, gofpdf.ImageOptions{}, 0, "")
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		p.fpdf.Text(p.x, p.y+sheetWordH+sheetLabelSize, id)
		p.x += w + sheetGap
		p.words++
	}
	return p.fpdf.Error()
}

// Words returns the number of words added to the sheet
func (p *ProofSheet) Words() int {
	return p.words
}

// Write outputs the PDF to w
func (p *ProofSheet) Write(w io.Writer) error {
	return p.fpdf.Output(w)
}

// Save saves the PDF to the file at path
func (p *ProofSheet) Save(path string) error {
	return p.fpdf.OutputFileAndClose(path)
}
