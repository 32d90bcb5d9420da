// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// binarize thresholds a whole image with an adaptive local method
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"

	"rescribe.xyz/wordbin/binarize"
	"rescribe.xyz/wordbin/extract"
	"rescribe.xyz/wordbin/integralimg"
)

const usage = `Usage: binarize [-m method] [-w n] [-wx n] [-wy n] [-k n] [-r n] inimg outimg

Binarises an image using the Wolf-Jolion, Sauvola or Niblack method,
saving the result as a png.
`

// TODO: do more testing to see how good this assumption is
func autowsize(bounds image.Rectangle) int {
	return bounds.Dx() / 60
}

func main() {
	method := flag.String("m", "wolf", "binarisation method ('wolf', 'sauvola' or 'niblack')")
	wsize := flag.Int("w", 0, "window size, used for both dimensions. Set automatically based on resolution if not set.")
	winx := flag.Int("wx", 0, "window width, overriding -w")
	winy := flag.Int("wy", 0, "window height, overriding -w")
	k := flag.Float64("k", 0.5, "k parameter. This controls the overall threshold level. Set it lower for very light text (try 0.1 or 0.2).")
	r := flag.Float64("r", 128, "dynamic range of standard deviation (sauvola only)")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(1)
	}

	m, err := binarize.ParseMethod(*method)
	if err != nil {
		log.Fatalln(err)
	}

	gray, err := extract.DecodeGray(flag.Arg(0))
	if err != nil {
		log.Fatalln(err)
	}
	b := gray.Bounds()

	if *wsize == 0 {
		*wsize = autowsize(b)
		if *wsize < 1 {
			*wsize = 1
		}
		log.Printf("Set window size to %d\n", *wsize)
	}
	if *winx == 0 {
		*winx = *wsize
	}
	if *winy == 0 {
		*winy = *wsize
	}
	err = integralimg.CheckWindow(b, *winx, *winy)
	if err != nil {
		log.Fatalln(err)
	}

	p := binarize.Params{Method: m, WinX: *winx, WinY: *winy, K: *k, DR: *r}
	err = p.Check()
	if err != nil {
		log.Fatalln(err)
	}
	bin, err := binarize.Binarize(gray, p)
	if err != nil {
		log.Fatalln(err)
	}

	f, err := os.Create(flag.Arg(1))
	if err != nil {
		log.Fatalf("Could not create file %s: %v\n", flag.Arg(1), err)
	}
	defer f.Close()
	err = png.Encode(f, bin)
	if err != nil {
		log.Fatalf("Could not encode image: %v\n", err)
	}
	log.Printf("%s: %.1f%% ink\n", flag.Arg(1), binarize.Ink(bin)*100)
}
