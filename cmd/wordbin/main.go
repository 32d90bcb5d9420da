// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// wordbin extracts and binarises every word of a dataset on the local
// machine, using several pages at once.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"

	"rescribe.xyz/wordbin/binarize"
	"rescribe.xyz/wordbin/extract"
	"rescribe.xyz/wordbin/internal/pipeline"
)

const usage = `Usage: wordbin [-v] [-m method] [-wx n] [-wy n] [-k n] [-r n] [-h n] [-j n] [-skip id] [-debug dir] datasetdir outdir

Extracts every word outlined in the location files of datasetdir from
its page image, scales it to a standard height, and binarises it.
Each word is saved as outdir/id.png, and the proportion of each word
which is ink is saved in a .stats file for each page.

The dataset should be laid out like this:
  datasetdir/data/pages/270.jpg
  datasetdir/gt/locations/01/270.svg
`

func main() {
	verbose := flag.Bool("v", false, "verbose")
	method := flag.String("m", "wolf", "binarisation method ('wolf', 'sauvola' or 'niblack')")
	winx := flag.Int("wx", 20, "window width")
	winy := flag.Int("wy", 20, "window height")
	k := flag.Float64("k", 0.5, "k parameter")
	r := flag.Float64("r", 128, "dynamic range of standard deviation (sauvola only)")
	height := flag.Int("h", 120, "height words are scaled to before binarisation")
	workers := flag.Int("j", runtime.NumCPU(), "number of pages to process at once")
	skip := flag.String("skip", "null", "id of words which should not be extracted")
	debug := flag.String("debug", "", "directory to save images of each thresholding stage in")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", 0)
	} else {
		var n pipeline.NullWriter
		verboselog = log.New(n, "", 0)
	}

	m, err := binarize.ParseMethod(*method)
	if err != nil {
		log.Fatalln(err)
	}
	c := extract.DefaultConfig()
	c.Params = binarize.Params{Method: m, WinX: *winx, WinY: *winy, K: *k, DR: *r}
	err = c.Params.Check()
	if err != nil {
		log.Fatalln(err)
	}
	c.Height = *height
	c.SkipID = *skip
	c.Logger = verboselog
	if *debug != "" {
		err = os.MkdirAll(*debug, 0755)
		if err != nil {
			log.Fatalln("Failed to create debug directory:", err)
		}
		c.DebugDir = *debug
	}

	pages, err := extract.FindPages(flag.Arg(0))
	if err != nil {
		log.Fatalln(err)
	}
	verboselog.Println("Found", len(pages), "pages")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = pipeline.RunLocal(ctx, pages, flag.Arg(1), *workers, c, verboselog)
	if err != nil {
		log.Fatalln(err)
	}
}
