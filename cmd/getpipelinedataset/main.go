// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// getpipelinedataset downloads the pipeline results for a dataset.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"rescribe.xyz/wordbin"
	"rescribe.xyz/wordbin/internal/pipeline"
)

const usage = `Usage: getpipelinedataset [-c conn] [-a] [-w] [-v] datasetname [dir]

Downloads the pipeline results for a dataset into dir, or a directory
named after the dataset if dir is omitted.

By default this downloads the inks, graph.png and PDF proof sheet
analysis files. With -w the binarised word images and page .stats
files are also downloaded, into a words/ subdirectory.
`

type Pipeliner interface {
	Init() error
	pipeline.DownloadLister
}

func main() {
	all := flag.Bool("a", false, "Get all files for dataset")
	words := flag.Bool("w", false, "Get binarised words and statistics for dataset")
	verbose := flag.Bool("v", false, "Verbose")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || flag.NArg() > 2 {
		flag.Usage()
		return
	}

	var verboselog *log.Logger
	if *verbose {
		verboselog = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		var n pipeline.NullWriter
		verboselog = log.New(n, "", log.LstdFlags)
	}

	var conn Pipeliner
	switch *conntype {
	case "aws":
		conn = &wordbin.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &wordbin.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}

	verboselog.Println("Setting up session")
	err := conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}
	verboselog.Println("Finished setting up session")

	name := flag.Arg(0)
	dir := name
	if flag.NArg() > 1 {
		dir = flag.Arg(1)
	}

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		log.Fatalln("Failed to create directory", dir, err)
	}

	if *all {
		verboselog.Println("Downloading all files for", name)
		err = pipeline.DownloadAll(dir, name, conn)
		if err != nil {
			log.Fatalln(err)
		}
		return
	}

	verboselog.Println("Downloading analysis files")
	err = pipeline.DownloadAnalyses(dir, name, conn)
	if err != nil {
		log.Fatalln(err)
	}

	if *words {
		wdir := filepath.Join(dir, pipeline.WordsDir)
		err = os.MkdirAll(wdir, 0755)
		if err != nil {
			log.Fatalln("Failed to create directory", wdir, err)
		}
		verboselog.Println("Downloading words")
		err = pipeline.DownloadWords(wdir, name, conn)
		if err != nil {
			log.Fatalln(err)
		}
	}
}
