// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// datasettopipeline uploads a dataset to cloud storage and adds each
// page to a queue ready to be processed by the wordpipeline tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"rescribe.xyz/wordbin"
	"rescribe.xyz/wordbin/extract"
	"rescribe.xyz/wordbin/internal/pipeline"
)

const usage = `Usage: datasettopipeline [-c conn] [-v] datasetdir [datasetname]

Uploads the page images and word location files of the dataset in
datasetdir to the 'inprogress' bucket, and adds each page to the
'page' queue.

If datasetname is omitted the last part of the datasetdir is used.
`

var verboselog *log.Logger

func main() {
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

	datasetdir := flag.Arg(0)
	name := filepath.Base(filepath.Clean(datasetdir))
	if flag.NArg() > 1 {
		name = flag.Arg(1)
	}

	if *verbose {
		verboselog = log.New(os.Stdout, "", log.LstdFlags)
	} else {
		var n pipeline.NullWriter
		verboselog = log.New(n, "", log.LstdFlags)
	}

	var conn pipeline.Pipeliner
	switch *conntype {
	case "aws":
		conn = &wordbin.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &wordbin.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}
	err := conn.Init()
	if err != nil {
		log.Fatalln("Failed to set up cloud connection:", err)
	}

	ctx := context.Background()

	verboselog.Println("Checking that all images are valid in", datasetdir)
	err = pipeline.CheckImages(ctx, filepath.Join(datasetdir, extract.PagesDir))
	if err != nil {
		log.Fatalln(err)
	}

	verboselog.Println("Checking that a dataset hasn't already been uploaded with that name")
	list, err := conn.ListObjects(conn.WIPStorageId(), name+"/")
	if err != nil {
		log.Fatalln(err)
	}
	if len(list) > 0 {
		log.Fatalf("Error: There is already a dataset in storage named %s", name)
	}

	verboselog.Println("Uploading dataset", datasetdir)
	err = pipeline.UploadDataset(ctx, datasetdir, name, conn)
	if err != nil {
		log.Fatalln(err)
	}

	fmt.Println("Uploaded dataset", name, "to queue page")
}
