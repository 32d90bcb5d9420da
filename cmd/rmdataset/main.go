// Copyright 2020 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// rmdataset removes a dataset from cloud storage.
package main

import (
	"flag"
	"fmt"
	"log"

	"rescribe.xyz/wordbin"
	"rescribe.xyz/wordbin/internal/pipeline"
)

const usage = `Usage: rmdataset [-c conn] datasetname

Removes a dataset, and all results for it, from cloud storage.
`

type RmPipeliner interface {
	MinimalInit() error
	WIPStorageId() string
	DeleteObjects(bucket string, keys []string) error
	ListObjects(bucket string, prefix string) ([]string, error)
}

func main() {
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return
	}

	var n pipeline.NullWriter
	verboselog := log.New(n, "", log.LstdFlags)

	var conn RmPipeliner
	switch *conntype {
	case "aws":
		conn = &wordbin.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &wordbin.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}

	fmt.Println("Setting up cloud connection")
	err := conn.MinimalInit()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}

	name := flag.Arg(0)

	fmt.Println("Getting list of files for dataset")
	objs, err := conn.ListObjects(conn.WIPStorageId(), name+"/")
	if err != nil {
		log.Fatalln("Error in listing dataset items:", err)
	}

	if len(objs) == 0 {
		log.Fatalln("No files found for dataset:", name)
	}

	fmt.Println("Deleting all files for dataset")
	err = conn.DeleteObjects(conn.WIPStorageId(), objs)
	if err != nil {
		log.Fatalln("Error deleting dataset files:", err)
	}

	fmt.Println("Finished deleting files")
}
