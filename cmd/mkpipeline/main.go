// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// mkpipeline sets up the necessary buckets and queues for the word
// pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"rescribe.xyz/wordbin"
)

const usage = `Usage: mkpipeline [-c conn]

Sets up necessary buckets and queues for our cloud pipeline.
`

type MkPipeliner interface {
	MinimalInit() error
	MkPipeline() error
}

func main() {
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 0 {
		flag.Usage()
		os.Exit(1)
	}

	logger := log.New(os.Stdout, "", 0)
	var conn MkPipeliner
	switch *conntype {
	case "aws":
		conn = &wordbin.AwsConn{Region: "eu-west-2", Logger: logger}
	case "local":
		conn = &wordbin.LocalConn{Logger: logger}
	default:
		log.Fatalln("Unknown connection type")
	}
	err := conn.MinimalInit()
	if err != nil {
		log.Fatalln("Failed to set up cloud connection:", err)
	}

	err = conn.MkPipeline()
	if err != nil {
		log.Fatalln("MkPipeline failed:", err)
	}
}
