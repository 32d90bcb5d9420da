// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// wordpipeline is the core command of the wordbin package, which
// watches queues for datasets and pages to process
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"regexp"
	"time"

	"rescribe.xyz/wordbin"
	"rescribe.xyz/wordbin/binarize"
	"rescribe.xyz/wordbin/extract"
	"rescribe.xyz/wordbin/internal/pipeline"
)

const usage = `Usage: wordpipeline [-v] [-c conn] [-np] [-na] [-m method] [-wx n] [-wy n] [-k n] [-r n] [-h n]

Watches the page and analyse queues for work. When a message is
found this general process is followed:

- The message is hidden from the queue, and a 'heartbeat' is
  started which keeps it hidden (this will time out after 2 minutes
  if the program is terminated)
- The necessary files from the dataset are downloaded
- The files are processed
- The resulting files are uploaded to the dataset
- The heartbeat is stopped
- The message is removed from the queue it was taken from, and once
  every page of a dataset is extracted the dataset is added to the
  analyse queue

`

const PauseBetweenChecks = 3 * time.Minute
const TimeBeforeShutdown = 5 * time.Minute

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

func restartTimer(t *time.Timer) {
	stopTimer(t)
	t.Reset(TimeBeforeShutdown)
}

func main() {
	verbose := flag.Bool("v", false, "verbose")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	nopage := flag.Bool("np", false, "disable word extraction from pages")
	noanalyse := flag.Bool("na", false, "disable analysis")
	autoshutdown := flag.Bool("shutdown", false, "log a message if no work has been available for 5 minutes")
	method := flag.String("m", "wolf", "binarisation method ('wolf', 'sauvola' or 'niblack')")
	winx := flag.Int("wx", 20, "window width")
	winy := flag.Int("wy", 20, "window height")
	k := flag.Float64("k", 0.5, "k parameter")
	r := flag.Float64("r", 128, "dynamic range of standard deviation (sauvola only)")
	height := flag.Int("h", 120, "height words are scaled to before binarisation")
	skip := flag.String("skip", "null", "id of words which should not be extracted")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

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

	var conn pipeline.Pipeliner
	switch *conntype {
	case "aws":
		conn = &wordbin.AwsConn{Region: "eu-west-2", Logger: verboselog}
	case "local":
		conn = &wordbin.LocalConn{Logger: verboselog}
	default:
		log.Fatalln("Unknown connection type")
	}

	verboselog.Println("Setting up connection")
	err = conn.Init()
	if err != nil {
		log.Fatalln("Error setting up cloud connection:", err)
	}
	verboselog.Println("Finished setting up connection")

	ctx := context.Background()
	type queueJob struct {
		name    string
		queue   string
		process pipeline.Stage
		match   *regexp.Regexp
		next    string
		check   <-chan time.Time
	}
	page := queueJob{"page", conn.PageQueueId(), pipeline.Extract(c), pipeline.PagePattern, conn.AnalyseQueueId(), nil}
	analyse := queueJob{"analyse", conn.AnalyseQueueId(), pipeline.Analyse(conn), pipeline.StatsPattern, "", nil}
	if !*nopage {
		page.check = time.After(0)
	}
	if !*noanalyse {
		analyse.check = time.After(0)
	}
	shutdownIfQuiet := time.NewTimer(TimeBeforeShutdown)

	process := func(j *queueJob) {
		msg, err := conn.CheckQueue(j.queue, pipeline.HeartbeatSeconds*2)
		j.check = time.After(PauseBetweenChecks)
		if err != nil {
			log.Println("Error checking", j.name, "queue", err)
			return
		}
		if msg.Handle == "" {
			verboselog.Println("No message received on", j.name, "queue, sleeping")
			return
		}
		// check the queue again immediately, as there are likely to
		// be more pages waiting
		j.check = time.After(0)
		stopTimer(shutdownIfQuiet)
		verboselog.Println("Message received on", j.name, "queue, processing", msg.Body)
		err = pipeline.ProcessJob(ctx, msg, conn, j.process, j.match, j.queue, j.next)
		restartTimer(shutdownIfQuiet)
		if err != nil {
			log.Println("Error during", j.name, "process", err)
		}
	}

	for {
		select {
		case <-page.check:
			process(&page)
		case <-analyse.check:
			process(&analyse)
		case <-shutdownIfQuiet.C:
			if *autoshutdown {
				log.Println("No work has been available for", TimeBeforeShutdown)
			}
			shutdownIfQuiet.Reset(TimeBeforeShutdown)
		}
	}
}
