// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// lspipeline lists useful things related to the word pipeline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os/exec"

	"rescribe.xyz/wordbin"
	"rescribe.xyz/wordbin/internal/pipeline"
)

const usage = `Usage: lspipeline [-c conn] [-i key] [-n num] [-nodatasets]

Lists useful things related to the pipeline.

- Instances running (aws only)
- Messages in each queue
- Datasets in progress, with how many pages have been extracted
- Datasets analysed
- Last n lines of wordpipeline logs from each running instance
`

type LsPipeliner interface {
	pipeline.StatusLister
	Init() error
	PageQueueId() string
	AnalyseQueueId() string
	GetQueueDetails(url string) (string, string, error)
}

// instancer is implemented by connections which run on servers that
// can be listed
type instancer interface {
	GetInstanceDetails() ([]wordbin.InstanceDetails, error)
}

type queueDetails struct {
	name, numAvailable, numInProgress string
}

func getInstances(conn LsPipeliner, detailsc chan wordbin.InstanceDetails) {
	defer close(detailsc)
	i, ok := conn.(instancer)
	if !ok {
		return
	}
	details, err := i.GetInstanceDetails()
	if err != nil {
		log.Println("Error getting instance details:", err)
	}
	for _, d := range details {
		detailsc <- d
	}
}

func getQueueDetails(conn LsPipeliner, qdetails chan queueDetails) {
	queues := []struct{ name, id string }{
		{"page", conn.PageQueueId()},
		{"analyse", conn.AnalyseQueueId()},
	}
	for _, q := range queues {
		avail, inprog, err := conn.GetQueueDetails(q.id)
		if err != nil {
			log.Println("Error getting queue details:", err)
		}
		qdetails <- queueDetails{name: q.name, numAvailable: avail, numInProgress: inprog}
	}
	close(qdetails)
}

// getDatasetStatus sends each dataset to the inprogress or done
// channel, depending on whether it has been analysed
func getDatasetStatus(conn LsPipeliner, inprogressc chan pipeline.Progress, donec chan pipeline.Progress) {
	defer close(inprogressc)
	defer close(donec)
	datasets, err := pipeline.DatasetStatus(conn)
	if err != nil {
		log.Println("Error getting dataset status:", err)
		return
	}
	var done []pipeline.Progress
	for _, d := range datasets {
		if d.Analysed {
			done = append(done, d)
			continue
		}
		inprogressc <- d
	}
	for _, d := range done {
		donec <- d
	}
}

func getRecentSSHLogs(ip string, id string, n int) (string, error) {
	addr := fmt.Sprintf("%s@%s", "admin", ip)
	logcmd := fmt.Sprintf("journalctl -n %d -u wordpipeline", n)
	var cmd *exec.Cmd
	if id == "" {
		cmd = exec.Command("ssh", "-o", "StrictHostKeyChecking no", addr, logcmd)
	} else {
		cmd = exec.Command("ssh", "-o", "StrictHostKeyChecking no", "-i", id, addr, logcmd)
	}
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func getRecentSSHLogsChan(ips []string, id string, lognum int, logs chan string) {
	for _, ip := range ips {
		sshlog, err := getRecentSSHLogs(ip, id, lognum)
		if err != nil {
			log.Printf("Error getting SSH logs for %s: %s\n", ip, err)
			continue
		}
		logs <- fmt.Sprintf("%s\n%s", ip, sshlog)
	}
	close(logs)
}

func main() {
	keyfile := flag.String("i", "", "private key file for SSH")
	lognum := flag.Int("n", 5, "number of lines to include in SSH logs")
	nodatasets := flag.Bool("nodatasets", false, "disable listing datasets (which takes some time)")
	conntype := flag.String("c", "aws", "connection type ('aws' or 'local')")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	var n pipeline.NullWriter
	verboselog := log.New(n, "", 0)

	var conn LsPipeliner
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

	instances := make(chan wordbin.InstanceDetails, 100)
	queues := make(chan queueDetails)
	inprogress := make(chan pipeline.Progress, 100)
	done := make(chan pipeline.Progress, 100)
	logs := make(chan string, 10)

	go getInstances(conn, instances)
	go getQueueDetails(conn, queues)
	if !*nodatasets {
		go getDatasetStatus(conn, inprogress, done)
	}

	var ips []string

	if _, ok := conn.(instancer); ok {
		fmt.Println("# Instances")
	}
	for i := range instances {
		fmt.Printf("ID: %s, Type: %s, LaunchTime: %s, State: %s", i.Id, i.Type, i.LaunchTime, i.State)
		if i.Name != "" {
			fmt.Printf(", Name: %s", i.Name)
		}
		if i.Ip != "" {
			fmt.Printf(", IP: %s", i.Ip)
			if i.State == "running" && i.Name != "workhorse" {
				ips = append(ips, i.Ip)
			}
		}
		if i.Spot != "" {
			fmt.Printf(", SpotRequest: %s", i.Spot)
		}
		fmt.Printf("\n")
	}

	go getRecentSSHLogsChan(ips, *keyfile, *lognum, logs)

	fmt.Println("\n# Queues")
	for i := range queues {
		fmt.Printf("%s: %s available, %s in progress\n", i.name, i.numAvailable, i.numInProgress)
	}

	if len(ips) > 0 {
		fmt.Println("\n# Recent logs")
		for i := range logs {
			fmt.Printf("\n%s", i)
		}
	}

	if !*nodatasets {
		fmt.Println("\n# Datasets in progress")
		for d := range inprogress {
			fmt.Println(d)
		}

		fmt.Println("\n# Datasets analysed")
		for d := range done {
			fmt.Println(d)
		}
	}
}
