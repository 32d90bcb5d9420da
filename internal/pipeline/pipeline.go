// Copyright 2020 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

// pipeline is a package used by the wordpipeline command, which
// handles the core functionality, using channels heavily to
// coordinate jobs. Note that it is considered an "internal" package,
// not intended for external use, and no guarantee is made of the
// stability of any interfaces provided.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"rescribe.xyz/wordbin"
)

const HeartbeatSeconds = 60

// WordsDir is the directory of a dataset that extracted words and
// their statistics are saved in
const WordsDir = "words"

// InksFile is the analysis file of a dataset, which is always written
// once a dataset has been analysed
const InksFile = "inks"

// PagePattern matches the files needed to extract the words of a page
var PagePattern = regexp.MustCompile(`(?i)\.(svg|jpe?g|png|tiff?|bmp)$`)

// StatsPattern matches the statistics files of extracted pages
var StatsPattern = regexp.MustCompile(`/` + WordsDir + `/[^/]+\.stats$`)

type Lister interface {
	ListObjects(bucket string, prefix string) ([]string, error)
	Log(v ...interface{})
	WIPStorageId() string
}

type Downloader interface {
	Download(bucket string, key string, fn string) error
	Log(v ...interface{})
	WIPStorageId() string
}

type DownloadLister interface {
	Downloader
	ListObjects(bucket string, prefix string) ([]string, error)
}

type Uploader interface {
	Log(v ...interface{})
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type Queuer interface {
	AddToQueue(url string, msg string) error
	AnalyseQueueId() string
	CheckQueue(url string, timeout int64) (wordbin.Qmsg, error)
	DelFromQueue(url string, handle string) error
	Log(v ...interface{})
	PageQueueId() string
	QueueHeartbeat(msg wordbin.Qmsg, qurl string, duration int64) (wordbin.Qmsg, error)
}

type UploadQueuer interface {
	Uploader
	Queuer
}

type Pipeliner interface {
	Queuer
	Download(bucket string, key string, fn string) error
	GetLogger() *log.Logger
	Init() error
	ListObjects(bucket string, prefix string) ([]string, error)
	Upload(bucket string, key string, path string) error
	WIPStorageId() string
}

type MinPipeliner interface {
	Pipeliner
	MinimalInit() error
}

// Stage is a step of processing, which reads file paths from in and
// sends the paths of files it creates to out, closing out when in is
// exhausted. Errors are sent to errc, after which the stage returns.
type Stage func(ctx context.Context, in chan string, out chan string, errc chan error, logger *log.Logger)

// splitJob splits a message body into the dataset name and, for page
// jobs, the page name
func splitJob(body string) (dataset string, page string) {
	parts := strings.SplitN(strings.TrimSpace(body), "/", 2)
	if len(parts) > 1 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// objKey returns the storage key for a file saved in dir, which is
// the path of the file relative to dir prefixed by dataset
func objKey(dataset string, dir string, p string) string {
	rel, err := filepath.Rel(dir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(p)
	}
	return dataset + "/" + filepath.ToSlash(rel)
}

// selectKeys returns the keys in objs which match, limited to the
// files of a single page if page is set
func selectKeys(objs []string, dataset string, page string, match *regexp.Regexp) []string {
	var keys []string
	for _, n := range objs {
		if !match.MatchString(n) {
			continue
		}
		if page != "" {
			stem := strings.TrimSuffix(path.Base(n), path.Ext(n))
			if path.Dir(n) != dataset || stem != page {
				continue
			}
		}
		keys = append(keys, n)
	}
	return keys
}

// download reads file names from a channel and downloads them into
// dir, putting each successfully downloaded file name into the
// process channel. If an error occurs it is sent to the errc channel
// and the function returns early.
func download(ctx context.Context, dl chan string, process chan string, conn Downloader, dir string, errc chan error, logger *log.Logger) {
	for key := range dl {
		select {
		case <-ctx.Done():
			for range dl {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			close(process)
			return
		default:
		}
		fn := filepath.Join(dir, path.Base(key))
		logger.Println("Downloading", key)
		err := conn.Download(conn.WIPStorageId(), key, fn)
		if err != nil {
			for range dl {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			close(process)
			return
		}
		process <- fn
	}
	close(process)
}

// up reads file names from a channel and uploads them with the
// dataset/ prefix, keeping their path relative to dir, and removing
// the local copy of each file once it has been successfully uploaded.
// The done channel is then written to to signal completion. If an
// error occurs it is sent to the errc channel and the function
// returns early.
func up(ctx context.Context, c chan string, done chan bool, conn Uploader, dir string, dataset string, errc chan error, logger *log.Logger) {
	for p := range c {
		select {
		case <-ctx.Done():
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			return
		default:
		}
		key := objKey(dataset, dir, p)
		logger.Println("Uploading", key)
		err := conn.Upload(conn.WIPStorageId(), key, p)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
		err = os.Remove(p)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
	}

	done <- true
}

// upAndQueue reads file names from a channel and uploads them with
// the dataset/ prefix, keeping their path relative to dir. Once each
// file is uploaded its key, without the file suffix, is added to
// toQueue. Unlike up the local files are kept, as they are originals.
// The done channel is then written to to signal completion. If an
// error occurs it is sent to the errc channel and the function
// returns early.
func upAndQueue(ctx context.Context, c chan string, done chan bool, toQueue string, conn UploadQueuer, dir string, dataset string, errc chan error, logger *log.Logger) {
	for p := range c {
		select {
		case <-ctx.Done():
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- ctx.Err()
			return
		default:
		}
		key := objKey(dataset, dir, p)
		logger.Println("Uploading", key)
		err := conn.Upload(conn.WIPStorageId(), key, p)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
		msg := strings.TrimSuffix(key, path.Ext(key))
		logger.Println("Adding", msg, "to queue", toQueue)
		err = conn.AddToQueue(toQueue, msg)
		if err != nil {
			for range c {
			} // consume the rest of the receiving channel so it isn't blocked
			errc <- err
			return
		}
	}

	done <- true
}

// heartbeat keeps msg hidden on queue until ctx is cancelled. If the
// message handle changes the new message is sent to msgc, replacing
// any earlier one which wasn't read.
func heartbeat(ctx context.Context, conn Queuer, t *time.Ticker, msg wordbin.Qmsg, queue string, msgc chan wordbin.Qmsg, errc chan error) {
	currentmsg := msg
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		m, err := conn.QueueHeartbeat(currentmsg, queue, HeartbeatSeconds*2)
		if err != nil {
			conn.Log("Error with heartbeat", err)
			t.Stop()
			select {
			case errc <- fmt.Errorf("Heartbeat failed: %v", err):
			case <-ctx.Done():
			}
			return
		}
		if m.Id != "" {
			conn.Log("Replaced message handle as visibilitytimeout limit was reached")
			currentmsg = m
			select {
			case <-msgc:
			default:
			}
			msgc <- m
		}
	}
}

// countPages counts the pages of a dataset in objs, and how many of
// them have had their words extracted. A page is a .svg file at the
// top of the dataset, and it is extracted once a corresponding .stats
// file is in the words directory.
func countPages(dataset string, objs []string) (pages int, extracted int) {
	stats := make(map[string]bool)
	for _, n := range objs {
		if StatsPattern.MatchString(n) {
			stats[n] = true
		}
	}

	for _, n := range objs {
		if path.Dir(n) != dataset || path.Ext(n) != ".svg" {
			continue
		}
		pages++
		stem := strings.TrimSuffix(path.Base(n), ".svg")
		if stats[dataset+"/"+WordsDir+"/"+stem+".stats"] {
			extracted++
		}
	}
	return pages, extracted
}

// allExtracted checks whether all pages of a dataset have had their
// words extracted.
func allExtracted(dataset string, conn Lister) bool {
	objs, err := conn.ListObjects(conn.WIPStorageId(), dataset+"/")
	if err != nil {
		return false
	}
	pages, extracted := countPages(dataset, objs)
	return pages > 0 && pages == extracted
}

// notify emails details of a job which failed, if mail settings are
// available
func notify(conn Queuer, job string, jobErr error) {
	ms, err := wordbin.GetMailSettings()
	if err != nil {
		conn.Log("Failed to get mail settings", err)
		return
	}
	if ms.Server == "" {
		return
	}
	logs, err := getLogs()
	if err != nil {
		conn.Log("Failed to get logs", err)
		logs = ""
	}
	body := fmt.Sprintf(" Fail message: %s\r\nFull log:\r\n%s", jobErr, logs)
	err = ms.Send("Error processing "+job, body)
	if err != nil {
		conn.Log("Error sending email", err)
	}
}

// ProcessJob processes the files of a job based on a message. The
// message body is either a dataset name, in which case every object
// of the dataset which matches is processed, or a dataset name and a
// page name separated by a slash, in which case only the matching
// files of that page are. Results are uploaded to the dataset, and
// once every page of the dataset is extracted the dataset name is
// added to toQueue, if it is set.
//
// A job which fails is removed from the queue, as it would most
// likely fail again, and an email is sent if mail is set up.
func ProcessJob(ctx context.Context, msg wordbin.Qmsg, conn Pipeliner, process Stage, match *regexp.Regexp, fromQueue string, toQueue string) error {
	dl := make(chan string)
	msgc := make(chan wordbin.Qmsg, 1)
	processc := make(chan string)
	upc := make(chan string)
	// buffered so no goroutine is left blocked when the job ends
	done := make(chan bool, 1)
	errc := make(chan error, 4)

	dataset, page := splitJob(msg.Body)
	if dataset == "" {
		return fmt.Errorf("No dataset found in message '%s'", msg.Body)
	}

	d := filepath.Join(os.TempDir(), "wordbinjobs", dataset)
	err := os.MkdirAll(d, 0755)
	if err != nil {
		return fmt.Errorf("Failed to create directory %s: %s", d, err)
	}

	jobctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := time.NewTicker(HeartbeatSeconds * time.Second)
	defer t.Stop()
	go heartbeat(jobctx, conn, t, msg, fromQueue, msgc, errc)

	// these functions will do their jobs when their channels have data
	go download(jobctx, dl, processc, conn, d, errc, conn.GetLogger())
	go process(jobctx, processc, upc, errc, conn.GetLogger())
	go up(jobctx, upc, done, conn, d, dataset, errc, conn.GetLogger())

	conn.Log("Getting list of objects to download")
	objs, err := conn.ListObjects(conn.WIPStorageId(), dataset+"/")
	if err != nil {
		close(dl)
		cancel()
		_ = os.RemoveAll(d)
		return fmt.Errorf("Failed to get list of files for dataset %s: %s", dataset, err)
	}
	todl := selectKeys(objs, dataset, page, match)
	if len(todl) == 0 {
		conn.Log("No files found to process for", msg.Body)
	}

	go func() {
		for _, a := range todl {
			select {
			case dl <- a:
			case <-jobctx.Done():
			}
		}
		close(dl)
	}()

	// wait for either the done or errc channel to be sent to
	select {
	case err = <-errc:
	case <-ctx.Done():
		_ = os.RemoveAll(d)
		return ctx.Err()
	case <-done:
		// stages send any error before closing their output, so it
		// will already be waiting
		select {
		case err = <-errc:
		default:
		}
	}

	if err != nil {
		cancel()
		_ = os.RemoveAll(d)
		conn.Log("Deleting message from queue due to a bad error", fromQueue)
		err2 := conn.DelFromQueue(fromQueue, msg.Handle)
		if err2 != nil {
			conn.Log("Error deleting message from queue", err2)
		}
		notify(conn, msg.Body, err)
		return err
	}

	if toQueue != "" && allExtracted(dataset, conn) {
		conn.Log("Sending", dataset, "to queue", toQueue)
		err = conn.AddToQueue(toQueue, dataset)
		if err != nil {
			_ = os.RemoveAll(d)
			return fmt.Errorf("Error adding to queue %s: %s", dataset, err)
		}
	}

	cancel()

	// check whether we're using a newer msg handle
	select {
	case m := <-msgc:
		msg = m
		conn.Log("Using new message handle to delete message from queue")
	default:
		conn.Log("Using original message handle to delete message from queue")
	}

	conn.Log("Deleting original message from queue", fromQueue)
	err = conn.DelFromQueue(fromQueue, msg.Handle)
	if err != nil {
		_ = os.RemoveAll(d)
		return fmt.Errorf("Error deleting message from queue: %s", err)
	}

	err = os.RemoveAll(d)
	if err != nil {
		return fmt.Errorf("Failed to remove directory %s: %s", d, err)
	}

	return nil
}

// TODO: rather than relying on journald, would be nicer to save the logs
//       ourselves, so that we weren't relying on a particular systemd
//       setup.
func getLogs() (string, error) {
	cmd := exec.Command("journalctl", "-u", "wordpipeline", "-n", "all")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), err
}
