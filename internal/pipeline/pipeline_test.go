// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"rescribe.xyz/wordbin"
	"rescribe.xyz/wordbin/extract"
)

// StrLog is a simple logger that saves to a string,
// so it can be printed out only when needed.
type StrLog struct {
	log string
}

func (t *StrLog) Write(p []byte) (n int, err error) {
	t.log += string(p)
	return len(p), nil
}

type PipelineTester interface {
	Pipeliner
	DeleteObjects(bucket string, keys []string) error
	TestQueueId() string
}

type connection struct {
	name string
	c    PipelineTester
}

// testConns returns a local connection, and an aws one unless the
// tests are being run in short mode
func testConns(t *testing.T, vlog *log.Logger) []connection {
	conns := []connection{{name: "local", c: &wordbin.LocalConn{TempDir: t.TempDir(), Logger: vlog}}}
	if !testing.Short() {
		conns = append(conns, connection{name: "aws", c: &wordbin.AwsConn{Logger: vlog}})
	}
	return conns
}

func expectErr(t *testing.T, err error, errs []error, slog *StrLog) {
	if len(errs) == 0 {
		t.Fatalf("Received an error when one was not expected, error: %v\nLog: %s", err, slog.log)
	}
	for _, v := range errs {
		if strings.Contains(err.Error(), v.Error()) {
			return
		}
	}
	t.Fatalf("Received a different error than was expected, expected one of: %v, got %v\nLog: %s", errs, err, slog.log)
}

var notPresentErrs = []error{errors.New("no such file or directory"), errors.New("NoSuchKey: The specified key does not exist")}

// Test_download tests the download() function inside the pipeline
func Test_download(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)

	cases := []struct {
		dl       string
		contents []byte
		process  string
		errs     []error
	}{
		{"notpresent", []byte(""), "", notPresentErrs},
		{"empty", []byte{}, "empty", []error{}},
		{"justastring", []byte("I am just a basic string"), "justastring", []error{}},
		{"pipelinetest/words/270.stats", []byte("p-01\t0.2500\n"), "270.stats", []error{}},
	}

	for _, conn := range testConns(t, vlog) {
		for _, c := range cases {
			t.Run(fmt.Sprintf("%s/%s", conn.name, c.dl), func(t *testing.T) {
				err := conn.c.Init()
				if err != nil {
					t.Fatalf("Could not initialise %s connection: %v\nLog: %s", conn.name, err, slog.log)
				}
				slog.log = ""
				tempDir := t.TempDir()

				// create and upload test file
				tempFile := filepath.Join(tempDir, "t")
				err = ioutil.WriteFile(tempFile, c.contents, 0600)
				if err != nil {
					t.Fatalf("Could not create temporary file %s: %v\nLog: %s", tempFile, err, slog.log)
				}
				if c.dl != "notpresent" {
					err = conn.c.Upload(conn.c.WIPStorageId(), c.dl, tempFile)
					if err != nil {
						t.Fatalf("Could not upload file %s: %v\nLog: %s", tempFile, err, slog.log)
					}
				}
				err = os.Remove(tempFile)
				if err != nil {
					t.Fatalf("Could not remove temporary upload file %s: %v\nLog: %s", tempFile, err, slog.log)
				}

				// download
				dlchan := make(chan string)
				processchan := make(chan string)
				errchan := make(chan error, 1)

				go download(context.Background(), dlchan, processchan, conn.c, tempDir, errchan, vlog)

				dlchan <- c.dl
				close(dlchan)

				// check all is as expected
				select {
				case err = <-errchan:
					expectErr(t, err, c.errs, &slog)
				case process, ok := <-processchan:
					if !ok {
						// closed after an error was sent
						expectErr(t, <-errchan, c.errs, &slog)
						break
					}
					expected := filepath.Join(tempDir, c.process)
					if expected != process {
						t.Fatalf("Received a different addition to the process channel than was expected, expected: %v, got %v\nLog: %s", expected, process, slog.log)
					}
				}

				if c.dl == "notpresent" {
					return
				}

				tempFile = filepath.Join(tempDir, c.process)
				dled, err := ioutil.ReadFile(tempFile)
				if err != nil {
					t.Fatalf("Could not read downloaded file %s: %v\nLog: %s", tempFile, err, slog.log)
				}

				if !bytes.Equal(dled, c.contents) {
					t.Fatalf("Downloaded file differs from expected, expected: '%s', got '%s'\nLog: %s", c.contents, dled, slog.log)
				}

				// cleanup
				err = conn.c.DeleteObjects(conn.c.WIPStorageId(), []string{c.dl})
				if err != nil {
					t.Fatalf("Could not delete storage object used for test %s: %v\nLog: %s", c.dl, err, slog.log)
				}
			})
		}
	}
}

// Test_up tests the up() function inside the pipeline
func Test_up(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)

	cases := []struct {
		ul       string
		contents []byte
		key      string
		errs     []error
	}{
		{"notpresent", []byte(""), "", notPresentErrs},
		{"empty", []byte{}, "pipelinetest/empty", []error{}},
		{"justastring", []byte("I am just a basic string"), "pipelinetest/justastring", []error{}},
		{"words/p-01.png", []byte("not really a png"), "pipelinetest/words/p-01.png", []error{}},
	}

	for _, conn := range testConns(t, vlog) {
		for _, c := range cases {
			t.Run(fmt.Sprintf("%s/%s", conn.name, c.ul), func(t *testing.T) {
				err := conn.c.Init()
				if err != nil {
					t.Fatalf("Could not initialise %s connection: %v\nLog: %s", conn.name, err, slog.log)
				}
				slog.log = ""
				tempDir := t.TempDir()

				// create test file
				tempFile := filepath.Join(tempDir, filepath.FromSlash(c.ul))
				if c.ul != "notpresent" {
					err = os.MkdirAll(filepath.Dir(tempFile), 0700)
					if err != nil {
						t.Fatalf("Could not create directory for %s: %v", tempFile, err)
					}
					err = ioutil.WriteFile(tempFile, c.contents, 0600)
					if err != nil {
						t.Fatalf("Could not create temporary file %s: %v\nLog: %s", tempFile, err, slog.log)
					}
				}

				// upload
				ulchan := make(chan string)
				donechan := make(chan bool, 1)
				errchan := make(chan error, 1)

				go up(context.Background(), ulchan, donechan, conn.c, tempDir, "pipelinetest", errchan, vlog)

				ulchan <- tempFile
				close(ulchan)

				// check all is as expected
				select {
				case err = <-errchan:
					expectErr(t, err, c.errs, &slog)
				case <-donechan:
					if len(c.errs) > 0 {
						t.Fatalf("Expected an error, but none was received\nLog: %s", slog.log)
					}
				}

				if c.ul == "notpresent" {
					return
				}

				_, err = os.Stat(tempFile)
				if !os.IsNotExist(err) {
					t.Fatalf("Uploaded file not removed as it should have been after uploading %s: %v\nLog: %s", tempFile, err, slog.log)
				}

				err = conn.c.Download(conn.c.WIPStorageId(), c.key, tempFile)
				if err != nil {
					t.Fatalf("Could not download file %s: %v\nLog: %s", tempFile, err, slog.log)
				}

				dled, err := ioutil.ReadFile(tempFile)
				if err != nil {
					t.Fatalf("Could not read downloaded file %s: %v\nLog: %s", tempFile, err, slog.log)
				}

				if !bytes.Equal(dled, c.contents) {
					t.Fatalf("Uploaded file differs from expected, expected: '%s', got '%s'\nLog: %s", c.contents, dled, slog.log)
				}

				// cleanup
				err = conn.c.DeleteObjects(conn.c.WIPStorageId(), []string{c.key})
				if err != nil {
					t.Fatalf("Could not delete storage object used for test %s: %v\nLog: %s", c.ul, err, slog.log)
				}
			})
		}
	}
}

// Test_upAndQueue tests the upAndQueue() function inside the pipeline
func Test_upAndQueue(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)

	cases := []struct {
		ul       string
		contents []byte
		key      string
		queued   string
		errs     []error
	}{
		{"notpresent", []byte(""), "", "", notPresentErrs},
		{"empty", []byte{}, "pipelinetest/empty", "pipelinetest/empty", []error{}},
		{"270.svg", []byte("<svg></svg>"), "pipelinetest/270.svg", "pipelinetest/270", []error{}},
	}

	for _, conn := range testConns(t, vlog) {
		for _, c := range cases {
			t.Run(fmt.Sprintf("%s/%s", conn.name, c.ul), func(t *testing.T) {
				err := conn.c.Init()
				if err != nil {
					t.Fatalf("Could not initialise %s connection: %v\nLog: %s", conn.name, err, slog.log)
				}
				slog.log = ""
				tempDir := t.TempDir()

				// create test file
				tempFile := filepath.Join(tempDir, c.ul)
				if c.ul != "notpresent" {
					err = ioutil.WriteFile(tempFile, c.contents, 0600)
					if err != nil {
						t.Fatalf("Could not create temporary file %s: %v\nLog: %s", tempFile, err, slog.log)
					}
				}

				// upload
				ulchan := make(chan string)
				queueurl := conn.c.TestQueueId()
				donechan := make(chan bool, 1)
				errchan := make(chan error, 1)

				go upAndQueue(context.Background(), ulchan, donechan, queueurl, conn.c, tempDir, "pipelinetest", errchan, vlog)

				ulchan <- tempFile
				close(ulchan)

				// check all is as expected
				select {
				case err = <-errchan:
					expectErr(t, err, c.errs, &slog)
				case <-donechan:
				}

				msg, err := conn.c.CheckQueue(queueurl, 10)
				if err != nil {
					t.Fatalf("Error checking test queue: %v", err)
				}

				if c.ul == "notpresent" {
					if msg.Handle != "" {
						_ = conn.c.DelFromQueue(queueurl, msg.Handle)
						t.Fatalf("Queue was written to even when an error was received: %s", msg.Body)
					}
					return
				}

				_, err = os.Stat(tempFile)
				if err != nil {
					t.Fatalf("Original file %s was removed after uploading: %v\nLog: %s", tempFile, err, slog.log)
				}

				dlFile := filepath.Join(tempDir, "dl")
				err = conn.c.Download(conn.c.WIPStorageId(), c.key, dlFile)
				if err != nil {
					t.Fatalf("Could not download file %s: %v\nLog: %s", c.key, err, slog.log)
				}

				dled, err := ioutil.ReadFile(dlFile)
				if err != nil {
					t.Fatalf("Could not read downloaded file %s: %v\nLog: %s", dlFile, err, slog.log)
				}

				if !bytes.Equal(dled, c.contents) {
					t.Fatalf("Uploaded file differs from expected, expected: '%s', got '%s'\nLog: %s", c.contents, dled, slog.log)
				}

				if msg.Body != c.queued {
					_ = conn.c.DelFromQueue(queueurl, msg.Handle)
					t.Fatalf("Queue contents not as expected, expected: '%s', got '%s'\nLog: %s", c.queued, msg.Body, slog.log)
				}

				// cleanup
				err = conn.c.DeleteObjects(conn.c.WIPStorageId(), []string{c.key})
				if err != nil {
					t.Fatalf("Could not delete storage object used for test %s: %v\nLog: %s", c.ul, err, slog.log)
				}

				err = conn.c.DelFromQueue(queueurl, msg.Handle)
				if err != nil {
					t.Fatalf("Could not delete test message from queue: %v\nLog: %s", err, slog.log)
				}
			})
		}
	}
}

func Test_splitJob(t *testing.T) {
	cases := []struct {
		body, dataset, page string
	}{
		{"SaintGall", "SaintGall", ""},
		{"SaintGall/270", "SaintGall", "270"},
		{"SaintGall/270\n", "SaintGall", "270"},
		{"a/b/c", "a", "b/c"},
		{"", "", ""},
	}
	for _, c := range cases {
		t.Run(c.body, func(t *testing.T) {
			dataset, page := splitJob(c.body)
			if dataset != c.dataset || page != c.page {
				t.Errorf("Expected '%s' '%s', got '%s' '%s'", c.dataset, c.page, dataset, page)
			}
		})
	}
}

func Test_selectKeys(t *testing.T) {
	objs := []string{
		"ds/270.svg",
		"ds/270.jpg",
		"ds/2700.svg",
		"ds/2700.jpg",
		"ds/271.svg",
		"ds/271.png",
		"ds/notes.txt",
		"ds/words/270.stats",
		"ds/words/p-01.png",
		"ds/words/271.stats",
	}
	cases := []struct {
		name  string
		page  string
		match *regexp.Regexp
		exp   string
	}{
		{"page", "270", PagePattern, "ds/270.svg ds/270.jpg"},
		{"otherpage", "271", PagePattern, "ds/271.svg ds/271.png"},
		{"missingpage", "300", PagePattern, ""},
		{"stats", "", StatsPattern, "ds/words/270.stats ds/words/271.stats"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := strings.Join(selectKeys(objs, "ds", c.page, c.match), " ")
			if got != c.exp {
				t.Errorf("Expected '%s', got '%s'", c.exp, got)
			}
		})
	}
}

func Test_objKey(t *testing.T) {
	dir := filepath.Join("tmp", "job")
	cases := []struct {
		p, exp string
	}{
		{filepath.Join(dir, "inks"), "ds/inks"},
		{filepath.Join(dir, "words", "p-01.png"), "ds/words/p-01.png"},
		{filepath.Join("elsewhere", "270.svg"), "ds/270.svg"},
	}
	for _, c := range cases {
		t.Run(c.exp, func(t *testing.T) {
			got := objKey("ds", dir, c.p)
			if got != c.exp {
				t.Errorf("Expected '%s', got '%s'", c.exp, got)
			}
		})
	}
}

// listOnly is a Lister backed by a slice
type listOnly []string

func (l listOnly) ListObjects(bucket string, prefix string) ([]string, error) {
	var objs []string
	for _, o := range l {
		if strings.HasPrefix(o, prefix) {
			objs = append(objs, o)
		}
	}
	return objs, nil
}
func (l listOnly) Log(v ...interface{}) {}
func (l listOnly) WIPStorageId() string { return "test" }

func Test_allExtracted(t *testing.T) {
	cases := []struct {
		name string
		objs listOnly
		exp  bool
	}{
		{"empty", listOnly{}, false},
		{"noneextracted", listOnly{"ds/270.svg", "ds/270.jpg"}, false},
		{"someextracted", listOnly{"ds/270.svg", "ds/271.svg", "ds/words/270.stats"}, false},
		{"allextracted", listOnly{"ds/270.svg", "ds/271.svg", "ds/words/270.stats", "ds/words/271.stats"}, true},
		{"otherdataset", listOnly{"ds/270.svg", "ds2/words/270.stats"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := allExtracted("ds", c.objs)
			if got != c.exp {
				t.Errorf("Expected %v, got %v", c.exp, got)
			}
		})
	}
}

func Test_pageFiles(t *testing.T) {
	p := make(pageFiles)
	if _, ok := p.add("/tmp/270.svg"); ok {
		t.Fatalf("Page returned with only its outline file")
	}
	if _, ok := p.add("/tmp/271.PNG"); ok {
		t.Fatalf("Page returned with only its image")
	}
	pg, ok := p.add("/tmp/270.jpg")
	if !ok {
		t.Fatalf("Page not returned once both files were added")
	}
	if pg.Name != "270" || pg.Image != "/tmp/270.jpg" || pg.Locations != "/tmp/270.svg" {
		t.Errorf("Unexpected page files: %+v", pg)
	}
	if len(p) != 1 {
		t.Errorf("Expected 1 page left waiting, got %d", len(p))
	}
}

const testSvg = `<svg xmlns="http://www.w3.org/2000/svg">
<path d="M 10 10 L 60 10 L 60 40 L 10 40 Z" id="p-01"/>
<path d="M 70 12 L 130 10 L 131 45 L 71 46 Z" id="p-02"/>
<path d="M 0 0 L 5 0 L 5 5 Z" id="null"/>
</svg>`

// writeDataset creates a small dataset with a page for each name
func writeDataset(t *testing.T, dir string, names ...string) {
	for _, d := range []string{extract.LocationsDir, extract.PagesDir} {
		err := os.MkdirAll(filepath.Join(dir, d), 0755)
		if err != nil {
			t.Fatalf("Could not create directory: %v", err)
		}
	}
	img := image.NewGray(image.Rect(0, 0, 200, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 200; x++ {
			v := uint8(220)
			if (x/3)%4 == 0 && (y/5)%3 != 0 {
				v = 30
			}
			img.SetGray(x, y, color.Gray{v})
		}
	}
	for _, n := range names {
		err := ioutil.WriteFile(filepath.Join(dir, extract.LocationsDir, n+".svg"), []byte(testSvg), 0644)
		if err != nil {
			t.Fatalf("Could not write svg: %v", err)
		}
		f, err := os.Create(filepath.Join(dir, extract.PagesDir, n+".png"))
		if err != nil {
			t.Fatalf("Could not create page: %v", err)
		}
		err = png.Encode(f, img)
		f.Close()
		if err != nil {
			t.Fatalf("Could not encode page: %v", err)
		}
	}
}

// TestProcessJob runs a dataset through the whole pipeline with a
// local connection
func TestProcessJob(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)
	conn := &wordbin.LocalConn{TempDir: t.TempDir(), Logger: vlog}
	err := conn.Init()
	if err != nil {
		t.Fatalf("Could not initialise local connection: %v", err)
	}
	ctx := context.Background()

	dataset := t.TempDir()
	writeDataset(t, dataset, "270", "271")
	err = UploadDataset(ctx, dataset, "pipelinetest", conn)
	if err != nil {
		t.Fatalf("Error uploading dataset: %v\nLog: %s", err, slog.log)
	}

	extractor := Extract(extract.DefaultConfig())
	for i := 0; i < 2; i++ {
		msg, err := conn.CheckQueue(conn.PageQueueId(), HeartbeatSeconds*2)
		if err != nil || msg.Handle == "" {
			t.Fatalf("Expected a page on the queue, got '%s', error %v\nLog: %s", msg.Body, err, slog.log)
		}
		if !strings.HasPrefix(msg.Body, "pipelinetest/27") {
			t.Fatalf("Unexpected page message '%s'", msg.Body)
		}
		err = ProcessJob(ctx, msg, conn, extractor, PagePattern, conn.PageQueueId(), conn.AnalyseQueueId())
		if err != nil {
			t.Fatalf("Error processing page %s: %v\nLog: %s", msg.Body, err, slog.log)
		}
	}

	objs, err := conn.ListObjects(conn.WIPStorageId(), "pipelinetest/words/")
	if err != nil {
		t.Fatalf("Error listing words: %v", err)
	}
	sort.Strings(objs)
	exp := "pipelinetest/words/270.stats pipelinetest/words/271.stats pipelinetest/words/p-01.png pipelinetest/words/p-02.png"
	if got := strings.Join(objs, " "); got != exp {
		t.Fatalf("Expected words '%s', got '%s'", exp, got)
	}

	msg, err := conn.CheckQueue(conn.AnalyseQueueId(), HeartbeatSeconds*2)
	if err != nil || msg.Body != "pipelinetest" {
		t.Fatalf("Expected dataset on analyse queue, got '%s', error %v\nLog: %s", msg.Body, err, slog.log)
	}
	err = ProcessJob(ctx, msg, conn, Analyse(conn), StatsPattern, conn.AnalyseQueueId(), "")
	if err != nil {
		t.Fatalf("Error analysing dataset: %v\nLog: %s", err, slog.log)
	}

	out := t.TempDir()
	err = DownloadAnalyses(out, "pipelinetest", conn)
	if err != nil {
		t.Fatalf("Error downloading analyses: %v", err)
	}
	inks, err := ioutil.ReadFile(filepath.Join(out, "inks"))
	if err != nil {
		t.Fatalf("Error reading inks: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(inks)), "\n"); len(lines) != 4 {
		t.Errorf("Expected 4 lines in inks file, got %d: %s", len(lines), inks)
	}
	for _, fn := range []string{"graph.png", "pipelinetest.pdf"} {
		if _, err := os.Stat(filepath.Join(out, fn)); err != nil {
			t.Errorf("Expected %s to be created: %v", fn, err)
		}
	}

	for _, q := range []string{conn.PageQueueId(), conn.AnalyseQueueId()} {
		msg, err = conn.CheckQueue(q, 10)
		if err != nil || msg.Handle != "" {
			t.Errorf("Expected queue %s to be empty, got '%s', error %v", q, msg.Body, err)
		}
	}
}

// TestProcessJobMissingImage checks that a page whose image is
// missing is removed from the queue with an error
func TestProcessJobMissingImage(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)
	conn := &wordbin.LocalConn{TempDir: t.TempDir(), Logger: vlog}
	err := conn.Init()
	if err != nil {
		t.Fatalf("Could not initialise local connection: %v", err)
	}

	svg := filepath.Join(t.TempDir(), "270.svg")
	err = ioutil.WriteFile(svg, []byte(testSvg), 0644)
	if err != nil {
		t.Fatalf("Could not write svg: %v", err)
	}
	err = conn.Upload(conn.WIPStorageId(), "pipelinetest/270.svg", svg)
	if err != nil {
		t.Fatalf("Could not upload svg: %v", err)
	}
	err = conn.AddToQueue(conn.PageQueueId(), "pipelinetest/270")
	if err != nil {
		t.Fatalf("Could not add to queue: %v", err)
	}

	msg, err := conn.CheckQueue(conn.PageQueueId(), HeartbeatSeconds*2)
	if err != nil {
		t.Fatalf("Error checking queue: %v", err)
	}
	err = ProcessJob(context.Background(), msg, conn, Extract(extract.DefaultConfig()), PagePattern, conn.PageQueueId(), conn.AnalyseQueueId())
	if err == nil || !strings.Contains(err.Error(), "No page image found for 270") {
		t.Fatalf("Expected missing image error, got %v\nLog: %s", err, slog.log)
	}
	msg, err = conn.CheckQueue(conn.PageQueueId(), 10)
	if err != nil || msg.Handle != "" {
		t.Errorf("Expected failed job to be removed from queue, got '%s', error %v", msg.Body, err)
	}
}

func TestRunLocal(t *testing.T) {
	var slog StrLog
	vlog := log.New(&slog, "", 0)

	dataset := t.TempDir()
	writeDataset(t, dataset, "270", "271", "272")
	pages, err := extract.FindPages(dataset)
	if err != nil {
		t.Fatalf("Error finding pages: %v", err)
	}

	for _, workers := range []int{0, 1, 4} {
		t.Run(fmt.Sprintf("workers%d", workers), func(t *testing.T) {
			out := t.TempDir()
			err := RunLocal(context.Background(), pages, out, workers, extract.DefaultConfig(), vlog)
			if err != nil {
				t.Fatalf("Error running: %v\nLog: %s", err, slog.log)
			}
			for _, fn := range []string{"270.stats", "271.stats", "272.stats", "p-01.png", "p-02.png"} {
				if _, err := os.Stat(filepath.Join(out, fn)); err != nil {
					t.Errorf("Expected %s to be created: %v", fn, err)
				}
			}
		})
	}

	t.Run("badpage", func(t *testing.T) {
		bad := append([]extract.PageFiles{}, pages...)
		bad[1].Image = filepath.Join(dataset, "missing.png")
		err := RunLocal(context.Background(), bad, t.TempDir(), 2, extract.DefaultConfig(), vlog)
		if err == nil || !strings.Contains(err.Error(), "271") {
			t.Fatalf("Expected an error for page 271, got %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := RunLocal(ctx, pages, t.TempDir(), 2, extract.DefaultConfig(), vlog)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Expected context.Canceled, got %v", err)
		}
	})
}
