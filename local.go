// Copyright 2020 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package wordbin

import (
	"bufio"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const qidPage = "queuePage"
const qidAnalyse = "queueAnalyse"
const qidTest = "queueTest"
const storageId = "storage"

// LocalConn is a simple implementation of the pipeliner interface
// that doesn't rely on any "cloud" services, instead doing everything
// on the local machine. This is particularly useful for testing.
//
// Queues are files with one message per line, and storage buckets
// are directories, with keys as paths inside them.
type LocalConn struct {
	// these should be set before running Init(), or left to defaults
	TempDir string
	Logger  *log.Logger
}

// MinimalInit does the bare minimum initialisation
func (a *LocalConn) MinimalInit() error {
	var err error
	if a.TempDir == "" {
		a.TempDir = filepath.Join(os.TempDir(), "wordbin")
	}
	err = os.MkdirAll(a.TempDir, 0700)
	if err != nil {
		return fmt.Errorf("Error creating temporary directory: %v", err)
	}

	err = os.Mkdir(filepath.Join(a.TempDir, storageId), 0700)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("Error creating storage directory: %v", err)
	}

	if a.Logger == nil {
		a.Logger = log.New(os.Stdout, "", 0)
	}

	return nil
}

// Init just does the same as MinimalInit
func (a *LocalConn) Init() error {
	return a.MinimalInit()
}

// CheckQueue returns the first message in a queue, or an empty
// message if there are none. The message is left in the queue until
// DelFromQueue is called.
func (a *LocalConn) CheckQueue(url string, timeout int64) (Qmsg, error) {
	f, err := os.OpenFile(filepath.Join(a.TempDir, url), os.O_RDONLY|os.O_CREATE, 0644)
	if err != nil {
		return Qmsg{}, err
	}
	defer f.Close()
	r := bufio.NewReader(f)
	s, err := r.ReadString('\n')
	if err != nil && err != io.EOF {
		return Qmsg{}, err
	}
	s = strings.TrimRight(s, "\n")

	return Qmsg{Body: s, Handle: s}, nil
}

// QueueHeartbeat is a no-op with LocalConn
func (a *LocalConn) QueueHeartbeat(msg Qmsg, qurl string, duration int64) (Qmsg, error) {
	return Qmsg{}, nil
}

// GetQueueDetails gets the number of in progress and available
// messages for a queue. These are returned as strings.
func (a *LocalConn) GetQueueDetails(url string) (string, string, error) {
	b, err := ioutil.ReadFile(filepath.Join(a.TempDir, url))
	if os.IsNotExist(err) {
		return "0", "0", nil
	}
	if err != nil {
		return "", "", err
	}
	n := strings.Count(string(b), "\n")

	return fmt.Sprintf("%d", n), "0", nil
}

func (a *LocalConn) PageQueueId() string {
	return qidPage
}

func (a *LocalConn) AnalyseQueueId() string {
	return qidAnalyse
}

func (a *LocalConn) TestQueueId() string {
	return qidTest
}

func (a *LocalConn) WIPStorageId() string {
	return storageId
}

// prefixwalker collects every file under dirpath whose key, its path
// relative to dirpath with / separators, starts with prefix
func prefixwalker(dirpath string, prefix string, list *[]ObjMeta) filepath.WalkFunc {
	return func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dirpath, path)
		if err != nil {
			return err
		}
		n := filepath.ToSlash(rel)
		if !strings.HasPrefix(n, prefix) {
			return nil
		}
		*list = append(*list, ObjMeta{Name: n, Date: info.ModTime()})
		return nil
	}
}

func (a *LocalConn) ListObjects(bucket string, prefix string) ([]string, error) {
	var names []string
	list, err := a.ListObjectsWithMeta(bucket, prefix)
	if err != nil {
		return names, err
	}
	for _, v := range list {
		names = append(names, v.Name)
	}
	return names, nil
}

func (a *LocalConn) ListObjectsWithMeta(bucket string, prefix string) ([]ObjMeta, error) {
	var list []ObjMeta
	err := filepath.Walk(filepath.Join(a.TempDir, bucket), prefixwalker(filepath.Join(a.TempDir, bucket), prefix, &list))
	return list, err
}

// ListObjectPrefixes lists the top level directories of a bucket,
// each with a trailing /
func (a *LocalConn) ListObjectPrefixes(bucket string) ([]string, error) {
	var prefixes []string
	entries, err := ioutil.ReadDir(filepath.Join(a.TempDir, bucket))
	if err != nil {
		return prefixes, err
	}
	for _, e := range entries {
		if e.IsDir() {
			prefixes = append(prefixes, e.Name()+"/")
		}
	}
	sort.Strings(prefixes)
	return prefixes, nil
}

// DeleteObjects removes a list of objects
func (a *LocalConn) DeleteObjects(bucket string, keys []string) error {
	for _, k := range keys {
		err := os.Remove(filepath.Join(a.TempDir, bucket, k))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// AddToQueue adds a message to a queue
func (a *LocalConn) AddToQueue(url string, msg string) error {
	f, err := os.OpenFile(filepath.Join(a.TempDir, url), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(msg + "\n")
	return err
}

// DelFromQueue deletes the first message in a queue matching handle
func (a *LocalConn) DelFromQueue(url string, handle string) error {
	b, err := ioutil.ReadFile(filepath.Join(a.TempDir, url))
	if err != nil {
		return err
	}

	lines := strings.SplitAfter(string(b), "\n")
	found := false
	var complete strings.Builder
	for _, l := range lines {
		if !found && strings.TrimRight(l, "\n") == handle && l != "" {
			found = true
			continue
		}
		complete.WriteString(l)
	}
	if !found {
		return fmt.Errorf("Warning: %s not found in queue %s, so not deleted", handle, url)
	}

	return ioutil.WriteFile(filepath.Join(a.TempDir, url), []byte(complete.String()), 0644)
}

// Download just copies the file from TempDir/bucket/key to path
func (a *LocalConn) Download(bucket string, key string, path string) error {
	fin, err := os.Open(filepath.Join(a.TempDir, bucket, key))
	if err != nil {
		return err
	}
	defer fin.Close()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, fin)
	return err
}

// Upload just copies the file from path to TempDir/bucket/key
func (a *LocalConn) Upload(bucket string, key string, path string) error {
	fin, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fin.Close()

	d := filepath.Join(a.TempDir, bucket, filepath.Dir(key))
	err = os.MkdirAll(d, 0700)
	if err != nil {
		return fmt.Errorf("Error creating temporary directory: %v", err)
	}
	f, err := os.Create(filepath.Join(a.TempDir, bucket, key))
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(f, fin)
	return err
}

func (a *LocalConn) GetLogger() *log.Logger {
	return a.Logger
}

// Log records an item with the Logger. Arguments are handled as with
// fmt.Println.
func (a *LocalConn) Log(v ...interface{}) {
	a.Logger.Println(v...)
}

// MkPipeline creates the storage directory and empty queue files
func (a *LocalConn) MkPipeline() error {
	err := os.MkdirAll(filepath.Join(a.TempDir, storageId), 0700)
	if err != nil {
		return fmt.Errorf("Error creating storage directory: %v", err)
	}
	for _, q := range []string{qidPage, qidAnalyse, qidTest} {
		f, err := os.OpenFile(filepath.Join(a.TempDir, q), os.O_RDONLY|os.O_CREATE, 0644)
		if err != nil {
			return fmt.Errorf("Error creating queue %s: %v", q, err)
		}
		f.Close()
	}
	return nil
}
