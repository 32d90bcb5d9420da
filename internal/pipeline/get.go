// Copyright 2019 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// DownloadAnalyses downloads the results of analysing a dataset into
// dir: the inks file, and the graph and proof sheet if present
func DownloadAnalyses(dir string, name string, conn Downloader) error {
	for _, a := range []string{InksFile, "graph.png", name + ".pdf"} {
		key := path.Join(name, a)
		fn := filepath.Join(dir, a)
		err := conn.Download(conn.WIPStorageId(), key, fn)
		// ignore errors with the graph and pdf, as they will not exist
		// for a dataset with too few words
		if err != nil {
			_ = os.Remove(fn)
			if a == InksFile {
				return fmt.Errorf("Failed to download analysis file %s: %v", key, err)
			}
		}
	}
	return nil
}

// DownloadWords downloads the binarised word images and page
// statistics files of a dataset into dir
func DownloadWords(dir string, name string, conn DownloadLister) error {
	prefix := path.Join(name, WordsDir) + "/"
	objs, err := conn.ListObjects(conn.WIPStorageId(), prefix)
	if err != nil {
		return fmt.Errorf("Failed to get list of words for dataset %s: %v", name, err)
	}
	if len(objs) == 0 {
		return fmt.Errorf("No words found for dataset %s", name)
	}
	for _, i := range objs {
		fn := filepath.Join(dir, path.Base(i))
		conn.Log("Downloading", i)
		err = conn.Download(conn.WIPStorageId(), i, fn)
		if err != nil {
			return fmt.Errorf("Failed to download file %s: %v", i, err)
		}
	}
	return nil
}

// DownloadAll downloads every file of a dataset into dir, keeping the
// directory structure of the dataset
func DownloadAll(dir string, name string, conn DownloadLister) error {
	objs, err := conn.ListObjects(conn.WIPStorageId(), name+"/")
	if err != nil {
		return fmt.Errorf("Failed to get list of files for dataset %s: %v", name, err)
	}
	for _, i := range objs {
		rel := strings.TrimPrefix(i, name+"/")
		fn := filepath.Join(dir, filepath.FromSlash(rel))
		err = os.MkdirAll(filepath.Dir(fn), 0755)
		if err != nil {
			return fmt.Errorf("Failed to create directory %s: %v", filepath.Dir(fn), err)
		}
		conn.Log("Downloading", i)
		err = conn.Download(conn.WIPStorageId(), i, fn)
		if err != nil {
			return fmt.Errorf("Failed to download file %s: %v", i, err)
		}
	}
	return nil
}
