// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"rescribe.xyz/wordbin/extract"
)

// null writer to enable non-verbose logging to be discarded
type NullWriter bool

func (w NullWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

type fileWalk chan string

// Walk sends the path of all files to the channel, with the exception of
// any file which starts with "."
func (f fileWalk) Walk(path string, info os.FileInfo, err error) error {
	if err != nil {
		return err
	}
	// skip files starting with . to prevent automatically generated
	// files like .DS_Store getting in the way
	if strings.HasPrefix(filepath.Base(path), ".") {
		return nil
	}
	if !info.IsDir() {
		f <- path
	}
	return nil
}

// CheckImages checks that all page images in a directory can be
// decoded (skipping dotfiles)
func CheckImages(ctx context.Context, dir string) error {
	checker := make(fileWalk)
	go func() {
		_ = filepath.Walk(dir, checker.Walk)
		close(checker)
	}()

	n := 0
	for path := range checker {
		select {
		case <-ctx.Done():
			for range checker {
			} // let the walk finish
			return ctx.Err()
		default:
		}
		if !extract.IsPageImage(path) {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			for range checker {
			}
			return fmt.Errorf("Opening image %s failed: %v", path, err)
		}
		_, _, err = image.Decode(f)
		f.Close()
		if err != nil {
			for range checker {
			}
			return fmt.Errorf("Decoding image %s failed: %v", path, err)
		}
		n++
	}

	if n == 0 {
		return fmt.Errorf("No images found")
	}

	return nil
}

// UploadDataset uploads the page images and word location files of
// the dataset in dir into conn.WIPStorageId(), prefixed with the given
// name and a slash, and adds each page to the page queue. The images
// are all uploaded first, so no page is queued before its image is
// available.
func UploadDataset(ctx context.Context, dir string, name string, conn Pipeliner) error {
	pages, err := extract.FindPages(dir)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("No pages found in %s", dir)
	}

	for _, pg := range pages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		key := path.Join(name, pg.Name+strings.ToLower(filepath.Ext(pg.Image)))
		conn.Log("Uploading", key)
		err = conn.Upload(conn.WIPStorageId(), key, pg.Image)
		if err != nil {
			return fmt.Errorf("Failed to upload %s: %v", pg.Image, err)
		}
	}

	upc := make(chan string)
	done := make(chan bool, 1)
	errc := make(chan error, 1)
	logger := conn.GetLogger()
	go upAndQueue(ctx, upc, done, conn.PageQueueId(), conn, filepath.Join(dir, extract.LocationsDir), name, errc, logger)

	go func() {
		for _, pg := range pages {
			select {
			case upc <- pg.Locations:
			case <-ctx.Done():
			}
		}
		close(upc)
	}()

	select {
	case err = <-errc:
		return err
	case <-done:
		return nil
	}
}
