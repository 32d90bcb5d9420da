// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"rescribe.xyz/wordbin/extract"
)

// RunLocal extracts the words of every page into outDir, using
// workers goroutines. The first error stops any pages which have not
// yet started, and is returned once running pages have finished.
func RunLocal(ctx context.Context, pages []extract.PageFiles, outDir string, workers int, c extract.Config, logger *log.Logger) error {
	if workers < 1 {
		workers = 1
	}
	err := os.MkdirAll(outDir, 0755)
	if err != nil {
		return fmt.Errorf("Failed to create directory %s: %v", outDir, err)
	}
	if c.Logger == nil {
		c.Logger = logger
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan extract.PageFiles)
	var wg sync.WaitGroup
	var once sync.Once
	var firstErr error

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pg := range jobs {
				if ctx.Err() != nil {
					continue
				}
				logger.Println("Processing page", pg.Name)
				done, err := extract.Page(pg.Image, pg.Locations, outDir, c)
				if err != nil {
					once.Do(func() {
						firstErr = fmt.Errorf("Error processing page %s: %v", pg.Name, err)
						cancel()
					})
					continue
				}
				logger.Println("Saved", len(done)-1, "words from page", pg.Name)
			}
		}()
	}

	for _, pg := range pages {
		select {
		case jobs <- pg:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
