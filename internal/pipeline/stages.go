// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"rescribe.xyz/wordbin"
	"rescribe.xyz/wordbin/extract"
)

// pageFiles collects the outline file and image of pages as they
// arrive, in either order
type pageFiles map[string]*extract.PageFiles

// add records a file, returning the page once both of its files
// have been seen
func (p pageFiles) add(fn string) (*extract.PageFiles, bool) {
	ext := filepath.Ext(fn)
	name := strings.TrimSuffix(filepath.Base(fn), ext)
	pg, ok := p[name]
	if !ok {
		pg = &extract.PageFiles{Name: name}
		p[name] = pg
	}
	if strings.ToLower(ext) == ".svg" {
		pg.Locations = fn
	} else {
		pg.Image = fn
	}
	if pg.Locations == "" || pg.Image == "" {
		return nil, false
	}
	delete(p, name)
	return pg, true
}

// Extract returns a stage which extracts and binarises the words of
// each page once both its outline file and image have been received.
// Results are saved in the WordsDir directory next to the inputs.
func Extract(c extract.Config) Stage {
	return func(ctx context.Context, in chan string, out chan string, errc chan error, logger *log.Logger) {
		defer close(out)
		if c.Logger == nil {
			c.Logger = logger
		}
		pages := make(pageFiles)

		for fn := range in {
			select {
			case <-ctx.Done():
				for range in {
				} // consume the rest of the receiving channel so it isn't blocked
				errc <- ctx.Err()
				return
			default:
			}
			pg, ok := pages.add(fn)
			if !ok {
				continue
			}

			outdir := filepath.Join(filepath.Dir(pg.Locations), WordsDir)
			err := os.MkdirAll(outdir, 0755)
			if err != nil {
				for range in {
				} // consume the rest of the receiving channel so it isn't blocked
				errc <- fmt.Errorf("Failed to create directory %s: %v", outdir, err)
				return
			}

			logger.Println("Extracting words from", pg.Image)
			done, err := extract.Page(pg.Image, pg.Locations, outdir, c)
			if err != nil {
				for range in {
				} // consume the rest of the receiving channel so it isn't blocked
				errc <- err
				return
			}
			_ = os.Remove(pg.Image)
			_ = os.Remove(pg.Locations)
			for _, p := range done {
				out <- p
			}
		}

		for name, pg := range pages {
			if pg.Image == "" {
				errc <- fmt.Errorf("No page image found for %s", name)
			} else {
				errc <- fmt.Errorf("No location file found for %s", name)
			}
			return
		}
	}
}

// Analyse returns a stage which reads the statistics file of each
// page of a dataset, and creates a combined 'inks' file, a graph of
// the ink proportion of every word, and a PDF proof sheet of every
// word, downloading the word images from the dataset as needed.
func Analyse(conn Downloader) Stage {
	return func(ctx context.Context, toanalyse chan string, up chan string, errc chan error, logger *log.Logger) {
		defer close(up)
		pages := make(map[string]map[string]float64)
		savedir := ""

		for p := range toanalyse {
			select {
			case <-ctx.Done():
				for range toanalyse {
				} // consume the rest of the receiving channel so it isn't blocked
				errc <- ctx.Err()
				return
			default:
			}
			if savedir == "" {
				savedir = filepath.Dir(p)
			}
			logger.Println("Reading statistics from", p)
			stats, err := readStatsFile(p)
			if err != nil {
				for range toanalyse {
				} // consume the rest of the receiving channel so it isn't blocked
				errc <- err
				return
			}
			pages[strings.TrimSuffix(filepath.Base(p), ".stats")] = stats
			_ = os.Remove(p)
		}

		if savedir == "" {
			errc <- fmt.Errorf("No statistics files found to analyse")
			return
		}
		dataset := filepath.Base(savedir)

		var names []string
		for name := range pages {
			names = append(names, name)
		}
		sort.Strings(names)

		fn := filepath.Join(savedir, InksFile)
		logger.Println("Saving ink proportions in file", fn)
		all := make(map[string]float64)
		var inks strings.Builder
		for _, name := range names {
			for _, id := range sortedIds(pages[name]) {
				all[id] = pages[name][id]
				fmt.Fprintf(&inks, "%s\t%s\t%0.4f\n", name, id, pages[name][id])
			}
		}
		err := os.WriteFile(fn, []byte(inks.String()), 0644)
		if err != nil {
			errc <- fmt.Errorf("Error writing file %s: %v", fn, err)
			return
		}
		up <- fn

		select {
		case <-ctx.Done():
			errc <- ctx.Err()
			return
		default:
		}

		logger.Println("Creating proof sheet")
		sheet := new(wordbin.ProofSheet)
		err = sheet.Setup()
		if err != nil {
			errc <- fmt.Errorf("Failed to set up PDF: %v", err)
			return
		}
		for _, name := range names {
			var imgs []string
			for _, id := range sortedIds(pages[name]) {
				select {
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				default:
				}
				fn := extract.FileName(id) + ".png"
				key := dataset + "/" + WordsDir + "/" + fn
				img := filepath.Join(savedir, fn)
				err = conn.Download(conn.WIPStorageId(), key, img)
				if err != nil {
					logger.Println("Download failed; skipping word", key)
					continue
				}
				imgs = append(imgs, img)
			}
			err = sheet.AddWords(name, imgs)
			if err != nil {
				errc <- fmt.Errorf("Failed to add page %s to PDF: %v", name, err)
				return
			}
			for _, img := range imgs {
				_ = os.Remove(img)
			}
		}
		if sheet.Words() > 0 {
			fn = filepath.Join(savedir, dataset+".pdf")
			err = sheet.Save(fn)
			if err != nil {
				errc <- fmt.Errorf("Failed to save proof sheet: %v", err)
				return
			}
			up <- fn
		}

		logger.Println("Creating graph")
		fn = filepath.Join(savedir, "graph.png")
		f, err := os.Create(fn)
		if err != nil {
			errc <- fmt.Errorf("Error creating file %s: %v", fn, err)
			return
		}
		err = wordbin.Graph(all, dataset, f)
		f.Close()
		if errors.Is(err, wordbin.ErrTooFewValues) {
			logger.Println("Not enough words to graph")
			_ = os.Remove(fn)
			return
		}
		if err != nil {
			errc <- fmt.Errorf("Error rendering graph: %v", err)
			return
		}
		up <- fn
	}
}

func readStatsFile(p string) (map[string]float64, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("Could not open %s: %v", p, err)
	}
	defer f.Close()
	stats, err := extract.ReadStats(f)
	if err != nil {
		return nil, fmt.Errorf("Error reading statistics from %s: %v", p, err)
	}
	return stats, nil
}

func sortedIds(m map[string]float64) []string {
	var ids []string
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
