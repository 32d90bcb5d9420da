// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"rescribe.xyz/wordbin"
)

type StatusLister interface {
	ListObjectsWithMeta(bucket string, prefix string) ([]wordbin.ObjMeta, error)
	ListObjectPrefixes(bucket string) ([]string, error)
	WIPStorageId() string
}

// Progress is how far a dataset has got through the pipeline
type Progress struct {
	Name string
	// Pages is the number of location files uploaded
	Pages int
	// Extracted is the number of pages whose words have been saved
	Extracted int
	Analysed  bool
	// Date is when the dataset was analysed, or when it last changed
	// if it hasn't been yet
	Date time.Time
}

func (p Progress) String() string {
	if p.Analysed {
		return fmt.Sprintf("%s: %d pages, analysed %s", p.Name, p.Pages, p.Date.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s: %d of %d pages extracted", p.Name, p.Extracted, p.Pages)
}

// DatasetStatus finds the progress of every dataset in
// conn.WIPStorageId(), ordered by date. A dataset counts as analysed
// once its inks file exists, as the graph and proof sheet are
// skipped for datasets with too few words.
func DatasetStatus(conn StatusLister) ([]Progress, error) {
	prefixes, err := conn.ListObjectPrefixes(conn.WIPStorageId())
	if err != nil {
		return nil, fmt.Errorf("Error getting object prefixes: %v", err)
	}

	var datasets []Progress
	for _, p := range prefixes {
		name := strings.TrimSuffix(p, "/")
		objs, err := conn.ListObjectsWithMeta(conn.WIPStorageId(), name+"/")
		if err != nil {
			return datasets, fmt.Errorf("Error listing dataset %s: %v", name, err)
		}
		pr := Progress{Name: name}
		var names []string
		for _, o := range objs {
			names = append(names, o.Name)
			if o.Name == path.Join(name, InksFile) {
				pr.Analysed = true
				pr.Date = o.Date
			} else if !pr.Analysed && o.Date.After(pr.Date) {
				pr.Date = o.Date
			}
		}
		pr.Pages, pr.Extracted = countPages(name, names)
		datasets = append(datasets, pr)
	}

	sort.SliceStable(datasets, func(i, j int) bool {
		return datasets[i].Date.Before(datasets[j].Date)
	})
	return datasets, nil
}
