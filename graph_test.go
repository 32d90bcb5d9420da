// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package wordbin

import (
	"bytes"
	"errors"
	"fmt"
	"image/png"
	"testing"
)

func TestGraph(t *testing.T) {
	cases := []struct {
		n   int
		err error
	}{
		{0, ErrTooFewValues},
		{1, ErrTooFewValues},
		{2, nil},
		{9, nil},
		{150, nil},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%d", c.n), func(t *testing.T) {
			ratios := make(map[string]float64)
			for i := 0; i < c.n; i++ {
				ratios[fmt.Sprintf("270-01-%03d", i)] = float64(i%17) / 40
			}
			var buf bytes.Buffer
			err := Graph(ratios, "270", &buf)
			if c.err != nil {
				if !errors.Is(err, c.err) {
					t.Fatalf("Expected error %v, got %v", c.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Graph failed: %v", err)
			}
			cfg, err := png.DecodeConfig(&buf)
			if err != nil {
				t.Fatalf("Graph is not a valid png: %v", err)
			}
			if cfg.Width != 3840 || cfg.Height != 2160 {
				t.Errorf("Unexpected graph size %dx%d", cfg.Width, cfg.Height)
			}
		})
	}
}
