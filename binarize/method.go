// Copyright 2021 Nick White.
// Use of this source code is governed by the GPLv3
// license that can be found in the LICENSE file.

package binarize

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMethod is returned for a thresholding method that isn't
// one of Niblack, Sauvola or WolfJolion.
var ErrUnknownMethod = errors.New("unknown thresholding method")

// ErrBadRange is returned for Sauvola with a dynamic range which
// isn't positive.
var ErrBadRange = errors.New("dynamic range must be positive")

// Method is a local thresholding formula
type Method int

const (
	// Niblack: th = m + k*s
	Niblack Method = iota
	// Sauvola: th = m * (1 + k*(s/dR - 1))
	Sauvola
	// WolfJolion: th = m + k*(s/maxs - 1)*(m - minI)
	WolfJolion
)

func (m Method) String() string {
	switch m {
	case Niblack:
		return "niblack"
	case Sauvola:
		return "sauvola"
	case WolfJolion:
		return "wolfjolion"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod returns the Method named by s
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "niblack":
		return Niblack, nil
	case "sauvola":
		return Sauvola, nil
	case "wolf", "wolfjolion", "wolf-jolion":
		return WolfJolion, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}
