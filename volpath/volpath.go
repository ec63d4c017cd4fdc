// Package volpath derives the on-disk path of each volume in a split
// archive from a basepath and a volume index (spec.md §4.2 "Volume
// naming"), and enforces the ".fsa" extension on newly created archives
// (archwriter_create's path_force_extension call).
package volpath

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Extension is forced onto a basepath when archwriter creates a new
// regular-file archive (spec.md §4.2 "Creation policy").
const Extension = ".fsa"

// ForceExtension returns basepath with Extension appended if it doesn't
// already end in Extension, mirroring path_force_extension's "only touch
// it if it isn't already there" behavior.
func ForceExtension(basepath string) string {
	if strings.HasSuffix(basepath, Extension) {
		return basepath
	}
	return basepath + Extension
}

// ForVolume returns the path of volume curvol given basepath, following
// fsarchiver's on-disk convention: volume 0 is basepath itself; volume N
// (N >= 1) appends a 3-digit, zero-padded decimal suffix to the
// extension, e.g. "archive.fsa" -> "archive.fsa001" -> "archive.fsa002".
func ForVolume(basepath string, curvol int) string {
	if curvol <= 0 {
		return basepath
	}
	return fmt.Sprintf("%s%03d", basepath, curvol)
}

// Base returns the basepath implied by an arbitrary volume path, stripping
// a trailing "NNN" volume-index suffix if present. It is used by readers
// resuming from an arbitrary volume on the command line.
func Base(volPath string, curvol int) string {
	if curvol <= 0 {
		return volPath
	}
	suffix := fmt.Sprintf("%03d", curvol)
	return strings.TrimSuffix(volPath, suffix)
}

// Dir is a thin re-export of filepath.Dir for callers that only hold a
// volume path and need its containing directory (e.g. to check free
// space before creating the next volume).
func Dir(path string) string {
	return filepath.Dir(path)
}
