package ota

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"
)

const (
	DefaultHeader = "wifippp.h"
	DefaultMarker = "_VERSION"
)

// ErrVersionNotFound is returned when the header has no usable version line.
var ErrVersionNotFound = errors.New("version marker not found")

// ExtractVersion returns the version from the first line of r containing
// marker. The text after the marker is unquoted: a trailing quote is dropped,
// then everything up to and including the last remaining quote.
//
//	#define WIFIPPP_VERSION		"0.1"   ->  0.1
func ExtractVersion(r io.Reader, marker string) (string, error) {
	if marker == "" {
		return "", fmt.Errorf("%w: empty marker", ErrVersionNotFound)
	}
	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := sc.Text()
		i := strings.Index(text, marker)
		if i < 0 {
			continue
		}
		v := strings.TrimRight(text[i:], "\r")
		v = strings.TrimSuffix(v, `"`)
		if q := strings.LastIndexByte(v, '"'); q >= 0 {
			v = v[q+1:]
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return "", fmt.Errorf("%w: empty value for %s on line %d", ErrVersionNotFound, marker, line)
		}
		return v, nil
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("%w: no line contains %s", ErrVersionNotFound, marker)
}

// VersionSource reads the version from a header file on every call so edits
// show up without a restart.
type VersionSource struct {
	fs     billy.Filesystem
	path   string
	marker string
}

func NewVersionSource(fs billy.Filesystem, path, marker string) *VersionSource {
	if marker == "" {
		marker = DefaultMarker
	}
	return &VersionSource{fs: fs, path: path, marker: marker}
}

func (v *VersionSource) Version() (string, error) {
	f, err := v.fs.Open(v.path)
	if err != nil {
		return "", fmt.Errorf("open header: %w", err)
	}
	defer f.Close()

	ver, err := ExtractVersion(f, v.marker)
	if err != nil {
		return "", fmt.Errorf("%s: %w", v.path, err)
	}
	return ver, nil
}
