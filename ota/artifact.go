package ota

import (
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
)

// Artifact is the firmware image on disk. Nothing about it is cached; every
// call looks at the file as it is right now.
type Artifact struct {
	fs   billy.Filesystem
	path string
}

func NewArtifact(fs billy.Filesystem, path string) *Artifact {
	return &Artifact{fs: fs, path: path}
}

func (a *Artifact) Path() string { return a.path }

// Size returns the current byte length of the file.
func (a *Artifact) Size() (int64, error) {
	fi, err := a.fs.Stat(a.path)
	if err != nil {
		return 0, fmt.Errorf("stat artifact: %w", err)
	}
	return fi.Size(), nil
}

// Open opens the file and reports the length of the opened handle. The size
// comes from the handle, not a separate stat, so a rebuild landing between
// the two can't produce a mismatched Content-Length.
func (a *Artifact) Open() (billy.File, int64, error) {
	f, err := a.fs.Open(a.path)
	if err != nil {
		return nil, 0, fmt.Errorf("open artifact: %w", err)
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("seek artifact: %w", err)
	}
	return f, size, nil
}

// Describe reads the whole file once and returns its length and checksum.
func (a *Artifact) Describe(c ChecksumComputer) (int64, string, error) {
	f, _, err := a.Open()
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	cr := &countingReader{r: f}
	sum, err := c.Sum(cr)
	if err != nil {
		return 0, "", fmt.Errorf("%s artifact: %w", c.Name(), err)
	}
	return cr.n, sum, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
