package ota

import (
	"io"
	"strconv"
	"strings"
)

// Manifest is the descriptor a device fetches before downloading the image.
type Manifest struct {
	Version  string
	Size     int64
	Checksum string
	URL      string
}

// String renders the four newline-terminated lines of ota.txt.
func (m Manifest) String() string {
	var b strings.Builder
	for _, line := range []string{m.Version, strconv.FormatInt(m.Size, 10), m.Checksum, m.URL} {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteTo implements io.WriterTo.
func (m Manifest) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, m.String())
	return int64(n), err
}
