package ota

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"sort"
	"strings"

	"lukechampine.com/blake3"
)

// ChecksumComputer hashes artifact contents into a lowercase hex string.
type ChecksumComputer interface {
	Name() string
	Sum(r io.Reader) (string, error)
}

type hashChecksum struct {
	name    string
	newHash func() hash.Hash
}

func (h hashChecksum) Name() string { return h.name }

func (h hashChecksum) Sum(r io.Reader) (string, error) {
	d := h.newHash()
	if _, err := io.Copy(d, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(d.Sum(nil)), nil
}

// DefaultChecksum is what the modem firmware verifies against.
const DefaultChecksum = "md5"

var checksums = map[string]ChecksumComputer{
	"md5":    hashChecksum{name: "md5", newHash: md5.New},
	"sha256": hashChecksum{name: "sha256", newHash: sha256.New},
	"blake3": hashChecksum{name: "blake3", newHash: func() hash.Hash { return blake3.New(32, nil) }},
}

// NewChecksum returns the computer registered under name.
func NewChecksum(name string) (ChecksumComputer, error) {
	if name == "" {
		name = DefaultChecksum
	}
	c, ok := checksums[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown checksum %q (supported: %s)", name, strings.Join(ChecksumNames(), ", "))
	}
	return c, nil
}

// ChecksumNames lists the supported algorithms, sorted.
func ChecksumNames() []string {
	names := make([]string, 0, len(checksums))
	for n := range checksums {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
