package ota

import (
	"errors"

	"github.com/go-git/go-billy/v5"
)

// Options configures a Service.
type Options struct {
	FS       billy.Filesystem
	Artifact string
	Header   string
	Marker   string
	Checksum ChecksumComputer
	Endpoint Endpoint
}

// Service builds manifests and opens the artifact for the transports.
type Service struct {
	artifact *Artifact
	version  *VersionSource
	checksum ChecksumComputer
	endpoint Endpoint
}

func NewService(opts Options) (*Service, error) {
	if opts.FS == nil {
		return nil, errors.New("ota: nil filesystem")
	}
	if opts.Artifact == "" {
		return nil, errors.New("ota: artifact path is required")
	}
	if opts.Header == "" {
		opts.Header = DefaultHeader
	}
	if opts.Checksum == nil {
		opts.Checksum, _ = NewChecksum(DefaultChecksum)
	}
	return &Service{
		artifact: NewArtifact(opts.FS, opts.Artifact),
		version:  NewVersionSource(opts.FS, opts.Header, opts.Marker),
		checksum: opts.Checksum,
		endpoint: opts.Endpoint,
	}, nil
}

func (s *Service) Endpoint() Endpoint { return s.endpoint }

func (s *Service) Artifact() *Artifact { return s.artifact }

// Manifest recomputes every field from the files on disk.
func (s *Service) Manifest() (Manifest, error) {
	ver, err := s.version.Version()
	if err != nil {
		return Manifest{}, err
	}
	size, sum, err := s.artifact.Describe(s.checksum)
	if err != nil {
		return Manifest{}, err
	}
	return Manifest{
		Version:  ver,
		Size:     size,
		Checksum: sum,
		URL:      s.endpoint.BinaryURL(),
	}, nil
}

// OpenArtifact opens the image for streaming; the caller closes the file.
func (s *Service) OpenArtifact() (billy.File, int64, error) {
	return s.artifact.Open()
}
