package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	httpx "ota-serve/http"
	"ota-serve/internal/config"
	"ota-serve/ota"
	"ota-serve/pkg/logger"
	"ota-serve/tftp"
	"ota-serve/utils"
)

// Server wires the configured pieces together.
type Server struct {
	cfg      config.Config
	fs       billy.Filesystem
	resolver utils.AddressResolver
}

func NewServer(cfg config.Config) *Server {
	return &Server{
		cfg:      cfg,
		fs:       osfs.New("/"),
		resolver: utils.NewResolver(cfg.Host, cfg.Interface),
	}
}

// Start resolves the endpoint, starts the listeners and prints the update
// command. It returns once everything is accepting connections.
func (s *Server) Start(ctx context.Context, out io.Writer) (ota.Endpoint, func(), error) {
	if err := logger.Init(s.cfg.Logging); err != nil {
		return ota.Endpoint{}, nil, err
	}
	log := logger.NewLogger("main")

	ip, err := s.resolver.Resolve(ctx)
	if err != nil {
		return ota.Endpoint{}, nil, err
	}
	ep := ota.Endpoint{Host: ip.String(), Port: s.cfg.Port}

	checksum, err := ota.NewChecksum(s.cfg.Checksum)
	if err != nil {
		return ota.Endpoint{}, nil, err
	}
	svc, err := ota.NewService(ota.Options{
		FS:       s.fs,
		Artifact: s.cfg.Artifact,
		Header:   s.cfg.Header,
		Marker:   s.cfg.Marker,
		Checksum: checksum,
		Endpoint: ep,
	})
	if err != nil {
		return ota.Endpoint{}, nil, err
	}

	if size, err := svc.Artifact().Size(); err != nil {
		log.WithError(err).Warn("artifact not readable yet, requests will fail until it is")
	} else {
		log.Infof("serving %s (%s, %s)", s.cfg.Artifact, humanize.Bytes(uint64(size)), checksum.Name())
	}

	httpLog := logger.NewLogger("http")
	ln, err := httpx.StartHTTPServer(ep.Addr(), httpx.NewHandler(svc, httpLog), httpLog)
	if err != nil {
		return ota.Endpoint{}, nil, fmt.Errorf("listen on %s: %w", ep.Addr(), err)
	}
	stop := func() { ln.Close() }

	if s.cfg.TFTPAddr != "" {
		srv, err := tftp.StartTFTPServer(s.cfg.TFTPAddr, svc, logger.NewLogger("tftp"))
		if err != nil {
			ln.Close()
			return ota.Endpoint{}, nil, fmt.Errorf("tftp listen on %s: %w", s.cfg.TFTPAddr, err)
		}
		stop = func() {
			srv.Close()
			ln.Close()
		}
	}

	printInstructions(out, ep)
	return ep, stop, nil
}

// Run starts the server and blocks until SIGINT/SIGTERM or ctx is done.
func (s *Server) Run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, stop, err := s.Start(ctx, out)
	if err != nil {
		return err
	}
	defer stop()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	log := logger.NewLogger("main")
	select {
	case sig := <-sigs:
		log.Infof("received signal %s, exiting", sig)
	case <-ctx.Done():
	}
	return nil
}
