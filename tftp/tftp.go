package tftp

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"path"
	"strings"
	"time"

	tftp "github.com/pin/tftp/v3"

	"ota-serve/ota"
	"ota-serve/pkg/logger"
)

// readHandler serves ota.txt and update.bin; any other name is refused.
func readHandler(svc *ota.Service, log *logger.Logger) func(string, io.ReaderFrom) error {
	return func(filename string, rf io.ReaderFrom) error {
		name := path.Clean("/" + strings.TrimSpace(filename))
		fields := logger.Fields{"file": name}
		if ot, ok := rf.(tftp.OutgoingTransfer); ok {
			raddr := ot.RemoteAddr()
			fields["remote"] = raddr.String()
		}

		var (
			n   int64
			err error
		)
		switch name {
		case ota.ManifestPath:
			n, err = sendManifest(svc, rf)
		case ota.BinaryPath:
			n, err = sendArtifact(svc, rf)
		default:
			err = fmt.Errorf("%s: %w", name, fs.ErrNotExist)
		}
		if err != nil {
			log.WithFields(fields).WithError(err).Warn("tftp read failed")
			return err
		}
		fields["bytes"] = n
		log.WithFields(fields).Info("tftp read")
		return nil
	}
}

func sendManifest(svc *ota.Service, rf io.ReaderFrom) (int64, error) {
	m, err := svc.Manifest()
	if err != nil {
		return 0, err
	}
	body := m.String()
	setSize(rf, int64(len(body)))
	return rf.ReadFrom(strings.NewReader(body))
}

func sendArtifact(svc *ota.Service, rf io.ReaderFrom) (int64, error) {
	f, size, err := svc.OpenArtifact()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	setSize(rf, size)
	return rf.ReadFrom(io.LimitReader(f, size))
}

func setSize(rf io.ReaderFrom, n int64) {
	if ot, ok := rf.(tftp.OutgoingTransfer); ok {
		ot.SetSize(n)
	}
}

// Server is a running TFTP mirror.
type Server struct {
	conn net.PacketConn
	srv  *tftp.Server
}

func (s *Server) Addr() net.Addr { return s.conn.LocalAddr() }

// Close releases the socket and waits for outstanding transfers.
func (s *Server) Close() error {
	err := s.conn.Close()
	s.srv.Shutdown()
	return err
}

// StartTFTPServer mirrors the HTTP routes over TFTP for boot loaders that
// only speak TFTP. Write requests are not supported. The socket is bound
// before returning, so address errors surface here.
func StartTFTPServer(addr string, svc *ota.Service, log *logger.Logger) (*Server, error) {
	if addr == "" {
		addr = ":69"
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	srv := tftp.NewServer(readHandler(svc, log), nil)
	srv.SetTimeout(5 * time.Second)

	go func() {
		if err := srv.Serve(conn); err != nil && !errors.Is(err, net.ErrClosed) {
			log.WithError(err).Error("TFTP server error")
		}
	}()
	log.Infof("TFTP server listening on %s", conn.LocalAddr())
	return &Server{conn: conn, srv: srv}, nil
}
