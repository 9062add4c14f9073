package httpx

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ota-serve/ota"
	"ota-serve/pkg/logger"
)

type fixedChecksum string

func (f fixedChecksum) Name() string { return "fixed" }

func (f fixedChecksum) Sum(r io.Reader) (string, error) {
	_, err := io.Copy(io.Discard, r)
	return string(f), err
}

// syncBuffer is written by server goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	fs  billy.Filesystem
	srv *httptest.Server
	log *syncBuffer
}

func newFixture(t *testing.T, checksum ota.ChecksumComputer) *fixture {
	t.Helper()
	fsys := memfs.New()
	svc, err := ota.NewService(ota.Options{
		FS:       fsys,
		Artifact: "fw.bin",
		Header:   "wifippp.h",
		Checksum: checksum,
		Endpoint: ota.Endpoint{Host: "10.0.0.5", Port: ota.DefaultPort},
	})
	require.NoError(t, err)

	buf := &syncBuffer{}
	srv := httptest.NewServer(NewHandler(svc, logger.New(buf, "http")))
	t.Cleanup(srv.Close)
	return &fixture{fs: fsys, srv: srv, log: buf}
}

func (f *fixture) write(t *testing.T, name string, data []byte) {
	t.Helper()
	require.NoError(t, util.WriteFile(f.fs, name, data, 0o644))
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestUpdateBinRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	image := bytes.Repeat([]byte{0x00, 0xff, 0x7e, 0x10}, 4096)
	f.write(t, "fw.bin", image)

	for i := 0; i < 3; i++ {
		resp, body := f.get(t, ota.BinaryPath)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
		assert.EqualValues(t, len(image), resp.ContentLength)
		assert.Equal(t, image, body)
	}
}

func TestManifestExactBody(t *testing.T) {
	f := newFixture(t, fixedChecksum("abc123"))
	f.write(t, "fw.bin", []byte("0123456789"))
	f.write(t, "wifippp.h", []byte("#define FW_VERSION \"1.2.3\"\n"))

	resp, body := f.get(t, ota.ManifestPath)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Equal(t, "1.2.3\n10\nabc123\nhttp://10.0.0.5:8000/update.bin\n", string(body))
}

func TestManifestTracksArtifact(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "wifippp.h", []byte("#define WIFIPPP_VERSION\t\t\"0.1\"\n"))

	for _, image := range []string{"first build", "second, longer build"} {
		f.write(t, "fw.bin", []byte(image))
		resp, body := f.get(t, ota.ManifestPath)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		sum := md5.Sum([]byte(image))
		lines := strings.Split(strings.TrimSuffix(string(body), "\n"), "\n")
		require.Len(t, lines, 4)
		assert.Equal(t, "0.1", lines[0])
		assert.Equal(t, strconv.Itoa(len(image)), lines[1])
		assert.Equal(t, hex.EncodeToString(sum[:]), lines[2])
	}
}

func TestManifestWithoutMarker(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "fw.bin", []byte("x"))
	f.write(t, "wifippp.h", []byte("#define SOMETHING_ELSE 1\n"))

	resp, body := f.get(t, ota.ManifestPath)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal Server Error\n", string(body))
	assert.Contains(t, f.log.String(), "version marker not found")

	// the server keeps answering
	f.write(t, "wifippp.h", []byte("#define FW_VERSION \"1\"\n"))
	resp, _ = f.get(t, ota.ManifestPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMissingFiles(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.get(t, ota.BinaryPath)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, string(body), "fw.bin")

	f.write(t, "fw.bin", []byte("x"))
	resp, body = f.get(t, ota.ManifestPath)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotContains(t, string(body), "wifippp.h")
	assert.Contains(t, f.log.String(), "request failed")
	assert.Contains(t, f.log.String(), "wifippp.h")
}

func TestUnknownPath(t *testing.T) {
	f := newFixture(t, nil)
	for _, p := range []string{"/", "/ota.txt/", "/update.bin.old", "/wifippp.h"} {
		resp, _ := f.get(t, p)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Post(f.srv.URL+ota.BinaryPath, "application/octet-stream", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRequestLogging(t *testing.T) {
	f := newFixture(t, nil)
	f.write(t, "fw.bin", []byte("abc"))
	f.get(t, ota.BinaryPath)

	out := f.log.String()
	assert.Contains(t, out, "http request")
	assert.Contains(t, out, "path=/update.bin")
	assert.Contains(t, out, "status=200")
	assert.Contains(t, out, "bytes=3")
	assert.Contains(t, out, "request_id=")
}

func TestStartHTTPServer(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, util.WriteFile(fsys, "fw.bin", []byte("image"), 0o644))
	svc, err := ota.NewService(ota.Options{FS: fsys, Artifact: "fw.bin", Endpoint: ota.Endpoint{Host: "127.0.0.1", Port: 0}})
	require.NoError(t, err)

	ln, err := StartHTTPServer("127.0.0.1:0", NewHandler(svc, logger.New(io.Discard, "http")), logger.New(io.Discard, "http"))
	require.NoError(t, err)
	defer ln.Close()

	resp, err := http.Get("http://" + ln.Addr().String() + ota.BinaryPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "image", string(body))
}
