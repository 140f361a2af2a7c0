package server

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/go-bitrate/internal/analysis"
	"github.com/autobrr/go-bitrate/internal/config"
	"github.com/autobrr/go-bitrate/internal/probe"
	"github.com/autobrr/go-bitrate/internal/report"
	"github.com/autobrr/go-bitrate/internal/runner"
)

type mapProber struct {
	mu    sync.Mutex
	media map[string]probe.Media
	errs  map[string]error
	seen  []string
}

func (m *mapProber) Name() string { return "map" }

func (m *mapProber) Probe(_ context.Context, path string) (probe.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, path)
	if err, ok := m.errs[path]; ok {
		return probe.Media{}, err
	}
	media, ok := m.media[path]
	if !ok {
		return probe.Media{}, &fs.PathError{Op: "stat", Path: path, Err: fs.ErrNotExist}
	}
	return media, nil
}

func newTestServer(t *testing.T, root string) (*httptest.Server, *mapProber) {
	t.Helper()
	frames := make([]analysis.RawFrameRecord, 100)
	for i := range frames {
		typ := analysis.FrameTypeP
		if i%25 == 0 {
			typ = analysis.FrameTypeI
		}
		frames[i] = analysis.Frame(5000, float64(i)/25, typ)
	}
	prober := &mapProber{
		media: map[string]probe.Media{
			"/media/clip.mp4":     {Info: probe.StreamInfo{Codec: "h264", FrameRate: 25}, Frames: frames},
			"/media/empty.mkv":    {Info: probe.StreamInfo{Codec: "h264"}},
			"/srv/media/clip.mp4": {Info: probe.StreamInfo{Codec: "h264", FrameRate: 25}, Frames: frames},
		},
		errs: map[string]error{
			"/media/audio.m4a": probe.ErrNoVideoStream,
			"/media/boom.mp4":  fmt.Errorf("ffprobe failed: exit status 1"),
		},
	}
	r := runner.New(prober, analysis.DefaultOptions(), 1)
	srv := New(config.ServerConfig{Root: root}, r, analysis.DefaultOptions())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, prober
}

func postAnalyze(t *testing.T, ts *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/analyze", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestAnalyze(t *testing.T) {
	ts, _ := newTestServer(t, "")

	resp, data := postAnalyze(t, ts, `{"path": "/media/clip.mp4", "window_length": 2, "include_frames": true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))

	var doc report.Document
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "/media/clip.mp4", doc.Media.Ref)
	assert.Equal(t, 100, doc.Media.Statistics.FrameCount)
	assert.InDelta(t, 5000*8*25, doc.Media.Statistics.OverallBitrate, 1e-6)
	assert.Len(t, doc.Media.Timeline, 2)
	assert.Len(t, doc.Media.Frames, 100)
	assert.Len(t, doc.Media.Keyframes, 4)
}

func TestAnalyzeErrors(t *testing.T) {
	ts, _ := newTestServer(t, "")

	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"bad json", `{"path":`, http.StatusBadRequest, "INVALID_BODY"},
		{"unknown field", `{"path": "/media/clip.mp4", "colour": "red"}`, http.StatusBadRequest, "INVALID_BODY"},
		{"missing path", `{}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"negative window", `{"path": "/media/clip.mp4", "window_length": -1}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"step over window", `{"path": "/media/clip.mp4", "window_length": 1, "window_step": 2}`, http.StatusBadRequest, "INVALID_OPTIONS"},
		{"too many windows", `{"path": "/media/clip.mp4", "window_step": 1e-9}`, http.StatusBadRequest, "INVALID_OPTIONS"},
		{"not found", `{"path": "/media/nope.mp4"}`, http.StatusNotFound, "NOT_FOUND"},
		{"empty", `{"path": "/media/empty.mkv"}`, http.StatusBadRequest, "EMPTY_SERIES"},
		{"no video", `{"path": "/media/audio.m4a"}`, http.StatusUnprocessableEntity, "UNSUPPORTED_MEDIA"},
		{"probe failure", `{"path": "/media/boom.mp4"}`, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, data := postAnalyze(t, ts, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode, string(data))

			var body errorResponse
			require.NoError(t, json.Unmarshal(data, &body))
			assert.Equal(t, tc.code, body.Error.Code)
			assert.NotEmpty(t, body.Error.RequestID)
		})
	}
}

func TestAnalyzeConfinedToRoot(t *testing.T) {
	ts, prober := newTestServer(t, "/srv/media")

	resp, data := postAnalyze(t, ts, `{"path": "../../clip.mp4"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	prober.mu.Lock()
	defer prober.mu.Unlock()
	assert.Equal(t, []string{"/srv/media/clip.mp4"}, prober.seen)
}

func TestAnalyzeRejectsSymlinkOutOfRoot(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.mp4")
	require.NoError(t, os.WriteFile(secret, []byte("data"), 0o644))
	require.NoError(t, os.Symlink(secret, filepath.Join(root, "link.mp4")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linkdir")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "inside.mp4"), []byte("data"), 0o644))

	prober := &mapProber{}
	srv := New(config.ServerConfig{Root: root}, runner.New(prober, analysis.DefaultOptions(), 1), analysis.DefaultOptions())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	for _, path := range []string{"link.mp4", "linkdir/secret.mp4"} {
		resp, data := postAnalyze(t, ts, `{"path": "`+path+`"}`)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, string(data))
		var body errorResponse
		require.NoError(t, json.Unmarshal(data, &body))
		assert.Equal(t, "PATH_OUTSIDE_ROOT", body.Error.Code)
	}

	// Files inside the root still reach the prober.
	resp, data := postAnalyze(t, ts, `{"path": "inside.mp4"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(data))

	prober.mu.Lock()
	defer prober.mu.Unlock()
	assert.Equal(t, []string{filepath.Join(root, "inside.mp4")}, prober.seen)
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, "")
	postAnalyze(t, ts, `{"path": "/media/clip.mp4"}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bitrate_analyses_total")
}

func TestServeShutsDownOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r := runner.New(&mapProber{}, analysis.DefaultOptions(), 1)
	srv := New(config.ServerConfig{}, r, analysis.DefaultOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, listener) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + listener.Addr().String() + "/api/v1/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
