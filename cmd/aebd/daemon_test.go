package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/timeutil"
)

const replayFixture = `# two frames from a bench capture
{"seq":1,"weather":"night","objects":[]}

{"seq":2,"objects":[{"id":1,"type":"vehicle","position":[45,0],"velocity":[0,0],"size":[1.8,4.5]}]}
{"status":"ok","temp_c":41}
`

func writeReplay(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadReplayLines(t *testing.T) {
	t.Parallel()

	lines, err := readReplayLines(writeReplay(t, replayFixture))
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], `{"seq":1`))

	_, err = readReplayLines(writeReplay(t, "\n# nothing\n"))
	assert.Error(t, err)

	_, err = readReplayLines(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestDaemon_NoFeed(t *testing.T) {
	t.Parallel()

	d, err := newDaemon(context.Background(), daemonConfig{
		DBPath: filepath.Join(t.TempDir(), "aeb.db"),
		Clock:  timeutil.NewMockClock(time.Unix(1767225600, 0)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	assert.Nil(t, d.feed)

	srv := httptest.NewServer(d.handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/sample-decision")
	require.NoError(t, err)
	var res struct {
		Action aeb.Action `json:"action"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	resp.Body.Close()
	assert.NotEmpty(t, res.Action)

	// The loopback debug routes come from the disabled serial mux.
	resp, err = http.Get(srv.URL + "/debug/serial-disabled")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDaemon_HandleFrame(t *testing.T) {
	t.Parallel()

	d, err := newDaemon(context.Background(), daemonConfig{EgoKPH: 36})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	frame, err := aeb.ParseFrame([]byte(`{"seq":9,"weather":"heavy_rain","objects":[]}`))
	require.NoError(t, err)
	require.NoError(t, d.handleFrame(frame))

	assert.Equal(t, 1, d.runner.Metrics().ScenariosRun)
	_ = d.runner.WithSystem(func(sys *pipeline.System) error {
		assert.Equal(t, aeb.WeatherHeavyRain, sys.Environment().Weather)
		assert.InDelta(t, 10.0, sys.EgoSpeed(), 1e-9)
		return nil
	})

	bad := aeb.Frame{Seq: 10, Objects: []aeb.GroundTruthObject{{ID: 1, Class: "bus"}}}
	err = d.handleFrame(bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, aeb.ErrInvalidInput)
}

func TestDaemon_ReplayFeed(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "aeb.db")
	d, err := newDaemon(ctx, daemonConfig{
		DBPath:         dbPath,
		ReplayFile:     writeReplay(t, replayFixture),
		ReplayInterval: time.Millisecond,
		FrameRate:      10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	require.NotNil(t, d.feed)

	done := make(chan struct{}, 2)
	go func() { _ = d.mux.Monitor(ctx); done <- struct{}{} }()
	go func() { _ = d.feed.Run(ctx); done <- struct{}{} }()

	require.Eventually(t, func() bool {
		st := d.feed.Stats()
		return st.Frames >= 2 && st.Status >= 1
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	<-done

	st := d.feed.Stats()
	assert.Zero(t, st.Rejected)
	assert.GreaterOrEqual(t, d.runner.Metrics().ScenariosRun, 2)

	resp := httptest.NewRecorder()
	d.handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, resp.Code)
	var metrics struct {
		Feed *struct {
			Frames uint64 `json:"frames"`
		} `json:"feed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&metrics))
	require.NotNil(t, metrics.Feed)
	assert.GreaterOrEqual(t, metrics.Feed.Frames, uint64(2))
}

func TestDaemon_BadConfig(t *testing.T) {
	t.Parallel()

	_, err := newDaemon(context.Background(), daemonConfig{ConfigPath: "safety.yaml"})
	assert.Error(t, err)

	_, err = newDaemon(context.Background(), daemonConfig{ReplayFile: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}
