package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/internal/daemon/store"
	"github.com/metaoverlayfs/panel/pkg/daemon"
	"github.com/metaoverlayfs/panel/pkg/module"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/view"
	"github.com/metaoverlayfs/panel/state"
	"github.com/metaoverlayfs/panel/testutil"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

type fixture struct {
	dev   *testutil.FakeDevice
	panel *panel.Panel
	store *store.Store
	srv   *Server
	http  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dev := testutil.NewFakeDevice(testutil.DefaultPaths())
	dev.AddModule("foo", testutil.FakeModule{Name: "Foo", SizeKB: 16})
	dev.AddModule("bar", testutil.FakeModule{Disabled: true})
	dev.AddModule("xposed", testutil.FakeModule{Name: "LSPosed", Update: true})

	p, err := panel.New(dev, panel.Options{
		Paths:  testutil.DefaultPaths(),
		Prefs:  state.NewFile(filepath.Join(t.TempDir(), "state.yml")),
		Logger: quietLogger(),
	})
	require.NoError(t, err)
	require.NoError(t, p.Refresh(context.Background(), refresh.Modules))

	st := store.New(p.Snapshot())
	srv := New(p, st, quietLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ts.Close()
	})
	return &fixture{dev: dev, panel: p, store: st, srv: srv, http: ts}
}

func (f *fixture) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.http.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestModules(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/modules", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[view.View](t, resp)
	assert.Equal(t, view.FilterAll, v.Filter)
	assert.Len(t, v.Items, 3)

	resp = f.do(t, http.MethodGet, "/api/modules?filter=inactive", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v = decode[view.View](t, resp)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "bar", v.Items[0].ID)

	resp = f.do(t, http.MethodGet, "/api/modules?q=lspos", "")
	v = decode[view.View](t, resp)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "xposed", v.Items[0].ID)
}

func TestModulesBadFilter(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/modules?filter=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode[daemon.ErrorBody](t, resp)
	require.NotNil(t, body.Error)
	assert.Equal(t, errors.ErrCodeInvalidInput, body.Error.Code)
}

func TestModuleAction(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/modules/bar/enable", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	m := decode[module.Module](t, resp)
	assert.Equal(t, "bar", m.ID)
	assert.True(t, m.Enabled)
	fm, _ := f.dev.Module("bar")
	assert.False(t, fm.Disabled)
}

func TestModuleActionErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		path   string
		status int
		code   errors.ErrorCode
	}{
		{"unknown action", "/api/modules/foo/explode", http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"missing module", "/api/modules/nope/enable", http.StatusNotFound, errors.ErrCodeModuleNotFound},
		{"update pending", "/api/modules/xposed/disable", http.StatusConflict, errors.ErrCodeUpdatePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, http.MethodPost, tt.path, "")
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[daemon.ErrorBody](t, resp)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestLive(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/live/foo/enable", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"foo"}, decode[[]string](t, resp))
	assert.Equal(t, "foo\n", f.dev.File(testutil.DefaultPaths().LiveFile))

	resp = f.do(t, http.MethodGet, "/api/live", "")
	assert.Equal(t, []string{"foo"}, decode[[]string](t, resp))

	resp = f.do(t, http.MethodPost, "/api/live/foo/apply", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[daemon.ApplyResult](t, resp)
	assert.Equal(t, "foo", res.Module)
	assert.Equal(t, []string{"foo"}, f.dev.Applied())

	resp = f.do(t, http.MethodPost, "/api/live/bar/apply", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.panel.Refresh(context.Background(), refresh.Dashboard))

	resp := f.do(t, http.MethodGet, "/api/dashboard", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[panel.Dashboard](t, resp)
	assert.Equal(t, 3, d.Stats.Total)
	assert.Equal(t, 1, d.Stats.Updating)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	before := f.panel.Snapshot().Generation

	resp := f.do(t, http.MethodPost, "/api/refresh?surface=modules", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[daemon.RefreshResult](t, resp)
	assert.Equal(t, refresh.Modules, res.Surface)
	assert.Greater(t, res.Generation, before)

	resp = f.do(t, http.MethodPost, "/api/refresh?surface=settings", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSurface(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/surface", `{"surface":"modules"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, refresh.Modules, f.panel.Surface())

	resp = f.do(t, http.MethodGet, "/api/surface", "")
	assert.Equal(t, refresh.Modules, decode[daemon.SurfaceBody](t, resp).Surface)

	resp = f.do(t, http.MethodPost, "/api/surface", `{"surface":"nowhere"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/surface", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPrefs(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/prefs", `{"filter":"live"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	prefs := decode[state.Prefs](t, resp)
	assert.Equal(t, "live", prefs.Filter)
	assert.Equal(t, state.Defaults().AutoRefresh, prefs.AutoRefresh)

	resp = f.do(t, http.MethodGet, "/api/modules", "")
	assert.Equal(t, view.FilterLive, decode[view.View](t, resp).Filter)

	resp = f.do(t, http.MethodPost, "/api/prefs", `{"filter":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "live", f.panel.Prefs().Filter)
}

func TestLogs(t *testing.T) {
	f := newFixture(t)
	logFile := testutil.DefaultPaths().LogFile
	f.dev.SetFile(logFile, "line one\nline two\n")

	resp := f.do(t, http.MethodGet, "/api/logs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[daemon.LogBody](t, resp)
	assert.Equal(t, logFile, body.Path)
	assert.Contains(t, body.Log, "line two")

	resp = f.do(t, http.MethodDelete, "/api/logs", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "", f.dev.File(logFile))
}

func TestConfig(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/config", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	f.srv.SetRunningConfig(&daemon.RunningConfig{ConfigFile: "/etc/metaoverlay.yml", Collectors: []string{"panel-events"}})
	resp = f.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rc := decode[daemon.RunningConfig](t, resp)
	assert.Equal(t, "/etc/metaoverlay.yml", rc.ConfigFile)
}

func readData(t *testing.T, r *bufio.Reader) daemon.StreamMessage {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
			var msg daemon.StreamMessage
			require.NoError(t, json.Unmarshal([]byte(data), &msg))
			return msg
		}
	}
}

func TestStream(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.http.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	initial := readData(t, r)
	assert.Equal(t, daemon.MessageInitial, initial.Type)
	require.NotNil(t, initial.Snapshot)
	assert.Len(t, initial.Snapshot.Inventory, 3)

	// The subscription is registered before the initial frame is written.
	f.store.ApplyUpdate(store.Update{Type: store.UpdateTick, Source: "refresh-modules", Detail: "ran"})
	msg := readData(t, r)
	assert.Equal(t, daemon.MessageTick, msg.Type)
	assert.Equal(t, "refresh-modules", msg.Source)
	assert.Equal(t, "ran", msg.Detail)
}

func TestWebsocket(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initial daemon.StreamMessage
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, daemon.MessageInitial, initial.Type)

	require.NoError(t, conn.WriteJSON(daemon.SurfaceBody{Surface: refresh.Modules}))
	assert.Eventually(t, func() bool {
		return f.panel.Surface() == refresh.Modules
	}, 2*time.Second, 10*time.Millisecond)

	snap := f.panel.Snapshot()
	f.store.ApplyUpdate(store.Update{Type: store.UpdateSnapshot, Event: &panel.Event{Kind: panel.EventModules, Snapshot: snap}})
	var msg daemon.StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, daemon.MessageSnapshot, msg.Type)
	assert.Equal(t, panel.EventModules, msg.Kind)
}

func TestShutdownEndsStreams(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.http.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.NoError(t, f.srv.Shutdown(context.Background()))
	done := make(chan struct{})
	go func() {
		io.Copy(io.Discard, resp.Body)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after shutdown")
	}
}
