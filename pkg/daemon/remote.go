package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/metaoverlayfs/panel/errors"
	"github.com/metaoverlayfs/panel/pkg/liveset"
	"github.com/metaoverlayfs/panel/pkg/module"
	"github.com/metaoverlayfs/panel/pkg/panel"
	"github.com/metaoverlayfs/panel/pkg/refresh"
	"github.com/metaoverlayfs/panel/pkg/view"
	"github.com/metaoverlayfs/panel/state"
)

// RemoteClient implements Client by calling the daemon's HTTP API over a
// unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a RemoteClient for the daemon socket.
func NewRemoteClient(socketPath string) *RemoteClient {
	return &RemoteClient{
		httpClient: &http.Client{
			Transport: unixTransport(socketPath),
			// Toggles wait for the reload that follows them.
			Timeout: 60 * time.Second,
		},
		socketPath: socketPath,
	}
}

func unixTransport(socketPath string) *http.Transport {
	return &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
}

// baseURL is the dummy host used for unix socket requests.
const baseURL = "http://unix"

// do issues one request. A non-2xx reply is returned as the daemon's
// *errors.PanelError.
func (c *RemoteClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDaemonUnavailable, "failed to reach daemon").
			WithDetail("address", c.socketPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var eb ErrorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil && eb.Error != nil {
			return eb.Error
		}
		return errors.New(errors.ErrCodeInternal, fmt.Sprintf("daemon returned status %d", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func action(enable bool) string {
	if enable {
		return "enable"
	}
	return "disable"
}

// Modules implements Client.
func (c *RemoteClient) Modules(ctx context.Context, filter, search string) (view.View, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if search != "" {
		q.Set("q", search)
	}
	path := "/api/modules"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var v view.View
	err := c.do(ctx, http.MethodGet, path, nil, &v)
	return v, err
}

// Dashboard implements Client.
func (c *RemoteClient) Dashboard(ctx context.Context) (panel.Dashboard, error) {
	var d panel.Dashboard
	err := c.do(ctx, http.MethodGet, "/api/dashboard", nil, &d)
	return d, err
}

// ToggleModule implements Client.
func (c *RemoteClient) ToggleModule(ctx context.Context, id string, enable bool) (module.Module, error) {
	var m module.Module
	err := c.do(ctx, http.MethodPost, "/api/modules/"+url.PathEscape(id)+"/"+action(enable), nil, &m)
	return m, err
}

// Live implements Client.
func (c *RemoteClient) Live(ctx context.Context) (liveset.Set, error) {
	var s liveset.Set
	err := c.do(ctx, http.MethodGet, "/api/live", nil, &s)
	return s, err
}

// ToggleLive implements Client.
func (c *RemoteClient) ToggleLive(ctx context.Context, id string, enable bool) (liveset.Set, error) {
	var s liveset.Set
	err := c.do(ctx, http.MethodPost, "/api/live/"+url.PathEscape(id)+"/"+action(enable), nil, &s)
	return s, err
}

// LiveApply implements Client.
func (c *RemoteClient) LiveApply(ctx context.Context, id string) (ApplyResult, error) {
	var res ApplyResult
	err := c.do(ctx, http.MethodPost, "/api/live/"+url.PathEscape(id)+"/apply", nil, &res)
	return res, err
}

// Refresh implements Client.
func (c *RemoteClient) Refresh(ctx context.Context, surface refresh.Surface) (RefreshResult, error) {
	path := "/api/refresh"
	if surface != "" {
		path += "?surface=" + url.QueryEscape(string(surface))
	}
	var res RefreshResult
	err := c.do(ctx, http.MethodPost, path, nil, &res)
	return res, err
}

// Prefs implements Client.
func (c *RemoteClient) Prefs(ctx context.Context) (state.Prefs, error) {
	var p state.Prefs
	err := c.do(ctx, http.MethodGet, "/api/prefs", nil, &p)
	return p, err
}

// SetPrefs implements Client.
func (c *RemoteClient) SetPrefs(ctx context.Context, patch PrefsPatch) (state.Prefs, error) {
	var p state.Prefs
	err := c.do(ctx, http.MethodPost, "/api/prefs", patch, &p)
	return p, err
}

// ReadLog implements Client.
func (c *RemoteClient) ReadLog(ctx context.Context) (LogBody, error) {
	var body LogBody
	err := c.do(ctx, http.MethodGet, "/api/logs", nil, &body)
	return body, err
}

// ClearLog implements Client.
func (c *RemoteClient) ClearLog(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/logs", nil, nil)
}

// Config returns the configuration the daemon runs with.
func (c *RemoteClient) Config(ctx context.Context) (*RunningConfig, error) {
	var rc RunningConfig
	if err := c.do(ctx, http.MethodGet, "/api/config", nil, &rc); err != nil {
		return nil, err
	}
	return &rc, nil
}

// IsRunning returns true if the daemon is available and responding.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Stream subscribes to the daemon's Server-Sent Events.
func (c *RemoteClient) Stream(ctx context.Context) (<-chan StreamMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// A separate client without timeout for streaming.
	streamTransport := unixTransport(c.socketPath)
	streamClient := &http.Client{Transport: streamTransport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDaemonUnavailable, "failed to connect to stream").
			WithDetail("address", c.socketPath)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	ch := make(chan StreamMessage, 10)

	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer streamTransport.CloseIdleConnections()

		scanner := bufio.NewScanner(resp.Body)
		// Snapshots carry the full inventory.
		scanner.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, ":") || line == "" {
				continue
			}
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}
			var msg StreamMessage
			if err := json.Unmarshal([]byte(data), &msg); err != nil {
				continue
			}
			select {
			case ch <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

var _ Client = (*RemoteClient)(nil)
