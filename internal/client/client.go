// Package client talks to a running readaloud server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/internal/playback"
	"github.com/gorilla/websocket"
)

// ErrServer is wrapped by errors reported in a server reply.
var ErrServer = errors.New("server error")

// Reply is the body of document load replies.
type Reply struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Title   string `json:"title"`
	Type    string `json:"type"`
}

// Client calls the player routes of one server.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the server at addr, which may omit the scheme.
func New(addr string, httpClient *http.Client) (*Client, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid server address: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server address: unsupported scheme %q", u.Scheme)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{base: u, http: httpClient}, nil
}

// State returns the current player state.
func (c *Client) State(ctx context.Context) (playback.StateResponse, error) {
	return c.command(ctx, http.MethodGet, "/player_state", nil)
}

// Toggle plays or pauses.
func (c *Client) Toggle(ctx context.Context) (playback.StateResponse, error) {
	return c.command(ctx, http.MethodPost, "/toggle_playback", nil)
}

// Play starts playback.
func (c *Client) Play(ctx context.Context) (playback.StateResponse, error) {
	return c.command(ctx, http.MethodPost, "/play", nil)
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) (playback.StateResponse, error) {
	return c.command(ctx, http.MethodPost, "/pause", nil)
}

// Stop stops playback and rewinds.
func (c *Client) Stop(ctx context.Context) (playback.StateResponse, error) {
	return c.command(ctx, http.MethodPost, "/stop_playback", nil)
}

// SeekSeconds jumps to an absolute position.
func (c *Client) SeekSeconds(ctx context.Context, seconds float64) (playback.StateResponse, error) {
	return c.command(ctx, http.MethodPost, "/seek", map[string]float64{"seconds": seconds})
}

// SeekPercent jumps to a fraction of the duration.
func (c *Client) SeekPercent(ctx context.Context, percent float64) (playback.StateResponse, error) {
	return c.command(ctx, http.MethodPost, "/seek", map[string]float64{"percent": percent})
}

// SetSpeed changes the speed. With wait set it returns once the audio has
// been re-rendered.
func (c *Client) SetSpeed(ctx context.Context, speed float64, wait bool) (playback.StateResponse, error) {
	return c.command(ctx, http.MethodPost, "/set_speed"+waitQuery(wait), map[string]float64{"speed": speed})
}

// LoadURL has the server fetch and read a web page or document.
func (c *Client) LoadURL(ctx context.Context, rawURL string, wait bool) (Reply, error) {
	return c.load(ctx, "/url"+waitQuery(wait), "application/json", jsonBody(map[string]string{"url": rawURL}))
}

// LoadText sends text to be read.
func (c *Client) LoadText(ctx context.Context, text, title string, wait bool) (Reply, error) {
	return c.load(ctx, "/text"+waitQuery(wait), "application/json",
		jsonBody(map[string]string{"text": text, "title": title}))
}

// Upload sends a PDF or EPUB file.
func (c *Client) Upload(ctx context.Context, path string, wait bool) (Reply, error) {
	var route string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		route = "/pdf"
	case ".epub":
		route = "/epub"
	default:
		return Reply{}, fmt.Errorf("only .pdf and .epub files can be uploaded: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return Reply{}, fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Reply{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Reply{}, fmt.Errorf("unable to read file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Reply{}, err
	}
	return c.load(ctx, route+waitQuery(wait), mw.FormDataContentType(), &body)
}

// ExportMP3 writes the current audio as MP3 to w.
func (c *Client) ExportMP3(ctx context.Context, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/export_mp3", "", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return 0, replyError(resp)
	}
	return io.Copy(w, resp.Body)
}

// Watch calls fn with every state the server streams until ctx is done or
// the connection drops.
func (c *Client) Watch(ctx context.Context, fn func(playback.StateResponse)) error {
	u := *c.base
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("unable to connect to %s: %w", u.String(), err)
	}
	defer conn.Close() //nolint:errcheck

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var state playback.StateResponse
		if err := conn.ReadJSON(&state); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading state: %w", err)
		}
		fn(state)
	}
}

func (c *Client) command(ctx context.Context, method, path string, body any) (playback.StateResponse, error) {
	var r io.Reader
	contentType := ""
	if body != nil {
		r = jsonBody(body)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, contentType, r)
	if err != nil {
		return playback.StateResponse{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return playback.StateResponse{}, fmt.Errorf("reading reply: %w", err)
	}
	var state playback.StateResponse
	if err := json.Unmarshal(data, &state); err != nil || state.State == "" {
		return state, decodeError(resp.StatusCode, data)
	}
	if resp.StatusCode >= 300 {
		msg := state.Error
		if msg == "" {
			msg = resp.Status
		}
		return state, fmt.Errorf("%w: %s", ErrServer, msg)
	}
	return state, nil
}

func (c *Client) load(ctx context.Context, path, contentType string, body io.Reader) (Reply, error) {
	resp, err := c.do(ctx, http.MethodPost, path, contentType, body)
	if err != nil {
		return Reply{}, err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("reading reply: %w", err)
	}
	if resp.StatusCode >= 300 {
		return Reply{}, decodeError(resp.StatusCode, data)
	}
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Reply{}, fmt.Errorf("decoding reply: %w", err)
	}
	return reply, nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	u := *c.base
	ref, err := url.Parse(path)
	if err != nil {
		return nil, err
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + ref.Path
	u.RawQuery = ref.RawQuery

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach server: %w", err)
	}
	return resp, nil
}

func replyError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return decodeError(resp.StatusCode, data)
}

func decodeError(status int, data []byte) error {
	var reply struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(data, &reply)
	msg := reply.Message
	if msg == "" {
		msg = reply.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%w (%d): %s", ErrServer, status, msg)
}

func jsonBody(v any) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func waitQuery(wait bool) string {
	if wait {
		return "?wait=1"
	}
	return ""
}
