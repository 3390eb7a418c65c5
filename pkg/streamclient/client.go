// Package streamclient consumes the advisor's chat streams over SSE or
// WebSocket and hands each decoded stage event to a callback.
package streamclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"advisor-core/internal/events"
	"advisor-core/pkg/model"
)

// ErrTruncated means the stream ended before done or error.
var ErrTruncated = errors.New("stream ended without a terminal event")

// Handler receives every event, the sentinel included. Returning an error stops reading.
type Handler func(events.StageEvent) error

// Client posts chat requests to an advisor.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// New returns a client for baseURL ("http://host:port").
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Chat POSTs req to path (e.g. "/ai/workflow/chat") and reads the SSE reply.
func (c *Client) Chat(ctx context.Context, path string, req model.ChatRequest, fn Handler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.Token)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("post %s: status %d: %s", path, res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return Read(res.Body, fn)
}

// ChatWS sends req as the single request frame on the /ai/ws endpoint.
func (c *Client) ChatWS(ctx context.Context, req model.ChatRequest, fn Handler) error {
	wsURL := "ws" + strings.TrimPrefix(c.BaseURL, "http") + "/ai/ws"
	header := http.Header{}
	if c.Token != "" {
		header.Set("Authorization", "Bearer "+c.Token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	var t terminal
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return t.result()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		stop, err := t.dispatch(string(msg), fn)
		if err != nil || stop {
			return err
		}
	}
}

// Read parses an SSE body. It returns nil after the sentinel, or at EOF
// following an error event.
func Read(r io.Reader, fn Handler) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		t    terminal
		data []string
	)
	flush := func() (bool, error) {
		if len(data) == 0 {
			return false, nil
		}
		item := strings.Join(data, "\n")
		data = data[:0]
		return t.dispatch(item, fn)
	}

	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if stop, err := flush(); err != nil || stop {
				return err
			}
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
		// event:, id:, retry: and comments carry nothing for this protocol.
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	if stop, err := flush(); err != nil || stop {
		return err
	}
	return t.result()
}

// terminal tracks whether the stream reached a legal end.
type terminal struct {
	failed bool
}

func (t *terminal) dispatch(item string, fn Handler) (stop bool, err error) {
	ev, err := events.Decode(item)
	if err != nil {
		return true, fmt.Errorf("decode %q: %w", item, err)
	}
	if ev.Kind == events.KindError {
		t.failed = true
	}
	if err := fn(ev); err != nil {
		return true, err
	}
	return ev.Kind == events.KindSentinel, nil
}

func (t *terminal) result() error {
	if t.failed {
		return nil
	}
	return ErrTruncated
}

// ErrorMessage extracts the message of an error event.
func ErrorMessage(ev events.StageEvent) string {
	raw, ok := ev.Data.(json.RawMessage)
	if !ok {
		return ""
	}
	var p events.ErrorPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	return p.Message
}
