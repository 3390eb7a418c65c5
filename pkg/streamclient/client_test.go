package streamclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"advisor-core/internal/events"
	"advisor-core/pkg/model"
)

const successBody = "data:{\"type\":\"extract\",\"data\":{}}\n\n" +
	"data:{\"type\":\"news\",\"data\":[]}\n\n" +
	"data:{\"type\":\"market\",\"data\":[]}\n\n" +
	"data:{\"type\":\"final\",\"data\":\"Hold.\"}\n\n" +
	"data:{\"type\":\"done\"}\n\n" +
	"data:[DONE]\n\n"

func kindsOf(t *testing.T, body string) ([]events.Kind, error) {
	t.Helper()
	var got []events.Kind
	err := Read(strings.NewReader(body), func(ev events.StageEvent) error {
		got = append(got, ev.Kind)
		return nil
	})
	return got, err
}

func TestReadStopsAtSentinel(t *testing.T) {
	got, err := kindsOf(t, successBody+"data:{\"type\":\"extract\"}\n\n")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []events.Kind{events.KindExtract, events.KindNews, events.KindMarket, events.KindFinal, events.KindDone, events.KindSentinel}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestReadErrorStream(t *testing.T) {
	var msg string
	err := Read(strings.NewReader("data:{\"type\":\"extract\",\"data\":{}}\n\ndata: {\"type\":\"error\",\"data\":{\"message\":\"advisor offline\"}}\n\n"), func(ev events.StageEvent) error {
		if ev.Kind == events.KindError {
			msg = ErrorMessage(ev)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("error streams end cleanly, got %v", err)
	}
	if msg != "advisor offline" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestReadTruncated(t *testing.T) {
	if _, err := kindsOf(t, "data:{\"type\":\"extract\",\"data\":{}}\n\n"); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := kindsOf(t, "data:not json\n\n"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestHandlerErrorStops(t *testing.T) {
	stop := errors.New("enough")
	calls := 0
	err := Read(strings.NewReader(successBody), func(events.StageEvent) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Fatalf("expected handler error after one call, got %v (%d calls)", err, calls)
	}
}

func TestChatOverSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai/workflow/chat" || r.Header.Get("Authorization") != "Bearer tkn" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(successBody))
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	c.Token = "tkn"
	var final string
	err := c.Chat(context.Background(), "/ai/workflow/chat", model.ChatRequest{Message: "BTC?"}, func(ev events.StageEvent) error {
		if ev.Kind == events.KindFinal {
			final = string(ev.Data.(json.RawMessage))
		}
		return nil
	})
	if err != nil || final != `"Hold."` {
		t.Fatalf("Chat: %q %v", final, err)
	}

	c.Token = ""
	if err := c.Chat(context.Background(), "/ai/workflow/chat", model.ChatRequest{}, func(events.StageEvent) error { return nil }); err == nil {
		t.Fatalf("expected status error")
	}
}

func TestChatOverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		var req model.ChatRequest
		conn.ReadJSON(&req)
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","data":{"message":"`+req.UserText()+`"}}`))
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	}))
	defer srv.Close()

	var msg string
	err := New(srv.URL, time.Second).ChatWS(context.Background(), model.ChatRequest{Content: "echo"}, func(ev events.StageEvent) error {
		msg = ErrorMessage(ev)
		return nil
	})
	if err != nil || msg != "echo" {
		t.Fatalf("ChatWS: %q %v", msg, err)
	}
}
