package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"advisor-core/internal/workflow"
)

const (
	wsRequestTimeout = 30 * time.Second
	wsWriteTimeout   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// websocket reads one request frame, writes every stream item as a text
// message and closes normally.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Warn("[WS] upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(wsRequestTimeout))
	var req workflow.Request
	if err := conn.ReadJSON(&req); err != nil {
		s.Logger.Warn("[WS] bad request frame", zap.Error(err))
		closeWith(conn, websocket.CloseUnsupportedData, "invalid request")
		return
	}
	conn.SetReadDeadline(time.Time{})
	s.assignChatID(&req)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		// Any read error means the peer is gone.
		for {
			if _, _, err := conn.NextReader(); err != nil {
				cancel()
				return
			}
		}
	}()

	stream := s.startRun(ctx, req)
	for ev := range stream.Events() {
		item, last := s.encode(ctx, req.ChatID, ev)
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(item)); err != nil {
			s.Logger.Warn("[WS] write failed", zap.String("chat_id", req.ChatID), zap.Error(err))
			return
		}
		if last {
			break
		}
	}
	closeWith(conn, websocket.CloseNormalClosure, "")
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
}
