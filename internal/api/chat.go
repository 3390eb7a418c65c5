package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"advisor-core/internal/events"
	"advisor-core/internal/history"
	"advisor-core/internal/workflow"
)

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// chat streams one run for the caller's chat id as it was sent.
func (s *Server) chat(c *gin.Context) {
	s.serveSSE(c, false)
}

// workflowChat is chat, with a generated chat id when the caller sent none.
func (s *Server) workflowChat(c *gin.Context) {
	s.serveSSE(c, true)
}

func (s *Server) serveSSE(c *gin.Context, assignID bool) {
	var req workflow.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if assignID {
		s.assignChatID(&req)
	}

	ctx := c.Request.Context()
	stream := s.startRun(ctx, req)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-stream.Events()
		if !ok {
			return false
		}
		item, last := s.encode(ctx, req.ChatID, ev)
		c.Render(-1, sse.Event{Data: item})
		if last {
			return false
		}
		return true
	})
}

func (s *Server) assignChatID(req *workflow.Request) {
	if strings.TrimSpace(req.ChatID) == "" {
		req.ChatID = fmt.Sprintf("chat-%d", s.now().UnixMilli())
	}
}

// startRun records the user's turn and starts the pipeline.
func (s *Server) startRun(ctx context.Context, req workflow.Request) *events.Stream {
	if strings.TrimSpace(req.ChatID) != "" {
		var err error
		if text := req.UserText(); strings.TrimSpace(text) != "" {
			err = s.History.Append(ctx, req.ChatID, history.RoleUser, text)
		} else {
			err = s.History.Save(ctx, req.ChatID)
		}
		if err != nil {
			s.Logger.Warn("[API] history write failed", zap.String("chat_id", req.ChatID), zap.Error(err))
		}
	}
	return s.Workflow.Process(ctx, req)
}

// encode renders ev as a wire item and stores the final advice. An event that
// cannot be encoded is replaced by an error item and last is true: the stream
// must end there rather than skip a stage.
func (s *Server) encode(ctx context.Context, chatID string, ev events.StageEvent) (item string, last bool) {
	item, err := ev.Encode()
	if err != nil {
		s.Logger.Error("[API] encode stage event", zap.String("chat_id", chatID), zap.String("kind", string(ev.Kind)), zap.Error(err))
		item, _ = events.ErrorEvent(fmt.Errorf("encode %s stage: %w", ev.Kind, err)).Encode()
		return item, true
	}
	if ev.Kind == events.KindFinal && strings.TrimSpace(chatID) != "" {
		if advice, ok := ev.Data.(string); ok {
			// The advice is kept even if the client has already gone.
			if err := s.History.Append(context.WithoutCancel(ctx), chatID, history.RoleAssistant, advice); err != nil {
				s.Logger.Warn("[API] history write failed", zap.String("chat_id", chatID), zap.Error(err))
			}
		}
	}
	return item, ev.Kind == events.KindError || ev.Kind == events.KindSentinel
}
