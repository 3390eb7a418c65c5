package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"advisor-core/internal/history"
)

// resultVO is the envelope the chat front end expects on history routes.
type resultVO struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

func success(data any) resultVO {
	return resultVO{Code: http.StatusOK, Msg: "success", Data: data}
}

type chatIDsResp struct {
	ChatIDs []string `json:"chatIds"`
}

type contextResp struct {
	ChatID   string            `json:"chatId"`
	Messages []history.Message `json:"messages"`
}

func (s *Server) getChatIDs(c *gin.Context) {
	ids, err := s.History.ChatIDs(c.Request.Context())
	if err != nil {
		s.Logger.Error("[API] list chats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, resultVO{Code: http.StatusInternalServerError, Msg: err.Error()})
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, success(chatIDsResp{ChatIDs: ids}))
}

// getChatHistory answers an unknown chat with an empty message list.
func (s *Server) getChatHistory(c *gin.Context) {
	chatID := c.Param("chatId")
	msgs, err := s.History.Messages(c.Request.Context(), chatID)
	if err != nil && !history.IsNotFound(err) {
		s.Logger.Error("[API] read chat", zap.String("chat_id", chatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, resultVO{Code: http.StatusInternalServerError, Msg: err.Error()})
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	c.JSON(http.StatusOK, success(contextResp{ChatID: chatID, Messages: msgs}))
}
