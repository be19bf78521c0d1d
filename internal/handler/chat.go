package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"pyx-backend/internal/conversation"
	"pyx-backend/internal/model"
	"pyx-backend/internal/service"
	"pyx-backend/internal/utils"
	"pyx-backend/pkg/logger"
)

var heartbeatInterval = 30 * time.Second

type ChatHandler struct {
	manager       *service.Manager
	streamTimeout time.Duration
}

func NewChatHandler(manager *service.Manager, streamTimeout time.Duration) *ChatHandler {
	if streamTimeout <= 0 {
		streamTimeout = 2 * time.Minute
	}
	return &ChatHandler{
		manager:       manager,
		streamTimeout: streamTimeout,
	}
}

// assistant resolves the :visitor_id path parameter. It writes the error
// response itself and returns nil on failure.
func (h *ChatHandler) assistant(c *gin.Context) *service.Assistant {
	a, err := h.manager.Get(c.Request.Context(), c.Param("visitor_id"))
	if err != nil {
		writeError(c, err)
		return nil
	}
	return a
}

// writeError maps service errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, conversation.ErrInvalidRating):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrBusy):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *ChatHandler) GetState(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	c.JSON(http.StatusOK, a.State())
}

func (h *ChatHandler) Open(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	var req model.OpenChatRequest
	// 允许空的请求体，沿用当前页面
	_ = c.ShouldBindJSON(&req)
	c.JSON(http.StatusOK, a.Open(c.Request.Context(), req.Path))
}

func (h *ChatHandler) Close(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	state, err := a.Close(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *ChatHandler) Navigate(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	var req model.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, a.Navigate(c.Request.Context(), req.Path))
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := a.Send(c.Request.Context(), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// StreamMessage answers over server-sent events: status events for each
// stage, then the reply as a message event.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sseWriter := utils.NewSSEWriter(c.Writer)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.streamTimeout)
	defer cancel()

	// 心跳，防止连接因空闲被代理断开
	stopHeartbeat := startHeartbeat(sseWriter, heartbeatInterval)
	defer stopHeartbeat()

	resp, err := a.SendWithProgress(ctx, req.Content, func(ev service.ProgressEvent) {
		if err := sseWriter.WriteJSON("status", ev); err != nil {
			logger.Warnf("Failed to write SSE status: %v", err)
		}
	})
	stopHeartbeat()
	if err != nil {
		sseWriter.WriteJSON("error", gin.H{
			"error":     err.Error(),
			"timestamp": time.Now().Unix(),
		})
		sseWriter.Close()
		return
	}

	if err := sseWriter.WriteJSON("message", resp); err != nil {
		logger.Errorf("Failed to write SSE: %v", err)
		return
	}
	sseWriter.WriteJSON("done", gin.H{"timestamp": time.Now().Unix()})
	sseWriter.Close()
}

func (h *ChatHandler) Clear(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	archived, err := a.ClearChat(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"archived": archived,
		"state":    a.State(),
	})
}

func (h *ChatHandler) Save(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	saved, err := a.SaveConversation(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if saved == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Nothing to save"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *ChatHandler) Stats(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	c.JSON(http.StatusOK, a.Stats())
}

func (h *ChatHandler) Rate(c *gin.Context) {
	a := h.assistant(c)
	if a == nil {
		return
	}
	var req model.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := a.RateSession(req.Score); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, a.Stats())
}

// startHeartbeat writes heartbeat events every interval until the returned
// function is called. The function waits for the writer goroutine to exit
// and may be called more than once.
func startHeartbeat(w *utils.SSEWriter, interval time.Duration) func() {
	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				if err := w.WriteJSON("heartbeat", gin.H{"timestamp": time.Now().Unix()}); err != nil {
					logger.Warnf("Heartbeat write failed: %v", err)
					return
				}
			case <-stop:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(stop)
			<-done
		})
	}
}
