package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/namnv2496/go-exec-broker/internal/executor/socket"
	"github.com/namnv2496/go-exec-broker/internal/model"
)

// streamHandler runs one request over a websocket, pushing each test case
// result as soon as it is judged.
func (s *Server) streamHandler(ctx *gin.Context) {
	session, err := socket.Upgrade(ctx.Writer, ctx.Request)
	if err != nil {
		s.logger.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	defer session.Close()

	log := s.logger.With(zap.String("request_id", ctx.GetString(requestIDKey)))

	req, err := session.ReadRequest()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return
		}
		_ = session.SendError("Server error: " + err.Error())
		return
	}

	lang, msg := s.validate(req)
	if msg != "" {
		_ = session.SendError(msg)
		return
	}

	var writeErr error
	resp := s.dispatch(ctx.Request.Context(), req, lang, func(i int, result model.TestResult) {
		if writeErr != nil {
			return
		}
		if writeErr = session.SendProgress(i, result); writeErr != nil {
			log.Warn("stream write failed", zap.Error(writeErr))
		}
	})
	s.publish(ctx.Request.Context(), ctx.GetString(requestIDKey), lang, resp)

	if writeErr == nil {
		if err := session.SendFinal(resp); err != nil {
			log.Warn("stream write failed", zap.Error(err))
		}
	}
}
