package http

import (
	"context"
	"encoding/json"
	"net/http"

	ragRequest "ReqGraph/internal/modules/rag/application/dto/request"
	"ReqGraph/internal/modules/rag/application/service"
	"ReqGraph/pkg/back"
	"ReqGraph/pkg/xerr"
	"ReqGraph/pkg/zlog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CompletionHandler LLM 补全与润色 HTTP Handler
type CompletionHandler struct {
	svc service.CompletionService
}

func NewCompletionHandler(svc service.CompletionService) *CompletionHandler {
	return &CompletionHandler{svc: svc}
}

// Complete 非流式补全
//
// 路由: POST /ai/complete
// 请求体: CompletionRequest
func (h *CompletionHandler) Complete(c *gin.Context) {
	var req ragRequest.CompletionRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.Complete(c.Request.Context(), req)
	if err != nil {
		zlog.Warn("completion failed", zap.Error(err))
	}
	back.Result(c, data, err)
}

// Edit 文本润色
//
// 路由: POST /ai/edit
// 请求体: EditingRequest
func (h *CompletionHandler) Edit(c *gin.Context) {
	var req ragRequest.EditingRequest
	if err := c.BindJSON(&req); err != nil {
		zlog.Error(err.Error())
		back.Error(c, xerr.BadRequest, xerr.ErrParam.Message)
		return
	}

	data, err := h.svc.Edit(c.Request.Context(), req)
	if err != nil {
		zlog.Warn("editing failed", zap.Error(err))
	}
	back.Result(c, data, err)
}

// CompleteStream 流式补全 WebSocket 接口
//
// 路由: GET /ai/complete/ws
//
// 客户端发送:
//
//	{"action": "complete", "data": {"prompt": "...", "doc_id": "...", "use_rag": true}}
//
// 服务端响应:
//
//	{"Event": "delta", "Data": {"token": "..."}}
//	{"Event": "done",  "Data": {...CompletionRespond}}
//	{"Event": "error", "Data": {"error": "..."}}
func (h *CompletionHandler) CompleteStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zlog.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	zlog.Info("completion websocket connected", zap.String("remote_addr", c.Request.RemoteAddr))

	for {
		var wsMsg struct {
			Action string                       `json:"action"`
			Data   ragRequest.CompletionRequest `json:"data"`
		}
		if err := conn.ReadJSON(&wsMsg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zlog.Warn("completion websocket read error", zap.Error(err))
			}
			return
		}

		if wsMsg.Action != "complete" {
			_ = conn.WriteJSON(map[string]string{
				"event": "error",
				"error": "unsupported action: " + wsMsg.Action,
			})
			continue
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		eventChan, err := h.svc.CompleteStream(ctx, wsMsg.Data)
		if err != nil {
			cancel()
			_ = conn.WriteJSON(map[string]string{
				"event": "error",
				"error": err.Error(),
			})
			continue
		}

		for event := range eventChan {
			eventJSON, _ := json.Marshal(event)
			if err := conn.WriteMessage(websocket.TextMessage, eventJSON); err != nil {
				// 客户端断开，取消底层流
				zlog.Warn("completion websocket write failed", zap.Error(err))
				cancel()
				for range eventChan {
				}
				return
			}
		}
		cancel()
	}
}
