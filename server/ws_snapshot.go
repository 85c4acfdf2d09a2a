package server

import (
	"context"
	"encoding/json"
	"net/http"

	"Cutline/core/engine"
	"Cutline/logger"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocketHandler 建立推送连接：先发当前快照，之后收到所有快照和预览事件，
// 也可以通过 command 消息提交编辑
func (h *APIHandler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := NewClient(h.hub, conn)
	h.hub.Register(client)

	if msg, err := NewMessage(MsgTypeSnapshot, h.engine.Snapshot()); err == nil {
		client.SendMessage(msg)
	}

	go client.WritePump()
	client.ReadPump(context.Background(), h.handleMessage)
}

func (h *APIHandler) handleMessage(ctx context.Context, msg *WSMessage) *WSMessage {
	if msg.Type != MsgTypeCommand {
		logger.Debug("ignoring websocket message", logger.String("type", string(msg.Type)))
		return nil
	}
	var cmd CommandData
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		reply, _ := NewMessage(MsgTypeError, ResultData{Error: "invalid command: " + err.Error(), Kind: "badRequest"})
		return reply
	}

	res := ResultData{ID: cmd.ID, Op: cmd.Op}
	result, err := Execute(ctx, h.engine, cmd.Op, cmd.Args)
	msgType := MsgTypeResult
	if err != nil {
		msgType = MsgTypeError
		res.Error = err.Error()
		res.Kind = errorKind(err)
	} else {
		res.Result = result
	}
	reply, err := NewMessage(msgType, res)
	if err != nil {
		logger.Error("failed to encode command result", logger.String("op", cmd.Op), logger.ErrorField(err))
		return nil
	}
	return reply
}

// Forward 把引擎的快照和预览事件转发给 Hub，直到 ctx 结束
func Forward(ctx context.Context, e *engine.Engine, hub *Hub) {
	snaps, cancelSnaps := e.Subscribe()
	defer cancelSnaps()
	previews, cancelPreviews := e.SubscribePreviews(64)
	defer cancelPreviews()

	for {
		var (
			msg *WSMessage
			err error
		)
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			msg, err = NewMessage(MsgTypeSnapshot, snap)
		case asset, ok := <-previews:
			if !ok {
				return
			}
			msg, err = NewMessage(MsgTypePreview, asset)
		}
		if err != nil {
			logger.Error("failed to encode broadcast", logger.ErrorField(err))
			continue
		}
		if err := hub.Broadcast(msg); err != nil {
			logger.Warn("broadcast failed", logger.ErrorField(err))
		}
	}
}
