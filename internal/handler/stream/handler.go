package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/parent-coach/backend/internal/audio"
	modelchat "github.com/zhouzirui/parent-coach/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/parent-coach/backend/internal/service/chat"
	speechsvc "github.com/zhouzirui/parent-coach/backend/internal/service/speech"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	Available() bool
	Speak(ctx context.Context, text string, done func(error)) (*speechsvc.Result, error)
}

// Handler WebSocket对话处理器
type Handler struct {
	chatSvc   *chatservice.Service
	speechSvc SpeechService
	upgrader  websocket.Upgrader
}

// New 创建WebSocket处理器。speechSvc 可以为 nil；checkOrigin 为 nil 时只接受同源页面。
func New(chatSvc *chatservice.Service, speechSvc SpeechService, checkOrigin func(*http.Request) bool) *Handler {
	return &Handler{
		chatSvc:   chatSvc,
		speechSvc: speechSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// SelectMessage 切换孩子档案
type SelectMessage struct {
	ProfileID string `json:"profileId"`
}

// TextMessage 家长发送的文字
type TextMessage struct {
	Text string `json:"text"`
}

// SpeakMessage 朗读请求
type SpeakMessage struct {
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection 串行化同一连接上的写操作。
type connection struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connection) send(msgType string, data interface{}) {
	msg := outgoingMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (c *connection) sendError(message string) {
	c.send("error", map[string]string{"message": message})
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.chatSvc == nil {
		http.Error(w, "chat service unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	conn := &connection{conn: ws}
	log.Printf("[websocket] new connection from %s", r.RemoteAddr)

	var inflight sync.WaitGroup
	defer inflight.Wait()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go pingLoop(ctx, ws)

	conn.send("state", h.chatSvc.Snapshot())

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		ws.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, conn, &inflight, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *connection, inflight *sync.WaitGroup, msg *inboundMessage) {
	switch msg.Type {
	case "select":
		h.handleSelect(ctx, conn, msg.Data)
	case "message":
		var text TextMessage
		if err := json.Unmarshal(msg.Data, &text); err != nil {
			conn.sendError("invalid message payload")
			return
		}
		// 回复在后台等待，期间仍可切换孩子或清空对话。
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			h.handleText(ctx, conn, text.Text)
		}()
	case "clear":
		state, err := h.chatSvc.Clear(ctx)
		if err != nil {
			conn.sendError(err.Error())
			return
		}
		conn.send("state", state)
	case "speak":
		h.handleSpeak(ctx, conn, msg.Data)
	default:
		conn.sendError("unsupported message type: " + msg.Type)
	}
}

func (h *Handler) handleSelect(ctx context.Context, conn *connection, raw json.RawMessage) {
	var sel SelectMessage
	if err := json.Unmarshal(raw, &sel); err != nil || sel.ProfileID == "" {
		conn.sendError("profileId is required")
		return
	}

	state, err := h.chatSvc.SelectProfile(ctx, sel.ProfileID)
	if err != nil {
		conn.sendError(err.Error())
		return
	}
	conn.send("state", state)
}

func (h *Handler) handleText(ctx context.Context, conn *connection, text string) {
	_, err := h.chatSvc.SendMessageNotify(ctx, text, func(state modelchat.State) {
		conn.send("pending", state)
	})
	if errors.Is(err, chatservice.ErrStaleReply) {
		log.Printf("[websocket] reply discarded after profile switch")
		return
	}
	if err != nil {
		conn.sendError(err.Error())
		return
	}
	conn.send("state", h.chatSvc.Snapshot())
}

func (h *Handler) handleSpeak(ctx context.Context, conn *connection, raw json.RawMessage) {
	if h.speechSvc == nil || !h.speechSvc.Available() {
		conn.sendError(speechsvc.ErrSpeechUnavailable.Error())
		return
	}

	var req SpeakMessage
	if err := json.Unmarshal(raw, &req); err != nil {
		conn.sendError("invalid speak payload")
		return
	}

	text := req.Text
	if text == "" && req.MessageID != "" {
		message, err := h.chatSvc.FindMessage(req.MessageID)
		if err != nil {
			conn.sendError(err.Error())
			return
		}
		text = message.Content
	}

	result, err := h.speechSvc.Speak(ctx, text, func(err error) {
		if err != nil {
			conn.sendError("narration failed: " + err.Error())
			return
		}
		conn.send("audio", map[string]any{"narrated": true, "finished": true})
	})
	if err != nil {
		log.Printf("[websocket] speak failed: %v", err)
		conn.sendError(err.Error())
		return
	}

	if result.Narrated {
		conn.send("audio", map[string]any{"narrated": true})
		return
	}

	log.Printf("[websocket] sending audio samples=%d", len(result.Samples))
	conn.send("audio", map[string]any{
		"data":       audio.EncodePCM16Base64(result.Samples),
		"format":     "pcm16",
		"sampleRate": result.SampleRate,
		"channels":   audio.Channels,
		"messageId":  req.MessageID,
	})
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
