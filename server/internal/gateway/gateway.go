// Package gateway 维护单通电话的 WebSocket 连接：
// 入向解码音频块与控制消息并驱动会话状态机，
// 出向把协议事件序列化给呼叫方客户端。
package gateway

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"call-triage/server/internal/model"
)

// CallHandler 会话状态机入口（由 session.Controller 实现）。
// 所有方法都在网关的读循环 goroutine 上调用，天然串行。
type CallHandler interface {
	Start(ctx context.Context)
	HandleAudioChunk(ctx context.Context, samples []float32)
	End(ctx context.Context, interrupted bool)
	Ended() bool
}

// ClientMessage 呼叫方发来的控制消息（文本帧）。
type ClientMessage struct {
	Type string `json:"type"` // end_call
}

// Config 网关配置。
type Config struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
}

// Gateway 一通电话的传输端点。
// 音频走二进制帧（小端 float32 PCM），控制与事件走 JSON 文本帧。
type Gateway struct {
	callID   string
	conn     *websocket.Conn
	connLock sync.Mutex

	handler CallHandler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeChan chan struct{}

	config Config
	logger *log.Logger
}

func NewGateway(callID string, conn *websocket.Conn, handler CallHandler, config Config, logger *log.Logger) *Gateway {
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		callID:    callID,
		conn:      conn,
		handler:   handler,
		ctx:       ctx,
		cancel:    cancel,
		closeChan: make(chan struct{}),
		config:    config,
		logger:    logger,
	}
}

// Run 启动会话并阻塞在读循环上，直到连接关闭或呼叫方显式结束。
// 返回时会话必已收尾、连接必已关闭。
func (g *Gateway) Run() {
	defer g.Close()

	g.handler.Start(g.ctx)
	go g.pingLoop()

	for {
		select {
		case <-g.closeChan:
			return
		default:
		}

		messageType, data, err := g.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Printf("[Gateway] call=%s read error: %v", g.callID, err)
			}
			// 传输断开：服务端代为收尾，状态记为 interrupted。
			g.handler.End(g.ctx, true)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			samples, err := decodeSamples(data)
			if err != nil {
				g.logger.Printf("[Gateway] call=%s bad audio frame: %v", g.callID, err)
				continue
			}
			g.handler.HandleAudioChunk(g.ctx, samples)

		case websocket.TextMessage:
			if err := g.handleControl(data); err != nil {
				g.logger.Printf("[Gateway] call=%s control message error: %v", g.callID, err)
			}
			if g.handler.Ended() {
				return
			}
		}
	}
}

func (g *Gateway) handleControl(data []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse control message: %w", err)
	}

	switch msg.Type {
	case "end_call":
		g.handler.End(g.ctx, false)
		return nil
	default:
		return fmt.Errorf("unknown control message type: %s", msg.Type)
	}
}

// Send 把一条协议事件写给呼叫方。实现 session 的 Sink 接口。
// 连接关闭后调用返回错误而不是写半关闭的连接；Seq 由会话侧分配。
func (g *Gateway) Send(evt *model.Event) error {
	select {
	case <-g.closeChan:
		return errors.New("gateway is closed")
	default:
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	g.connLock.Lock()
	defer g.connLock.Unlock()

	if g.config.WriteTimeout > 0 {
		g.conn.SetWriteDeadline(time.Now().Add(g.config.WriteTimeout))
	}
	if err := g.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write to client: %w", err)
	}
	return nil
}

func (g *Gateway) pingLoop() {
	interval := g.config.PingInterval
	if interval == 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.closeChan:
			return
		case <-ticker.C:
			g.connLock.Lock()
			g.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second))
			g.connLock.Unlock()
		}
	}
}

// Close 幂等关闭：取消 context、停掉协程、关闭底层连接。
func (g *Gateway) Close() error {
	var closeErr error

	g.closeOnce.Do(func() {
		g.logger.Printf("[Gateway] closing call %s", g.callID)
		g.cancel()
		close(g.closeChan)

		g.connLock.Lock()
		defer g.connLock.Unlock()
		g.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		closeErr = g.conn.Close()
	})

	return closeErr
}

// decodeSamples 把二进制帧解码为小端 float32 单声道采样。
func decodeSamples(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("audio frame length %d not a multiple of 4", len(data))
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples, nil
}
