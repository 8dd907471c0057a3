package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"call-triage/server/internal/config"
	"call-triage/server/internal/gateway"
	"call-triage/server/internal/session"
	"call-triage/server/internal/store"
	"call-triage/server/internal/timeline"
	"call-triage/server/internal/triage"
	"call-triage/server/internal/vad"
)

type Server struct {
	config   *config.Config
	records  store.Store
	timeline timeline.Store
	analyzer session.Analyzer
	engine   *triage.Engine

	// gateways 管理所有活跃的通话网关 (callID -> Gateway)
	gateways   map[string]*gateway.Gateway
	gatewaysMu sync.RWMutex

	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, records store.Store, tl timeline.Store, analyzer session.Analyzer) *Server {
	s := &Server{
		config:   cfg,
		records:  records,
		timeline: tl,
		analyzer: analyzer,
		engine: triage.NewEngine(
			cfg.Triage.ConfidenceThreshold,
			cfg.Triage.ContentThreshold,
			cfg.Triage.ConcernThreshold,
		),
		gateways: make(map[string]*gateway.Gateway),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.originAllowed(r.Header.Get("Origin"))
		},
	}
	return s
}

func (s *Server) Routes() http.Handler {
	// Gin 统一承载中间件与路由，便于扩展日志/鉴权/限流等能力。
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery(), s.corsMiddleware())
	engine.GET("/healthz", s.handleHealthz)
	engine.POST("/api/calls", s.handleCreateCall)
	engine.GET("/api/calls", s.handleListCalls)
	engine.GET("/api/calls/:id", s.handleGetCall)
	engine.GET("/api/calls/:id/events", s.handleCallEvents)
	engine.GET("/api/calls/:id/stream", s.handleCallStream)
	return engine
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	s.gatewaysMu.RLock()
	active := len(s.gateways)
	s.gatewaysMu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "active_calls": active})
}

// handleCreateCall 签发新通话 ID。客户端拿到 ID 后再连 stream 端点送音频。
func (s *Server) handleCreateCall(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"call_id": newCallID()})
}

// handleListCalls 返回全部已归档通话，最新在前。
func (s *Server) handleListCalls(c *gin.Context) {
	recs, err := s.records.List(c.Request.Context())
	if err != nil {
		log.Printf("[API] list calls failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list calls failed"})
		return
	}
	c.JSON(http.StatusOK, recs)
}

// handleGetCall 返回单通归档记录。
func (s *Server) handleGetCall(c *gin.Context) {
	rec, err := s.records.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		log.Printf("[API] get call %s failed: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get call failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleCallEvents 返回通话的全量审计时间线，用于回放与复盘。
func (s *Server) handleCallEvents(c *gin.Context) {
	events, err := s.timeline.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		log.Printf("[API] list events for %s failed: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list events failed"})
		return
	}
	c.JSON(http.StatusOK, events)
}

// handleCallStream 升级 WebSocket 并把整通电话的生命周期交给网关。
// 同一 callID 只允许一条活跃连接。
func (s *Server) handleCallStream(c *gin.Context) {
	callID := c.Param("id")

	// 检查与占位必须在同一个临界区里完成：先占住槽位再做握手，
	// 否则两条并发连接会同时通过检查、各跑一个会话，把事件交错写进
	// 同一条时间线。Upgrade 失败时释放占位。
	s.gatewaysMu.Lock()
	if _, exists := s.gateways[callID]; exists {
		s.gatewaysMu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"error": "call already streaming"})
		return
	}
	s.gateways[callID] = nil
	s.gatewaysMu.Unlock()

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API] upgrade websocket for %s failed: %v", callID, err)
		s.gatewaysMu.Lock()
		delete(s.gateways, callID)
		s.gatewaysMu.Unlock()
		return
	}

	segmenter := vad.NewSegmenter(vad.Params{
		SampleRate:           s.config.Audio.SampleRate,
		EnergyThreshold:      s.config.VAD.EnergyThreshold,
		SilenceDuration:      s.config.VAD.SilenceDuration,
		MaxBufferDuration:    s.config.VAD.MaxBufferDuration,
		MinUtteranceDuration: s.config.VAD.MinUtteranceDuration,
	})

	ctrl := session.NewController(session.Params{
		CallID:        callID,
		Segmenter:     segmenter,
		Analyzer:      s.analyzer,
		Engine:        s.engine,
		Timeline:      s.timeline,
		Records:       s.records,
		MinFinalFlush: s.config.VAD.MinFinalFlushDuration,
	})

	gw := gateway.NewGateway(callID, conn, ctrl, gateway.Config{
		PingInterval: s.config.Gateway.PingInterval,
		WriteTimeout: s.config.Server.WriteTimeout,
	}, nil)
	ctrl.SetSink(gw)

	s.gatewaysMu.Lock()
	s.gateways[callID] = gw
	active := len(s.gateways)
	s.gatewaysMu.Unlock()
	log.Printf("[API] call %s streaming (active: %d)", callID, active)

	defer func() {
		// 只清掉自己的登记，不碰可能已接管该槽位的后继连接。
		s.gatewaysMu.Lock()
		if s.gateways[callID] == gw {
			delete(s.gateways, callID)
		}
		remaining := len(s.gateways)
		s.gatewaysMu.Unlock()
		log.Printf("[API] call %s closed (remaining: %d)", callID, remaining)
	}()

	// 阻塞直到连接关闭；返回时会话必已收尾。
	gw.Run()
}

func (s *Server) originAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	// 未配置白名单时放开，便于本地调试；生产环境应配置 allowed_origins。
	if len(s.config.Gateway.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range s.config.Gateway.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.originAllowed(origin) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// newCallID 生成形如 LIVE-A1B2C3D4 的通话 ID。
func newCallID() string {
	return "LIVE-" + strings.ToUpper(uuid.New().String()[:8])
}
