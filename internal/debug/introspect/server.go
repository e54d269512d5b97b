package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dep2p/go-edgeproxy/internal/core/lifecycle"
	"github.com/dep2p/go-edgeproxy/internal/core/metrics"
	"github.com/dep2p/go-edgeproxy/internal/core/registry"
	"github.com/dep2p/go-edgeproxy/internal/core/spatial"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("debug/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// maxListedConnections 连接列表的最大条目数
const maxListedConnections = 1000

// ============================================================================
//                              配置
// ============================================================================

// Config 服务配置
//
// 组件字段均可为空，为空时对应端点返回空段。
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	Registry    *registry.Registry
	Index       *spatial.Index
	Counter     *metrics.BandwidthCounter
	Coordinator *lifecycle.Coordinator

	// CustomHandlers 自定义处理器
	CustomHandlers map[string]http.HandlerFunc
}

// ============================================================================
//                              Server
// ============================================================================

// Server 本地自省 HTTP 服务
type Server struct {
	config    Config
	startTime time.Time

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
}

// New 创建自省服务
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	return &Server{
		config:    cfg,
		startTime: time.Now(),
	}
}

// Handler 返回服务的路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/introspect", s.handleIntrospect)
	mux.HandleFunc("/debug/introspect/connections", s.handleConnections)
	mux.HandleFunc("/debug/introspect/spatial", s.handleSpatial)
	mux.HandleFunc("/debug/introspect/bandwidth", s.handleBandwidth)
	mux.HandleFunc("/debug/introspect/runtime", s.handleRuntime)

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/health", s.handleHealth)

	for path, handler := range s.config.CustomHandlers {
		mux.HandleFunc(path, handler)
	}
	return mux
}

// Start 启动服务，重复调用无效
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// pprof/profile 默认采样 30 秒
		WriteTimeout: 40 * time.Second,
	}

	go func(srv *http.Server, l net.Listener) {
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("自省服务异常退出", "error", err)
		}
	}(s.server, listener)

	s.running = true
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务，重复调用无效
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Addr
}

// ============================================================================
//                              响应结构
// ============================================================================

// IntrospectResponse 完整诊断响应
type IntrospectResponse struct {
	Timestamp   time.Time       `json:"timestamp"`
	Uptime      string          `json:"uptime"`
	Phase       string          `json:"phase,omitempty"`
	Connections *ConnectionInfo `json:"connections,omitempty"`
	Spatial     *SpatialInfo    `json:"spatial,omitempty"`
	Bandwidth   *metrics.Stats  `json:"bandwidth,omitempty"`
	Runtime     *RuntimeInfo    `json:"runtime,omitempty"`
}

// ConnectionInfo 连接汇总
type ConnectionInfo struct {
	Total    int            `json:"total"`
	Channels int            `json:"channels"`
	ByState  map[string]int `json:"by_state"`
	Degraded int            `json:"degraded"`

	// List 按 ID 排序，最多 maxListedConnections 条
	List      []ConnectionDetail `json:"list,omitempty"`
	Truncated bool               `json:"truncated,omitempty"`
}

// ConnectionDetail 单个连接详情
type ConnectionDetail struct {
	ID               uint64      `json:"id"`
	RemoteAddr       string      `json:"remote_addr"`
	State            string      `json:"state"`
	Position         *[3]float64 `json:"position,omitempty"`
	Broadcasts       bool        `json:"broadcasts"`
	QueueSize        int         `json:"queue_size"`
	QueueCapacity    int         `json:"queue_capacity"`
	Dropped          int64       `json:"dropped"`
	ConsecutiveDrops int64       `json:"consecutive_drops"`
	Age              string      `json:"age"`
}

// SpatialInfo 空间快照信息
type SpatialInfo struct {
	Size     int       `json:"size"`
	Depth    int       `json:"depth"`
	BuiltAt  time.Time `json:"built_at"`
	Age      string    `json:"age"`
	Rebuilds int64     `json:"rebuilds"`
	Failures int64     `json:"failures"`
}

// RuntimeInfo 运行时信息
type RuntimeInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc"`
	MemSys       uint64 `json:"mem_sys"`
	NumGC        uint32 `json:"num_gc"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status string `json:"status"`
	Phase  string `json:"phase,omitempty"`
	Uptime string `json:"uptime"`
}

// ============================================================================
//                              处理器
// ============================================================================

func (s *Server) handleIntrospect(w http.ResponseWriter, _ *http.Request) {
	resp := IntrospectResponse{
		Timestamp:   time.Now(),
		Uptime:      s.uptime(),
		Connections: s.connectionInfo(false),
		Spatial:     s.spatialInfo(),
		Bandwidth:   s.bandwidthInfo(),
		Runtime:     runtimeInfo(),
	}
	if s.config.Coordinator != nil {
		resp.Phase = s.config.Coordinator.Current().String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleConnections(w http.ResponseWriter, _ *http.Request) {
	info := s.connectionInfo(true)
	if info == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "registry not available"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSpatial(w http.ResponseWriter, _ *http.Request) {
	info := s.spatialInfo()
	if info == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "spatial index not available"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleBandwidth(w http.ResponseWriter, _ *http.Request) {
	info := s.bandwidthInfo()
	if info == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "bandwidth counter not available"})
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRuntime(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, runtimeInfo())
}

// handleHealth 按生命周期阶段报告健康状态
//
// Serving 返回 200 "ok"；启动中与排空中返回 503；没有协调器时返回 200 "degraded"。
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Uptime: s.uptime()}
	if s.config.Coordinator == nil {
		resp.Status = "degraded"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	phase := s.config.Coordinator.Current()
	resp.Phase = phase.String()
	code := http.StatusServiceUnavailable
	switch phase {
	case lifecycle.PhaseServing:
		resp.Status = "ok"
		code = http.StatusOK
	case lifecycle.PhaseCreated, lifecycle.PhaseLinkReady:
		resp.Status = "starting"
	default:
		resp.Status = "unavailable"
	}
	writeJSON(w, code, resp)
}

// ============================================================================
//                              数据收集
// ============================================================================

func (s *Server) uptime() string {
	return time.Since(s.startTime).Truncate(time.Second).String()
}

func (s *Server) connectionInfo(withList bool) *ConnectionInfo {
	reg := s.config.Registry
	if reg == nil {
		return nil
	}

	conns := reg.All(nil)
	sort.Slice(conns, func(i, j int) bool { return conns[i].ID() < conns[j].ID() })

	info := &ConnectionInfo{
		Total:    len(conns),
		Channels: reg.ChannelCount(),
		ByState:  make(map[string]int),
	}
	now := time.Now()
	for i, c := range conns {
		info.ByState[c.State().String()]++
		if c.Degraded() {
			info.Degraded++
		}
		if !withList {
			continue
		}
		if i >= maxListedConnections {
			info.Truncated = true
			continue
		}

		qs := c.Queue().Stats()
		d := ConnectionDetail{
			ID:               uint64(c.ID()),
			RemoteAddr:       c.RemoteAddr(),
			State:            c.State().String(),
			Broadcasts:       c.ReceivesBroadcasts(),
			QueueSize:        qs.Size,
			QueueCapacity:    qs.Capacity,
			Dropped:          qs.TotalDropped,
			ConsecutiveDrops: c.ConsecutiveDrops(),
			Age:              now.Sub(c.CreatedAt()).Truncate(time.Millisecond).String(),
		}
		if p, ok := c.Position(); ok {
			d.Position = &[3]float64{p[0], p[1], p[2]}
		}
		info.List = append(info.List, d)
	}
	return info
}

func (s *Server) spatialInfo() *SpatialInfo {
	idx := s.config.Index
	if idx == nil {
		return nil
	}
	info := &SpatialInfo{}
	if snap := idx.Current(); snap != nil {
		info.Size = snap.Len()
		info.Depth = snap.Depth()
		info.BuiltAt = snap.BuiltAt()
		if !info.BuiltAt.IsZero() {
			info.Age = time.Since(info.BuiltAt).Truncate(time.Millisecond).String()
		}
	}
	info.Rebuilds, info.Failures = idx.Stats()
	return info
}

func (s *Server) bandwidthInfo() *metrics.Stats {
	if s.config.Counter == nil {
		return nil
	}
	st := s.config.Counter.Totals()
	return &st
}

func runtimeInfo() *RuntimeInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &RuntimeInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     m.Alloc,
		MemSys:       m.Sys,
		NumGC:        m.NumGC,
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Debug("写入自省响应失败", "error", err)
	}
}
