package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// Server 暴露 /metrics 的 HTTP 服务
type Server struct {
	handler http.Handler
	path    string

	mu   sync.Mutex
	srv  *http.Server
	addr net.Addr
	done chan struct{}
}

// NewServer 创建指标 HTTP 服务
func NewServer(gatherer prometheus.Gatherer, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		path:    path,
	}
}

// Start 在 listenAddr 上开始服务
func (s *Server) Start(listenAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return errors.New("metrics: server already started")
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, s.handler)
	s.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.addr = ln.Addr()
	s.done = make(chan struct{})

	srv, done := s.srv, s.done
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("指标服务异常退出", "error", err)
		}
	}()

	logger.Info("指标服务已启动", "addr", s.addr.String(), "path", s.path)
	return nil
}

// Addr 返回实际监听地址，未启动时为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop 优雅关闭服务
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, done := s.srv, s.done
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	return err
}
