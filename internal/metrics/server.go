package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vnet/internal/logging"
)

// Server 指标HTTP服务
type Server struct {
	addr    string
	path    string
	metrics *Metrics
	log     *logging.Logger

	server   *http.Server
	listener net.Listener
}

// NewServer 创建指标服务，path 为空时使用 /metrics
func NewServer(addr, path string, m *Metrics, log *logging.Logger) *Server {
	if path == "" {
		path = "/metrics"
	}
	if log == nil {
		log = logging.GetLogger()
	}
	return &Server{
		addr:    addr,
		path:    path,
		metrics: m,
		log:     log.Named("metrics"),
	}
}

// Start 监听端口并在后台提供服务
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("监听指标端口失败: %w", err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("指标服务已启动: http://%s%s", ln.Addr(), s.path)

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("指标服务异常: %v", err)
		}
	}()
	return nil
}

// Addr 返回实际监听地址，未启动时为空
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop 优雅关闭指标服务
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("关闭指标服务失败: %w", err)
	}
	s.log.Info("指标服务已停止")
	return nil
}
