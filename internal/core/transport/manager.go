package transport

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/dep2p/go-edgeproxy/internal/core/transport/tcp"
	"github.com/dep2p/go-edgeproxy/internal/core/transport/websocket"
	"github.com/dep2p/go-edgeproxy/pkg/interfaces"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// Config 传输层配置
type Config struct {
	// TCPAddr 为空则不启用 TCP
	TCPAddr string

	// WebSocketAddr 为空则不启用 WebSocket
	WebSocketAddr string

	// WebSocketPath WebSocket 升级路径
	WebSocketPath string
}

// Manager 管理所有玩家侧监听器
type Manager struct {
	cfg   Config
	extra []interfaces.Listener

	mu        sync.Mutex
	listeners []interfaces.Listener
}

// NewManager 创建监听器管理器
//
// extra 为外部注入的监听器，与配置中的监听器一同返回。
func NewManager(cfg Config, extra ...interfaces.Listener) *Manager {
	return &Manager{cfg: cfg, extra: extra}
}

// Listen 按配置打开全部监听器
//
// 任一监听器打开失败时关闭已打开的监听器。
func (m *Manager) Listen(ctx context.Context) ([]interfaces.Listener, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.listeners) > 0 {
		return append([]interfaces.Listener(nil), m.listeners...), nil
	}

	var opened []interfaces.Listener
	fail := func(err error) ([]interfaces.Listener, error) {
		for _, l := range opened {
			_ = l.Close()
		}
		return nil, err
	}

	if m.cfg.TCPAddr != "" {
		l, err := tcp.Listen(ctx, m.cfg.TCPAddr)
		if err != nil {
			return fail(err)
		}
		logger.Info("TCP 监听已启动", "addr", l.Addr().String())
		opened = append(opened, l)
	}
	if m.cfg.WebSocketAddr != "" {
		l, err := websocket.Listen(ctx, m.cfg.WebSocketAddr, m.cfg.WebSocketPath)
		if err != nil {
			return fail(err)
		}
		logger.Info("WebSocket 监听已启动", "addr", l.Addr().String(), "path", m.cfg.WebSocketPath)
		opened = append(opened, l)
	}
	opened = append(opened, m.extra...)

	if len(opened) == 0 {
		return nil, ErrNoListener
	}
	m.listeners = opened
	return append([]interfaces.Listener(nil), opened...), nil
}

// Listeners 返回已打开的监听器
func (m *Manager) Listeners() []interfaces.Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]interfaces.Listener(nil), m.listeners...)
}

// Close 关闭全部监听器
func (m *Manager) Close() error {
	m.mu.Lock()
	listeners := m.listeners
	m.listeners = nil
	m.mu.Unlock()

	var err error
	for _, l := range listeners {
		err = multierr.Append(err, l.Close())
	}
	return err
}
