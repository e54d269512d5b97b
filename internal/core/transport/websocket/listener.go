// Package websocket 提供基于 WebSocket 的玩家监听器
//
// 每条二进制消息按到达顺序拼接为连续字节流，玩家协议分帧仍由上层完成。
package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-edgeproxy/pkg/interfaces"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("core/transport/websocket")

const acceptBacklog = 128

// Listener WebSocket 监听器
type Listener struct {
	server   *http.Server
	listener net.Listener
	upgrader websocket.Upgrader

	accept chan interfaces.Conn
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
}

var _ interfaces.Listener = (*Listener)(nil)

// Listen 在 addr 上以 path 提供 WebSocket 升级
func Listen(ctx context.Context, addr, path string) (*Listener, error) {
	if path == "" {
		path = "/"
	}

	var lc net.ListenConfig
	nl, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket: listen %s: %w", addr, err)
	}

	l := &Listener{
		listener: nl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		accept: make(chan interfaces.Conn, acceptBacklog),
		done:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, l.handleUpgrade)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(nl); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("WebSocket 服务退出", "addr", nl.Addr().String(), "error", err)
		}
	}()
	return l, nil
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if l.closed.Load() {
		http.Error(w, "closing", http.StatusServiceUnavailable)
		return
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("WebSocket 升级失败", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &Conn{ws: ws}
	select {
	case l.accept <- c:
	case <-l.done:
		_ = c.Close()
	}
}

// Accept 接受连接
func (l *Listener) Accept() (interfaces.Conn, error) {
	select {
	case c := <-l.accept:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Addr 返回监听地址
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close 关闭监听器；已升级但未被 Accept 的连接一并关闭
func (l *Listener) Close() error {
	var err error
	l.once.Do(func() {
		l.closed.Store(true)
		close(l.done)
		err = l.server.Close()
		for {
			select {
			case c := <-l.accept:
				_ = c.Close()
			default:
				return
			}
		}
	})
	return err
}

// Conn 把 WebSocket 连接适配为字节流
type Conn struct {
	ws     *websocket.Conn
	reader io.Reader
}

var _ interfaces.Conn = (*Conn)(nil)

// Read 读取下一段二进制数据；文本消息被忽略
func (c *Conn) Read(p []byte) (int, error) {
	for {
		if c.reader == nil {
			kind, r, err := c.ws.NextReader()
			if err != nil {
				var ce *websocket.CloseError
				if errors.As(err, &ce) {
					return 0, io.EOF
				}
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(p)
		if errors.Is(err, io.EOF) {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Write 将 p 作为一条二进制消息发送
func (c *Conn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close 关闭底层连接
func (c *Conn) Close() error {
	return c.ws.Close()
}

// RemoteAddr 返回玩家地址
func (c *Conn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

// SetWriteDeadline 设置写超时
func (c *Conn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}
