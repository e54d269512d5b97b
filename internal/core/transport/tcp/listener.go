// Package tcp 提供基于 TCP 的玩家监听器
package tcp

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/dep2p/go-edgeproxy/pkg/interfaces"
)

// Listener TCP 监听器
type Listener struct {
	listener *net.TCPListener
	closed   atomic.Bool
}

// 确保实现接口
var _ interfaces.Listener = (*Listener)(nil)

// Listen 在 addr 上创建 TCP 监听器
func Listen(ctx context.Context, addr string) (*Listener, error) {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", addr, err)
	}

	tcpListener, ok := l.(*net.TCPListener)
	if !ok {
		_ = l.Close()
		return nil, fmt.Errorf("tcp: not a tcp listener")
	}
	return &Listener{listener: tcpListener}, nil
}

// Accept 接受连接
func (l *Listener) Accept() (interfaces.Conn, error) {
	conn, err := l.listener.AcceptTCP()
	if err != nil {
		if l.closed.Load() {
			return nil, net.ErrClosed
		}
		return nil, err
	}

	// 玩家数据包小而频繁
	_ = conn.SetNoDelay(true)
	_ = conn.SetKeepAlive(true)
	return conn, nil
}

// Addr 返回监听地址
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Close 关闭监听器
func (l *Listener) Close() error {
	if l.closed.CompareAndSwap(false, true) {
		return l.listener.Close()
	}
	return nil
}

// IsClosed 检查监听器是否已关闭
func (l *Listener) IsClosed() bool {
	return l.closed.Load()
}
