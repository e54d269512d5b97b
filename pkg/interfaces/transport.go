package interfaces

import (
	"io"
	"net"
	"time"
)

// Conn 玩家连接的字节流
//
// net.Conn 满足该接口。
type Conn interface {
	io.ReadWriteCloser

	// RemoteAddr 返回玩家地址
	RemoteAddr() net.Addr

	// SetWriteDeadline 设置写超时
	SetWriteDeadline(t time.Time) error
}

// Listener 玩家连接监听器
type Listener interface {
	// Accept 阻塞直到有新连接；Close 之后返回错误
	Accept() (Conn, error)

	// Addr 返回实际监听地址
	Addr() net.Addr

	// Close 关闭监听器
	Close() error
}
