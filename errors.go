package edgeproxy

import "errors"

// 公共错误定义
var (
	// ErrNotStarted 代理未启动
	ErrNotStarted = errors.New("edgeproxy: not started")

	// ErrAlreadyStarted 代理已启动
	ErrAlreadyStarted = errors.New("edgeproxy: already started")

	// ErrClosed 代理已关闭
	ErrClosed = errors.New("edgeproxy: closed")

	// ErrNilConfig 配置为空
	ErrNilConfig = errors.New("edgeproxy: nil config")
)
