package controllink

import "errors"

var (
	// ErrLinkClosed 链路已关闭
	ErrLinkClosed = errors.New("controllink: link closed")

	// ErrAlreadyRunning 链路已经在运行
	ErrAlreadyRunning = errors.New("controllink: link already running")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("controllink: invalid config")

	// ErrUnexpectedEnvelope 收到不应由模拟进程发送的信封
	ErrUnexpectedEnvelope = errors.New("controllink: unexpected envelope direction")
)
