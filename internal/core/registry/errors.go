package registry

import "errors"

// 注册表错误定义
var (
	// ErrRegistryFull 连接数已达上限
	ErrRegistryFull = errors.New("registry: connection limit reached")

	// ErrRegistryClosed 注册表已关闭
	ErrRegistryClosed = errors.New("registry: registry closed")

	// ErrNilQueue 未提供出站队列
	ErrNilQueue = errors.New("registry: nil outbound queue")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("registry: invalid config")
)

// 常用移除原因
const (
	ReasonClientClosed = "client-closed"
	ReasonSlowConsumer = "slow-consumer"
	ReasonIngressError = "ingress-error"
	ReasonEgressError  = "egress-error"
	ReasonDrained      = "drained"
	ReasonLinkFailure  = "link-failure"
	ReasonShutdown     = "shutdown"
)
