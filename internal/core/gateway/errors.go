package gateway

import "errors"

var (
	// ErrAlreadyStarted 网关已启动
	ErrAlreadyStarted = errors.New("gateway: already started")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("gateway: invalid config")
)
