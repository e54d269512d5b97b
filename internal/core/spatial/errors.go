package spatial

import "errors"

var (
	// ErrBuildTimeout 重建超出时间预算
	ErrBuildTimeout = errors.New("spatial: build exceeded time budget")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("spatial: invalid config")
)
