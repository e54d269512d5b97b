package ingress

import "errors"

var (
	// ErrFrameTooLarge 玩家帧长度超过上限
	ErrFrameTooLarge = errors.New("ingress: frame too large")

	// ErrMalformedFrame 玩家帧格式错误
	ErrMalformedFrame = errors.New("ingress: malformed frame")

	// ErrTruncatedFrame 流在帧中途结束
	ErrTruncatedFrame = errors.New("ingress: truncated frame")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = errors.New("ingress: invalid config")
)
