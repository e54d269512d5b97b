package dispatch

import (
	"errors"
	"time"

	"github.com/dep2p/go-edgeproxy/config"
)

// ErrInvalidConfig 配置无效
var ErrInvalidConfig = errors.New("dispatch: invalid config")

// Config 分发配置
type Config struct {
	// DropThreshold 连续丢弃达到该次数时驱逐连接
	DropThreshold int

	// DegradedLogInterval 降级告警日志最小间隔，0 表示每次都输出
	DegradedLogInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		DropThreshold:       64,
		DegradedLogInterval: time.Second,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.DropThreshold <= 0 || c.DegradedLogInterval < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// WithDropThreshold 设置驱逐阈值
func (c Config) WithDropThreshold(n int) Config {
	c.DropThreshold = n
	return c
}

// ConfigFromUnified 从统一配置创建分发配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		DropThreshold:       cfg.Dispatch.DropThreshold,
		DegradedLogInterval: cfg.Dispatch.DegradedLogInterval.Duration(),
	}
}
