package gateway

import (
	"time"

	"github.com/dep2p/go-edgeproxy/config"
)

// Config 网关配置
type Config struct {
	// QueueCapacity 每连接出站队列容量
	QueueCapacity int

	// NotifyTimeout 会话结束时发送 EventDisconnect 的最长等待
	NotifyTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 1024,
		NotifyTimeout: 5 * time.Second,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.QueueCapacity <= 0 || c.NotifyTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ConfigFromUnified 从统一配置创建网关配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg != nil {
		c.QueueCapacity = cfg.Queue.Capacity
	}
	return c
}
