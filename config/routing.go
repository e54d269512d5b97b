package config

import (
	"errors"
	"time"
)

// RegistryConfig 连接注册表配置
type RegistryConfig struct {
	// MaxConnections 最大连接数，0 表示不限制
	MaxConnections int `json:"max_connections"`

	// BroadcastOptIn 为 true 时，连接需收到 enable-broadcasts 事件才接收 Global/Regional 广播
	BroadcastOptIn bool `json:"broadcast_opt_in,omitempty"`
}

// DefaultRegistryConfig 返回默认注册表配置
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxConnections: 10000,
	}
}

// Validate 验证注册表配置
func (c RegistryConfig) Validate() error {
	if c.MaxConnections < 0 {
		return errors.New("registry: max_connections must be non-negative")
	}
	return nil
}

// QueueConfig 每连接出站队列配置
type QueueConfig struct {
	// Capacity 队列容量（数据包个数），满后新数据包被丢弃
	Capacity int `json:"capacity"`

	// MaxBatch 单次写出的最大数据包数
	MaxBatch int `json:"max_batch"`
}

// DefaultQueueConfig 返回默认队列配置
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		Capacity: 1024,
		MaxBatch: 64,
	}
}

// Validate 验证队列配置
func (c QueueConfig) Validate() error {
	if c.Capacity <= 0 {
		return errors.New("queue: capacity must be positive")
	}
	if c.MaxBatch <= 0 {
		return errors.New("queue: max_batch must be positive")
	}
	return nil
}

// DispatchConfig 广播分发配置
type DispatchConfig struct {
	// DropThreshold 连续丢弃次数阈值，达到后强制断开（慢消费者驱逐）
	DropThreshold int `json:"drop_threshold"`

	// DegradedLogInterval 降级告警日志的最小间隔
	DegradedLogInterval Duration `json:"degraded_log_interval"`
}

// DefaultDispatchConfig 返回默认分发配置
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		DropThreshold:       64,
		DegradedLogInterval: Duration(time.Second),
	}
}

// Validate 验证分发配置
func (c DispatchConfig) Validate() error {
	if c.DropThreshold <= 0 {
		return errors.New("dispatch: drop_threshold must be positive")
	}
	if c.DegradedLogInterval < 0 {
		return errors.New("dispatch: degraded_log_interval must be non-negative")
	}
	return nil
}
