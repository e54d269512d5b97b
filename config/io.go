package config

import (
	"errors"
	"time"
)

// IngressConfig 入站路径配置
type IngressConfig struct {
	// MaxFrameSize 玩家帧最大长度，超过视为畸形帧并断开该连接
	MaxFrameSize int `json:"max_frame_size"`

	// ReadBufferSize 每连接读缓冲大小
	ReadBufferSize int `json:"read_buffer_size"`

	// PacketsPerSecond 每连接入站包速率上限，0 表示不限制
	PacketsPerSecond float64 `json:"packets_per_second,omitempty"`

	// Burst 速率限制突发量
	Burst int `json:"burst,omitempty"`
}

// DefaultIngressConfig 返回默认入站配置
func DefaultIngressConfig() IngressConfig {
	return IngressConfig{
		MaxFrameSize:   MaxPlayerPacketSize,
		ReadBufferSize: 16 * 1024,
	}
}

// Validate 验证入站配置
func (c IngressConfig) Validate() error {
	if c.MaxFrameSize <= 0 || c.MaxFrameSize > MaxPlayerPacketSize {
		return errors.New("ingress: max_frame_size out of range")
	}
	if c.ReadBufferSize < 16 {
		return errors.New("ingress: read_buffer_size too small")
	}
	if c.PacketsPerSecond < 0 || c.Burst < 0 {
		return errors.New("ingress: rate limit must be non-negative")
	}
	if c.PacketsPerSecond > 0 && c.Burst == 0 {
		return errors.New("ingress: burst is required when packets_per_second is set")
	}
	return nil
}

// EgressConfig 出站路径配置
type EgressConfig struct {
	// WriteTimeout 单批写出超时，0 表示不设置写超时
	WriteTimeout Duration `json:"write_timeout"`
}

// DefaultEgressConfig 返回默认出站配置
func DefaultEgressConfig() EgressConfig {
	return EgressConfig{
		WriteTimeout: Duration(10 * time.Second),
	}
}

// Validate 验证出站配置
func (c EgressConfig) Validate() error {
	if c.WriteTimeout < 0 {
		return errors.New("egress: write_timeout must be non-negative")
	}
	return nil
}
