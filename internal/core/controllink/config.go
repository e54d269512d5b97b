package controllink

import (
	"time"

	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/internal/core/codec"
)

// Config 控制链路配置
type Config struct {
	// Network "tcp" 或 "quic"
	Network string

	// Addr 模拟进程地址
	Addr string

	// ServerName 证书校验名，为空时取 Addr 的主机部分
	ServerName string

	// CertFile / KeyFile 代理自身证书
	CertFile string
	KeyFile  string

	// RootCAFile 校验模拟进程证书的根证书
	RootCAFile string

	// DialTimeout 建链超时
	DialTimeout time.Duration

	// KeepAlive QUIC keep-alive 周期
	KeepAlive time.Duration

	// SendQueueSize 发送队列长度
	SendQueueSize int

	// MaxEnvelopeSize 单个信封最大字节数
	MaxEnvelopeSize int
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Network:         config.LinkNetworkTCP,
		Addr:            "127.0.0.1:35565",
		DialTimeout:     10 * time.Second,
		KeepAlive:       5 * time.Second,
		SendQueueSize:   4096,
		MaxEnvelopeSize: codec.DefaultMaxFrameSize,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.Network != config.LinkNetworkTCP && c.Network != config.LinkNetworkQUIC {
		return ErrInvalidConfig
	}
	if c.SendQueueSize <= 0 || c.MaxEnvelopeSize <= 0 || c.DialTimeout < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ConfigFromUnified 从统一配置创建链路配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	cl := cfg.ControlLink
	return Config{
		Network:         cl.Network,
		Addr:            cl.Addr,
		ServerName:      cl.ServerName,
		CertFile:        cl.CertFile,
		KeyFile:         cl.KeyFile,
		RootCAFile:      cl.RootCAFile,
		DialTimeout:     cl.DialTimeout.Duration(),
		KeepAlive:       cl.KeepAlive.Duration(),
		SendQueueSize:   cl.SendQueueSize,
		MaxEnvelopeSize: cl.MaxEnvelopeSize,
	}
}
