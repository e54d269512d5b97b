package config

import (
	"errors"
	"time"
)

// 控制链路网络类型
const (
	LinkNetworkTCP  = "tcp"
	LinkNetworkQUIC = "quic"
)

// MaxPlayerPacketSize 玩家协议单个数据包的最大长度（3 字节 VarInt 上限）
const MaxPlayerPacketSize = 2097151

// ControlLinkConfig 控制链路配置
//
// 控制链路是到模拟进程的唯一双向认证加密连接。
// 证书的签发与轮换不在本进程职责内，这里只加载文件。
type ControlLinkConfig struct {
	// Network 传输类型："tcp"（TLS over TCP）或 "quic"
	Network string `json:"network"`

	// Addr 模拟进程地址，例如 "127.0.0.1:35565"
	Addr string `json:"addr"`

	// ServerName 校验服务端证书时使用的名称，为空则取 Addr 的主机部分
	ServerName string `json:"server_name,omitempty"`

	// CertFile 代理证书（PEM）
	CertFile string `json:"cert_file,omitempty"`

	// KeyFile 代理私钥（PEM）
	KeyFile string `json:"key_file,omitempty"`

	// RootCAFile 根证书（PEM），用于校验模拟进程
	RootCAFile string `json:"root_ca_file,omitempty"`

	// DialTimeout 建链超时
	DialTimeout Duration `json:"dial_timeout"`

	// KeepAlive QUIC keep-alive 周期
	KeepAlive Duration `json:"keep_alive,omitempty"`

	// SendQueueSize 上行发送队列长度（信封个数）
	SendQueueSize int `json:"send_queue_size"`

	// MaxEnvelopeSize 单个信封最大字节数
	MaxEnvelopeSize int `json:"max_envelope_size"`
}

// DefaultControlLinkConfig 返回默认控制链路配置
func DefaultControlLinkConfig() ControlLinkConfig {
	return ControlLinkConfig{
		Network:         LinkNetworkTCP,
		Addr:            "127.0.0.1:35565",
		CertFile:        "proxy.crt",
		KeyFile:         "proxy_private_key.pem",
		RootCAFile:      "root_ca.crt",
		DialTimeout:     Duration(10 * time.Second),
		KeepAlive:       Duration(5 * time.Second),
		SendQueueSize:   4096,
		MaxEnvelopeSize: MaxPlayerPacketSize + 1024,
	}
}

// Validate 验证控制链路配置
func (c ControlLinkConfig) Validate() error {
	if c.Network != LinkNetworkTCP && c.Network != LinkNetworkQUIC {
		return errors.New("control_link: network must be \"tcp\" or \"quic\"")
	}
	if c.Addr == "" {
		return errors.New("control_link: addr is required")
	}
	if c.DialTimeout < 0 || c.KeepAlive < 0 {
		return errors.New("control_link: durations must be non-negative")
	}
	if c.SendQueueSize <= 0 {
		return errors.New("control_link: send_queue_size must be positive")
	}
	if c.MaxEnvelopeSize < 64 {
		return errors.New("control_link: max_envelope_size too small")
	}
	return nil
}
