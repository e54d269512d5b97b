package config

import "errors"

// ErrNoListenAddr 未配置任何玩家监听地址
//
// 通过代码注入监听器的场景可以忽略该错误。
var ErrNoListenAddr = errors.New("listen: at least one of tcp_addr or websocket_addr is required")

// ListenConfig 玩家侧监听配置
//
// TCPAddr 与 WebSocketAddr 至少配置一个。
type ListenConfig struct {
	// TCPAddr 原始 TCP 监听地址，例如 "0.0.0.0:25565"
	TCPAddr string `json:"tcp_addr,omitempty"`

	// WebSocketAddr WebSocket 监听地址，为空则不启用
	WebSocketAddr string `json:"websocket_addr,omitempty"`

	// WebSocketPath WebSocket 升级路径
	WebSocketPath string `json:"websocket_path,omitempty"`
}

// DefaultListenConfig 返回默认监听配置
func DefaultListenConfig() ListenConfig {
	return ListenConfig{
		TCPAddr:       "0.0.0.0:25565",
		WebSocketPath: "/play",
	}
}

// Validate 验证监听配置
func (c ListenConfig) Validate() error {
	if c.TCPAddr == "" && c.WebSocketAddr == "" {
		return ErrNoListenAddr
	}
	if c.WebSocketAddr != "" && c.WebSocketPath == "" {
		return errors.New("listen: websocket_path is required when websocket_addr is set")
	}
	return nil
}
