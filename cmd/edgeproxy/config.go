package main

import (
	"os"
	"strings"

	"github.com/dep2p/go-edgeproxy/config"
)

// 环境变量
const (
	envListen   = "EDGEPROXY_LISTEN"
	envUpstream = "EDGEPROXY_UPSTREAM"
	envNetwork  = "EDGEPROXY_NETWORK"
	envMetrics  = "EDGEPROXY_METRICS"
)

// loadConfig 加载配置文件，路径为空时使用默认配置
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.NewConfig(), nil
	}
	return config.LoadFile(path)
}

// applyEnvOverrides 应用环境变量覆盖
//
// 优先级：命令行参数 > 环境变量 > 配置文件。
func applyEnvOverrides(cfg *config.Config) {
	if v := strings.TrimSpace(os.Getenv(envListen)); v != "" {
		cfg.Listen.TCPAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(envUpstream)); v != "" {
		cfg.ControlLink.Addr = v
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv(envNetwork))); v != "" {
		cfg.ControlLink.Network = v
	}
	if v := strings.TrimSpace(os.Getenv(envMetrics)); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}
