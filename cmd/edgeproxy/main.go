// Package main 提供 edgeproxy 命令行入口
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dep2p/go-edgeproxy"
	"github.com/dep2p/go-edgeproxy/config"
	"github.com/dep2p/go-edgeproxy/pkg/lib/log"
)

var logger = log.Logger("edgeproxy/cmd")

// 命令行参数只用于运行时覆盖，长期配置写在 JSON 配置文件中。
var (
	configFile  = flag.String("config", "", "配置文件路径（JSON）")
	listenAddr  = flag.String("listen", "", "玩家 TCP 监听地址，覆盖配置文件")
	wsAddr      = flag.String("ws", "", "玩家 WebSocket 监听地址，覆盖配置文件")
	upstream    = flag.String("upstream", "", "模拟进程地址，覆盖配置文件")
	network     = flag.String("network", "", "控制链路网络 (tcp/quic)，覆盖配置文件")
	metricsAddr = flag.String("metrics", "", "Prometheus 指标地址，覆盖配置文件")
	debugAddr   = flag.String("introspect", "", "开启本地自省服务并监听该地址")
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(edgeproxy.VersionInfo())
		return nil
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	applyEnvOverrides(cfg)
	applyFlagOverrides(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("启动 edgeproxy", "version", edgeproxy.Version, "commit", edgeproxy.GitCommit)
	p, err := edgeproxy.Start(ctx, edgeproxy.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}

	fmt.Printf("edgeproxy 已启动 (%s)\n", p.ID())
	fmt.Printf("  玩家监听: %v\n", p.ListenAddrs())
	fmt.Printf("  控制链路: %s://%s\n", cfg.ControlLink.Network, cfg.ControlLink.Addr)
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr != "" {
		fmt.Printf("  指标: http://%s%s\n", cfg.Metrics.ListenAddr, cfg.Metrics.Path)
	}

	if cfg.Diagnostics.EnableIntrospect {
		fmt.Printf("  自省: http://%s/debug/introspect\n", cfg.Diagnostics.IntrospectAddr)
	}

	select {
	case <-ctx.Done():
		fmt.Println("\n正在关闭...")
	case <-p.Done():
	}

	closeErr := p.Close()
	if err := p.Err(); err != nil {
		return fmt.Errorf("控制链路失败: %w", err)
	}
	return closeErr
}

// applyFlagOverrides 应用显式设置的命令行参数
func applyFlagOverrides(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen.TCPAddr = *listenAddr
		case "ws":
			cfg.Listen.WebSocketAddr = *wsAddr
		case "upstream":
			cfg.ControlLink.Addr = *upstream
		case "network":
			cfg.ControlLink.Network = *network
		case "metrics":
			cfg.Metrics.ListenAddr = *metricsAddr
		case "introspect":
			cfg.Diagnostics.EnableIntrospect = true
			if *debugAddr != "" {
				cfg.Diagnostics.IntrospectAddr = *debugAddr
			}
		}
	})
}
