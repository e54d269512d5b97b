// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的代理诊断信息，用于调试和监控。
// 默认绑定到 127.0.0.1，不暴露到网络。
//
// # 端点
//
//	GET /debug/introspect             - 完整诊断报告 (JSON)
//	GET /debug/introspect/connections - 连接列表（状态、队列、丢弃计数）
//	GET /debug/introspect/spatial     - 空间快照信息
//	GET /debug/introspect/bandwidth   - 流量统计
//	GET /debug/introspect/runtime     - Go 运行时信息
//	GET /debug/pprof/*                - Go pprof 端点
//	GET /health                       - 健康检查（按生命周期阶段）
//
// # 使用示例
//
//	server := introspect.New(introspect.Config{
//	    Addr:     "127.0.0.1:6060",
//	    Registry: reg,
//	})
//	server.Start(ctx)
//	defer server.Stop()
//
// # 安全
//
// 默认只监听本地地址。连接列表包含玩家远端地址，
// 如果需要远程访问，请确保配置适当的访问控制。
//
// 通过 config.Diagnostics.EnableIntrospect 配置启用。
package introspect
