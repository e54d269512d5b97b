// Package metrics 提供监控指标收集
//
// metrics 模块包含两层：
//   - BandwidthCounter：进程内原子计数（字节、包、连接），供 Proxy.Stats 使用
//   - Prometheus：在 BandwidthCounter 之上导出 Prometheus 指标
//
// 两者都实现 Reporter 接口，各子系统只依赖 Reporter。
//
// # 快速开始
//
//	counter := metrics.NewBandwidthCounter()
//	counter.IngressPacket(512)
//	counter.EgressBatch(3, 1500)
//
//	stats := counter.Totals()
//	fmt.Printf("In: %d, Out: %d\n", stats.TotalIn, stats.TotalOut)
//
// # 指标暴露
//
//	reg := prometheus.NewRegistry()
//	rep := metrics.NewPrometheus("edgeproxy", reg, counter)
//	srv := metrics.NewServer(reg, "/metrics")
//	srv.Start(":9100")
//
// # 速率计算
//
// RateMeter 使用 60 个 1 秒桶计算最近一分钟的平均速率，
// 时间源为 clock.Clock，测试中可替换为 clock.NewMock()。
package metrics
