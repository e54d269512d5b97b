// Package edgeproxy 实现游戏代理的数据包路由与区域广播引擎
//
// 代理位于玩家客户端与模拟进程之间：
//
//   - 入站：玩家数据包按连接切分后经控制链路发往模拟进程
//   - 出站：模拟进程下发的广播命令被解析为目标连接集合并写入各自的出站队列
//
// 广播模式包括 Unicast、Channel、Global 与 Regional（基于 BVH 空间索引的半径查询）。
// 慢消费者的队列满时丢弃新数据包，连续丢弃达到阈值后断开。
//
// # 快速开始
//
//	p, err := edgeproxy.New(
//	    edgeproxy.WithListenAddr("0.0.0.0:25565"),
//	    edgeproxy.WithControlLink("quic", "sim.internal:35565"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	<-p.Done()
//	if err := p.Err(); err != nil {
//	    log.Fatal(err)
//	}
//
// # 文件组织
//
//   - proxy.go    - Proxy 门面与生命周期
//   - options.go  - 用户选项
//   - fx.go       - 内部模块装配
//   - errors.go   - 公共错误
//   - version.go  - 版本信息
package edgeproxy
