// Package transport 定义玩家侧传输层抽象
//
// 传输层只负责交付字节流，玩家协议的分帧由 ingress 完成。
//
// # 支持的传输
//
//   - TCP（tcp 子包）：原生客户端，开启 TCP_NODELAY
//   - WebSocket（websocket 子包）：浏览器客户端，二进制消息映射为连续字节流
//
// # Fx 模块集成
//
//	app := fx.New(
//	    transport.Module(),
//	    fx.Invoke(func(ctx context.Context, m *transport.Manager) {
//	        listeners, err := m.Listen(ctx)
//	        // ...
//	    }),
//	)
package transport
