// Package interfaces 定义 edgeproxy 跨包共享的接口
//
//   - transport.go      - 玩家侧监听器与连接
//
// 实现位于 internal/core 下的同名目录。
package interfaces
