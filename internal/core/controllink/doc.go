// Package controllink 实现代理到模拟进程的控制链路
//
// 控制链路是一条双向认证的加密连接（TLS 1.3 over TCP，或 QUIC 上的单条双向流），
// 承载 codec 包定义的信封。链路由两个任务驱动：
//   - 读取任务：解码信封并调用 Handler
//   - 写入任务：从有界发送队列取信封编码写出，队列暂时为空时 Flush
//
// 发送方法在队列满时阻塞，把背压传导回玩家读取任务。
// 链路上除未知信封类型之外的任何读写或解码错误都会结束 Run，
// 对代理而言是致命错误：没有上游就不能服务任何玩家。
package controllink
