// Package registry 实现连接注册表
//
// 注册表记录代理进程上的所有玩家连接：
//   - 连接标识（进程内唯一，单调分配）
//   - 连接状态（Connecting / Active / Draining / Closed）
//   - 最近一次位置（由模拟进程推送）
//   - 频道订阅关系
//   - 出站队列
//
// # 并发模型
//
// 结构性修改（注册、移除、订阅变更）持有写锁；
// 分发解析（查找、订阅者快照、位置快照）只持有读锁。
// 位置更新使用每连接的原子指针，只需读锁，不会阻塞其他读者。
//
// # 移除安全
//
// Remove 在写锁内关闭连接的出站队列。Remove 返回之后发起的任何分发
// 对该连接的入队都会得到 outqueue.ErrClosed，不会再有数据包进入该连接。
package registry
