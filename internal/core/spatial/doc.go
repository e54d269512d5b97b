// Package spatial 实现玩家位置的空间索引
//
// 索引是一棵在点集上构建的平衡包围体层次树（BVH）：
//   - 按包围盒最长轴在中位数处递归划分（quickselect，近线性构建）
//   - 叶子最多 LeafSize 个点，节点存放在扁平数组中
//   - 查询为闭球：距离恰好等于半径的点包含在结果中
//
// # 快照
//
// 每次重建生成一个不可变的 Snapshot，通过原子指针整体替换。
// 查询方只读取当前快照，不会阻塞重建，重建也不会阻塞查询。
// 旧快照在最后一个正在进行的查询结束后由 GC 回收。
//
// 重建超出时间预算时放弃本次结果，继续使用上一个快照。
// 因此区域广播看到的位置可能落后一个重建周期。
package spatial
