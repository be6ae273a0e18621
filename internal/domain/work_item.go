package domain

// WorkItem 是按查询键聚合后的工作单元：同一集（或同一部电影）的多个文件只查询一次 listing。
// 为了数据局部性，WorkItem 只保存文件下标（指向 []VideoFile），避免复制大结构体。
//
// 约束：
// - Videos 与 FileIdx 一一对应（同一集的不同文件可能来自不同 release group）
// - Query 来自 Videos[0]，同组内所有 Video 的 Query().Key() 相同
type WorkItem struct {
	Key     string // Query.Key()
	Query   Query
	FileIdx []int
	Videos  []Video
}
