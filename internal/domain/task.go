package domain

// Task 是一次下载任务：原始 URL + 发请求前猜测的文件名。
// Index 是 URL 在输入列表中的下标，用于 report 稳定排序。
//
// Task 创建后不再修改，且只交给一个 worker 处理。
type Task struct {
	Index   int
	URL     string
	PreName string
}
