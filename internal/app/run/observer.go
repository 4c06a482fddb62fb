package run

import (
	"time"

	"github.com/John-Robertt/batchdl/internal/config"
	"github.com/John-Robertt/batchdl/internal/domain"
)

// Observer 把“阶段/每条下载”的进度从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出。
// - Observer 的实现必须并发安全：OnDownloading/OnItemDone 来自多个 worker goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（read/plan/exec）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnDownloading 在某个 Task 发出请求前调用。
	OnDownloading(t domain.Task)
	// OnItemDone 在某个 Task 处理完成时调用；idx 从 1 开始，按完成顺序递增。
	OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration)
}
