package run

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/batchdl/internal/app/planner"
	"github.com/John-Robertt/batchdl/internal/config"
	"github.com/John-Robertt/batchdl/internal/domain"
	"github.com/John-Robertt/batchdl/internal/download"
	"github.com/John-Robertt/batchdl/internal/infra/httpx"
	"github.com/John-Robertt/batchdl/internal/input"
)

// Execute 执行一次批量下载，并返回 RunReport。
//
// 返回 error 只表示运行级失败（代理无效、输入不可读、规划被取消），此时不会发出任何下载。
// 单条下载失败只记录在对应 item 上，不影响其他条目。
func Execute(ctx context.Context, eff config.EffectiveConfig) (domain.RunReport, error) {
	return ExecuteWithObserver(ctx, eff, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, obs Observer) (domain.RunReport, error) {
	rr := domain.RunReport{
		RunID:     xid.New().String(),
		Input:     eff.InputFile,
		OutputDir: eff.OutputDir,
		StartedAt: time.Now().UTC(),
	}

	if obs != nil {
		obs.OnStart(eff)
	}

	client, err := httpx.NewClient(eff.ProxyURL)
	if err != nil {
		return rr, fmt.Errorf("proxy.url 无效：%w", err)
	}

	readStarted := time.Now()
	var urls []string
	if eff.ForceHTML {
		urls, err = input.ReadHTMLLinks(eff.InputFile, eff.BaseURL)
	} else {
		urls, err = input.ReadLines(eff.InputFile)
	}
	if err != nil {
		return rr, fmt.Errorf("读取输入失败：%w", err)
	}
	if obs != nil {
		obs.OnPhaseDone("read", map[string]any{"urls": len(urls)}, time.Since(readStarted))
	}

	planStarted := time.Now()
	tasks, done, err := planner.Plan(ctx, eff.OutputDir, urls, runtime.NumCPU())
	if err != nil {
		return rr, fmt.Errorf("检查已存在文件失败：%w", err)
	}
	rr.Items = make([]domain.ItemResult, 0, len(urls))
	rr.Items = append(rr.Items, done...)
	if obs != nil {
		obs.OnPhaseDone("plan", map[string]any{
			"tasks":   len(tasks),
			"skipped": countStatus(done, domain.StatusSkipped),
			"failed":  countStatus(done, domain.StatusFailed),
		}, time.Since(planStarted))
	}

	workers := eff.Concurrency
	if workers < 1 {
		workers = 1
	}

	execStarted := time.Now()
	rr.Items = append(rr.Items, execTasks(ctx, client, eff, tasks, workers, obs)...)
	if obs != nil {
		obs.OnPhaseDone("exec", map[string]any{
			"workers": workers,
			"tasks":   len(tasks),
		}, time.Since(execStarted))
	}

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr, nil
}

type execResult struct {
	res domain.ItemResult
	dur time.Duration
}

// execTasks 以最多 workers 个并发下载 tasks，等待全部完成后返回（完成顺序）。
// ctx 取消后尚未开始的 Task 直接记为 canceled，不发请求。
func execTasks(ctx context.Context, client *http.Client, eff config.EffectiveConfig, tasks []domain.Task, workers int, obs Observer) []domain.ItemResult {
	opt := download.Options{NameFrom: eff.NameFrom, StrictStatus: eff.StrictStatus}
	results := make(chan execResult, len(tasks))

	var eg errgroup.Group
	eg.SetLimit(workers)
	go func() {
		for _, t := range tasks {
			t := t
			eg.Go(func() error {
				if err := ctx.Err(); err != nil {
					results <- execResult{res: canceledItem(t, err)}
					return nil
				}
				if obs != nil {
					obs.OnDownloading(t)
				}
				oneStarted := time.Now()
				r := download.Fetch(ctx, client, eff.OutputDir, t, opt)
				results <- execResult{res: r, dur: time.Since(oneStarted)}
				return nil
			})
		}
		_ = eg.Wait()
		close(results)
	}()

	out := make([]domain.ItemResult, 0, len(tasks))
	for it := range results {
		out = append(out, it.res)
		if obs != nil {
			obs.OnItemDone(len(out), len(tasks), it.res, it.dur)
		}
	}
	return out
}

func canceledItem(t domain.Task, err error) domain.ItemResult {
	return domain.ItemResult{
		Index:     t.Index,
		URL:       t.URL,
		PreName:   t.PreName,
		Status:    domain.StatusFailed,
		ErrorCode: domain.ErrCodeCanceled,
		ErrorMsg:  fmt.Sprintf("运行已取消，未下载：%v", err),
	}
}

func countStatus(items []domain.ItemResult, status string) int {
	n := 0
	for i := range items {
		if items[i].Status == status {
			n++
		}
	}
	return n
}
