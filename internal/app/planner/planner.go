package planner

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/batchdl/internal/domain"
	"github.com/John-Robertt/batchdl/internal/infra/fsx"
	"github.com/John-Robertt/batchdl/internal/naming"
)

// Plan 并发地对每个 URL 做“是否已存在”判断（只做 stat，不读文件内容）。
//
// 返回值：
// - tasks：需要下载的任务（按输入下标排序）
// - done：不需要下载的条目（skipped，或文件名无效/stat 失败的 failed），按输入下标排序
//
// 判断依据固定为请求前猜测的文件名 outDir/<PreFetch(url)>。
// 该判断与后续写盘不是原子的：两个 URL 猜出同名文件时可能互相覆盖。
func Plan(ctx context.Context, outDir string, urls []string, workers int) (tasks []domain.Task, done []domain.ItemResult, err error) {
	if workers < 1 {
		workers = 1
	}

	type slot struct {
		task *domain.Task
		res  *domain.ItemResult
	}
	slots := make([]slot, len(urls))

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := range urls {
		i := i
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, r := planOne(outDir, i, urls[i])
			slots[i] = slot{task: t, res: r}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}

	tasks = make([]domain.Task, 0, len(urls))
	done = make([]domain.ItemResult, 0, 16)
	for _, s := range slots {
		switch {
		case s.task != nil:
			tasks = append(tasks, *s.task)
		case s.res != nil:
			done = append(done, *s.res)
		}
	}
	return tasks, done, nil
}

func planOne(outDir string, idx int, rawURL string) (*domain.Task, *domain.ItemResult) {
	pre := naming.PreFetch(rawURL)
	if !naming.Valid(pre) {
		return nil, &domain.ItemResult{
			Index:     idx,
			URL:       rawURL,
			PreName:   pre,
			Status:    domain.StatusFailed,
			ErrorCode: domain.ErrCodeEmptyFilename,
			ErrorMsg:  fmt.Sprintf("Could not find filename for url: %s", rawURL),
		}
	}

	exists, err := fsx.Exists(filepath.Join(outDir, pre))
	if err != nil {
		return nil, &domain.ItemResult{
			Index:     idx,
			URL:       rawURL,
			PreName:   pre,
			Status:    domain.StatusFailed,
			ErrorCode: domain.ErrCodeIOFailed,
			ErrorMsg:  fmt.Sprintf("检查 %q 是否存在失败：%v", pre, err),
		}
	}
	if exists {
		return nil, &domain.ItemResult{
			Index:     idx,
			URL:       rawURL,
			PreName:   pre,
			FinalName: pre,
			Status:    domain.StatusSkipped,
		}
	}

	return &domain.Task{Index: idx, URL: rawURL, PreName: pre}, nil
}
