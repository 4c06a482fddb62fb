package run

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/batchdl/internal/config"
	"github.com/John-Robertt/batchdl/internal/domain"
)

type recordObserver struct {
	mu sync.Mutex

	startCalls  int
	phases      []string
	downloading []string
	items       []string
	lastTotal   int
}

func (o *recordObserver) OnStart(eff config.EffectiveConfig) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.startCalls++
}

func (o *recordObserver) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.phases = append(o.phases, name)
}

func (o *recordObserver) OnDownloading(t domain.Task) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.downloading = append(o.downloading, t.PreName)
}

func (o *recordObserver) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = append(o.items, res.FinalName)
	o.lastTotal = total
}

func TestExecuteWithObserver_EmitsPhaseAndItemEvents(t *testing.T) {
	srv := newFileServer(t)
	root := t.TempDir()
	out := t.TempDir()
	in := writeInput(t, root, srv.URL+"/a.txt", srv.URL+"/b.txt")

	obs := &recordObserver{}
	if _, err := ExecuteWithObserver(context.Background(), testConfig(in, out), obs); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	if obs.startCalls != 1 {
		t.Fatalf("期望 OnStart 调用 1 次，实际 %d", obs.startCalls)
	}
	wantPhases := []string{"read", "plan", "exec"}
	if !reflect.DeepEqual(obs.phases, wantPhases) {
		t.Fatalf("阶段事件不符合预期：got=%v want=%v", obs.phases, wantPhases)
	}
	sort.Strings(obs.downloading)
	sort.Strings(obs.items)
	want := []string{"a.txt", "b.txt"}
	if !reflect.DeepEqual(obs.downloading, want) || !reflect.DeepEqual(obs.items, want) {
		t.Fatalf("条目事件不符合预期：downloading=%v items=%v", obs.downloading, obs.items)
	}
	if obs.lastTotal != 2 {
		t.Fatalf("期望 total=2，实际 %d", obs.lastTotal)
	}
}

func TestExecuteWithObserver_SkippedItemsEmitNoDownloadEvents(t *testing.T) {
	srv := newFileServer(t)
	root := t.TempDir()
	out := t.TempDir()
	in := writeInput(t, root, srv.URL+"/a.txt")

	if _, err := Execute(context.Background(), testConfig(in, out)); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	obs := &recordObserver{}
	if _, err := ExecuteWithObserver(context.Background(), testConfig(in, out), obs); err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(obs.downloading) != 0 || len(obs.items) != 0 {
		t.Fatalf("跳过的条目不应产生下载事件：downloading=%v items=%v", obs.downloading, obs.items)
	}
}

func TestExecuteWithObserver_NilObserver_SameResultAsExecute(t *testing.T) {
	srv := newFileServer(t)
	root := t.TempDir()
	in := writeInput(t, root, srv.URL+"/a.txt", srv.URL+"/download")

	a, err := Execute(context.Background(), testConfig(in, t.TempDir()))
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	b, err := ExecuteWithObserver(context.Background(), testConfig(in, t.TempDir()), nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}

	// 时间、run_id、输出目录本身允许不同；对比时归零。
	for _, r := range []*domain.RunReport{&a, &b} {
		r.RunID, r.OutputDir = "", ""
		r.StartedAt, r.FinishedAt = time.Time{}, time.Time{}
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("nil observer 不应改变结果：\nExecute=%+v\nWithObs=%+v", a, b)
	}
}
