package planner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/batchdl/internal/domain"
)

func TestPlan_SkipsExisting(t *testing.T) {
	out := t.TempDir()
	write(t, filepath.Join(out, "a.txt"))

	urls := []string{"http://example.com/a.txt", "http://example.com/b.txt"}
	tasks, done, err := Plan(context.Background(), out, urls, 4)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(tasks) != 1 || tasks[0].URL != urls[1] || tasks[0].PreName != "b.txt" || tasks[0].Index != 1 {
		t.Fatalf("tasks 不符合预期：%+v", tasks)
	}
	if len(done) != 1 || done[0].Status != domain.StatusSkipped || done[0].Index != 0 {
		t.Fatalf("done 不符合预期：%+v", done)
	}
}

func TestPlan_SkipCountMatchesExisting(t *testing.T) {
	out := t.TempDir()
	urls := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		name := "f" + string(rune('a'+i%26)) + string(rune('a'+i/26)) + ".bin"
		urls = append(urls, "http://example.com/"+name)
		if i%3 == 0 {
			write(t, filepath.Join(out, name))
		}
	}

	tasks, done, err := Plan(context.Background(), out, urls, 8)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	wantSkip := 17 // i%3==0，i in [0,50)
	if len(done) != wantSkip || len(tasks) != len(urls)-wantSkip {
		t.Fatalf("期望 skip=%d tasks=%d，实际 skip=%d tasks=%d", wantSkip, len(urls)-wantSkip, len(done), len(tasks))
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i-1].Index >= tasks[i].Index {
			t.Fatalf("tasks 应按输入下标排序：%d >= %d", tasks[i-1].Index, tasks[i].Index)
		}
	}
}

func TestPlan_DuplicatesKept(t *testing.T) {
	out := t.TempDir()
	urls := []string{"http://example.com/a.txt", "http://mirror.example.com/a.txt"}

	tasks, _, err := Plan(context.Background(), out, urls, 2)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("同名 URL 不去重，期望 2 个任务，实际 %d", len(tasks))
	}
}

func TestPlan_EmptyFilenameRejected(t *testing.T) {
	out := t.TempDir()
	urls := []string{"", "http://example.com/dir/", "http://example.com/.."}

	tasks, done, err := Plan(context.Background(), out, urls, 2)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("不应生成任务：%+v", tasks)
	}
	if len(done) != len(urls) {
		t.Fatalf("期望 %d 条失败，实际 %d", len(urls), len(done))
	}
	for _, r := range done {
		if r.Status != domain.StatusFailed || r.ErrorCode != domain.ErrCodeEmptyFilename {
			t.Fatalf("期望 empty_filename，实际 %+v", r)
		}
	}
}

func TestPlan_NoSlashURLUsesWholeString(t *testing.T) {
	out := t.TempDir()
	write(t, filepath.Join(out, "plainname"))

	_, done, err := Plan(context.Background(), out, []string{"plainname"}, 1)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if len(done) != 1 || done[0].Status != domain.StatusSkipped || done[0].PreName != "plainname" {
		t.Fatalf("期望按整串判断并跳过：%+v", done)
	}
}

func TestPlan_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Plan(ctx, t.TempDir(), []string{"http://example.com/a.txt"}, 1)
	if err == nil {
		t.Fatalf("期望 ctx 取消错误，但得到 nil")
	}
}

func write(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("写入文件失败：%v", err)
	}
}
