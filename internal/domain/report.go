package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusDownloaded = "downloaded"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

const (
	ErrCodeFetchFailed    = "fetch_failed"
	ErrCodeHTTPStatus     = "http_status"
	ErrCodeIOFailed       = "io_failed"
	ErrCodeTargetConflict = "target_conflict"
	ErrCodeEmptyFilename  = "empty_filename"
	ErrCodeCanceled       = "canceled"
)

// RunReport 是一次运行的结构化结果（--report 输出的 JSON）。
type RunReport struct {
	RunID     string `json:"run_id"`
	Input     string `json:"input"`
	OutputDir string `json:"output_dir"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Downloaded int `json:"downloaded"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

type ItemResult struct {
	Index     int    `json:"index"`
	URL       string `json:"url"`
	PreName   string `json:"pre_name"`
	FinalName string `json:"final_name"`

	Status     string `json:"status"`
	HTTPStatus int    `json:"http_status,omitempty"`
	Bytes      int64  `json:"bytes"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按输入下标
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].Index < r.Items[j].Index })

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusDownloaded:
			s.Downloaded++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 保证 items 永远输出为数组（nil 也输出 []）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []ItemResult{}
	}
	return json.Marshal(a)
}
