package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/batchdl/internal/app/run"
	"github.com/John-Robertt/batchdl/internal/config"
	"github.com/John-Robertt/batchdl/internal/domain"
	"github.com/John-Robertt/batchdl/internal/infra/fsx"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// fatalError 表示参数解析已通过、运行本身失败（退出码 1）。
// 其余来自 cobra 的错误都视为参数错误（退出码 2）。
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stderr)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var fe *fatalError
	if errors.As(err, &fe) {
		return 1
	}
	fmt.Fprintf(stderr, "参数错误：%v\n\n%s", err, cmd.UsageString())
	return 2
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "batchdl <input_file>",
		Short:         "按行读取 URL 并发下载到输出目录，已存在的文件跳过",
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, args[0], stderr)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func runRoot(cmd *cobra.Command, input string, stderr io.Writer) error {
	logger := newLogger(stderr)

	cwd, err := os.Getwd()
	if err != nil {
		logger.Error("读取当前目录失败", "error", err)
		return &fatalError{err}
	}

	eff, err := config.LoadEffective(cwd, input, cmd.Flags())
	if err != nil {
		logger.Error("配置无效", "code", config.Code(err), "error", err)
		return &fatalError{err}
	}
	if lvl, e := log.ParseLevel(eff.LogLevel); e == nil {
		logger.SetLevel(lvl)
	}

	ctx := log.WithContext(cmd.Context(), logger)
	rr, err := run.ExecuteWithObserver(ctx, eff, newLogObserver(logger))
	if err != nil {
		logger.Error("运行失败", "error", err)
		return &fatalError{err}
	}

	if eff.ReportPath != "" {
		if err := writeReportFile(eff.ReportPath, rr); err != nil {
			logger.Error("写入 report 失败", "path", eff.ReportPath, "error", err)
			return &fatalError{err}
		}
		logger.Debug("report 已写入", "path", eff.ReportPath)
	}

	logger.Infof("完成：downloaded=%d skipped=%d failed=%d", rr.Summary.Downloaded, rr.Summary.Skipped, rr.Summary.Failed)
	if ctx.Err() != nil {
		logger.Warn("运行被中断，未开始的下载已记为 canceled")
	}
	return nil
}

func newLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:           log.InfoLevel,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
	})
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomicReplace(filepath.Dir(path), filepath.Base(path), b)
}
