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
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/subfetch/internal/app/run"
	"github.com/John-Robertt/subfetch/internal/config"
	"github.com/John-Robertt/subfetch/internal/domain"
	"github.com/John-Robertt/subfetch/internal/infra/logx"
	"github.com/John-Robertt/subfetch/internal/provider"
	"github.com/John-Robertt/subfetch/internal/provider/greeksubs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}
}

// exitError 携带进程退出码；对应的信息已经输出过，不再重复打印。
type exitError struct{ code int }

func (e *exitError) Error() string { return fmt.Sprintf("exit %d", e.code) }

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "subfetch",
		Short:         "为本地剧集/电影查找并下载字幕（greeksubs）",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.AddCommand(newRunCommand())
	root.AddCommand(newSearchCommand())
	root.AddCommand(newDownloadCommand())
	return root
}

func newRunCommand() *cobra.Command {
	var (
		providerName string
		apply        bool
		languages    []string
	)
	cmd := &cobra.Command{
		Use:   "run [path]",
		Short: "扫描目录并为缺少字幕的视频下载 <base>.<lang>.srt（默认 dry-run）",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := config.CLIArgs{
				Provider:    providerName,
				ProviderSet: cmd.Flags().Changed("provider"),
				Apply:       apply,
				ApplySet:    cmd.Flags().Changed("apply"),
				Languages:   languages,
			}
			if len(args) == 1 {
				cli.Path = args[0]
			}
			code := runMain(cmd.Context(), cli, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&providerName, "provider", "", "字幕站点（未指定则读配置文件；最终默认 greeksubs）")
	cmd.Flags().BoolVar(&apply, "apply", false, "下载并写入字幕（默认 dry-run）；支持 --apply=false 覆盖配置中的 apply=true")
	cmd.Flags().StringSliceVar(&languages, "language", nil, "字幕语言，逗号分隔，顺序即优先级（默认 el,en）")
	return cmd
}

func runMain(ctx context.Context, cli config.CLIArgs, stdout, stderr io.Writer) int {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		emitReport(stdout, stderr, reportForConfigError(cwdAbs, cli, err))
		return 1
	}

	log := logx.New(eff.LogLevel, stderr)
	reg, err := newRegistry(eff, log)
	if err != nil {
		fmt.Fprintf(stderr, "初始化 provider registry 失败：%v\n", err)
		return 1
	}

	progressW, interactive := pickProgressWriter(stdout, stderr)
	var obs run.Observer
	if interactive {
		ui := newProgressUI(progressW)
		defer ui.Stop()
		obs = ui
	}

	rr := run.ExecuteWithObserver(ctx, eff, reg, obs, log)

	emitReport(stdout, stderr, rr)
	if interactive && eff.Apply {
		fmt.Fprintf(progressW, "report: %s\n", filepath.Join(eff.Path, "cache", run.ReportName))
	}
	if rr.Summary.Failed == 0 && rr.Summary.Unmatched == 0 {
		return 0
	}
	return 1
}

func newRegistry(eff config.EffectiveConfig, log logrus.FieldLogger) (provider.Registry, error) {
	return provider.NewRegistry(greeksubs.Provider{
		SearchBaseURL:   eff.SearchBaseURL,
		DownloadBaseURL: eff.DownloadBaseURL,
		Log:             log,
	})
}

func summaryLine(rr domain.RunReport) string {
	return fmt.Sprintf("完成：processed=%d skipped=%d failed=%d unmatched=%d not_found=%d",
		rr.Summary.Processed, rr.Summary.Skipped, rr.Summary.Failed, rr.Summary.Unmatched, rr.Summary.NotFound,
	)
}

func emitReport(stdout, stderr io.Writer, rr domain.RunReport) {
	if isTTY(stdout) {
		fmt.Fprintln(stdout, summaryLine(rr))
		for _, it := range rr.Items {
			if it.Status != domain.StatusFailed && it.Status != domain.StatusUnmatched {
				continue
			}
			key := it.Key
			if key == "" && len(it.Files) > 0 {
				// unmatched/config 等合成条目：用首个输入文件路径做定位锚点。
				key = it.Files[0].Src
			}
			if key == "" {
				key = "<unknown>"
			}
			fmt.Fprintf(stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	_ = json.NewEncoder(stdout).Encode(rr)
	fmt.Fprintln(stderr, summaryLine(rr))
}

func reportForConfigError(cwdAbs string, cli config.CLIArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Path:       cwdAbs,
		DryRun:     !(cli.ApplySet && cli.Apply),
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.ItemResult{{
			Status:    domain.StatusFailed,
			ErrorCode: config.Code(err),
			ErrorMsg:  err.Error(),
			Files:     []domain.FileResult{},
		}},
	}
	rr.Finalize()
	return rr
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func pickProgressWriter(stdout, stderr io.Writer) (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(stderr) {
		return stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(stdout) {
		return stdout, true
	}
	return nil, false
}
